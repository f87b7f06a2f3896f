package split

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &SplitState{}, migration.NoModification)
	migration.MustRegister(1, &Holder{}, migration.NoModification)
}

var _ orm.Model = (*SplitState)(nil)

func (m *SplitState) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.TotalSupply < 0 {
		errs = errors.AppendField(errs, "TotalSupply",
			errors.Wrap(errors.ErrState, "negative total supply"))
	}
	if m.TotalReleased < 0 {
		errs = errors.AppendField(errs, "TotalReleased",
			errors.Wrap(errors.ErrState, "negative total released"))
	}
	if m.InvestmentReleased < 0 {
		errs = errors.AppendField(errs, "InvestmentReleased",
			errors.Wrap(errors.ErrState, "negative investment released"))
	}
	return errs
}

var _ orm.Model = (*Holder)(nil)

func (m *Holder) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.Balance < 0 {
		errs = errors.AppendField(errs, "Balance",
			errors.Wrap(errors.ErrState, "negative balance"))
	}
	if m.LastReceived < 0 {
		errs = errors.AppendField(errs, "LastReceived",
			errors.Wrap(errors.ErrState, "negative last received"))
	}
	if m.ClaimedFromInvestment < 0 {
		errs = errors.AppendField(errs, "ClaimedFromInvestment",
			errors.Wrap(errors.ErrState, "negative claimed from investment"))
	}
	return errs
}

// stateKey is the fixed key the SplitState singleton is stored under.
var stateKey = []byte("global")

func NewStateBucket() orm.ModelBucket {
	b := orm.NewModelBucket("spltstate", &SplitState{})
	return migration.NewModelBucket("split", b)
}

func NewHolderBucket() orm.ModelBucket {
	b := orm.NewModelBucket("spltacc", &Holder{})
	return migration.NewModelBucket("split", b)
}

// SplitAddress returns the address of the account that collects the income
// to be distributed among the holders.
func SplitAddress() weave.Address {
	return weave.NewCondition("split", "income", []byte("main")).Address()
}
