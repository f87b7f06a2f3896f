package vault

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &VaultState{}, migration.NoModification)
	migration.MustRegister(1, &VaultAccount{}, migration.NoModification)
}

var _ orm.Model = (*VaultState)(nil)

func (m *VaultState) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.TotalShares < 0 {
		errs = errors.AppendField(errs, "TotalShares",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	if m.TotalDeposit < 0 {
		errs = errors.AppendField(errs, "TotalDeposit",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	return errs
}

var _ orm.Model = (*VaultAccount)(nil)

func (m *VaultAccount) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.Shares < 0 {
		errs = errors.AppendField(errs, "Shares",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	if m.Deposit < 0 {
		errs = errors.AppendField(errs, "Deposit",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	return errs
}

// stateKey is the storage key of the vault state singleton.
var stateKey = []byte("global")

// NewStateBucket returns a bucket holding a single VaultState instance under
// the stateKey key.
func NewStateBucket() orm.ModelBucket {
	b := orm.NewModelBucket("vltstate", &VaultState{})
	return migration.NewModelBucket("vault", b)
}

// NewAccountBucket returns a bucket for keeping VaultAccount instances,
// keyed by the holder address.
func NewAccountBucket() orm.ModelBucket {
	b := orm.NewModelBucket("vltacc", &VaultAccount{})
	return migration.NewModelBucket("vault", b)
}

// VaultAddress returns the address of the account that holds all vault
// funds.
func VaultAddress() weave.Address {
	return weave.NewCondition("vault", "pool", []byte("main")).Address()
}
