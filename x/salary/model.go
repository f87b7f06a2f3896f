package salary

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Ledger{}, migration.NoModification)
	migration.MustRegister(1, &SalaryAccount{}, migration.NoModification)
}

var _ orm.Model = (*Ledger)(nil)

func (m *Ledger) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.TotalSps < 0 {
		errs = errors.AppendField(errs, "TotalSps",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	if m.Accrued < 0 {
		errs = errors.AppendField(errs, "Accrued",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	if m.TotalReleased < 0 {
		errs = errors.AppendField(errs, "TotalReleased",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	if err := m.SettledAt.Validate(); err != nil {
		errs = errors.AppendField(errs, "SettledAt", err)
	}
	return errs
}

var _ orm.Model = (*SalaryAccount)(nil)

func (m *SalaryAccount) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	if m.Sps < 0 {
		errs = errors.AppendField(errs, "Sps",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	if m.PendingRelease < 0 {
		errs = errors.AppendField(errs, "PendingRelease",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	if m.PendingSps < 0 {
		errs = errors.AppendField(errs, "PendingSps",
			errors.Wrap(errors.ErrState, "must not be negative"))
	}
	if err := m.SettledAt.Validate(); err != nil {
		errs = errors.AppendField(errs, "SettledAt", err)
	}
	if m.PendingAt != 0 {
		if err := m.PendingAt.Validate(); err != nil {
			errs = errors.AppendField(errs, "PendingAt", err)
		}
	} else if m.PendingSps != 0 {
		errs = errors.AppendField(errs, "PendingSps",
			errors.Wrap(errors.ErrState, "set without a scheduled update"))
	}
	return errs
}

// HasPending returns true if a salary update is scheduled for this account.
func (m *SalaryAccount) HasPending() bool {
	return m.PendingAt != 0
}

// ledgerKey is the storage key of the ledger singleton.
var ledgerKey = []byte("global")

// NewLedgerBucket returns a bucket holding a single Ledger instance under
// the ledgerKey key.
func NewLedgerBucket() orm.ModelBucket {
	b := orm.NewModelBucket("saledger", &Ledger{})
	return migration.NewModelBucket("salary", b)
}

// NewAccountBucket returns a bucket for keeping SalaryAccount instances,
// keyed by the beneficiary address.
func NewAccountBucket() orm.ModelBucket {
	b := orm.NewModelBucket("salacc", &SalaryAccount{})
	return migration.NewModelBucket("salary", b)
}

// loadLedger returns the ledger singleton, or a zero value ledger if none
// was persisted yet.
func loadLedger(db weave.KVStore, b orm.ModelBucket) (*Ledger, error) {
	var l Ledger
	switch err := b.One(db, ledgerKey, &l); {
	case err == nil:
		return &l, nil
	case errors.ErrNotFound.Is(err):
		return &Ledger{Metadata: &weave.Metadata{Schema: 1}}, nil
	default:
		return nil, errors.Wrap(err, "cannot load ledger")
	}
}
