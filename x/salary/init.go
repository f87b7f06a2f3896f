package salary

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
)

// Initializer fulfils the Initializer interface to load data from the
// genesis file.
type Initializer struct{}

var _ weave.Initializer = (*Initializer)(nil)

// FromGenesis will parse initial salary configuration and accounts from the
// genesis and save them to the database.
func (*Initializer) FromGenesis(opts weave.Options, params weave.GenesisParams, db weave.KVStore) error {
	conf := Configuration{
		Metadata: &weave.Metadata{Schema: 1},
	}
	switch err := gconf.InitConfig(db, opts, "salary", &conf); {
	default:
		// All good.
	case errors.ErrNotFound.Is(err):
		return nil
	case err != nil:
		return errors.Wrap(err, "cannot initialize gconf based configuration")
	}

	var payroll struct {
		SettledAt weave.UnixTime `json:"settled_at"`
		Accounts  []struct {
			Beneficiary   weave.Address `json:"beneficiary"`
			MonthlySalary int64         `json:"monthly_salary"`
		} `json:"accounts"`
	}
	if err := opts.ReadOptions("salary", &payroll); err != nil {
		return err
	}
	if len(payroll.Accounts) == 0 {
		return nil
	}

	genesisTime := payroll.SettledAt
	var total int64
	b := NewAccountBucket()
	for i, a := range payroll.Accounts {
		acc := SalaryAccount{
			Metadata:  &weave.Metadata{Schema: 1},
			Sps:       monthlyToSps(a.MonthlySalary),
			SettledAt: genesisTime,
		}
		if err := acc.Validate(); err != nil {
			return errors.Wrapf(err, "account %d is invalid", i)
		}
		if _, err := b.Put(db, a.Beneficiary, &acc); err != nil {
			return errors.Wrapf(err, "store account %d", i)
		}
		var err error
		if total, err = add64(total, acc.Sps); err != nil {
			return errors.Wrapf(err, "account %d", i)
		}
	}

	ledger := Ledger{
		Metadata:  &weave.Metadata{Schema: 1},
		TotalSps:  total,
		SettledAt: genesisTime,
	}
	lb := NewLedgerBucket()
	if _, err := lb.Put(db, ledgerKey, &ledger); err != nil {
		return errors.Wrap(err, "store ledger")
	}
	return nil
}
