package salary

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/orm"
)

// secondsPerMonth is the fixed accounting month length used to convert a
// monthly salary into a per second rate. 30 days of 86400 seconds each.
const secondsPerMonth = 30 * 24 * 60 * 60

// monthlyToSps converts a monthly salary into a per second rate using floor
// division. Salaries smaller than secondsPerMonth atomic units per month
// truncate to a zero rate.
func monthlyToSps(monthly int64) int64 {
	return monthly / secondsPerMonth
}

// Controller maintains the salary ledger state. All amounts are in atomic
// token units. Token transfers are outside of its responsibility.
type Controller struct {
	ledger   orm.ModelBucket
	accounts orm.ModelBucket
}

func NewController() *Controller {
	return &Controller{
		ledger:   NewLedgerBucket(),
		accounts: NewAccountBucket(),
	}
}

// TotalPending returns the total salary accrued by all accounts but not yet
// released, as of given time. This is the liability that accrued salaries
// represent.
func (c *Controller) TotalPending(db weave.KVStore, now weave.UnixTime) (int64, error) {
	l, err := loadLedger(db, c.ledger)
	if err != nil {
		return 0, err
	}
	accrued, err := accruedAt(l.Accrued, l.TotalSps, l.SettledAt, now)
	if err != nil {
		return 0, err
	}
	pending, err := sub64(accrued, l.TotalReleased)
	if err != nil {
		return 0, err
	}
	return pending, nil
}

// Releasable returns the amount of salary the beneficiary can release as of
// given time. A beneficiary without a salary account can release nothing.
func (c *Controller) Releasable(db weave.KVStore, beneficiary weave.Address, now weave.UnixTime) (int64, error) {
	var acc SalaryAccount
	switch err := c.accounts.One(db, beneficiary, &acc); {
	case err == nil:
		// All good.
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, errors.Wrap(err, "cannot load account")
	}
	return accruedAt(acc.PendingRelease, acc.Sps, acc.SettledAt, now)
}

// release settles the beneficiary account and zeroes its claim, returning
// the amount that must be paid out. Releasing with nothing accrued is a
// successful operation that pays nothing and leaves no state change.
func (c *Controller) release(db weave.KVStore, beneficiary weave.Address, now weave.UnixTime) (int64, error) {
	var acc SalaryAccount
	switch err := c.accounts.One(db, beneficiary, &acc); {
	case err == nil:
		// All good.
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, errors.Wrap(err, "cannot load account")
	}
	amount, err := accruedAt(acc.PendingRelease, acc.Sps, acc.SettledAt, now)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}
	acc.PendingRelease = 0
	if now > acc.SettledAt {
		acc.SettledAt = now
	}
	if _, err := c.accounts.Put(db, beneficiary, &acc); err != nil {
		return 0, errors.Wrap(err, "cannot store account")
	}

	l, err := c.settleLedger(db, now)
	if err != nil {
		return 0, err
	}
	if l.TotalReleased, err = add64(l.TotalReleased, amount); err != nil {
		return 0, err
	}
	if _, err := c.ledger.Put(db, ledgerKey, l); err != nil {
		return 0, errors.Wrap(err, "cannot store ledger")
	}
	return amount, nil
}

// scheduleUpdate arms a salary rate change that can be committed once the
// waiting period has passed. Only one update can be scheduled at a time. The
// per second rate active before this call is returned.
func (c *Controller) scheduleUpdate(db weave.KVStore, beneficiary weave.Address, monthly int64, now weave.UnixTime, waiting weave.UnixDuration) (int64, error) {
	sps := monthlyToSps(monthly)
	var acc SalaryAccount
	switch err := c.accounts.One(db, beneficiary, &acc); {
	case err == nil:
		// All good.
	case errors.ErrNotFound.Is(err):
		acc = SalaryAccount{
			Metadata:  &weave.Metadata{Schema: 1},
			SettledAt: now,
		}
	default:
		return 0, errors.Wrap(err, "cannot load account")
	}
	if acc.HasPending() {
		return 0, errors.Wrap(errors.ErrState, "an update is already scheduled")
	}
	if sps == acc.Sps {
		return 0, errors.Wrap(ErrNoOp, "rate unchanged")
	}
	acc.PendingSps = sps
	acc.PendingAt = now.Add(waiting.Duration())
	if acc.PendingAt == 0 {
		// Zero marks no scheduled update. This can happen only with a
		// genesis block time and no waiting period.
		acc.PendingAt = 1
	}
	if _, err := c.accounts.Put(db, beneficiary, &acc); err != nil {
		return 0, errors.Wrap(err, "cannot store account")
	}
	return acc.Sps, nil
}

// commitUpdate applies a scheduled salary update. Salary accrued under the
// old rate is preserved and the new rate applies from now on. The committed
// per second rate is returned.
func (c *Controller) commitUpdate(db weave.KVStore, beneficiary weave.Address, now weave.UnixTime) (int64, error) {
	var acc SalaryAccount
	if err := c.accounts.One(db, beneficiary, &acc); err != nil {
		return 0, errors.Wrap(err, "cannot load account")
	}
	if !acc.HasPending() {
		return 0, errors.Wrap(errors.ErrNotFound, "no update scheduled")
	}
	if now < acc.PendingAt {
		return 0, errors.Wrapf(ErrNotDue, "due at %s", acc.PendingAt)
	}

	var err error
	if acc.PendingRelease, err = accruedAt(acc.PendingRelease, acc.Sps, acc.SettledAt, now); err != nil {
		return 0, err
	}
	if now > acc.SettledAt {
		acc.SettledAt = now
	}

	l, err := c.settleLedger(db, now)
	if err != nil {
		return 0, err
	}
	l.TotalSps += acc.PendingSps - acc.Sps
	if l.TotalSps < 0 {
		return 0, errors.Wrap(errors.ErrState, "negative total rate")
	}
	if _, err := c.ledger.Put(db, ledgerKey, l); err != nil {
		return 0, errors.Wrap(err, "cannot store ledger")
	}

	acc.Sps = acc.PendingSps
	acc.PendingSps = 0
	acc.PendingAt = 0
	if _, err := c.accounts.Put(db, beneficiary, &acc); err != nil {
		return 0, errors.Wrap(err, "cannot store account")
	}
	return acc.Sps, nil
}

// settleLedger folds all salary accrued since the last settlement into the
// ledger accrued total and moves the settlement time forward. The returned
// ledger is not persisted.
func (c *Controller) settleLedger(db weave.KVStore, now weave.UnixTime) (*Ledger, error) {
	l, err := loadLedger(db, c.ledger)
	if err != nil {
		return nil, err
	}
	if l.Accrued, err = accruedAt(l.Accrued, l.TotalSps, l.SettledAt, now); err != nil {
		return nil, err
	}
	if now > l.SettledAt {
		l.SettledAt = now
	}
	return l, nil
}

// accruedAt returns the accrued base amount increased by rate times the
// seconds passed since the settlement time. A settlement time in the future
// contributes nothing.
func accruedAt(base, rate int64, settled, now weave.UnixTime) (int64, error) {
	if now <= settled {
		return base, nil
	}
	delta, err := mul64(rate, int64(now-settled))
	if err != nil {
		return 0, err
	}
	return add64(base, delta)
}

// mul64 multiplies two non negative int64 values, failing with ErrOverflow
// when the result does not fit int64.
func mul64(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	res := a * b
	if res/b != a {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d * %d", a, b)
	}
	return res, nil
}

func add64(a, b int64) (int64, error) {
	res := a + b
	if b > 0 && res < a {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d + %d", a, b)
	}
	return res, nil
}

func sub64(a, b int64) (int64, error) {
	res := a - b
	if (b > 0 && res > a) || (b < 0 && res < a) {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d - %d", a, b)
	}
	return res, nil
}
