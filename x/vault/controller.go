package vault

import (
	"math/big"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/orm"
)

// SalaryLedger reports the accrued but not yet paid out salary liability.
// Required functionality is implemented by the x/salary extension.
type SalaryLedger interface {
	TotalPending(weave.KVStore, weave.UnixTime) (int64, error)
}

// CashController allows to inspect and move funds of the vault pool account.
// Required functionality is implemented by the x/cash extension.
type CashController interface {
	Balance(weave.KVStore, weave.Address) (coin.Coins, error)
	MoveCoins(weave.KVStore, weave.Address, weave.Address, coin.Coin) error
}

// Controller maintains the vault share ledger. Vault assets are the pool
// account balance reduced by the salary liability, so the share price drops
// as unpaid compensation accrues.
type Controller struct {
	state    orm.ModelBucket
	accounts orm.ModelBucket
	salaries SalaryLedger
	cashctrl CashController
}

func NewController(salaries SalaryLedger, cashctrl CashController) *Controller {
	return &Controller{
		state:    NewStateBucket(),
		accounts: NewAccountBucket(),
		salaries: salaries,
		cashctrl: cashctrl,
	}
}

// TotalAssets returns the vault funds net of the salary liability. The value
// is clamped at zero when the liability exceeds the pool balance.
func (c *Controller) TotalAssets(db weave.KVStore, now weave.UnixTime) (int64, error) {
	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	balance, err := c.poolBalance(db, conf.Ticker)
	if err != nil {
		return 0, err
	}
	pending, err := c.salaries.TotalPending(db, now)
	if err != nil {
		return 0, errors.Wrap(err, "salary liability")
	}
	if pending >= balance {
		return 0, nil
	}
	return balance - pending, nil
}

// PreviewDeposit returns the number of shares a deposit of the given amount
// would mint, without changing any state. Only the part of the deposit that
// is not consumed by clearing the outstanding salary liability purchases
// vault ownership.
func (c *Controller) PreviewDeposit(db weave.KVStore, amount int64, now weave.UnixTime) (int64, error) {
	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	balance, err := c.poolBalance(db, conf.Ticker)
	if err != nil {
		return 0, err
	}
	pending, err := c.salaries.TotalPending(db, now)
	if err != nil {
		return 0, errors.Wrap(err, "salary liability")
	}

	var assets int64
	if balance > pending {
		assets = balance - pending
	}
	effective := amount
	if uncovered := pending - balance; uncovered > 0 {
		effective -= uncovered
		if effective < 0 {
			effective = 0
		}
	}

	state, err := c.loadState(db)
	if err != nil {
		return 0, err
	}
	if state.TotalShares == 0 || assets == 0 {
		return effective, nil
	}
	return mulDiv(effective, state.TotalShares, assets)
}

// deposit accepts funds into the vault pool and mints shares for the
// portion not consumed by the salary liability. The full gross amount is
// recorded as the depositor contribution regardless of how many shares were
// minted. The minted share count is returned.
func (c *Controller) deposit(db weave.KVStore, depositor weave.Address, amount int64, now weave.UnixTime) (int64, error) {
	shares, err := c.PreviewDeposit(db, amount, now)
	if err != nil {
		return 0, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	if err := c.cashctrl.MoveCoins(db, depositor, VaultAddress(), asCoin(amount, conf.Ticker)); err != nil {
		return 0, errors.Wrap(err, "fund the pool")
	}

	acc, err := c.loadAccount(db, depositor)
	if err != nil {
		return 0, err
	}
	state, err := c.loadState(db)
	if err != nil {
		return 0, err
	}
	acc.Shares += shares
	acc.Deposit += amount
	if _, err := c.accounts.Put(db, depositor, acc); err != nil {
		return 0, errors.Wrap(err, "cannot store account")
	}
	state.TotalShares += shares
	state.TotalDeposit += amount
	if _, err := c.state.Put(db, stateKey, state); err != nil {
		return 0, errors.Wrap(err, "cannot store state")
	}
	return shares, nil
}

// withdraw pays the requested amount of assets back to the holder and burns
// the shares this amount is worth, rounded up so that a withdrawal never
// burns fewer shares than the value it pays out. The number of burned shares
// is returned.
func (c *Controller) withdraw(db weave.KVStore, depositor weave.Address, amount int64, now weave.UnixTime) (int64, error) {
	acc, err := c.loadAccount(db, depositor)
	if err != nil {
		return 0, err
	}
	state, err := c.loadState(db)
	if err != nil {
		return 0, err
	}
	assets, err := c.TotalAssets(db, now)
	if err != nil {
		return 0, err
	}
	if assets == 0 {
		return 0, errors.Wrap(errors.ErrState, "no withdrawable assets")
	}
	shares, err := mulDivCeil(amount, state.TotalShares, assets)
	if err != nil {
		return 0, err
	}
	if shares > acc.Shares {
		return 0, errors.Wrapf(errors.ErrAmount, "%d shares required, only %d held", shares, acc.Shares)
	}

	acc.Shares -= shares
	acc.Deposit -= amount
	if acc.Deposit < 0 {
		acc.Deposit = 0
	}
	if _, err := c.accounts.Put(db, depositor, acc); err != nil {
		return 0, errors.Wrap(err, "cannot store account")
	}
	state.TotalShares -= shares
	state.TotalDeposit -= amount
	if state.TotalDeposit < 0 {
		state.TotalDeposit = 0
	}
	if _, err := c.state.Put(db, stateKey, state); err != nil {
		return 0, errors.Wrap(err, "cannot store state")
	}

	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	if err := c.cashctrl.MoveCoins(db, VaultAddress(), depositor, asCoin(amount, conf.Ticker)); err != nil {
		return 0, errors.Wrap(err, "pay out")
	}
	return shares, nil
}

// transfer moves shares between two holders. The gross deposit attribution
// follows the shares, converted to an asset equivalent at the current share
// price, so that the unvested contribution of each holder stays consistent.
func (c *Controller) transfer(db weave.KVStore, src, dst weave.Address, shares int64, now weave.UnixTime) error {
	srcAcc, err := c.loadAccount(db, src)
	if err != nil {
		return err
	}
	if srcAcc.Shares < shares {
		return errors.Wrapf(errors.ErrAmount, "only %d shares held", srcAcc.Shares)
	}
	state, err := c.loadState(db)
	if err != nil {
		return err
	}
	assets, err := c.TotalAssets(db, now)
	if err != nil {
		return err
	}
	value, err := mulDiv(shares, assets, state.TotalShares)
	if err != nil {
		return err
	}
	if value > srcAcc.Deposit {
		value = srcAcc.Deposit
	}

	dstAcc, err := c.loadAccount(db, dst)
	if err != nil {
		return err
	}
	srcAcc.Shares -= shares
	srcAcc.Deposit -= value
	dstAcc.Shares += shares
	dstAcc.Deposit += value
	if _, err := c.accounts.Put(db, src, srcAcc); err != nil {
		return errors.Wrap(err, "cannot store source account")
	}
	if _, err := c.accounts.Put(db, dst, dstAcc); err != nil {
		return errors.Wrap(err, "cannot store destination account")
	}
	return nil
}

// InvestmentOf returns the part of the holder contribution that is not
// covered by the current value of the held shares. This is the unvested
// capital that the holder has advanced to the vault.
func (c *Controller) InvestmentOf(db weave.KVStore, addr weave.Address, now weave.UnixTime) (int64, error) {
	acc, err := c.loadAccount(db, addr)
	if err != nil {
		return 0, err
	}
	if acc.Deposit == 0 {
		return 0, nil
	}
	state, err := c.loadState(db)
	if err != nil {
		return 0, err
	}
	assets, err := c.TotalAssets(db, now)
	if err != nil {
		return 0, err
	}
	return shortfall(acc, assets, state.TotalShares)
}

// TotalInvestment returns the total unvested capital advanced to the vault.
// It is the sum of the shortfall over all accounts. The per account clamping
// at zero means this sum can exceed TotalDeposit minus assets whenever one
// holder's share value exceeds its own contribution, so the aggregate cannot
// be derived from the state singleton alone.
func (c *Controller) TotalInvestment(db weave.KVStore, now weave.UnixTime) (int64, error) {
	state, err := c.loadState(db)
	if err != nil {
		return 0, err
	}
	assets, err := c.TotalAssets(db, now)
	if err != nil {
		return 0, err
	}

	const accountPrefix = "vltacc:"
	it, err := db.Iterator([]byte(accountPrefix), []byte("vltacc;"))
	if err != nil {
		return 0, errors.Wrap(err, "account iterator")
	}
	defer it.Release()

	var total int64
	for {
		switch key, _, err := it.Next(); {
		case err == nil:
			var acc VaultAccount
			if err := c.accounts.One(db, key[len(accountPrefix):], &acc); err != nil {
				return 0, errors.Wrap(err, "cannot load account")
			}
			short, err := shortfall(&acc, assets, state.TotalShares)
			if err != nil {
				return 0, err
			}
			total += short
			if total < 0 {
				return 0, errors.Wrap(errors.ErrOverflow, "total investment")
			}
		case errors.ErrIteratorDone.Is(err):
			return total, nil
		default:
			return 0, errors.Wrap(err, "account iterator")
		}
	}
}

// shortfall returns the part of the account contribution not covered by the
// current value of the held shares, clamped at zero.
func shortfall(acc *VaultAccount, assets, totalShares int64) (int64, error) {
	if acc.Deposit == 0 {
		return 0, nil
	}
	var value int64
	if totalShares != 0 && acc.Shares != 0 {
		var err error
		if value, err = mulDiv(acc.Shares, assets, totalShares); err != nil {
			return 0, err
		}
	}
	if value >= acc.Deposit {
		return 0, nil
	}
	return acc.Deposit - value, nil
}

func (c *Controller) loadState(db weave.KVStore) (*VaultState, error) {
	var s VaultState
	switch err := c.state.One(db, stateKey, &s); {
	case err == nil:
		return &s, nil
	case errors.ErrNotFound.Is(err):
		return &VaultState{Metadata: &weave.Metadata{Schema: 1}}, nil
	default:
		return nil, errors.Wrap(err, "cannot load state")
	}
}

func (c *Controller) loadAccount(db weave.KVStore, addr weave.Address) (*VaultAccount, error) {
	var acc VaultAccount
	switch err := c.accounts.One(db, addr, &acc); {
	case err == nil:
		return &acc, nil
	case errors.ErrNotFound.Is(err):
		return &VaultAccount{Metadata: &weave.Metadata{Schema: 1}}, nil
	default:
		return nil, errors.Wrap(err, "cannot load account")
	}
}

// poolBalance returns the vault pool funds in atomic token units.
func (c *Controller) poolBalance(db weave.KVStore, ticker string) (int64, error) {
	coins, err := c.cashctrl.Balance(db, VaultAddress())
	switch {
	case err == nil:
		// All good.
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, errors.Wrap(err, "pool balance")
	}
	for _, co := range coins {
		if co.Ticker == ticker {
			return asUnits(*co)
		}
	}
	return 0, nil
}

// asUnits converts a coin value into atomic token units. One atomic unit is
// the smallest fractional unit of the token.
func asUnits(c coin.Coin) (int64, error) {
	units := c.Whole * coin.FracUnit
	if c.Whole != 0 && units/c.Whole != coin.FracUnit {
		return 0, errors.Wrapf(errors.ErrOverflow, "%q", c)
	}
	res := units + c.Fractional
	if c.Fractional > 0 && res < units {
		return 0, errors.Wrapf(errors.ErrOverflow, "%q", c)
	}
	return res, nil
}

func asCoin(amount int64, ticker string) coin.Coin {
	return coin.Coin{
		Whole:      amount / coin.FracUnit,
		Fractional: amount % coin.FracUnit,
		Ticker:     ticker,
	}
}

// mulDiv returns a*b/c using floor division. The intermediate product is
// computed with arbitrary precision so it cannot overflow.
func mulDiv(a, b, c int64) (int64, error) {
	if c == 0 {
		return 0, errors.Wrap(errors.ErrHuman, "division by zero")
	}
	res := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	res.Quo(res, big.NewInt(c))
	if !res.IsInt64() {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d * %d / %d", a, b, c)
	}
	return res.Int64(), nil
}

// mulDivCeil returns a*b/c rounded up.
func mulDivCeil(a, b, c int64) (int64, error) {
	if c == 0 {
		return 0, errors.Wrap(errors.ErrHuman, "division by zero")
	}
	q, r := new(big.Int).QuoRem(
		new(big.Int).Mul(big.NewInt(a), big.NewInt(b)),
		big.NewInt(c),
		new(big.Int),
	)
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsInt64() {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d * %d / %d", a, b, c)
	}
	return q.Int64(), nil
}
