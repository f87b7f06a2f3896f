package split

import (
	"math/big"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/orm"
)

// InvestmentSource reports the capital that holders have advanced and that
// is not covered by the current asset value. Required functionality is
// implemented by the x/vault extension.
type InvestmentSource interface {
	TotalInvestment(weave.KVStore, weave.UnixTime) (int64, error)
	InvestmentOf(weave.KVStore, weave.Address, weave.UnixTime) (int64, error)
}

// CashController allows to inspect and move funds of the split pool account.
// Required functionality is implemented by the x/cash extension.
type CashController interface {
	Balance(weave.KVStore, weave.Address) (coin.Coins, error)
	MoveCoins(weave.KVStore, weave.Address, weave.Address, coin.Coin) error
}

// Controller maintains the income distribution ledger. Income collected on
// the pool account belongs to the token holders pro rata to their balance.
// The income share of the investment address is not claimed directly but
// distributed among the holders weighted by their advanced capital.
type Controller struct {
	state       orm.ModelBucket
	holders     orm.ModelBucket
	investments InvestmentSource
	cashctrl    CashController
}

func NewController(investments InvestmentSource, cashctrl CashController) *Controller {
	return &Controller{
		state:       NewStateBucket(),
		holders:     NewHolderBucket(),
		investments: investments,
		cashctrl:    cashctrl,
	}
}

// Claimable returns the income that a claim submitted now would pay out to
// the account. This includes the share routed through the investment side
// channel.
func (c *Controller) Claimable(db weave.KVStore, account weave.Address, now weave.UnixTime) (int64, error) {
	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	if conf.InvestmentAddress.Equals(account) {
		return 0, nil
	}
	state, err := c.loadState(db)
	if err != nil {
		return 0, err
	}
	received, err := c.totalReceived(db, conf.Ticker, state)
	if err != nil {
		return 0, err
	}
	holder, err := c.loadHolder(db, account)
	if err != nil {
		return 0, err
	}
	base, err := c.baseClaimable(holder, state, received)
	if err != nil {
		return 0, err
	}
	invest, err := c.investmentClaimable(db, account, holder, conf, state, received, now)
	if err != nil {
		return 0, err
	}
	return base + invest, nil
}

// claim settles all income accrued by the account and pays it out from the
// pool. Claiming with nothing accrued pays nothing. The paid amount is
// returned.
func (c *Controller) claim(db weave.KVStore, account weave.Address, now weave.UnixTime) (int64, error) {
	conf, err := loadConf(db)
	if err != nil {
		return 0, err
	}
	if conf.InvestmentAddress.Equals(account) {
		return 0, errors.Wrap(errors.ErrState, "the investment address cannot claim")
	}
	state, err := c.loadState(db)
	if err != nil {
		return 0, err
	}
	received, err := c.totalReceived(db, conf.Ticker, state)
	if err != nil {
		return 0, err
	}
	amount, err := c.settle(db, account, conf, state, received, now)
	if err != nil {
		return 0, err
	}
	if _, err := c.state.Put(db, stateKey, state); err != nil {
		return 0, errors.Wrap(err, "cannot store state")
	}
	if amount > 0 {
		if err := c.cashctrl.MoveCoins(db, SplitAddress(), account, asCoin(amount, conf.Ticker)); err != nil {
			return 0, errors.Wrap(err, "pay out")
		}
	}
	return amount, nil
}

// transfer moves distribution tokens between two holders. Both sides are
// settled first so that the income accrued under the old balances is paid
// out before the new balances take effect. Tokens moved to the investment
// address earmark their already distributed income share so that it does not
// count as return on investment.
func (c *Controller) transfer(db weave.KVStore, src, dst weave.Address, amount int64, now weave.UnixTime) error {
	conf, err := loadConf(db)
	if err != nil {
		return err
	}
	state, err := c.loadState(db)
	if err != nil {
		return err
	}
	received, err := c.totalReceived(db, conf.Ticker, state)
	if err != nil {
		return err
	}

	var payouts []payout
	if !conf.InvestmentAddress.Equals(src) {
		paid, err := c.settle(db, src, conf, state, received, now)
		if err != nil {
			return errors.Wrap(err, "settle the source")
		}
		payouts = append(payouts, payout{to: src, amount: paid})
	}
	if !conf.InvestmentAddress.Equals(dst) {
		paid, err := c.settle(db, dst, conf, state, received, now)
		if err != nil {
			return errors.Wrap(err, "settle the destination")
		}
		payouts = append(payouts, payout{to: dst, amount: paid})
	}

	srcHolder, err := c.loadHolder(db, src)
	if err != nil {
		return err
	}
	if srcHolder.Balance < amount {
		return errors.Wrapf(errors.ErrAmount, "only %d tokens held", srcHolder.Balance)
	}
	dstHolder, err := c.loadHolder(db, dst)
	if err != nil {
		return err
	}
	srcHolder.Balance -= amount
	dstHolder.Balance += amount

	// The income share already distributed on the moved tokens must not be
	// paid out again. For a settled holder the snapshot takes care of this.
	// The investment address is never settled, so the earmark is tracked on
	// the state instead. Rounding up keeps the earmark from leaking value
	// into the side channel.
	switch {
	case conf.InvestmentAddress.Equals(dst):
		earmark, err := mulDivCeil(amount, received, state.TotalSupply)
		if err != nil {
			return err
		}
		state.InvestmentReleased += earmark
	case conf.InvestmentAddress.Equals(src):
		earmark, err := mulDiv(amount, received, state.TotalSupply)
		if err != nil {
			return err
		}
		state.InvestmentReleased -= earmark
		if state.InvestmentReleased < 0 {
			state.InvestmentReleased = 0
		}
	}

	if _, err := c.holders.Put(db, src, srcHolder); err != nil {
		return errors.Wrap(err, "cannot store source holder")
	}
	if _, err := c.holders.Put(db, dst, dstHolder); err != nil {
		return errors.Wrap(err, "cannot store destination holder")
	}
	if _, err := c.state.Put(db, stateKey, state); err != nil {
		return errors.Wrap(err, "cannot store state")
	}

	for _, p := range payouts {
		if p.amount == 0 {
			continue
		}
		if err := c.cashctrl.MoveCoins(db, SplitAddress(), p.to, asCoin(p.amount, conf.Ticker)); err != nil {
			return errors.Wrap(err, "pay out")
		}
	}
	return nil
}

type payout struct {
	to     weave.Address
	amount int64
}

// settle computes and books all income accrued by the account under the
// given cumulative income value. The state totals are updated in memory and
// must be persisted by the caller. The amount to be paid out is returned but
// no funds are moved.
func (c *Controller) settle(db weave.KVStore, account weave.Address, conf Configuration, state *SplitState, received int64, now weave.UnixTime) (int64, error) {
	holder, err := c.loadHolder(db, account)
	if err != nil {
		return 0, err
	}
	base, err := c.baseClaimable(holder, state, received)
	if err != nil {
		return 0, err
	}
	invest, err := c.investmentClaimable(db, account, holder, conf, state, received, now)
	if err != nil {
		return 0, err
	}
	holder.LastReceived = received
	holder.ClaimedFromInvestment += invest
	if _, err := c.holders.Put(db, account, holder); err != nil {
		return 0, errors.Wrap(err, "cannot store holder")
	}
	state.TotalReleased += base + invest
	return base + invest, nil
}

// baseClaimable returns the income share of the held tokens accrued since
// the last settlement of the holder.
func (c *Controller) baseClaimable(holder *Holder, state *SplitState, received int64) (int64, error) {
	if holder.Balance == 0 || state.TotalSupply == 0 {
		return 0, nil
	}
	delta := received - holder.LastReceived
	if delta <= 0 {
		return 0, nil
	}
	return mulDiv(delta, holder.Balance, state.TotalSupply)
}

// investmentClaimable returns the part of the investment address income that
// belongs to the account, weighted by its advanced capital and reduced by
// what was already claimed.
func (c *Controller) investmentClaimable(db weave.KVStore, account weave.Address, holder *Holder, conf Configuration, state *SplitState, received int64, now weave.UnixTime) (int64, error) {
	total, err := c.investments.TotalInvestment(db, now)
	if err != nil {
		return 0, errors.Wrap(err, "total investment")
	}
	if total == 0 {
		return 0, nil
	}
	roi, err := c.returnOnInvestment(db, conf, state, received)
	if err != nil {
		return 0, err
	}
	if roi == 0 {
		return 0, nil
	}
	invested, err := c.investments.InvestmentOf(db, account, now)
	if err != nil {
		return 0, errors.Wrap(err, "investment of the account")
	}
	share, err := mulDiv(roi, invested, total)
	if err != nil {
		return 0, err
	}
	share -= holder.ClaimedFromInvestment
	if share < 0 {
		share = 0
	}
	return share, nil
}

// returnOnInvestment returns the income accrued by the tokens held on the
// investment address, reduced by the earmarked share of tokens that joined
// the address after their income was already distributed.
func (c *Controller) returnOnInvestment(db weave.KVStore, conf Configuration, state *SplitState, received int64) (int64, error) {
	if state.TotalSupply == 0 {
		return 0, nil
	}
	holder, err := c.loadHolder(db, conf.InvestmentAddress)
	if err != nil {
		return 0, err
	}
	if holder.Balance == 0 {
		return 0, nil
	}
	roi, err := mulDiv(received, holder.Balance, state.TotalSupply)
	if err != nil {
		return 0, err
	}
	roi -= state.InvestmentReleased
	if roi < 0 {
		roi = 0
	}
	return roi, nil
}

// totalReceived returns the cumulative income collected by the pool, the
// current balance plus everything already paid out.
func (c *Controller) totalReceived(db weave.KVStore, ticker string, state *SplitState) (int64, error) {
	balance, err := c.poolBalance(db, ticker)
	if err != nil {
		return 0, err
	}
	res := balance + state.TotalReleased
	if res < balance {
		return 0, errors.Wrap(errors.ErrOverflow, "total received")
	}
	return res, nil
}

func (c *Controller) loadState(db weave.KVStore) (*SplitState, error) {
	var s SplitState
	switch err := c.state.One(db, stateKey, &s); {
	case err == nil:
		return &s, nil
	case errors.ErrNotFound.Is(err):
		return &SplitState{Metadata: &weave.Metadata{Schema: 1}}, nil
	default:
		return nil, errors.Wrap(err, "cannot load state")
	}
}

func (c *Controller) loadHolder(db weave.KVStore, addr weave.Address) (*Holder, error) {
	var h Holder
	switch err := c.holders.One(db, addr, &h); {
	case err == nil:
		return &h, nil
	case errors.ErrNotFound.Is(err):
		return &Holder{Metadata: &weave.Metadata{Schema: 1}}, nil
	default:
		return nil, errors.Wrap(err, "cannot load holder")
	}
}

// poolBalance returns the pool funds in atomic token units.
func (c *Controller) poolBalance(db weave.KVStore, ticker string) (int64, error) {
	coins, err := c.cashctrl.Balance(db, SplitAddress())
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
