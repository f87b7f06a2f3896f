package salary

import (
	"strconv"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/x"
	"github.com/iov-one/weave/x/cash"
	"github.com/tendermint/tendermint/libs/common"
)

const (
	actionTagKey  = "action"
	accountTagKey = "salary-account"
)

func RegisterQuery(qr weave.QueryRouter) {
	NewLedgerBucket().Register("salaryledger", qr)
	NewAccountBucket().Register("salaries", qr)
}

// CashController is the subset of the x/cash functionality that this package
// requires to pay salaries out.
type CashController interface {
	MoveCoins(weave.KVStore, weave.Address, weave.Address, coin.Coin) error
}

var _ CashController = cash.Controller(nil)

func RegisterRoutes(r weave.Registry, auth x.Authenticator, cashctrl CashController) {
	r = migration.SchemaMigratingRegistry("salary", r)

	ctrl := NewController()

	r.Handle(&ScheduleUpdateMsg{}, &scheduleUpdateHandler{
		auth: auth,
		ctrl: ctrl,
	})
	r.Handle(&CommitUpdateMsg{}, &commitUpdateHandler{
		ctrl: ctrl,
	})
	r.Handle(&ReleaseMsg{}, &releaseHandler{
		ctrl:     ctrl,
		cashctrl: cashctrl,
	})
	r.Handle(&UpdateConfigurationMsg{},
		gconf.NewUpdateConfigurationHandler("salary", &Configuration{}, auth, migration.CurrentAdmin))
}

type scheduleUpdateHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *scheduleUpdateHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *scheduleUpdateHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	at := weave.AsUnixTime(now)
	oldSps, err := h.ctrl.scheduleUpdate(db, msg.Beneficiary, msg.MonthlySalary, at, conf.WaitingPeriod)
	if err != nil {
		return nil, err
	}
	res := weave.DeliverResult{Data: msg.Beneficiary}
	res.Tags = append(res.Tags,
		common.KVPair{Key: []byte(actionTagKey), Value: []byte("schedule-update")},
		common.KVPair{Key: []byte(accountTagKey), Value: []byte(msg.Beneficiary.String())},
		common.KVPair{Key: []byte("old-monthly"), Value: int64Tag(oldSps * secondsPerMonth)},
		common.KVPair{Key: []byte("new-monthly"), Value: int64Tag(msg.MonthlySalary)},
		common.KVPair{Key: []byte("scheduled-at"), Value: int64Tag(int64(at))},
	)
	return &res, nil
}

func (h *scheduleUpdateHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ScheduleUpdateMsg, error) {
	var msg ScheduleUpdateMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	if !h.auth.HasAddress(ctx, conf.Admin) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "admin signature missing")
	}
	return &msg, nil
}

type commitUpdateHandler struct {
	ctrl *Controller
}

func (h *commitUpdateHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *commitUpdateHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	at := weave.AsUnixTime(now)
	sps, err := h.ctrl.commitUpdate(db, msg.Beneficiary, at)
	if err != nil {
		return nil, err
	}
	res := weave.DeliverResult{Data: msg.Beneficiary}
	res.Tags = append(res.Tags,
		common.KVPair{Key: []byte(actionTagKey), Value: []byte("commit-update")},
		common.KVPair{Key: []byte(accountTagKey), Value: []byte(msg.Beneficiary.String())},
		common.KVPair{Key: []byte("monthly"), Value: int64Tag(sps * secondsPerMonth)},
		common.KVPair{Key: []byte("committed-at"), Value: int64Tag(int64(at))},
	)
	return &res, nil
}

// validate ensures the message is well formed. Anyone is allowed to commit a
// scheduled update that is due.
func (h *commitUpdateHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CommitUpdateMsg, error) {
	var msg CommitUpdateMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	return &msg, nil
}

type releaseHandler struct {
	ctrl     *Controller
	cashctrl CashController
}

func (h *releaseHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *releaseHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	at := weave.AsUnixTime(now)
	amount, err := h.ctrl.release(db, msg.Beneficiary, at)
	if err != nil {
		return nil, err
	}
	if amount != 0 {
		conf, err := loadConf(db)
		if err != nil {
			return nil, err
		}
		payout := asCoin(amount, conf.Ticker)
		if err := h.cashctrl.MoveCoins(db, conf.Source, msg.Beneficiary, payout); err != nil {
			return nil, errors.Wrap(err, "payout")
		}
	}
	res := weave.DeliverResult{Data: msg.Beneficiary}
	res.Tags = append(res.Tags,
		common.KVPair{Key: []byte(actionTagKey), Value: []byte("release")},
		common.KVPair{Key: []byte(accountTagKey), Value: []byte(msg.Beneficiary.String())},
		common.KVPair{Key: []byte("amount"), Value: int64Tag(amount)},
		common.KVPair{Key: []byte("released-at"), Value: int64Tag(int64(at))},
	)
	return &res, nil
}

// validate ensures the message is well formed. Anyone is allowed to release
// an accrued salary to its beneficiary.
func (h *releaseHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ReleaseMsg, error) {
	var msg ReleaseMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	return &msg, nil
}

func int64Tag(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

// asCoin converts an amount of atomic token units into a coin value. One
// atomic unit is the smallest fractional unit of the token.
func asCoin(amount int64, ticker string) coin.Coin {
	return coin.Coin{
		Whole:      amount / coin.FracUnit,
		Fractional: amount % coin.FracUnit,
		Ticker:     ticker,
	}
}
