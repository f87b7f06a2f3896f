package split

import (
	"encoding/binary"
	"strconv"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/x"
	"github.com/tendermint/tendermint/libs/common"
)

func RegisterQuery(qr weave.QueryRouter) {
	NewStateBucket().Register("splitstate", qr)
	NewHolderBucket().Register("holders", qr)
}

func RegisterRoutes(r weave.Registry, auth x.Authenticator, investments InvestmentSource, cashctrl CashController) {
	r = migration.SchemaMigratingRegistry("split", r)

	ctrl := NewController(investments, cashctrl)

	r.Handle(&ClaimMsg{}, &claimHandler{
		auth: auth,
		ctrl: ctrl,
	})
	r.Handle(&TransferMsg{}, &transferHandler{
		auth: auth,
		ctrl: ctrl,
	})
	r.Handle(&UpdateConfigurationMsg{},
		gconf.NewUpdateConfigurationHandler("split", &Configuration{}, auth, migration.CurrentAdmin))
}

type claimHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *claimHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *claimHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	at := weave.AsUnixTime(now)
	amount, err := h.ctrl.claim(db, msg.Account, at)
	if err != nil {
		return nil, err
	}
	res := weave.DeliverResult{Data: sequenceData(amount)}
	res.Tags = append(res.Tags,
		common.KVPair{Key: []byte("action"), Value: []byte("claim")},
		common.KVPair{Key: []byte("split-account"), Value: []byte(msg.Account.String())},
		common.KVPair{Key: []byte("amount"), Value: int64Tag(amount)},
		common.KVPair{Key: []byte("claimed-at"), Value: int64Tag(int64(at))},
	)
	return &res, nil
}

// validate does not require any signature. A claim only pays out what the
// account owns, so anyone can trigger it.
func (h *claimHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ClaimMsg, error) {
	var msg ClaimMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	return &msg, nil
}

type transferHandler struct {
	auth x.Authenticator
	ctrl *Controller
}

func (h *transferHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *transferHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	if err := h.ctrl.transfer(db, msg.Source, msg.Destination, msg.Amount, weave.AsUnixTime(now)); err != nil {
		return nil, err
	}
	return &weave.DeliverResult{Data: msg.Destination}, nil
}

func (h *transferHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*TransferMsg, error) {
	var msg TransferMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if !h.auth.HasAddress(ctx, msg.Source) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "source signature is required")
	}
	return &msg, nil
}

func int64Tag(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func sequenceData(n int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}
