package vault

import (
	"context"
	"testing"

	weave "github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/x/cash"
)

func TestUseCases(t *testing.T) {
	type Request struct {
		Now         weave.UnixTime
		Conditions  []weave.Condition
		Tx          weave.Tx
		BlockHeight int64
		WantErr     *errors.Error
	}

	var (
		aliceCond = weavetest.NewCondition()
		bobCond   = weavetest.NewCondition()

		now = weave.UnixTime(1572247483)
	)

	cases := map[string]struct {
		Requests  []Request
		Pending   int64
		Funds     map[string]int64
		AfterTest func(t *testing.T, db weave.KVStore, ctrl *Controller)
	}{
		"depositor signature is required": {
			Funds: map[string]int64{string(aliceCond.Address()): 1000},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{bobCond},
					Tx: &weavetest.Tx{
						Msg: &DepositMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							Depositor: aliceCond.Address(),
							Amount:    1000,
						},
					},
					BlockHeight: 100,
					WantErr:     errors.ErrUnauthorized,
				},
			},
		},
		"a deposit mints shares and a withdrawal burns them": {
			Funds: map[string]int64{string(aliceCond.Address()): 1000},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &DepositMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							Depositor: aliceCond.Address(),
							Amount:    1000,
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &WithdrawMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							Depositor: aliceCond.Address(),
							Amount:    300,
						},
					},
					BlockHeight: 101,
					WantErr:     nil,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore, ctrl *Controller) {
				acc, err := ctrl.loadAccount(db, aliceCond.Address())
				if err != nil {
					t.Fatalf("load account: %s", err)
				}
				if acc.Shares != 700 || acc.Deposit != 700 {
					t.Fatalf("unexpected account state: %+v", acc)
				}
			},
		},
		"share transfer requires the source signature": {
			Funds: map[string]int64{string(aliceCond.Address()): 1000},
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &DepositMsg{
							Metadata:  &weave.Metadata{Schema: 1},
							Depositor: aliceCond.Address(),
							Amount:    1000,
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{bobCond},
					Tx: &weavetest.Tx{
						Msg: &TransferMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Source:      aliceCond.Address(),
							Destination: bobCond.Address(),
							Shares:      100,
						},
					},
					BlockHeight: 101,
					WantErr:     errors.ErrUnauthorized,
				},
				{
					Now:        now + 2,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &TransferMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Source:      aliceCond.Address(),
							Destination: bobCond.Address(),
							Shares:      100,
						},
					},
					BlockHeight: 102,
					WantErr:     nil,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore, ctrl *Controller) {
				acc, err := ctrl.loadAccount(db, bobCond.Address())
				if err != nil {
					t.Fatalf("load account: %s", err)
				}
				if acc.Shares != 100 {
					t.Fatalf("unexpected account state: %+v", acc)
				}
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "vault", "cash")

			rt := app.NewRouter()
			auth := &weavetest.CtxAuth{Key: "auth"}
			cashctrl := cash.NewController(cash.NewBucket())
			salaries := &fixedLedger{pending: tc.Pending}
			RegisterRoutes(rt, auth, salaries, cashctrl)

			ctrl := NewController(salaries, cashctrl)

			for addr, units := range tc.Funds {
				mint(t, db, cashctrl, weave.Address(addr), units)
			}

			config := Configuration{
				Metadata: &weave.Metadata{Schema: 1},
				Owner:    aliceCond.Address(),
				Ticker:   "IOV",
			}
			if err := gconf.Save(db, "vault", &config); err != nil {
				t.Fatalf("cannot save configuration: %s", err)
			}

			for i, req := range tc.Requests {
				ctx := weave.WithHeight(context.Background(), req.BlockHeight)
				ctx = weave.WithChainID(ctx, "testchain-123")
				ctx = auth.SetConditions(ctx, req.Conditions...)
				ctx = weave.WithBlockTime(ctx, req.Now.Time())

				cache := db.CacheWrap()
				if _, err := rt.Check(ctx, cache, req.Tx); !req.WantErr.Is(err) {
					t.Fatalf("unexpected %d check error: want %q, got %+v", i, req.WantErr, err)
				}
				cache.Discard()
				if _, err := rt.Deliver(ctx, db, req.Tx); !req.WantErr.Is(err) {
					t.Fatalf("unexpected %d deliver error: want %q, got %+v", i, req.WantErr, err)
				}
			}

			if tc.AfterTest != nil {
				tc.AfterTest(t, db, ctrl)
			}
		})
	}
}
