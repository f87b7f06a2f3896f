package split

import (
	"context"
	"strconv"
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
		invCond   = weavetest.NewCondition()

		now = weave.UnixTime(1572247483)
	)

	cases := map[string]struct {
		Requests  []Request
		Holders   map[string]int64
		Income    int64
		AfterTest func(t *testing.T, db weave.KVStore, ctrl *Controller, cashctrl cash.BaseController)
	}{
		"anyone can trigger a claim": {
			Holders: map[string]int64{
				string(aliceCond.Address()): 600,
				string(bobCond.Address()):   400,
			},
			Income: 1000,
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{bobCond},
					Tx: &weavetest.Tx{
						Msg: &ClaimMsg{
							Metadata: &weave.Metadata{Schema: 1},
							Account:  aliceCond.Address(),
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore, ctrl *Controller, cashctrl cash.BaseController) {
				assertFunds(t, db, cashctrl, aliceCond.Address(), 600)
			},
		},
		"claiming for the investment address fails": {
			Holders: map[string]int64{
				string(invCond.Address()): 1000,
			},
			Income: 1000,
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &ClaimMsg{
							Metadata: &weave.Metadata{Schema: 1},
							Account:  invCond.Address(),
						},
					},
					BlockHeight: 100,
					WantErr:     errors.ErrState,
				},
			},
		},
		"a token transfer requires the source signature": {
			Holders: map[string]int64{
				string(aliceCond.Address()): 1000,
			},
			Income: 1000,
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{bobCond},
					Tx: &weavetest.Tx{
						Msg: &TransferMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Source:      aliceCond.Address(),
							Destination: bobCond.Address(),
							Amount:      300,
						},
					},
					BlockHeight: 100,
					WantErr:     errors.ErrUnauthorized,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &TransferMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Source:      aliceCond.Address(),
							Destination: bobCond.Address(),
							Amount:      300,
						},
					},
					BlockHeight: 101,
					WantErr:     nil,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore, ctrl *Controller, cashctrl cash.BaseController) {
				holder, err := ctrl.loadHolder(db, bobCond.Address())
				if err != nil {
					t.Fatalf("load holder: %s", err)
				}
				if holder.Balance != 300 {
					t.Fatalf("unexpected holder state: %+v", holder)
				}
				// The transfer settled the source first.
				assertFunds(t, db, cashctrl, aliceCond.Address(), 1000)
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "split", "cash")

			rt := app.NewRouter()
			auth := &weavetest.CtxAuth{Key: "auth"}
			cashctrl := cash.NewController(cash.NewBucket())
			investments := &fixedInvestments{}
			RegisterRoutes(rt, auth, investments, cashctrl)

			ctrl := NewController(investments, cashctrl)

			config := Configuration{
				Metadata:          &weave.Metadata{Schema: 1},
				Owner:             aliceCond.Address(),
				Ticker:            "IOV",
				InvestmentAddress: invCond.Address(),
			}
			if err := gconf.Save(db, "split", &config); err != nil {
				t.Fatalf("cannot save configuration: %s", err)
			}

			setHolders(t, db, tc.Holders)
			if tc.Income != 0 {
				mint(t, db, cashctrl, SplitAddress(), tc.Income)
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
				tc.AfterTest(t, db, ctrl, cashctrl)
			}
		})
	}
}

func TestClaimDeliveryTags(t *testing.T) {
	var (
		aliceCond = weavetest.NewCondition()
		bobCond   = weavetest.NewCondition()
		invCond   = weavetest.NewCondition()

		now = weave.UnixTime(1572247483)
	)

	db := store.MemStore()
	migration.MustInitPkg(db, "split", "cash")

	rt := app.NewRouter()
	auth := &weavetest.CtxAuth{Key: "auth"}
	cashctrl := cash.NewController(cash.NewBucket())
	RegisterRoutes(rt, auth, &fixedInvestments{}, cashctrl)

	config := Configuration{
		Metadata:          &weave.Metadata{Schema: 1},
		Owner:             aliceCond.Address(),
		Ticker:            "IOV",
		InvestmentAddress: invCond.Address(),
	}
	if err := gconf.Save(db, "split", &config); err != nil {
		t.Fatalf("cannot save configuration: %s", err)
	}

	setHolders(t, db, map[string]int64{
		string(aliceCond.Address()): 600,
		string(bobCond.Address()):   400,
	})
	mint(t, db, cashctrl, SplitAddress(), 1000)

	ctx := weave.WithHeight(context.Background(), 100)
	ctx = weave.WithChainID(ctx, "testchain-123")
	ctx = auth.SetConditions(ctx, aliceCond)
	ctx = weave.WithBlockTime(ctx, now.Time())

	tx := &weavetest.Tx{
		Msg: &ClaimMsg{
			Metadata: &weave.Metadata{Schema: 1},
			Account:  aliceCond.Address(),
		},
	}
	res, err := rt.Deliver(ctx, db, tx)
	if err != nil {
		t.Fatalf("deliver: %+v", err)
	}

	assertTag(t, res, "action", "claim")
	assertTag(t, res, "split-account", aliceCond.Address().String())
	assertTag(t, res, "amount", "600")
	assertTag(t, res, "claimed-at", strconv.FormatInt(int64(now), 10))
}

func assertTag(t *testing.T, res *weave.DeliverResult, key, want string) {
	t.Helper()
	for _, kv := range res.Tags {
		if string(kv.Key) == key {
			if got := string(kv.Value); got != want {
				t.Fatalf("tag %q: want %q, got %q", key, want, got)
			}
			return
		}
	}
	t.Fatalf("tag %q not emitted", key)
}
