package salary

import (
	"context"
	"strconv"
	"testing"

	weave "github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	coin "github.com/iov-one/weave/coin"
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
		adminCond  = weavetest.NewCondition()
		aliceCond  = weavetest.NewCondition()
		bobCond    = weavetest.NewCondition()
		sourceCond = weavetest.NewCondition()

		now = weave.UnixTime(1572247483)
	)

	cases := map[string]struct {
		Requests      []Request
		SourceFunds   coin.Coin
		WaitingPeriod weave.UnixDuration
		AfterTest     func(t *testing.T, db weave.KVStore)
	}{
		"admin signature is required to schedule an update": {
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: secondsPerMonth,
						},
					},
					BlockHeight: 100,
					WantErr:     errors.ErrUnauthorized,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: secondsPerMonth,
						},
					},
					BlockHeight: 101,
					WantErr:     nil,
				},
			},
		},
		"a salary accrues one rate tick per second and can be released by anyone": {
			SourceFunds: coin.NewCoin(1000, 0, "IOV"),
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: secondsPerMonth,
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &CommitUpdateMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 101,
					WantErr:     nil,
				},
				{
					Now:        now + 100,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &ReleaseMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 102,
					WantErr:     nil,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, bobCond.Address(), coin.NewCoin(0, 100, "IOV"))
			},
		},
		"an update cannot be committed before the waiting period has passed": {
			WaitingPeriod: weave.UnixDuration(3600),
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: secondsPerMonth,
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
				{
					Now:        now + 3599,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &CommitUpdateMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 101,
					WantErr:     ErrNotDue,
				},
				{
					Now:        now + 3600,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &CommitUpdateMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 102,
					WantErr:     nil,
				},
			},
		},
		"only one update can be scheduled at a time": {
			WaitingPeriod: weave.UnixDuration(3600),
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: secondsPerMonth,
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: 5 * secondsPerMonth,
						},
					},
					BlockHeight: 101,
					WantErr:     errors.ErrState,
				},
			},
		},
		"committing without a scheduled update fails": {
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &CommitUpdateMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 100,
					WantErr:     errors.ErrNotFound,
				},
			},
		},
		"scheduling an unchanged rate fails": {
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: 0,
						},
					},
					BlockHeight: 100,
					WantErr:     ErrNoOp,
				},
			},
		},
		"releasing with nothing accrued pays nothing": {
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: secondsPerMonth,
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &CommitUpdateMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 101,
					WantErr:     nil,
				},
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &ReleaseMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 102,
					WantErr:     nil,
				},
			},
		},
		"a rate change preserves salary accrued under the old rate": {
			SourceFunds: coin.NewCoin(1000, 0, "IOV"),
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: secondsPerMonth,
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &CommitUpdateMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 101,
					WantErr:     nil,
				},
				{
					Now:        now + 50,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: 2 * secondsPerMonth,
						},
					},
					BlockHeight: 102,
					WantErr:     nil,
				},
				{
					Now:        now + 50,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &CommitUpdateMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 103,
					WantErr:     nil,
				},
				{
					Now:        now + 100,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &ReleaseMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 104,
					WantErr:     nil,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				// 50 seconds at rate 1 and 50 seconds at rate 2.
				assertFunds(t, db, bobCond.Address(), coin.NewCoin(0, 150, "IOV"))
			},
		},
		"releasing twice pays only once": {
			SourceFunds: coin.NewCoin(1000, 0, "IOV"),
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &ScheduleUpdateMsg{
							Metadata:      &weave.Metadata{Schema: 1},
							Beneficiary:   bobCond.Address(),
							MonthlySalary: secondsPerMonth,
						},
					},
					BlockHeight: 100,
					WantErr:     nil,
				},
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &CommitUpdateMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 101,
					WantErr:     nil,
				},
				{
					Now:        now + 100,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &ReleaseMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 102,
					WantErr:     nil,
				},
				{
					Now:        now + 100,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &ReleaseMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 103,
					WantErr:     nil,
				},
				{
					Now:        now + 130,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &ReleaseMsg{
							Metadata:    &weave.Metadata{Schema: 1},
							Beneficiary: bobCond.Address(),
						},
					},
					BlockHeight: 104,
					WantErr:     nil,
				},
			},
			AfterTest: func(t *testing.T, db weave.KVStore) {
				assertFunds(t, db, bobCond.Address(), coin.NewCoin(0, 130, "IOV"))
			},
		},
		"configuration owner can update configuration": {
			Requests: []Request{
				{
					Now:        now,
					Conditions: []weave.Condition{aliceCond},
					Tx: &weavetest.Tx{
						Msg: &UpdateConfigurationMsg{
							Metadata: &weave.Metadata{Schema: 1},
							Patch: &Configuration{
								Metadata: &weave.Metadata{Schema: 1},
								Owner:    aliceCond.Address(),
								Admin:    bobCond.Address(),
								Source:   sourceCond.Address(),
								Ticker:   "IOV",
							},
						},
					},
					BlockHeight: 100,
					WantErr:     errors.ErrUnauthorized,
				},
				{
					Now:        now + 1,
					Conditions: []weave.Condition{adminCond},
					Tx: &weavetest.Tx{
						Msg: &UpdateConfigurationMsg{
							Metadata: &weave.Metadata{Schema: 1},
							Patch: &Configuration{
								Metadata: &weave.Metadata{Schema: 1},
								Owner:    aliceCond.Address(),
								Admin:    bobCond.Address(),
								Source:   sourceCond.Address(),
								Ticker:   "IOV",
							},
						},
					},
					BlockHeight: 101,
					WantErr:     nil,
				},
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "salary", "cash")

			rt := app.NewRouter()
			auth := &weavetest.CtxAuth{Key: "auth"}
			ctrl := cash.NewController(cash.NewBucket())
			RegisterRoutes(rt, auth, ctrl)

			if !tc.SourceFunds.IsZero() {
				if err := ctrl.CoinMint(db, sourceCond.Address(), tc.SourceFunds); err != nil {
					t.Fatalf("cannot mint source funds: %s", err)
				}
			}

			config := Configuration{
				Metadata:      &weave.Metadata{Schema: 1},
				Owner:         adminCond.Address(),
				Admin:         adminCond.Address(),
				Source:        sourceCond.Address(),
				Ticker:        "IOV",
				WaitingPeriod: tc.WaitingPeriod,
			}
			if err := gconf.Save(db, "salary", &config); err != nil {
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
				tc.AfterTest(t, db)
			}
		})
	}
}

func TestDeliveryTags(t *testing.T) {
	db := store.MemStore()
	migration.MustInitPkg(db, "salary", "cash")

	rt := app.NewRouter()
	auth := &weavetest.CtxAuth{Key: "auth"}
	ctrl := cash.NewController(cash.NewBucket())
	RegisterRoutes(rt, auth, ctrl)

	var (
		adminCond  = weavetest.NewCondition()
		aliceCond  = weavetest.NewCondition()
		bobCond    = weavetest.NewCondition()
		sourceCond = weavetest.NewCondition()

		now = weave.UnixTime(1572247483)
	)

	if err := ctrl.CoinMint(db, sourceCond.Address(), coin.NewCoin(1000, 0, "IOV")); err != nil {
		t.Fatalf("cannot mint source funds: %s", err)
	}
	config := Configuration{
		Metadata: &weave.Metadata{Schema: 1},
		Owner:    adminCond.Address(),
		Admin:    adminCond.Address(),
		Source:   sourceCond.Address(),
		Ticker:   "IOV",
	}
	if err := gconf.Save(db, "salary", &config); err != nil {
		t.Fatalf("cannot save configuration: %s", err)
	}

	deliver := func(at weave.UnixTime, cond weave.Condition, msg weave.Msg) *weave.DeliverResult {
		t.Helper()
		ctx := weave.WithHeight(context.Background(), 100)
		ctx = weave.WithChainID(ctx, "testchain-123")
		ctx = auth.SetConditions(ctx, cond)
		ctx = weave.WithBlockTime(ctx, at.Time())
		res, err := rt.Deliver(ctx, db, &weavetest.Tx{Msg: msg})
		if err != nil {
			t.Fatalf("deliver %T: %s", msg, err)
		}
		return res
	}

	res := deliver(now, adminCond, &ScheduleUpdateMsg{
		Metadata:      &weave.Metadata{Schema: 1},
		Beneficiary:   bobCond.Address(),
		MonthlySalary: 2 * secondsPerMonth,
	})
	assertTag(t, res, "action", "schedule-update")
	assertTag(t, res, "salary-account", bobCond.Address().String())
	assertTag(t, res, "old-monthly", "0")
	assertTag(t, res, "new-monthly", strconv.FormatInt(2*secondsPerMonth, 10))

	res = deliver(now, aliceCond, &CommitUpdateMsg{
		Metadata:    &weave.Metadata{Schema: 1},
		Beneficiary: bobCond.Address(),
	})
	assertTag(t, res, "action", "commit-update")
	assertTag(t, res, "monthly", strconv.FormatInt(2*secondsPerMonth, 10))

	res = deliver(now+100, aliceCond, &ReleaseMsg{
		Metadata:    &weave.Metadata{Schema: 1},
		Beneficiary: bobCond.Address(),
	})
	assertTag(t, res, "action", "release")
	assertTag(t, res, "salary-account", bobCond.Address().String())
	assertTag(t, res, "amount", "200")
	assertTag(t, res, "released-at", strconv.FormatInt(int64(now+100), 10))
}

func assertTag(t testing.TB, res *weave.DeliverResult, key, want string) {
	t.Helper()

	for _, kv := range res.Tags {
		if string(kv.Key) == key {
			if got := string(kv.Value); got != want {
				t.Fatalf("want %q tag value %q, got %q", key, want, got)
			}
			return
		}
	}
	t.Fatalf("tag %q not found", key)
}

func assertFunds(t testing.TB, db weave.KVStore, wallet weave.Address, funds coin.Coin) {
	t.Helper()

	ctrl := cash.NewController(cash.NewBucket())
	coins, err := ctrl.Balance(db, wallet)
	if err != nil {
		t.Fatalf("balance: %s", err)
	}
	if len(coins) != 1 {
		t.Fatalf("want %q funds, found %d coins: %q", funds, len(coins), coins)
	}
	if !coins[0].Equals(funds) {
		t.Fatalf("unexpected funds found: %q", coins[0])
	}
}
