package salary

import (
	"math"
	"testing"

	weave "github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
)

func TestMonthlyToSps(t *testing.T) {
	cases := map[string]struct {
		monthly int64
		want    int64
	}{
		"exact month":    {monthly: secondsPerMonth, want: 1},
		"truncates down": {monthly: secondsPerMonth*2 - 1, want: 1},
		"below one tick": {monthly: secondsPerMonth - 1, want: 0},
		"zero":           {monthly: 0, want: 0},
		"several months": {monthly: 10 * secondsPerMonth, want: 10},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := monthlyToSps(tc.monthly); got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestAccruedAt(t *testing.T) {
	cases := map[string]struct {
		base    int64
		rate    int64
		settled weave.UnixTime
		now     weave.UnixTime
		want    int64
		wantErr *errors.Error
	}{
		"no time passed": {
			base: 5, rate: 3, settled: 100, now: 100,
			want: 5,
		},
		"time in the past contributes nothing": {
			base: 5, rate: 3, settled: 100, now: 90,
			want: 5,
		},
		"accrues rate per second": {
			base: 5, rate: 3, settled: 100, now: 110,
			want: 35,
		},
		"zero rate": {
			base: 5, rate: 0, settled: 100, now: math.MaxInt64,
			want: 5,
		},
		"multiplication overflow": {
			base: 0, rate: math.MaxInt64, settled: 0, now: 2,
			wantErr: errors.ErrOverflow,
		},
		"addition overflow": {
			base: math.MaxInt64, rate: 1, settled: 100, now: 101,
			wantErr: errors.ErrOverflow,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := accruedAt(tc.base, tc.rate, tc.settled, tc.now)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
			if err == nil && got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestTotalPendingTracksAccounts(t *testing.T) {
	db := store.MemStore()
	migration.MustInitPkg(db, "salary")

	ctrl := NewController()
	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()

	now := weave.UnixTime(1572247483)

	if _, err := ctrl.scheduleUpdate(db, alice, 2*secondsPerMonth, now, 0); err != nil {
		t.Fatalf("schedule alice: %s", err)
	}
	if _, err := ctrl.commitUpdate(db, alice, now); err != nil {
		t.Fatalf("commit alice: %s", err)
	}
	if _, err := ctrl.scheduleUpdate(db, bob, 3*secondsPerMonth, now, 0); err != nil {
		t.Fatalf("schedule bob: %s", err)
	}
	if _, err := ctrl.commitUpdate(db, bob, now); err != nil {
		t.Fatalf("commit bob: %s", err)
	}

	// The total liability must equal the sum of individual claims at any
	// point in time.
	for _, delta := range []weave.UnixTime{0, 1, 17, 1000} {
		at := now + delta
		total, err := ctrl.TotalPending(db, at)
		if err != nil {
			t.Fatalf("total pending: %s", err)
		}
		ra, err := ctrl.Releasable(db, alice, at)
		if err != nil {
			t.Fatalf("releasable alice: %s", err)
		}
		rb, err := ctrl.Releasable(db, bob, at)
		if err != nil {
			t.Fatalf("releasable bob: %s", err)
		}
		if total != ra+rb {
			t.Fatalf("at +%ds want %d total, got %d", delta, ra+rb, total)
		}
	}

	// Releasing must lower the liability by the released amount.
	before, err := ctrl.TotalPending(db, now+1000)
	if err != nil {
		t.Fatalf("total pending: %s", err)
	}
	amount, err := ctrl.release(db, alice, now+1000)
	if err != nil {
		t.Fatalf("release alice: %s", err)
	}
	if amount != 2000 {
		t.Fatalf("want 2000 released, got %d", amount)
	}
	after, err := ctrl.TotalPending(db, now+1000)
	if err != nil {
		t.Fatalf("total pending: %s", err)
	}
	if after != before-amount {
		t.Fatalf("want %d total, got %d", before-amount, after)
	}
}

func TestSub64(t *testing.T) {
	cases := map[string]struct {
		a       int64
		b       int64
		want    int64
		wantErr *errors.Error
	}{
		"plain subtraction":   {a: 100, b: 30, want: 70},
		"subtracting zero":    {a: 42, b: 0, want: 42},
		"zero minus zero":     {a: 0, b: 0, want: 0},
		"negative subtrahend": {a: 5, b: -3, want: 8},
		"negative result":     {a: 3, b: 5, want: -2},
		"underflow":           {a: math.MinInt64, b: 1, wantErr: errors.ErrOverflow},
		"overflow":            {a: math.MaxInt64, b: -1, wantErr: errors.ErrOverflow},
		"max minus zero":      {a: math.MaxInt64, b: 0, want: math.MaxInt64},
		"max minus max":       {a: math.MaxInt64, b: math.MaxInt64, want: 0},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := sub64(tc.a, tc.b)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
			if err == nil && got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

// TestTotalPendingFreshLedger ensures that the liability can be computed
// before any release happened, when the released total is still zero.
func TestTotalPendingFreshLedger(t *testing.T) {
	db := store.MemStore()
	migration.MustInitPkg(db, "salary")

	ctrl := NewController()
	alice := weavetest.NewCondition().Address()
	now := weave.UnixTime(1572247483)

	if _, err := ctrl.scheduleUpdate(db, alice, secondsPerMonth, now, 0); err != nil {
		t.Fatalf("schedule: %s", err)
	}
	if _, err := ctrl.commitUpdate(db, alice, now); err != nil {
		t.Fatalf("commit: %s", err)
	}
	pending, err := ctrl.TotalPending(db, now+60)
	if err != nil {
		t.Fatalf("total pending: %s", err)
	}
	if pending != 60 {
		t.Fatalf("want 60 pending, got %d", pending)
	}
}

func TestReleasableWithoutAccount(t *testing.T) {
	db := store.MemStore()
	migration.MustInitPkg(db, "salary")

	ctrl := NewController()
	addr := weavetest.NewCondition().Address()

	amount, err := ctrl.Releasable(db, addr, weave.UnixTime(1572247483))
	if err != nil {
		t.Fatalf("releasable: %s", err)
	}
	if amount != 0 {
		t.Fatalf("want no claim, got %d", amount)
	}
}
