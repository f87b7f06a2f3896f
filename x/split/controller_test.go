package split

import (
	"testing"

	weave "github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/x/cash"
)

// fixedInvestments is an investment source stub reporting constant values.
type fixedInvestments struct {
	total int64
	of    map[string]int64
}

func (f *fixedInvestments) TotalInvestment(weave.KVStore, weave.UnixTime) (int64, error) {
	return f.total, nil
}

func (f *fixedInvestments) InvestmentOf(_ weave.KVStore, addr weave.Address, _ weave.UnixTime) (int64, error) {
	return f.of[string(addr)], nil
}

func newTestController(t testing.TB, db weave.KVStore, invAddr weave.Address, investments InvestmentSource) (*Controller, cash.BaseController) {
	t.Helper()

	migration.MustInitPkg(db, "split", "cash")
	conf := Configuration{
		Metadata:          &weave.Metadata{Schema: 1},
		Owner:             weavetest.NewCondition().Address(),
		Ticker:            "IOV",
		InvestmentAddress: invAddr,
	}
	if err := gconf.Save(db, "split", &conf); err != nil {
		t.Fatalf("cannot save configuration: %s", err)
	}
	cashctrl := cash.NewController(cash.NewBucket())
	return NewController(investments, cashctrl), cashctrl
}

// setHolders stores the given token balances and fixes the total supply to
// their sum.
func setHolders(t testing.TB, db weave.KVStore, balances map[string]int64) {
	t.Helper()

	var supply int64
	b := NewHolderBucket()
	for addr, balance := range balances {
		holder := Holder{
			Metadata: &weave.Metadata{Schema: 1},
			Balance:  balance,
		}
		if _, err := b.Put(db, weave.Address(addr), &holder); err != nil {
			t.Fatalf("cannot store holder: %s", err)
		}
		supply += balance
	}
	state := SplitState{
		Metadata:    &weave.Metadata{Schema: 1},
		TotalSupply: supply,
	}
	if _, err := NewStateBucket().Put(db, stateKey, &state); err != nil {
		t.Fatalf("cannot store state: %s", err)
	}
}

func mint(t testing.TB, db weave.KVStore, cashctrl cash.BaseController, addr weave.Address, units int64) {
	t.Helper()
	if err := cashctrl.CoinMint(db, addr, asCoin(units, "IOV")); err != nil {
		t.Fatalf("cannot mint %d for %q: %s", units, addr, err)
	}
}

func TestClaimProRata(t *testing.T) {
	db := store.MemStore()
	invAddr := weavetest.NewCondition().Address()
	ctrl, cashctrl := newTestController(t, db, invAddr, &fixedInvestments{})

	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()
	setHolders(t, db, map[string]int64{
		string(alice): 600,
		string(bob):   400,
	})
	mint(t, db, cashctrl, SplitAddress(), 1000)

	now := weave.UnixTime(1572247483)
	if paid, err := ctrl.claim(db, alice, now); err != nil || paid != 600 {
		t.Fatalf("want 600 paid, got %d, %+v", paid, err)
	}
	// A second claim right away must not pay again.
	if paid, err := ctrl.claim(db, alice, now); err != nil || paid != 0 {
		t.Fatalf("want nothing paid, got %d, %+v", paid, err)
	}
	if paid, err := ctrl.claim(db, bob, now); err != nil || paid != 400 {
		t.Fatalf("want 400 paid, got %d, %+v", paid, err)
	}

	state, err := ctrl.loadState(db)
	if err != nil {
		t.Fatalf("load state: %s", err)
	}
	if state.TotalReleased != 1000 {
		t.Fatalf("want 1000 released, got %d", state.TotalReleased)
	}
}

func TestClaimForInvestmentAddressRejected(t *testing.T) {
	db := store.MemStore()
	invAddr := weavetest.NewCondition().Address()
	ctrl, cashctrl := newTestController(t, db, invAddr, &fixedInvestments{})

	setHolders(t, db, map[string]int64{string(invAddr): 1000})
	mint(t, db, cashctrl, SplitAddress(), 1000)

	if _, err := ctrl.claim(db, invAddr, weave.UnixTime(1572247483)); !errors.ErrState.Is(err) {
		t.Fatalf("want an invalid state error, got %+v", err)
	}
}

func TestInvestmentSideChannel(t *testing.T) {
	// The investment address holds 400 of 1000 tokens, so 400 of the 1000
	// income belongs to the side channel. Alice has advanced 250 of the
	// total 1000 capital and holds no tokens herself, so her claim pays a
	// quarter of the side channel income.
	db := store.MemStore()
	invAddr := weavetest.NewCondition().Address()
	alice := weavetest.NewCondition().Address()
	carol := weavetest.NewCondition().Address()

	investments := &fixedInvestments{
		total: 1000,
		of:    map[string]int64{string(alice): 250},
	}
	ctrl, cashctrl := newTestController(t, db, invAddr, investments)
	setHolders(t, db, map[string]int64{
		string(invAddr): 400,
		string(carol):   600,
	})
	mint(t, db, cashctrl, SplitAddress(), 1000)

	now := weave.UnixTime(1572247483)
	if paid, err := ctrl.claim(db, alice, now); err != nil || paid != 100 {
		t.Fatalf("want 100 paid, got %d, %+v", paid, err)
	}
	if paid, err := ctrl.claim(db, alice, now); err != nil || paid != 0 {
		t.Fatalf("want nothing paid, got %d, %+v", paid, err)
	}
	// The token income of a regular holder is not affected.
	if paid, err := ctrl.claim(db, carol, now); err != nil || paid != 600 {
		t.Fatalf("want 600 paid, got %d, %+v", paid, err)
	}
}

func TestTransferSettlesBothSides(t *testing.T) {
	db := store.MemStore()
	invAddr := weavetest.NewCondition().Address()
	ctrl, cashctrl := newTestController(t, db, invAddr, &fixedInvestments{})

	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()
	setHolders(t, db, map[string]int64{
		string(alice): 600,
		string(bob):   400,
	})
	mint(t, db, cashctrl, SplitAddress(), 1000)

	now := weave.UnixTime(1572247483)
	if err := ctrl.transfer(db, alice, bob, 300, now); err != nil {
		t.Fatalf("transfer: %s", err)
	}

	// The income accrued under the old balances was paid out during the
	// transfer.
	assertFunds(t, db, cashctrl, alice, 600)
	assertFunds(t, db, cashctrl, bob, 400)

	// New income is distributed under the new balances.
	mint(t, db, cashctrl, SplitAddress(), 1000)
	if paid, err := ctrl.claim(db, alice, now+1); err != nil || paid != 300 {
		t.Fatalf("want 300 paid, got %d, %+v", paid, err)
	}
	if paid, err := ctrl.claim(db, bob, now+1); err != nil || paid != 700 {
		t.Fatalf("want 700 paid, got %d, %+v", paid, err)
	}
}

func TestTransferToInvestmentAddressEarmarks(t *testing.T) {
	// Tokens moved to the investment address carry no right to the income
	// that was already distributed. The earmark keeps the side channel
	// return at zero right after the transfer.
	db := store.MemStore()
	invAddr := weavetest.NewCondition().Address()
	alice := weavetest.NewCondition().Address()

	investments := &fixedInvestments{
		total: 1000,
		of:    map[string]int64{string(alice): 500},
	}
	ctrl, cashctrl := newTestController(t, db, invAddr, investments)
	setHolders(t, db, map[string]int64{string(alice): 1000})
	mint(t, db, cashctrl, SplitAddress(), 1000)

	now := weave.UnixTime(1572247483)
	if err := ctrl.transfer(db, alice, invAddr, 400, now); err != nil {
		t.Fatalf("transfer: %s", err)
	}
	assertFunds(t, db, cashctrl, alice, 1000)

	state, err := ctrl.loadState(db)
	if err != nil {
		t.Fatalf("load state: %s", err)
	}
	if state.InvestmentReleased != 400 {
		t.Fatalf("want 400 earmarked, got %d", state.InvestmentReleased)
	}
	if claimable, err := ctrl.Claimable(db, alice, now); err != nil || claimable != 0 {
		t.Fatalf("want nothing claimable, got %d, %+v", claimable, err)
	}

	// Income collected after the transfer accrues a side channel return of
	// 500 * 400 / 1000 = 200 of which alice owns half.
	mint(t, db, cashctrl, SplitAddress(), 500)
	// 300 token income plus 100 from the side channel.
	if paid, err := ctrl.claim(db, alice, now+1); err != nil || paid != 400 {
		t.Fatalf("want 400 paid, got %d, %+v", paid, err)
	}
}

func TestTransferMoreThanHeld(t *testing.T) {
	db := store.MemStore()
	invAddr := weavetest.NewCondition().Address()
	ctrl, _ := newTestController(t, db, invAddr, &fixedInvestments{})

	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()
	setHolders(t, db, map[string]int64{string(alice): 100})

	if err := ctrl.transfer(db, alice, bob, 200, weave.UnixTime(1572247483)); !errors.ErrAmount.Is(err) {
		t.Fatalf("want an amount error, got %+v", err)
	}
}

func TestMulDivCeil(t *testing.T) {
	cases := map[string]struct {
		a, b, c int64
		want    int64
	}{
		"exact division":  {a: 400, b: 1000, c: 1000, want: 400},
		"rounded up":      {a: 1, b: 3, c: 2, want: 2},
		"zero numerator":  {a: 0, b: 5, c: 3, want: 0},
		"small remainder": {a: 7, b: 7, c: 10, want: 5},
		"one unit rounds": {a: 1, b: 1, c: 1000000, want: 1},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := mulDivCeil(tc.a, tc.b, tc.c)
			if err != nil {
				t.Fatalf("mul div ceil: %s", err)
			}
			if got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func assertFunds(t testing.TB, db weave.KVStore, cashctrl cash.BaseController, addr weave.Address, want int64) {
	t.Helper()
	coins, err := cashctrl.Balance(db, addr)
	switch {
	case err == nil:
		// All good.
	case errors.ErrNotFound.Is(err):
		coins = nil
	default:
		t.Fatalf("balance of %q: %s", addr, err)
	}
	var units int64
	for _, c := range coins {
		if c.Ticker == "IOV" {
			var err error
			if units, err = asUnits(*c); err != nil {
				t.Fatalf("as units: %s", err)
			}
		}
	}
	if units != want {
		t.Fatalf("want %d units on %q, got %d", want, addr, units)
	}
}
