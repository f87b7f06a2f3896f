package vault

import (
	"testing"

	weave "github.com/iov-one/weave"
	coin "github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/x/cash"
)

// fixedLedger is a salary ledger stub reporting a constant liability.
type fixedLedger struct {
	pending int64
}

func (l *fixedLedger) TotalPending(weave.KVStore, weave.UnixTime) (int64, error) {
	return l.pending, nil
}

func newTestController(t testing.TB, db weave.KVStore, pending int64) (*Controller, cash.BaseController) {
	t.Helper()

	migration.MustInitPkg(db, "vault", "cash")
	conf := Configuration{
		Metadata: &weave.Metadata{Schema: 1},
		Owner:    weavetest.NewCondition().Address(),
		Ticker:   "IOV",
	}
	if err := gconf.Save(db, "vault", &conf); err != nil {
		t.Fatalf("cannot save configuration: %s", err)
	}
	cashctrl := cash.NewController(cash.NewBucket())
	return NewController(&fixedLedger{pending: pending}, cashctrl), cashctrl
}

func mint(t testing.TB, db weave.KVStore, cashctrl cash.BaseController, addr weave.Address, units int64) {
	t.Helper()
	if err := cashctrl.CoinMint(db, addr, asCoin(units, "IOV")); err != nil {
		t.Fatalf("cannot mint %d for %q: %s", units, addr, err)
	}
}

func TestAssetsNeverExceedBalance(t *testing.T) {
	now := weave.UnixTime(1572247483)

	cases := map[string]struct {
		balance int64
		pending int64
		want    int64
	}{
		"no liability":                {balance: 100, pending: 0, want: 100},
		"partial liability":           {balance: 100, pending: 30, want: 70},
		"liability equals balance":    {balance: 100, pending: 100, want: 0},
		"liability exceeds balance":   {balance: 100, pending: 150, want: 0},
		"empty pool with a liability": {balance: 0, pending: 50, want: 0},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			db := store.MemStore()
			ctrl, cashctrl := newTestController(t, db, tc.pending)
			if tc.balance != 0 {
				mint(t, db, cashctrl, VaultAddress(), tc.balance)
			}
			assets, err := ctrl.TotalAssets(db, now)
			if err != nil {
				t.Fatalf("total assets: %s", err)
			}
			if assets != tc.want {
				t.Fatalf("want %d assets, got %d", tc.want, assets)
			}
		})
	}
}

func TestDepositPartition(t *testing.T) {
	// With a pool balance of 100 and a liability of 150, a deposit of 100
	// clears the uncovered 50 first and purchases ownership only with the
	// remaining 50. The gross contribution is recorded in full.
	db := store.MemStore()
	ctrl, cashctrl := newTestController(t, db, 150)

	alice := weavetest.NewCondition().Address()
	mint(t, db, cashctrl, VaultAddress(), 100)
	mint(t, db, cashctrl, alice, 100)

	now := weave.UnixTime(1572247483)
	shares, err := ctrl.deposit(db, alice, 100, now)
	if err != nil {
		t.Fatalf("deposit: %s", err)
	}
	if shares != 50 {
		t.Fatalf("want 50 shares minted, got %d", shares)
	}

	acc, err := ctrl.loadAccount(db, alice)
	if err != nil {
		t.Fatalf("load account: %s", err)
	}
	if acc.Shares != 50 || acc.Deposit != 100 {
		t.Fatalf("unexpected account state: %+v", acc)
	}

	// 50 of the contribution is unvested capital.
	inv, err := ctrl.InvestmentOf(db, alice, now)
	if err != nil {
		t.Fatalf("investment of: %s", err)
	}
	if inv != 50 {
		t.Fatalf("want 50 investment, got %d", inv)
	}
	total, err := ctrl.TotalInvestment(db, now)
	if err != nil {
		t.Fatalf("total investment: %s", err)
	}
	if total != 50 {
		t.Fatalf("want 50 total investment, got %d", total)
	}
}

func TestDepositBelowLiabilityMintsNoShares(t *testing.T) {
	db := store.MemStore()
	ctrl, cashctrl := newTestController(t, db, 500)

	alice := weavetest.NewCondition().Address()
	mint(t, db, cashctrl, alice, 100)

	shares, err := ctrl.deposit(db, alice, 100, weave.UnixTime(1572247483))
	if err != nil {
		t.Fatalf("deposit: %s", err)
	}
	if shares != 0 {
		t.Fatalf("want no shares minted, got %d", shares)
	}
	acc, err := ctrl.loadAccount(db, alice)
	if err != nil {
		t.Fatalf("load account: %s", err)
	}
	if acc.Deposit != 100 {
		t.Fatalf("want 100 gross deposit, got %d", acc.Deposit)
	}
}

func TestDepositAndWithdrawRoundTrip(t *testing.T) {
	db := store.MemStore()
	ctrl, cashctrl := newTestController(t, db, 0)

	alice := weavetest.NewCondition().Address()
	mint(t, db, cashctrl, alice, 1000)

	now := weave.UnixTime(1572247483)
	shares, err := ctrl.deposit(db, alice, 1000, now)
	if err != nil {
		t.Fatalf("deposit: %s", err)
	}
	if shares != 1000 {
		t.Fatalf("want 1000 shares, got %d", shares)
	}

	shares, err = ctrl.withdraw(db, alice, 400, now)
	if err != nil {
		t.Fatalf("withdraw: %s", err)
	}
	if shares != 400 {
		t.Fatalf("want 400 shares burned, got %d", shares)
	}

	acc, err := ctrl.loadAccount(db, alice)
	if err != nil {
		t.Fatalf("load account: %s", err)
	}
	if acc.Shares != 600 || acc.Deposit != 600 {
		t.Fatalf("unexpected account state: %+v", acc)
	}

	coins, err := cashctrl.Balance(db, alice)
	if err != nil {
		t.Fatalf("balance: %s", err)
	}
	if len(coins) != 1 || !coins[0].Equals(asCoin(400, "IOV")) {
		t.Fatalf("unexpected funds: %q", coins)
	}
}

func TestWithdrawMoreThanHeld(t *testing.T) {
	db := store.MemStore()
	ctrl, cashctrl := newTestController(t, db, 0)

	alice := weavetest.NewCondition().Address()
	mint(t, db, cashctrl, alice, 100)
	now := weave.UnixTime(1572247483)
	if _, err := ctrl.deposit(db, alice, 100, now); err != nil {
		t.Fatalf("deposit: %s", err)
	}
	if _, err := ctrl.withdraw(db, alice, 101, now); !errors.ErrAmount.Is(err) {
		t.Fatalf("want an amount error, got %+v", err)
	}
}

func TestWithdrawBurnsSharesRoundedUp(t *testing.T) {
	db := store.MemStore()
	ctrl, cashctrl := newTestController(t, db, 0)

	alice := weavetest.NewCondition().Address()
	mint(t, db, cashctrl, alice, 100)
	now := weave.UnixTime(1572247483)
	if _, err := ctrl.deposit(db, alice, 100, now); err != nil {
		t.Fatalf("deposit: %s", err)
	}
	// A donation raises the share price above one asset per share.
	mint(t, db, cashctrl, VaultAddress(), 50)

	// 100 assets are worth 66.67 shares, burned as 67.
	shares, err := ctrl.withdraw(db, alice, 100, now)
	if err != nil {
		t.Fatalf("withdraw: %s", err)
	}
	if shares != 67 {
		t.Fatalf("want 67 shares burned, got %d", shares)
	}
	acc, err := ctrl.loadAccount(db, alice)
	if err != nil {
		t.Fatalf("load account: %s", err)
	}
	if acc.Shares != 33 {
		t.Fatalf("unexpected account state: %+v", acc)
	}
	coins, err := cashctrl.Balance(db, alice)
	if err != nil {
		t.Fatalf("balance: %s", err)
	}
	if len(coins) != 1 || !coins[0].Equals(asCoin(100, "IOV")) {
		t.Fatalf("unexpected funds: %q", coins)
	}
}

func TestPreviewDepositIsReadOnly(t *testing.T) {
	db := store.MemStore()
	ctrl, cashctrl := newTestController(t, db, 150)

	alice := weavetest.NewCondition().Address()
	mint(t, db, cashctrl, VaultAddress(), 100)
	mint(t, db, cashctrl, alice, 100)

	now := weave.UnixTime(1572247483)
	for i := 0; i < 2; i++ {
		preview, err := ctrl.PreviewDeposit(db, 100, now)
		if err != nil {
			t.Fatalf("preview deposit: %s", err)
		}
		if preview != 50 {
			t.Fatalf("want a preview of 50 shares, got %d", preview)
		}
	}
	shares, err := ctrl.deposit(db, alice, 100, now)
	if err != nil {
		t.Fatalf("deposit: %s", err)
	}
	if shares != 50 {
		t.Fatalf("want 50 shares minted, got %d", shares)
	}
}

// TestTotalInvestmentSumsAccountShortfalls pins the aggregate to the sum of
// the per account values. With one holder whose share value exceeds its own
// contribution the aggregate must not shrink below the shortfall of the
// others, or the income routed by investment weight would exceed what the
// weights cover.
func TestTotalInvestmentSumsAccountShortfalls(t *testing.T) {
	db := store.MemStore()
	ctrl, cashctrl := newTestController(t, db, 160)

	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()
	mint(t, db, cashctrl, alice, 100)
	mint(t, db, cashctrl, bob, 200)

	now := weave.UnixTime(1572247483)
	// The whole deposit is consumed by the uncovered liability. No shares.
	if _, err := ctrl.deposit(db, alice, 100, now); err != nil {
		t.Fatalf("deposit alice: %s", err)
	}
	if _, err := ctrl.deposit(db, bob, 200, now); err != nil {
		t.Fatalf("deposit bob: %s", err)
	}
	// A donation pushes the value of bob's shares above his contribution.
	mint(t, db, cashctrl, VaultAddress(), 100)

	invAlice, err := ctrl.InvestmentOf(db, alice, now)
	if err != nil {
		t.Fatalf("investment of alice: %s", err)
	}
	if invAlice != 100 {
		t.Fatalf("want 100 alice investment, got %d", invAlice)
	}
	invBob, err := ctrl.InvestmentOf(db, bob, now)
	if err != nil {
		t.Fatalf("investment of bob: %s", err)
	}
	if invBob != 0 {
		t.Fatalf("want no bob investment, got %d", invBob)
	}
	total, err := ctrl.TotalInvestment(db, now)
	if err != nil {
		t.Fatalf("total investment: %s", err)
	}
	if total != invAlice+invBob {
		t.Fatalf("want %d total investment, got %d", invAlice+invBob, total)
	}
}

func TestTransferReattributesDeposit(t *testing.T) {
	db := store.MemStore()
	ctrl, cashctrl := newTestController(t, db, 0)

	alice := weavetest.NewCondition().Address()
	bob := weavetest.NewCondition().Address()
	mint(t, db, cashctrl, alice, 1000)

	now := weave.UnixTime(1572247483)
	if _, err := ctrl.deposit(db, alice, 1000, now); err != nil {
		t.Fatalf("deposit: %s", err)
	}
	if err := ctrl.transfer(db, alice, bob, 250, now); err != nil {
		t.Fatalf("transfer: %s", err)
	}

	src, err := ctrl.loadAccount(db, alice)
	if err != nil {
		t.Fatalf("load account: %s", err)
	}
	dst, err := ctrl.loadAccount(db, bob)
	if err != nil {
		t.Fatalf("load account: %s", err)
	}
	if src.Shares != 750 || src.Deposit != 750 {
		t.Fatalf("unexpected source state: %+v", src)
	}
	if dst.Shares != 250 || dst.Deposit != 250 {
		t.Fatalf("unexpected destination state: %+v", dst)
	}
}

func TestAsUnits(t *testing.T) {
	cases := map[string]struct {
		coin coin.Coin
		want int64
	}{
		"only fractional": {coin: coin.NewCoin(0, 123, "IOV"), want: 123},
		"only whole":      {coin: coin.NewCoin(2, 0, "IOV"), want: 2 * coin.FracUnit},
		"mixed":           {coin: coin.NewCoin(1, 5, "IOV"), want: coin.FracUnit + 5},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			got, err := asUnits(tc.coin)
			if err != nil {
				t.Fatalf("as units: %s", err)
			}
			if got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}
