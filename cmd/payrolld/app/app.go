/*
Package app wires together all the components of the payroll application.

The stack combines the standard weave decorators with the routes of the
salary, vault and split extensions. The extensions are chained: the vault
prices its shares net of the salary liability, and the split income ledger
uses the vault investments to weight its side channel.
*/
package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/iov-one/payroll/x/salary"
	"github.com/iov-one/payroll/x/split"
	"github.com/iov-one/payroll/x/vault"
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store/iavl"
	"github.com/iov-one/weave/x"
	"github.com/iov-one/weave/x/cash"
	"github.com/iov-one/weave/x/multisig"
	"github.com/iov-one/weave/x/sigs"
	"github.com/iov-one/weave/x/utils"
	"github.com/iov-one/weave/x/validators"
)

// Authenticator returns the typical authentication, using public key
// signatures and multisig contracts.
func Authenticator() x.Authenticator {
	return x.ChainAuth(sigs.Authenticate{}, multisig.Authenticate{})
}

// CashControl returns a controller for cash functions.
func CashControl() cash.Controller {
	return cash.NewController(cash.NewBucket())
}

// Chain returns a chain of decorators, to handle authentication, fees,
// logging, and recovery.
func Chain(minFee coin.Coin, authFn x.Authenticator) app.Decorators {
	return app.ChainDecorators(
		utils.NewLogging(),
		utils.NewRecovery(),
		utils.NewKeyTagger(),
		// On CheckTx, bad tx don't affect state.
		utils.NewSavepoint().OnCheck(),
		sigs.NewDecorator(),
		multisig.NewDecorator(authFn),
		cash.NewFeeDecorator(authFn, CashControl()),
		// On DeliverTx, bad tx will increment nonce and take the fee
		// even if the message fails.
		utils.NewSavepoint().OnDeliver(),
	)
}

// Router returns a router dispatching to all message handlers of this
// application.
func Router(authFn x.Authenticator) *app.Router {
	r := app.NewRouter()

	cashctrl := CashControl()
	salaries := salary.NewController()
	vaults := vault.NewController(salaries, cashctrl)

	migration.RegisterRoutes(r, authFn)
	cash.RegisterRoutes(r, authFn, cashctrl)
	multisig.RegisterRoutes(r, authFn)
	validators.RegisterRoutes(r, authFn)
	salary.RegisterRoutes(r, authFn, cashctrl)
	vault.RegisterRoutes(r, authFn, salaries, cashctrl)
	split.RegisterRoutes(r, authFn, vaults, cashctrl)
	return r
}

// QueryRouter returns a query router, exposing all buckets of this
// application.
func QueryRouter() weave.QueryRouter {
	r := weave.NewQueryRouter()
	r.RegisterAll(
		migration.RegisterQuery,
		cash.RegisterQuery,
		sigs.RegisterQuery,
		multisig.RegisterQuery,
		validators.RegisterQuery,
		salary.RegisterQuery,
		vault.RegisterQuery,
		split.RegisterQuery,
	)
	return r
}

// Stack wires up a standard router with a standard decorator chain. This can
// be passed into BaseApp.
func Stack(minFee coin.Coin) weave.Handler {
	authFn := Authenticator()
	return Chain(minFee, authFn).WithHandler(Router(authFn))
}

// Application constructs a basic ABCI application with the given arguments.
// If you are not sure what to use for the Handler, just use Stack().
func Application(name string, h weave.Handler, tx weave.TxDecoder, dbPath string, debug bool) (app.BaseApp, error) {
	ctx := context.Background()
	kv, err := CommitKVStore(dbPath)
	if err != nil {
		return app.BaseApp{}, errors.Wrap(err, "cannot create store")
	}
	store := app.NewStoreApp(name, kv, QueryRouter(), ctx)
	base := app.NewBaseApp(store, tx, h, nil, debug)
	return base, nil
}

// CommitKVStore returns an initialized KVStore that persists the data to the
// named path.
func CommitKVStore(dbPath string) (weave.CommitKVStore, error) {
	// Memory backed case, just for testing.
	if dbPath == "" {
		return iavl.MockCommitStore(), nil
	}

	path, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "invalid database name: %s", path)
	}
	// Some external calls accidentally add a ".db", which is now removed.
	path = strings.TrimSuffix(path, filepath.Ext(path))

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	return iavl.NewCommitStore(dir, name), nil
}
