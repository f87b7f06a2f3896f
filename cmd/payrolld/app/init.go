package app

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/iov-one/payroll/x/salary"
	"github.com/iov-one/payroll/x/split"
	"github.com/iov-one/payroll/x/vault"
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/commands/server"
	"github.com/iov-one/weave/crypto"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/x/cash"
	"github.com/iov-one/weave/x/multisig"
	"github.com/iov-one/weave/x/validators"
	abci "github.com/tendermint/tendermint/abci/types"
)

// GenInitOptions will produce some basic options for one rich account, to
// use for dev mode.
func GenInitOptions(args []string) (json.RawMessage, error) {
	ticker := "IOV"
	if len(args) > 0 {
		ticker = args[0]
	}

	var addr string
	if len(args) > 1 {
		addr = args[1]
	} else {
		// If no address is provided, auto-generate one and print out a
		// recovery phrase.
		bz, phrase, err := GenerateCoinKey()
		if err != nil {
			return nil, err
		}
		addr = bz.String()
		fmt.Println(phrase)
	}

	type (
		dict  map[string]interface{}
		array []interface{}
	)
	return json.Marshal(dict{
		"cash": array{
			dict{
				"address": addr,
				"coins": array{
					dict{
						"whole":  123456789,
						"ticker": ticker,
					},
				},
			},
		},
		"salary": dict{
			"settled_at": 0,
			"accounts":   array{},
		},
		"split": dict{
			"holders": array{
				dict{
					"address": addr,
					"balance": 1000000,
				},
			},
		},
		"conf": dict{
			"cash": cash.Configuration{
				CollectorAddress: vault.VaultAddress(),
				MinimalFee:       coin.Coin{Whole: 0}, // no fee
			},
			"migration": dict{
				"admin": addr,
			},
			"salary": dict{
				"owner":          addr,
				"admin":          addr,
				"source":         vault.VaultAddress(),
				"ticker":         ticker,
				"waiting_period": 24 * 3600,
			},
			"vault": dict{
				"owner":  addr,
				"ticker": ticker,
			},
			"split": dict{
				"owner":              addr,
				"ticker":             ticker,
				"investment_address": vault.VaultAddress(),
			},
		},
		"initialize_schema": []dict{
			{"pkg": "cash", "ver": 1},
			{"pkg": "sigs", "ver": 1},
			{"pkg": "multisig", "ver": 1},
			{"pkg": "validators", "ver": 1},
			{"pkg": "utils", "ver": 1},
			{"pkg": "salary", "ver": 1},
			{"pkg": "vault", "ver": 1},
			{"pkg": "split", "ver": 1},
		},
	})
}

// GenerateApp is used to create a stub for the server start command.
func GenerateApp(options *server.Options) (abci.Application, error) {
	// The database goes into a subdir, but "" stands for the memory store.
	var dbPath string
	if options.Home != "" {
		dbPath = filepath.Join(options.Home, "abci.db")
	}

	stack := Stack(options.MinFee)
	application, err := Application("payroll", stack, TxDecoder, dbPath, options.Debug)
	if err != nil {
		return nil, err
	}
	application.WithInit(app.ChainInitializers(
		&migration.Initializer{},
		&cash.Initializer{},
		&multisig.Initializer{},
		&validators.Initializer{},
		&salary.Initializer{},
		&vault.Initializer{},
		&split.Initializer{},
	))

	application.WithLogger(options.Logger)
	return application, nil
}

// GenerateCoinKey returns the address of a freshly generated key, along with
// the hex encoded secret needed to recover it.
func GenerateCoinKey() (weave.Address, string, error) {
	privKey := crypto.GenPrivKeyEd25519()
	addr := privKey.PublicKey().Address()
	secret := hex.EncodeToString(privKey.GetEd25519())
	return addr, secret, nil
}
