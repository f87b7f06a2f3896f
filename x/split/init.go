package split

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
)

// Initializer fulfils the Initializer interface to load data from the
// genesis file.
type Initializer struct{}

var _ weave.Initializer = (*Initializer)(nil)

// FromGenesis will parse initial split configuration and token holders from
// the genesis and save them to the database. The total token supply is fixed
// by the genesis holder balances.
func (*Initializer) FromGenesis(opts weave.Options, params weave.GenesisParams, db weave.KVStore) error {
	conf := Configuration{
		Metadata: &weave.Metadata{Schema: 1},
	}
	switch err := gconf.InitConfig(db, opts, "split", &conf); {
	default:
		// All good.
	case errors.ErrNotFound.Is(err):
		return nil
	case err != nil:
		return errors.Wrap(err, "cannot initialize gconf based configuration")
	}

	var dist struct {
		Holders []struct {
			Address weave.Address `json:"address"`
			Balance int64         `json:"balance"`
		} `json:"holders"`
	}
	if err := opts.ReadOptions("split", &dist); err != nil {
		return err
	}
	if len(dist.Holders) == 0 {
		return nil
	}

	var supply int64
	b := NewHolderBucket()
	for i, h := range dist.Holders {
		holder := Holder{
			Metadata: &weave.Metadata{Schema: 1},
			Balance:  h.Balance,
		}
		if err := holder.Validate(); err != nil {
			return errors.Wrapf(err, "holder %d is invalid", i)
		}
		if _, err := b.Put(db, h.Address, &holder); err != nil {
			return errors.Wrapf(err, "store holder %d", i)
		}
		supply += holder.Balance
		if supply < 0 {
			return errors.Wrapf(errors.ErrOverflow, "holder %d", i)
		}
	}

	state := SplitState{
		Metadata:    &weave.Metadata{Schema: 1},
		TotalSupply: supply,
	}
	sb := NewStateBucket()
	if _, err := sb.Put(db, stateKey, &state); err != nil {
		return errors.Wrap(err, "store state")
	}
	return nil
}
