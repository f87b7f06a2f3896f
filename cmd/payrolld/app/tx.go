package app

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/x/cash"
	"github.com/iov-one/weave/x/multisig"
	"github.com/iov-one/weave/x/sigs"
)

// TxDecoder creates a Tx and unmarshals bytes into it.
func TxDecoder(bz []byte) (weave.Tx, error) {
	tx := &Tx{}
	if err := tx.Unmarshal(bz); err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	return tx, nil
}

// Make sure tx fulfills all interfaces.
var (
	_ weave.Tx            = (*Tx)(nil)
	_ cash.FeeTx          = (*Tx)(nil)
	_ sigs.SignedTx       = (*Tx)(nil)
	_ multisig.MultiSigTx = (*Tx)(nil)
)

func (tx *Tx) GetMsg() (weave.Msg, error) {
	return weave.ExtractMsgFromSum(tx.GetSum())
}

// GetSignBytes returns the bytes to sign. The signature bytes come from the
// transaction data itself, with any previous signatures unset.
func (tx *Tx) GetSignBytes() ([]byte, error) {
	sigs := tx.Signatures
	tx.Signatures = nil
	bz, err := tx.Marshal()
	tx.Signatures = sigs
	return bz, err
}
