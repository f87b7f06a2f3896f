package app

import (
	"bytes"
	"testing"

	"github.com/iov-one/payroll/x/salary"
	"github.com/iov-one/payroll/x/vault"
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/x/multisig"
)

func TestTxDecoderRoundTrip(t *testing.T) {
	beneficiary := weavetest.NewCondition().Address()
	tx := &Tx{
		Sum: &Tx_SalaryReleaseMsg{
			SalaryReleaseMsg: &salary.ReleaseMsg{
				Metadata:    &weave.Metadata{Schema: 1},
				Beneficiary: beneficiary,
			},
		},
	}
	raw, err := tx.Marshal()
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}
	decoded, err := TxDecoder(raw)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	msg, err := decoded.GetMsg()
	if err != nil {
		t.Fatalf("get msg: %s", err)
	}
	if msg.Path() != "salary/release" {
		t.Fatalf("unexpected message path: %q", msg.Path())
	}
	release, ok := msg.(*salary.ReleaseMsg)
	if !ok {
		t.Fatalf("unexpected message type: %T", msg)
	}
	if !release.Beneficiary.Equals(beneficiary) {
		t.Fatalf("unexpected beneficiary: %q", release.Beneficiary)
	}
}

func TestTxMultisigRoundTrip(t *testing.T) {
	contractID := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	tx := &Tx{
		Multisig: [][]byte{contractID},
		Sum: &Tx_MultisigCreateMsg{
			MultisigCreateMsg: &multisig.CreateMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Participants: []*multisig.Participant{
					{Signature: weavetest.NewCondition().Address(), Weight: 1},
				},
				ActivationThreshold: 1,
				AdminThreshold:      1,
			},
		},
	}
	raw, err := tx.Marshal()
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}
	decoded, err := TxDecoder(raw)
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	msg, err := decoded.GetMsg()
	if err != nil {
		t.Fatalf("get msg: %s", err)
	}
	if msg.Path() != "multisig/create" {
		t.Fatalf("unexpected message path: %q", msg.Path())
	}
	mtx, ok := decoded.(multisig.MultiSigTx)
	if !ok {
		t.Fatalf("decoded transaction does not carry multisig contracts: %T", decoded)
	}
	ids := mtx.GetMultisig()
	if len(ids) != 1 || !bytes.Equal(ids[0], contractID) {
		t.Fatalf("unexpected multisig contract IDs: %v", ids)
	}
}

func TestSignBytesIgnoreSignatures(t *testing.T) {
	tx := &Tx{
		Sum: &Tx_VaultDepositMsg{
			VaultDepositMsg: &vault.DepositMsg{
				Metadata:  &weave.Metadata{Schema: 1},
				Depositor: weavetest.NewCondition().Address(),
				Amount:    100,
			},
		},
	}
	bz, err := tx.GetSignBytes()
	if err != nil {
		t.Fatalf("sign bytes: %s", err)
	}
	signed, err := tx.Marshal()
	if err != nil {
		t.Fatalf("marshal: %s", err)
	}
	if !bytes.Equal(bz, signed) {
		t.Fatal("unsigned tx sign bytes must equal its serialization")
	}
}

func TestStackConstruction(t *testing.T) {
	// Wiring errors in route or query registration panic.
	_ = Stack(coin.Coin{})
	_ = QueryRouter()
}
