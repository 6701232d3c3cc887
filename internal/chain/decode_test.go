package chain

import (
	"encoding/json"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	systemProgram = "11111111111111111111111111111111"
	memoProgram   = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	tokenProgram  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

func receiptWith(accounts []string, outer []CompiledInstruction, inner []InnerInstructionGroup) *TransactionReceipt {
	return &TransactionReceipt{
		Meta: &ReceiptMeta{
			Err:               json.RawMessage("null"),
			InnerInstructions: inner,
		},
		Transaction: ReceiptEnvelope{
			Signatures: []string{"sig"},
			Message: ReceiptMessage{
				AccountKeys:  accounts,
				Instructions: outer,
			},
		},
	}
}

func data(first byte, rest ...byte) string {
	return base58.Encode(append([]byte{first}, rest...))
}

func TestDecodeOrdersOuterThenInner(t *testing.T) {
	accounts := []string{"payer", systemProgram, tokenProgram, memoProgram}
	receipt := receiptWith(accounts,
		[]CompiledInstruction{
			{ProgramIDIndex: 1, Data: data(2)},
			{ProgramIDIndex: 3, Data: data(0)},
		},
		[]InnerInstructionGroup{
			{Index: 0, Instructions: []CompiledInstruction{
				{ProgramIDIndex: 2, Data: data(3)},
			}},
		},
	)

	keys := Decode(receipt)
	require.Len(t, keys, 3)
	assert.Equal(t, InstructionKey{ProgramID: systemProgram, Discriminator: NewDiscriminator(2)}, keys[0])
	assert.Equal(t, InstructionKey{ProgramID: tokenProgram, Discriminator: NewDiscriminator(3)}, keys[1], "inner instructions follow their outer instruction")
	assert.Equal(t, InstructionKey{ProgramID: memoProgram, Discriminator: NewDiscriminator(0)}, keys[2])
}

func TestDecodeEmptyDataHasNoDiscriminator(t *testing.T) {
	receipt := receiptWith([]string{systemProgram},
		[]CompiledInstruction{{ProgramIDIndex: 0, Data: ""}}, nil)

	keys := Decode(receipt)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Discriminator.Valid)
	assert.NotEqual(t, NewDiscriminator(0), keys[0].Discriminator, "absent data is distinct from byte zero")
}

func TestDecodeBadBase58TreatedAsEmpty(t *testing.T) {
	receipt := receiptWith([]string{systemProgram},
		[]CompiledInstruction{{ProgramIDIndex: 0, Data: "0OIl"}}, nil)

	keys := Decode(receipt)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Discriminator.Valid)
}

func TestDecodeSkipsOutOfRangeProgramIndex(t *testing.T) {
	receipt := receiptWith([]string{systemProgram},
		[]CompiledInstruction{
			{ProgramIDIndex: 5, Data: data(1)},
			{ProgramIDIndex: -1, Data: data(1)},
			{ProgramIDIndex: 0, Data: data(1)},
		}, nil)

	keys := Decode(receipt)
	require.Len(t, keys, 1)
	assert.Equal(t, systemProgram, keys[0].ProgramID)
}

func TestDecodeNilReceipt(t *testing.T) {
	assert.Nil(t, Decode(nil))
}

func TestInstructionKeyString(t *testing.T) {
	assert.Equal(t, systemProgram+"#2",
		InstructionKey{ProgramID: systemProgram, Discriminator: NewDiscriminator(2)}.String())
	assert.Equal(t, systemProgram+"#0",
		InstructionKey{ProgramID: systemProgram, Discriminator: NewDiscriminator(0)}.String())
	assert.Equal(t, systemProgram+"#none",
		InstructionKey{ProgramID: systemProgram}.String())
}

func TestReceiptSuccess(t *testing.T) {
	ok := receiptWith([]string{systemProgram}, nil, nil)
	assert.True(t, ok.Success())

	failed := receiptWith([]string{systemProgram}, nil, nil)
	failed.Meta.Err = json.RawMessage(`{"InstructionError":[0,"InvalidAccountData"]}`)
	assert.False(t, failed.Success())

	assert.False(t, (&TransactionReceipt{}).Success(), "missing meta is not a success")
	assert.False(t, (*TransactionReceipt)(nil).Success())
}

func TestKeypairPubkeyIsBase58(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	decoded, err := base58.Decode(kp.Pubkey())
	require.NoError(t, err)
	assert.Equal(t, []byte(kp.Public), decoded)
}
