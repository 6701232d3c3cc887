package chain

import "github.com/mr-tron/base58"

// Decode maps a receipt to the ordered sequence of instruction keys it
// contains: each outer instruction followed by the inner instructions the
// runtime recorded under it. Decode is pure; it never consults state
// outside the receipt and never fails. Instructions whose program index
// falls outside the account list are skipped, and data that does not
// decode as base58 is treated as empty.
func Decode(receipt *TransactionReceipt) []InstructionKey {
	if receipt == nil {
		return nil
	}

	innerByIndex := make(map[int][]CompiledInstruction)
	if receipt.Meta != nil {
		for _, group := range receipt.Meta.InnerInstructions {
			innerByIndex[group.Index] = group.Instructions
		}
	}

	accountKeys := receipt.Transaction.Message.AccountKeys
	outer := receipt.Transaction.Message.Instructions
	keys := make([]InstructionKey, 0, len(outer))
	for i, inst := range outer {
		if key, ok := keyFor(inst, accountKeys); ok {
			keys = append(keys, key)
		}
		for _, inner := range innerByIndex[i] {
			if key, ok := keyFor(inner, accountKeys); ok {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func keyFor(inst CompiledInstruction, accountKeys []string) (InstructionKey, bool) {
	if inst.ProgramIDIndex < 0 || inst.ProgramIDIndex >= len(accountKeys) {
		return InstructionKey{}, false
	}
	key := InstructionKey{ProgramID: accountKeys[inst.ProgramIDIndex]}
	if inst.Data != "" {
		if data, err := base58.Decode(inst.Data); err == nil && len(data) > 0 {
			key.Discriminator = NewDiscriminator(data[0])
		}
	}
	return key, true
}
