package chain

import "encoding/json"

// TransactionReceipt is the confirmed view of an executed transaction as
// returned by the validator's getTransaction endpoint. Field layout follows
// the JSON-RPC wire shape so receipts unmarshal directly.
type TransactionReceipt struct {
	Slot        uint64          `json:"slot"`
	BlockTime   *int64          `json:"blockTime"`
	Meta        *ReceiptMeta    `json:"meta"`
	Transaction ReceiptEnvelope `json:"transaction"`
}

type ReceiptMeta struct {
	Err               json.RawMessage         `json:"err"`
	Fee               uint64                  `json:"fee"`
	LogMessages       []string                `json:"logMessages"`
	InnerInstructions []InnerInstructionGroup `json:"innerInstructions"`
	PreBalances       []uint64                `json:"preBalances"`
	PostBalances      []uint64                `json:"postBalances"`
	ComputeUnits      uint64                  `json:"computeUnitsConsumed"`
}

type ReceiptEnvelope struct {
	Signatures []string       `json:"signatures"`
	Message    ReceiptMessage `json:"message"`
}

type ReceiptMessage struct {
	AccountKeys     []string              `json:"accountKeys"`
	RecentBlockhash string                `json:"recentBlockhash"`
	Instructions    []CompiledInstruction `json:"instructions"`
}

// CompiledInstruction references its program by index into the message
// account list; Data is base58 as delivered on the wire.
type CompiledInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

// InnerInstructionGroup holds the instructions a runtime invocation nested
// under the outer instruction at Index.
type InnerInstructionGroup struct {
	Index        int                   `json:"index"`
	Instructions []CompiledInstruction `json:"instructions"`
}

// Success reports whether the transaction executed without an on-chain
// error. A receipt without meta is treated as failed; it carries nothing
// scoreable.
func (r *TransactionReceipt) Success() bool {
	if r == nil || r.Meta == nil {
		return false
	}
	return isJSONNull(r.Meta.Err)
}

// Logs returns the program log messages, nil when meta is absent.
func (r *TransactionReceipt) Logs() []string {
	if r == nil || r.Meta == nil {
		return nil
	}
	return r.Meta.LogMessages
}

// Signature returns the transaction's primary signature, if present.
func (r *TransactionReceipt) Signature() string {
	if r == nil || len(r.Transaction.Signatures) == 0 {
		return ""
	}
	return r.Transaction.Signatures[0]
}

func isJSONNull(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	return string(raw) == "null"
}
