package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"prospect/internal/chain"
)

// ProgramExample is one recent transaction touching a program, flattened
// to the instruction level. Examples come from a public RPC endpoint and
// feed prompt context, never reward accounting.
type ProgramExample struct {
	Signature    string               `json:"signature"`
	Slot         uint64               `json:"slot"`
	Succeeded    bool                 `json:"succeeded"`
	Instructions []ExampleInstruction `json:"instructions"`
}

type ExampleInstruction struct {
	ProgramID string `json:"program_id"`
	Data      string `json:"data"`
	Accounts  int    `json:"accounts"`
	Inner     bool   `json:"inner,omitempty"`
}

// ExampleFetcher pulls recent program activity and caches it per program.
type ExampleFetcher struct {
	client *rpc.Client
	cache  *lru.Cache[string, []ProgramExample]
	limit  int
	log    *zap.Logger
}

func NewExampleFetcher(ctx context.Context, url string, limit int, log *zap.Logger) (*ExampleFetcher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("example fetcher: url is required")
	}
	if limit <= 0 {
		limit = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("example fetcher: dial: %w", err)
	}
	cache, err := lru.New[string, []ProgramExample](128)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &ExampleFetcher{client: client, cache: cache, limit: limit, log: log}, nil
}

func (f *ExampleFetcher) Close() {
	if f != nil && f.client != nil {
		f.client.Close()
	}
}

// Examples returns up to limit recent transactions for a program. Results
// are cached per program for the fetcher's lifetime.
func (f *ExampleFetcher) Examples(ctx context.Context, programID string) ([]ProgramExample, error) {
	programID = strings.TrimSpace(programID)
	if programID == "" {
		return nil, fmt.Errorf("example fetcher: program id is required")
	}
	if cached, ok := f.cache.Get(programID); ok {
		return cached, nil
	}

	var sigs []struct {
		Signature string `json:"signature"`
		Slot      uint64 `json:"slot"`
	}
	err := f.client.CallContext(ctx, &sigs, "getSignaturesForAddress", programID, map[string]any{
		"limit": f.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("example fetcher: signatures for %s: %w", programID, err)
	}

	examples := make([]ProgramExample, 0, len(sigs))
	for _, entry := range sigs {
		var receipt *chain.TransactionReceipt
		err := f.client.CallContext(ctx, &receipt, "getTransaction", entry.Signature, map[string]any{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		})
		if err != nil || receipt == nil {
			f.log.Debug("example transaction unavailable",
				zap.String("signature", entry.Signature), zap.Error(err))
			continue
		}
		examples = append(examples, flattenExample(entry.Signature, entry.Slot, receipt))
	}
	f.cache.Add(programID, examples)
	return examples, nil
}

// flattenExample lists the receipt's instructions in execution order,
// outer first, then the inners recorded for it.
func flattenExample(sig string, slot uint64, receipt *chain.TransactionReceipt) ProgramExample {
	innerByIndex := make(map[int][]chain.CompiledInstruction)
	if receipt.Meta != nil {
		for _, group := range receipt.Meta.InnerInstructions {
			innerByIndex[group.Index] = group.Instructions
		}
	}
	accountKeys := receipt.Transaction.Message.AccountKeys
	example := ProgramExample{Signature: sig, Slot: slot, Succeeded: receipt.Success()}
	appendInst := func(inst chain.CompiledInstruction, inner bool) {
		if inst.ProgramIDIndex < 0 || inst.ProgramIDIndex >= len(accountKeys) {
			return
		}
		example.Instructions = append(example.Instructions, ExampleInstruction{
			ProgramID: accountKeys[inst.ProgramIDIndex],
			Data:      inst.Data,
			Accounts:  len(inst.Accounts),
			Inner:     inner,
		})
	}
	for i, inst := range receipt.Transaction.Message.Instructions {
		appendInst(inst, false)
		for _, inner := range innerByIndex[i] {
			appendInst(inner, true)
		}
	}
	return example
}
