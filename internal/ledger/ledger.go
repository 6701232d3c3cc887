// Package ledger tracks which instruction keys a run has already been
// rewarded for. One ledger per run; runs never share one.
package ledger

import (
	"prospect/internal/chain"
)

// Ledger is the per-run record of discovered instruction keys mapped to
// the turn that first produced them. Entries are only ever added.
type Ledger struct {
	firstSeen map[chain.InstructionKey]int
	order     []chain.InstructionKey
	allowed   map[string]struct{}
}

// New creates an empty ledger. When allowedPrograms is non-empty, keys of
// programs outside the list are ignored during scoring; an empty list
// means every program counts.
func New(allowedPrograms []string) *Ledger {
	l := &Ledger{firstSeen: make(map[chain.InstructionKey]int)}
	if len(allowedPrograms) > 0 {
		l.allowed = make(map[string]struct{}, len(allowedPrograms))
		for _, p := range allowedPrograms {
			l.allowed[p] = struct{}{}
		}
	}
	return l
}

// Score inserts every unseen key at turn and returns the number of keys
// newly added together with the keys themselves, in first-appearance
// order. Re-scoring keys the ledger already holds yields zero; duplicates
// within one call count once.
func (l *Ledger) Score(keys []chain.InstructionKey, turn int) (int, []chain.InstructionKey) {
	var added []chain.InstructionKey
	for _, key := range keys {
		if !l.admits(key) {
			continue
		}
		if _, seen := l.firstSeen[key]; seen {
			continue
		}
		l.firstSeen[key] = turn
		l.order = append(l.order, key)
		added = append(added, key)
	}
	return len(added), added
}

// ScoreReceipt decodes a receipt and scores its keys. A failed receipt
// contributes nothing and leaves the ledger untouched regardless of what
// instructions it carries.
func (l *Ledger) ScoreReceipt(receipt *chain.TransactionReceipt, turn int) (int, []chain.InstructionKey) {
	if !receipt.Success() {
		return 0, nil
	}
	return l.Score(chain.Decode(receipt), turn)
}

// Seen reports whether a key has already been rewarded.
func (l *Ledger) Seen(key chain.InstructionKey) bool {
	_, ok := l.firstSeen[key]
	return ok
}

// Size returns the number of distinct keys discovered so far.
func (l *Ledger) Size() int { return len(l.firstSeen) }

// Keys returns the discovered keys in first-appearance order.
func (l *Ledger) Keys() []chain.InstructionKey {
	out := make([]chain.InstructionKey, len(l.order))
	copy(out, l.order)
	return out
}

// Discoveries returns the persisted view: key string to the turn that
// first produced it.
func (l *Ledger) Discoveries() map[string]int {
	out := make(map[string]int, len(l.firstSeen))
	for key, turn := range l.firstSeen {
		out[key.String()] = turn
	}
	return out
}

func (l *Ledger) admits(key chain.InstructionKey) bool {
	if l.allowed == nil {
		return true
	}
	_, ok := l.allowed[key.ProgramID]
	return ok
}
