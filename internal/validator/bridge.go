// Package validator talks to the sandboxed chain replica: identity
// funding, freshness tokens, transaction submission and confirmation, and
// the replica process lifecycle. Failure classification is strict:
// transport trouble is fatal for the run, a rejected transaction is a
// turn-level outcome.
package validator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"prospect/internal/chain"
)

const lamportsPerSOL = 1_000_000_000

// Config bounds every bridge interaction. CallTimeout caps a single RPC
// round trip, ConfirmTimeout caps the wait for a submitted transaction to
// reach a confirmation outcome.
type Config struct {
	URL             string
	CallTimeout     time.Duration
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
	AirdropLamports uint64
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.AirdropLamports == 0 {
		c.AirdropLamports = 2 * lamportsPerSOL
	}
	return c
}

// Bridge is the JSON-RPC client side of the replica boundary.
type Bridge struct {
	client *rpc.Client
	cfg    Config
	log    *zap.Logger
}

// Dial connects to the replica's RPC endpoint.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Bridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	client, err := rpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, &FatalError{Op: "dial", Err: err}
	}
	return &Bridge{client: client, cfg: cfg, log: log}, nil
}

func (b *Bridge) Close() {
	if b != nil && b.client != nil {
		b.client.Close()
	}
}

// FundedIdentity is a fresh keypair with an airdropped starting balance.
type FundedIdentity struct {
	Keys     *chain.Keypair
	Lamports uint64
}

func (id *FundedIdentity) Pubkey() string { return id.Keys.Pubkey() }

// ResetIdentity creates a new keypair, airdrops the configured starting
// balance to it and waits for the airdrop to confirm.
func (b *Bridge) ResetIdentity(ctx context.Context) (*FundedIdentity, error) {
	keys, err := chain.NewKeypair()
	if err != nil {
		return nil, err
	}
	pubkey := keys.Pubkey()

	var sig string
	if err := b.call(ctx, &sig, "requestAirdrop", pubkey, b.cfg.AirdropLamports); err != nil {
		return nil, &FatalError{Op: "requestAirdrop", Err: err}
	}
	if err := b.awaitConfirmation(ctx, sig); err != nil {
		return nil, err
	}
	balance, err := b.Balance(ctx, pubkey)
	if err != nil {
		return nil, err
	}
	b.log.Info("identity funded", zap.String("pubkey", pubkey), zap.Uint64("lamports", balance))
	return &FundedIdentity{Keys: keys, Lamports: balance}, nil
}

// LatestReference returns the current blockhash, the freshness token a
// code unit must embed for its transaction to be accepted.
func (b *Bridge) LatestReference(ctx context.Context) (string, error) {
	var res struct {
		Value struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := b.call(ctx, &res, "getLatestBlockhash", commitment("confirmed")); err != nil {
		return "", &FatalError{Op: "getLatestBlockhash", Err: err}
	}
	return res.Value.Blockhash, nil
}

// Submit sends a signed transaction, waits for it to confirm and fetches
// the receipt. An RPC-level rejection comes back as *SubmitError; a
// transaction that confirms with an on-chain error still yields its
// receipt, with Success reporting false.
func (b *Bridge) Submit(ctx context.Context, signedTx []byte) (*chain.TransactionReceipt, error) {
	encoded := base64.StdEncoding.EncodeToString(signedTx)
	var sig string
	err := b.call(ctx, &sig, "sendTransaction", encoded, map[string]any{
		"encoding":            "base64",
		"skipPreflight":       false,
		"preflightCommitment": "confirmed",
	})
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, &SubmitError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		}
		return nil, &FatalError{Op: "sendTransaction", Err: err}
	}

	if err := b.awaitConfirmation(ctx, sig); err != nil {
		return nil, err
	}
	return b.fetchReceipt(ctx, sig)
}

// Balance returns an account's lamport balance.
func (b *Bridge) Balance(ctx context.Context, pubkey string) (uint64, error) {
	var res struct {
		Value uint64 `json:"value"`
	}
	if err := b.call(ctx, &res, "getBalance", pubkey, commitment("confirmed")); err != nil {
		return 0, &FatalError{Op: "getBalance", Err: err}
	}
	return res.Value, nil
}

// BlockHeight returns the replica's current block height.
func (b *Bridge) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := b.call(ctx, &height, "getBlockHeight", commitment("confirmed")); err != nil {
		return 0, &FatalError{Op: "getBlockHeight", Err: err}
	}
	return height, nil
}

// Observation is the ambient chain view included in turn feedback.
type Observation struct {
	Balance     uint64
	BlockHeight uint64
}

func (b *Bridge) Observe(ctx context.Context, pubkey string) (*Observation, error) {
	balance, err := b.Balance(ctx, pubkey)
	if err != nil {
		return nil, err
	}
	height, err := b.BlockHeight(ctx)
	if err != nil {
		return nil, err
	}
	return &Observation{Balance: balance, BlockHeight: height}, nil
}

type signatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// awaitConfirmation polls until the signature reaches confirmed or
// finalized status. A transaction that fails on-chain still confirms; the
// receipt carries the error. Exceeding the confirmation bound is fatal:
// an accepted transaction that never lands means the replica is wedged.
func (b *Bridge) awaitConfirmation(ctx context.Context, sig string) error {
	deadline := time.NewTimer(b.cfg.ConfirmTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(b.cfg.PollInterval)
	defer tick.Stop()

	for {
		var res struct {
			Value []*signatureStatus `json:"value"`
		}
		err := b.call(ctx, &res, "getSignatureStatuses", []string{sig}, map[string]any{
			"searchTransactionHistory": true,
		})
		if err != nil {
			return &FatalError{Op: "getSignatureStatuses", Err: err}
		}
		if len(res.Value) > 0 && res.Value[0] != nil {
			switch res.Value[0].ConfirmationStatus {
			case "confirmed", "finalized":
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return &FatalError{Op: "confirm " + sig, Err: errors.New("confirmation bound exceeded")}
		case <-tick.C:
		}
	}
}

// fetchReceipt retrieves the confirmed transaction. The receipt can lag
// confirmation by a moment, so a null result is retried briefly.
func (b *Bridge) fetchReceipt(ctx context.Context, sig string) (*chain.TransactionReceipt, error) {
	for attempt := 0; attempt < 5; attempt++ {
		var receipt *chain.TransactionReceipt
		err := b.call(ctx, &receipt, "getTransaction", sig, map[string]any{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		})
		if err != nil {
			return nil, &FatalError{Op: "getTransaction", Err: err}
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.cfg.PollInterval):
		}
	}
	return nil, &FatalError{Op: "getTransaction", Err: fmt.Errorf("no receipt for confirmed signature %s", sig)}
}

// call performs one bounded RPC round trip.
func (b *Bridge) call(ctx context.Context, result any, method string, args ...any) error {
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()
	return b.client.CallContext(callCtx, result, method, args...)
}

func commitment(level string) map[string]any {
	return map[string]any{"commitment": level}
}
