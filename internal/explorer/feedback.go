package explorer

import (
	"encoding/json"
	"fmt"
	"strings"

	"prospect/internal/chain"
	"prospect/internal/sandbox"
	"prospect/internal/validator"
)

const (
	noCodeFeedback = "Please provide TypeScript code in ```typescript blocks to create Solana transactions. " +
		"We could not find any code blocks in your response."
	feedbackLogLimit = 30
)

// turnCounter renders the budget position appended to every feedback
// message so the model can pace itself.
func turnCounter(turn, budget int) string {
	return fmt.Sprintf("[Turn %d/%d] - %d turns remaining", turn, budget, budget-turn)
}

func successFeedback(turn, budget, delta, total int, newKeys []chain.InstructionKey, obs *validator.Observation, discovered int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transaction executed successfully! Earned %d reward points.\n", delta)
	fmt.Fprintf(&b, "Total rewards: %d\n", total)
	b.WriteString(turnCounter(turn, budget))
	b.WriteString("\n")
	if len(newKeys) > 0 {
		b.WriteString("New (program, instruction) pairs discovered:\n")
		for _, key := range newKeys {
			fmt.Fprintf(&b, "- %s\n", key.String())
		}
	} else {
		b.WriteString("No new (program, instruction) pairs: everything in this transaction was already discovered. Try unexplored instructions.\n")
	}
	if obs != nil {
		fmt.Fprintf(&b, "\nObservation: balance %.4f SOL, block height %d, %d distinct instructions discovered so far.",
			float64(obs.Balance)/1e9, obs.BlockHeight, discovered)
	}
	return b.String()
}

func onChainFailureFeedback(turn, budget int, receipt *chain.TransactionReceipt) string {
	var b strings.Builder
	b.WriteString("Transaction failed on-chain. No reward was earned.\n")
	if receipt.Meta != nil && len(receipt.Meta.Err) > 0 {
		fmt.Fprintf(&b, "Error: %s\n", string(receipt.Meta.Err))
	}
	logs := receipt.Logs()
	if len(logs) > 0 {
		if len(logs) > feedbackLogLimit {
			logs = logs[len(logs)-feedbackLogLimit:]
		}
		b.WriteString("Program logs:\n")
		for _, line := range logs {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	b.WriteString(turnCounter(turn, budget))
	return b.String()
}

func rejectionFeedback(turn, budget int, detail string) string {
	var b strings.Builder
	b.WriteString("The validator rejected the submitted transaction before execution.\n")
	fmt.Fprintf(&b, "Reason: %s\n", detail)
	b.WriteString("Check the blockhash you embedded, the fee payer, and required signatures.\n")
	b.WriteString(turnCounter(turn, budget))
	return b.String()
}

// sandboxFailureFeedback renders an execution failure. Compile failures
// enumerate every diagnostic so the model can fix all of them at once.
func sandboxFailureFeedback(turn, budget int, rec *sandbox.ErrorRecord) string {
	var b strings.Builder
	switch rec.Kind {
	case sandbox.ErrorKindCompile:
		fmt.Fprintf(&b, "Your code failed to build with %d error(s):\n", max(len(rec.Diagnostics), 1))
		for i, d := range rec.Diagnostics {
			fmt.Fprintf(&b, "%d. %s", i+1, d.Message)
			if d.File != "" || d.Line > 0 {
				fmt.Fprintf(&b, " (%s:%d:%d)", d.File, d.Line, d.Column)
			}
			b.WriteString("\n")
		}
		if len(rec.Diagnostics) == 0 {
			fmt.Fprintf(&b, "1. %s\n", rec.Message)
		}
		b.WriteString("Fix every error above in your next attempt.\n")
	case sandbox.ErrorKindPolicy:
		fmt.Fprintf(&b, "%s\n", rec.Message)
	case sandbox.ErrorKindTimeout:
		fmt.Fprintf(&b, "Execution timed out: %s\n", rec.Message)
		b.WriteString("Avoid network calls and unbounded loops; build the transaction directly.\n")
	case sandbox.ErrorKindInterface:
		fmt.Fprintf(&b, "Your code does not satisfy the required interface: %s\n", rec.Message)
		b.WriteString("Export exactly: export async function executeSkill(blockhash: string): Promise<string>\n")
	default:
		fmt.Fprintf(&b, "Execution failed: %s\n", rec.Message)
		if rec.Details != "" {
			fmt.Fprintf(&b, "Details:\n%s\n", rec.Details)
		}
	}
	if detail := machineDetail(rec); detail != "" {
		fmt.Fprintf(&b, "Structured error: %s\n", detail)
	}
	b.WriteString(turnCounter(turn, budget))
	return b.String()
}

// machineDetail is the machine-readable half of the feedback contract.
func machineDetail(rec *sandbox.ErrorRecord) string {
	b, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	return string(b)
}

func generatorErrorFeedback(err error) string {
	return fmt.Sprintf("An error occurred: %v. Please try a different approach.", err)
}
