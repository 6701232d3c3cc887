package explorer

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

//go:embed assets/system_prompt.txt
var defaultSystemPrompt string

const initialUserPrompt = "Begin exploring the Solana blockchain. Try to discover new programs and instructions.\n" +
	"Write TypeScript code to create and execute transactions that will earn rewards.\n" +
	"Remember to use ```typescript code blocks for your transaction code."

type promptVars struct {
	AgentPubkey string
	SOLBalance  float64
	BlockHeight uint64
	TotalReward int
	Budget      int
}

// renderPrompt fills the {placeholder} slots of a prompt template.
// Placeholder names are part of the environment-template contract.
func renderPrompt(template string, vars promptVars) string {
	return strings.NewReplacer(
		"{agent_pubkey}", vars.AgentPubkey,
		"{sol_balance}", strconv.FormatFloat(vars.SOLBalance, 'f', 4, 64),
		"{block_height}", strconv.FormatUint(vars.BlockHeight, 10),
		"{total_reward}", strconv.Itoa(vars.TotalReward),
		"{max_messages}", strconv.Itoa(vars.Budget),
	).Replace(template)
}

// promptTemplate returns the environment's template when one is
// configured and readable, the embedded default otherwise.
func (e *Explorer) promptTemplate() string {
	if e.env != nil && strings.TrimSpace(e.env.SystemPromptTemplate) != "" {
		b, err := os.ReadFile(e.env.SystemPromptTemplate)
		if err == nil {
			return string(b)
		}
		e.log.Warn("prompt template unreadable, using default",
			zap.String("path", e.env.SystemPromptTemplate), zap.Error(err))
	}
	return defaultSystemPrompt
}
