package generator

import (
	"testing"
)

func TestExtractCodeUnitSingleBlock(t *testing.T) {
	text := "Here is my attempt:\n```typescript\nconst tx = new Transaction();\n```\nLet me know."
	unit, ok := ExtractCodeUnit(text)
	if !ok {
		t.Fatalf("ExtractCodeUnit() ok = false, want true")
	}
	if got := string(unit.Source); got != "const tx = new Transaction();" {
		t.Fatalf("source = %q", got)
	}
	if unit.Language != "typescript" {
		t.Fatalf("language = %q, want typescript", unit.Language)
	}
}

func TestExtractCodeUnitJavaScriptFence(t *testing.T) {
	unit, ok := ExtractCodeUnit("```js\nconsole.log(1)\n```")
	if !ok {
		t.Fatalf("ExtractCodeUnit() ok = false, want true")
	}
	if got := string(unit.Source); got != "console.log(1)" {
		t.Fatalf("source = %q", got)
	}
}

func TestExtractCodeUnitPrefersEntryPoint(t *testing.T) {
	text := "First a helper:\n```typescript\nconst helper = 1;\n```\n" +
		"And the skill:\n```typescript\nexport async function executeSkill(ref: string) {}\n```"
	unit, ok := ExtractCodeUnit(text)
	if !ok {
		t.Fatalf("ExtractCodeUnit() ok = false, want true")
	}
	if got := string(unit.Source); got != "export async function executeSkill(ref: string) {}" {
		t.Fatalf("source = %q, want the entry point block", got)
	}
}

func TestExtractCodeUnitFallsBackToFirstBlock(t *testing.T) {
	text := "```typescript\nfirst\n```\n```typescript\nsecond\n```"
	unit, ok := ExtractCodeUnit(text)
	if !ok {
		t.Fatalf("ExtractCodeUnit() ok = false, want true")
	}
	if got := string(unit.Source); got != "first" {
		t.Fatalf("source = %q, want first block", got)
	}
}

func TestExtractCodeUnitNoCode(t *testing.T) {
	for _, text := range []string{
		"",
		"I cannot write code for this.",
		"```python\nprint(1)\n```",
		"```typescript\n\n```",
	} {
		if _, ok := ExtractCodeUnit(text); ok {
			t.Fatalf("ExtractCodeUnit(%q) ok = true, want false", text)
		}
	}
}

func TestConversationSkipsEmptySystemPrompt(t *testing.T) {
	if got := NewConversation("  \n").Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
	if got := NewConversation("be helpful").Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}

func TestConversationSnapshotIsolation(t *testing.T) {
	c := NewConversation("sys")
	c.Append(RoleUser, "hello")

	snap := c.Messages()
	snap[0].Content = "mutated"
	c.Append(RoleAssistant, "hi")

	fresh := c.Messages()
	if fresh[0].Content != "sys" {
		t.Fatalf("Messages()[0] = %q, snapshot mutation leaked into the conversation", fresh[0].Content)
	}
	if len(snap) != 2 || len(fresh) != 3 {
		t.Fatalf("lengths = %d, %d, want 2 and 3", len(snap), len(fresh))
	}
	if fresh[2].Role != RoleAssistant || fresh[2].Content != "hi" {
		t.Fatalf("Messages()[2] = %+v", fresh[2])
	}
}
