package generator

import (
	"regexp"
	"strings"

	"prospect/internal/sandbox"
)

var codeBlockPattern = regexp.MustCompile("(?s)```(?:javascript|js|typescript|ts)(.*?)```")

const entrySignature = "export async function executeSkill"

// ExtractCodeUnit pulls the code unit out of a model response. When the
// response holds several fenced blocks, the one defining the skill entry
// point wins; otherwise the first block is taken. Returns false when the
// response carries no usable code.
func ExtractCodeUnit(text string) (sandbox.CodeUnit, bool) {
	matches := codeBlockPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return sandbox.CodeUnit{}, false
	}
	chosen := matches[0][1]
	for _, m := range matches {
		if strings.Contains(m[1], entrySignature) {
			chosen = m[1]
			break
		}
	}
	source := strings.TrimSpace(chosen)
	if source == "" {
		return sandbox.CodeUnit{}, false
	}
	return sandbox.CodeUnit{Language: "typescript", Source: []byte(source)}, true
}
