package jsonutil

import (
	"strings"
	"testing"
)

func TestMarshalNoEscapeKeepsCodePunctuation(t *testing.T) {
	doc := map[string]string{"content": "export const f = async () => '<done>' && run()"}
	b, err := MarshalNoEscape(doc)
	if err != nil {
		t.Fatalf("MarshalNoEscape() error: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "\\u003e") || strings.Contains(s, "\\u003c") || strings.Contains(s, "\\u0026") {
		t.Fatalf("output escapes HTML characters: %s", s)
	}
	if !strings.Contains(s, "() => '<done>'") {
		t.Fatalf("output = %s", s)
	}
	if strings.HasSuffix(s, "\n") {
		t.Fatalf("output keeps trailing newline: %q", s)
	}
}

func TestMarshalNoEscapeIndent(t *testing.T) {
	b, err := MarshalNoEscapeIndent(map[string]string{"k": "a => b"}, "", "  ")
	if err != nil {
		t.Fatalf("MarshalNoEscapeIndent() error: %v", err)
	}
	want := "{\n  \"k\": \"a => b\"\n}"
	if string(b) != want {
		t.Fatalf("MarshalNoEscapeIndent() = %q, want %q", b, want)
	}
}
