package sandbox

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

// uleb encodes v as an unsigned LEB128 integer.
func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func wasmSection(id byte, contents []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(contents)))...)
	return append(out, contents...)
}

// skillModule assembles a module that imports env.emit_transaction and
// exports execute_skill, alloc and one page of memory. body is the raw
// instruction stream of execute_skill without the trailing end opcode;
// data, when non-nil, is preloaded at memory offset 0.
func skillModule(body, data []byte) []byte {
	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// Types: 0 = (i32,i32)->(), 1 = (i32)->(i32).
	mod = append(mod, wasmSection(1, []byte{
		0x02,
		0x60, 0x02, 0x7f, 0x7f, 0x00,
		0x60, 0x01, 0x7f, 0x01, 0x7f,
	})...)

	imp := []byte{0x01, 0x03}
	imp = append(imp, "env"...)
	imp = append(imp, byte(len(wasmEmit)))
	imp = append(imp, wasmEmit...)
	imp = append(imp, 0x00, 0x00)
	mod = append(mod, wasmSection(2, imp)...)

	// Declared functions: execute_skill (type 0), alloc (type 1); the
	// import occupies function index 0.
	mod = append(mod, wasmSection(3, []byte{0x02, 0x00, 0x01})...)
	mod = append(mod, wasmSection(5, []byte{0x01, 0x00, 0x01})...)

	exp := []byte{0x02}
	exp = append(exp, byte(len(wasmEntry)))
	exp = append(exp, wasmEntry...)
	exp = append(exp, 0x00, 0x01)
	exp = append(exp, byte(len(wasmAlloc)))
	exp = append(exp, wasmAlloc...)
	exp = append(exp, 0x00, 0x02)
	mod = append(mod, wasmSection(7, exp)...)

	skill := append([]byte{0x00}, body...)
	skill = append(skill, 0x0b)
	// alloc ignores its size argument and hands out offset 4096, clear of
	// any preloaded data segment.
	allocBody := []byte{0x00, 0x41, 0x80, 0x20, 0x0b}
	code := []byte{0x02}
	code = append(code, uleb(uint32(len(skill)))...)
	code = append(code, skill...)
	code = append(code, uleb(uint32(len(allocBody)))...)
	code = append(code, allocBody...)
	mod = append(mod, wasmSection(10, code)...)

	if data != nil {
		seg := []byte{0x01, 0x00, 0x41, 0x00, 0x0b}
		seg = append(seg, uleb(uint32(len(data)))...)
		seg = append(seg, data...)
		mod = append(mod, wasmSection(11, seg)...)
	}
	return mod
}

// emitCall is the instruction stream for one env.emit_transaction(off, n).
func emitCall(off, n byte) []byte {
	return []byte{0x41, off, 0x41, n, 0x10, 0x00}
}

func newTestWasmEngine(t *testing.T) (*WasmEngine, string) {
	t.Helper()
	dir := t.TempDir()
	engine, err := NewWasmEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWasmEngine() error = %v", err)
	}
	return engine, dir
}

func TestWasmEngineEmitsTransaction(t *testing.T) {
	engine, dir := newTestWasmEngine(t)
	// "AQID" is the base64 form of 0x01 0x02 0x03.
	unit := CodeUnit{Language: "wasm", Source: skillModule(emitCall(0, 4), []byte("AQID"))}

	res, err := engine.Execute(context.Background(), unit, 5*time.Second, ExecContext{
		RunID: "run1", Turn: 1, Identity: "ident", Reference: "ref",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.OK() {
		t.Fatalf("Execute() failed: %+v", res.Err)
	}
	if !bytes.Equal(res.SerializedTx, []byte{1, 2, 3}) {
		t.Fatalf("SerializedTx = %v, want [1 2 3]", res.SerializedTx)
	}
	if _, err := os.Stat(filepath.Join(dir, "run1", "turn_0001.wasm")); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
}

func TestWasmEngineDoubleEmitIsPolicyViolation(t *testing.T) {
	engine, _ := newTestWasmEngine(t)
	body := append(emitCall(0, 4), emitCall(0, 4)...)
	unit := CodeUnit{Language: "wasm", Source: skillModule(body, []byte("AQID"))}

	res, err := engine.Execute(context.Background(), unit, 5*time.Second, ExecContext{RunID: "run1", Turn: 1})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.OK() {
		t.Fatalf("Execute() = ok, want policy violation")
	}
	if res.Err.Kind != ErrorKindPolicy {
		t.Fatalf("kind = %q, want %q", res.Err.Kind, ErrorKindPolicy)
	}
	if res.Err.Message != policyViolationMessage {
		t.Fatalf("message = %q", res.Err.Message)
	}
}

func TestWasmEngineSilentModuleIsInterfaceError(t *testing.T) {
	engine, _ := newTestWasmEngine(t)
	// A single nop: returns without calling emit_transaction.
	unit := CodeUnit{Language: "wasm", Source: skillModule([]byte{0x01}, nil)}

	res, err := engine.Execute(context.Background(), unit, 5*time.Second, ExecContext{RunID: "run1", Turn: 1})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.OK() || res.Err.Kind != ErrorKindInterface {
		t.Fatalf("result = %+v, want interface error", res)
	}
}

func TestWasmEngineMissingEntryExport(t *testing.T) {
	engine, _ := newTestWasmEngine(t)
	empty := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	res, err := engine.Execute(context.Background(), CodeUnit{Language: "wasm", Source: empty},
		5*time.Second, ExecContext{RunID: "run1", Turn: 1})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.OK() || res.Err.Kind != ErrorKindInterface {
		t.Fatalf("result = %+v, want interface error", res)
	}
}

func TestWasmEngineRejectsInvalidModule(t *testing.T) {
	engine, _ := newTestWasmEngine(t)

	res, err := engine.Execute(context.Background(), CodeUnit{Language: "wasm", Source: []byte("not wasm")},
		5*time.Second, ExecContext{RunID: "run1", Turn: 1})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.OK() || res.Err.Kind != ErrorKindCompile {
		t.Fatalf("result = %+v, want compile error", res)
	}
	if len(res.Err.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(res.Err.Diagnostics))
	}
}

func TestFinishEmit(t *testing.T) {
	if res := finishEmit(&emitState{}); res.Err == nil || res.Err.Kind != ErrorKindInterface {
		t.Fatalf("no emit: %+v, want interface error", res)
	}
	if res := finishEmit(&emitState{calls: 2}); res.Err == nil || res.Err.Kind != ErrorKindPolicy {
		t.Fatalf("double emit: %+v, want policy violation", res)
	}
	if res := finishEmit(&emitState{calls: 1, payload: []byte("!!!")}); res.Err == nil || res.Err.Kind != ErrorKindInterface {
		t.Fatalf("bad base64: %+v, want interface error", res)
	}
	if res := finishEmit(&emitState{calls: 1, payload: nil}); res.Err == nil || res.Err.Kind != ErrorKindInterface {
		t.Fatalf("empty payload: %+v, want interface error", res)
	}
	res := finishEmit(&emitState{calls: 1, payload: []byte(" AQID\n")})
	if !res.OK() || !bytes.Equal(res.SerializedTx, []byte{1, 2, 3}) {
		t.Fatalf("valid payload: %+v, want [1 2 3]", res)
	}
}
