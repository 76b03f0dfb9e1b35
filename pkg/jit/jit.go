// Package jit runs a generated LLVM module by writing it to disk
// alongside the runtime library and a small C trampoline, invoking
// clang, and executing the resulting binary. A mutex-guarded temp-file
// counter behind a global singleton serializes compile calls; clang
// compiles the rendered LLVM IR directly rather than generated C.
package jit

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"fixlang/pkg/rtlib"
)

type JIT struct {
	mu      sync.Mutex
	tempDir string
	counter int
}

// OptLevel is the backend optimization level, mirroring the four tiers
// of inkwell's OptimizationLevel enum (the knob the original threads
// into LLVM's own JIT execution engine) rendered onto clang's matching
// -O0/-O1/-O2/-O3 flags.
type OptLevel int

const (
	OptNone OptLevel = iota
	OptLess
	OptDefault
	OptAggressive
)

// flag returns the clang flag for this optimization level.
func (o OptLevel) flag() string {
	switch o {
	case OptNone:
		return "-O0"
	case OptLess:
		return "-O1"
	case OptDefault:
		return "-O2"
	case OptAggressive:
		return "-O3"
	default:
		panic("jit: unknown optimization level")
	}
}

// ParseOptLevel maps the CLI's none/less/default/aggressive spelling
// to an OptLevel, defaulting to OptDefault on an unrecognized name.
func ParseOptLevel(name string) OptLevel {
	switch name {
	case "none":
		return OptNone
	case "less":
		return OptLess
	case "aggressive":
		return OptAggressive
	default:
		return OptDefault
	}
}

type Result struct {
	IntValue int64
	Success  bool
	Error    string
}

var globalJIT *JIT
var jitOnce sync.Once

// Get returns the process-wide JIT instance, creating its temp
// directory on first use.
func Get() *JIT {
	jitOnce.Do(func() {
		dir, err := os.MkdirTemp("", "fixlang_jit_")
		if err == nil {
			globalJIT = &JIT{tempDir: dir}
		} else {
			globalJIT = &JIT{}
		}
	})
	return globalJIT
}

// IsAvailable reports whether clang is on PATH and a temp dir exists.
func (j *JIT) IsAvailable() bool {
	_, err := exec.LookPath("clang")
	return err == nil && j.tempDir != ""
}

// CompiledCode is a linked, runnable binary.
type CompiledCode struct {
	exePath string
}

// entryTrampoline is the C `main` wrapper. The compiled module exposes
// `fix_program_main` rather than `main` itself, so it can be linked
// into a binary whose actual entry point also runs the post-exit leak
// check without the compiler ever having to special-case "am I the
// top-level program" inside generated IR.
const entryTrampoline = `
#include <stdint.h>
#include <stdio.h>

extern int64_t fix_program_main(void);
extern void check_leak(void);

int main(void) {
    int64_t result = fix_program_main();
    check_leak();
    printf("%lld\n", (long long)result);
    return 0;
}
`

// Compile writes irText (a textual LLVM module defining
// fix_program_main) plus the runtime and trampoline to a fresh set of
// files under the JIT's temp directory, and links them with clang at
// the given optimization level.
func (j *JIT) Compile(irText string, sanitize bool, opt OptLevel) (*CompiledCode, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.tempDir == "" {
		return nil, fmt.Errorf("jit: no temp directory available")
	}

	j.counter++
	base := fmt.Sprintf("fixlang_jit_%d", j.counter)
	irPath := filepath.Join(j.tempDir, base+".ll")
	runtimePath := filepath.Join(j.tempDir, base+"_runtime.c")
	mainPath := filepath.Join(j.tempDir, base+"_main.c")
	exePath := filepath.Join(j.tempDir, base)

	if err := os.WriteFile(irPath, []byte(irText), 0644); err != nil {
		return nil, fmt.Errorf("jit: failed to write IR: %w", err)
	}
	if err := os.WriteFile(runtimePath, []byte(rtlib.Source(sanitize)), 0644); err != nil {
		return nil, fmt.Errorf("jit: failed to write runtime: %w", err)
	}
	if err := os.WriteFile(mainPath, []byte(entryTrampoline), 0644); err != nil {
		return nil, fmt.Errorf("jit: failed to write trampoline: %w", err)
	}

	cmd := exec.Command("clang", opt.flag(), "-o", exePath, irPath, runtimePath, mainPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("jit: clang failed: %w\n%s", err, output)
	}

	return &CompiledCode{exePath: exePath}, nil
}

// Run executes the compiled binary and parses its single line of
// stdout as the program's integer result.
func (cc *CompiledCode) Run() Result {
	if cc.exePath == "" {
		return Result{Success: false, Error: "no executable"}
	}
	cmd := exec.Command(cc.exePath)
	output, err := cmd.Output()
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	line := strings.TrimSpace(string(output))
	value, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to parse result %q: %v", line, err)}
	}
	return Result{IntValue: value, Success: true}
}

// Close removes the compiled binary and its sources.
func (cc *CompiledCode) Close() {
	if cc.exePath == "" {
		return
	}
	os.Remove(cc.exePath)
	os.Remove(cc.exePath + ".ll")
	os.Remove(cc.exePath + "_runtime.c")
	os.Remove(cc.exePath + "_main.c")
}
