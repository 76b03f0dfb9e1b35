package driver

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileEmitsFixProgramMainEntry(t *testing.T) {
	irText, err := Compile("add 3 5", false)
	require.NoError(t, err)
	require.Contains(t, irText, "fix_program_main")
	require.Contains(t, irText, "define i64")
}

func TestCompileIsDeterministic(t *testing.T) {
	a, err := Compile("let f = \\x -> add x 1 in f 41", false)
	require.NoError(t, err)
	b, err := Compile("let f = \\x -> add x 1 in f 41", false)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestCompileSanitizeEmbedsPrimitiveNames(t *testing.T) {
	irText, err := Compile("add 1 2", true)
	require.NoError(t, err)
	require.Contains(t, irText, "add")
}

func TestCompileRejectsMalformedSource(t *testing.T) {
	_, err := Compile("let x = in x", false)
	require.Error(t, err)
}

// requireClang skips end-to-end execution tests when no system clang
// is available to actually link and run the generated module.
func requireClang(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("clang"); err != nil {
		t.Skip("clang not available in this environment")
	}
}

func TestRunSourceAddition(t *testing.T) {
	requireClang(t)
	result, err := RunSource("add 3 5", false)
	require.NoError(t, err)
	require.Equal(t, int64(8), result)
}

func TestRunSourceLetAndIf(t *testing.T) {
	requireClang(t)
	result, err := RunSource("let x = 10 in if eq x 10 then 1 else 0", false)
	require.NoError(t, err)
	require.Equal(t, int64(1), result)
}

func TestRunSourceLambdaApplication(t *testing.T) {
	requireClang(t)
	result, err := RunSource(`let double = \x -> add x x in double 21`, false)
	require.NoError(t, err)
	require.Equal(t, int64(42), result)
}

func TestRunSourceArrayWriteThenRead(t *testing.T) {
	requireClang(t)
	src := `
		let arr = newArray 3 0;
		let arr = writeArray! arr 1 99;
		readArray arr 1
	`
	result, err := RunSource(src, false)
	require.NoError(t, err)
	require.Equal(t, int64(99), result)
}

// TestRunSourceFibonacciViaArray mirrors the array-based Fibonacci
// construction: build a memo array via a fix-bound loop closure and
// read back fib(30).
func TestRunSourceFibonacciViaArray(t *testing.T) {
	requireClang(t)
	src := `
		let arr = newArray 31 0;
		let arr = writeArray! arr 0 0;
		let arr = writeArray! arr 1 1;
		let loop = fix \f -> \arr -> \n ->
			if eq n 31 then
				arr
			else
				let x = readArray arr (add n (-1));
				let y = readArray arr (add n (-2));
				let arr = writeArray! arr n (add x y);
				f arr (add n 1);
		let fib = loop arr 2;
		readArray fib 30
	`
	result, err := RunSource(src, false)
	require.NoError(t, err)
	require.Equal(t, int64(832040), result)
}

func TestRunSourceSanitizeNoLeaks(t *testing.T) {
	requireClang(t)
	result, err := RunSource("add (add 1 2) (add 3 4)", true)
	require.NoError(t, err)
	require.Equal(t, int64(10), result)
}
