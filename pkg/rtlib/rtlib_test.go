package rtlib

import (
	"strings"
	"testing"
)

func TestGenerateIncludesCoreSymbols(t *testing.T) {
	src := Source(false)
	for _, want := range []string{"retain_obj", "release_obj", "fix_array_new", "fix_array_read", "fix_array_write", "fix_array_write_unique"} {
		if !strings.Contains(src, want) {
			t.Fatalf("expected generated runtime to define %q", want)
		}
	}
}

func TestSanitizeAddsObjectIDAndLedger(t *testing.T) {
	src := Source(true)
	if !strings.Contains(src, "object_id") {
		t.Fatal("expected sanitize mode to add an object_id field to the control block")
	}
	if !strings.Contains(src, "fix_tracked") {
		t.Fatal("expected sanitize mode to emit an allocation ledger")
	}
}

func TestNonSanitizeStubsReportMallocAndCheckLeak(t *testing.T) {
	src := Source(false)
	if !strings.Contains(src, "int64_t report_malloc(void *obj, const char *name) { (void)obj; (void)name; return 0; }") {
		t.Fatal("expected a no-op report_malloc stub outside sanitize mode")
	}
}
