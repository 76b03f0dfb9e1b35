// Package rtlib generates the fixed-shape C99 runtime support library
// linked alongside every compiled program: the retain/release pair the
// IR builder facade calls directly, the array primitives' backing
// storage, and (in sanitizer mode) an allocation ledger used to detect
// leaks once the program's `main` returns. The generated module mirrors
// the control-block layout pkg/layout describes: a leading i64 refcount
// and a destructor function pointer, with an optional trailing i64
// object id when sanitizing.
package rtlib

import (
	"fmt"
	"io"
	"strings"
)

// Generator writes the runtime's C99 source. The emit/emitRaw split
// keeps printf-style formatting out of raw C blocks that themselves
// contain '%'.
type Generator struct {
	w        io.Writer
	sanitize bool
}

func NewGenerator(w io.Writer, sanitize bool) *Generator {
	return &Generator{w: w, sanitize: sanitize}
}

func (g *Generator) emit(format string, args ...interface{}) {
	if len(args) == 0 {
		io.WriteString(g.w, format)
		return
	}
	fmt.Fprintf(g.w, format, args...)
}

func (g *Generator) emitRaw(s string) {
	io.WriteString(g.w, s)
}

// Generate writes the complete runtime translation unit to w.
func Generate(w io.Writer, sanitize bool) {
	g := NewGenerator(w, sanitize)
	g.generateHeader()
	g.generateControlBlock()
	g.generateRetainRelease()
	g.generateSanitizer()
	g.generateArrays()
}

func (g *Generator) generateHeader() {
	g.emitRaw(`/* generated runtime: reference counting + array primitives */
#include <stdint.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>

`)
	if g.sanitize {
		g.emitRaw("#define FIX_SANITIZE 1\n\n")
	}
}

func (g *Generator) generateControlBlock() {
	g.emitRaw(`typedef struct ctrl_block {
    int64_t refcount;
    void (*dtor)(void *);
`)
	if g.sanitize {
		g.emitRaw("    int64_t object_id;\n")
	}
	g.emitRaw("} ctrl_block;\n\n")
}

func (g *Generator) generateRetainRelease() {
	g.emitRaw(`void retain_obj(void *obj) {
    if (!obj) return;
    ctrl_block *cb = (ctrl_block *)obj;
    cb->refcount += 1;
}

void release_obj(void *obj) {
    if (!obj) return;
    ctrl_block *cb = (ctrl_block *)obj;
    cb->refcount -= 1;
    if (cb->refcount == 0) {
        cb->dtor(obj);
        free(obj);
    }
}

`)
}

// generateSanitizer emits the allocation ledger used by -sanitize mode.
// report_malloc assigns and records an object id at allocation time
// (called right after malloc, before the caller's fields are filled
// in); check_leak walks the ledger once the program has returned and
// prints any object whose slot was never freed. Grounded in the
// teacher's own leak-table idiom (a flat array of live pointers rather
// than a hash set, since allocation counts in test programs are small).
func (g *Generator) generateSanitizer() {
	if !g.sanitize {
		g.emitRaw(`int64_t report_malloc(void *obj, const char *name) { (void)obj; (void)name; return 0; }
void check_leak(void) {}

`)
		return
	}
	g.emitRaw(`#define FIX_MAX_TRACKED 1 << 20

typedef struct {
    void *obj;
    const char *name;
    int freed;
} tracked_alloc;

static tracked_alloc fix_tracked[FIX_MAX_TRACKED];
static int64_t fix_tracked_count = 0;

int64_t report_malloc(void *obj, const char *name) {
    int64_t id = fix_tracked_count++;
    if (id < FIX_MAX_TRACKED) {
        fix_tracked[id].obj = obj;
        fix_tracked[id].name = name;
        fix_tracked[id].freed = 0;
    }
    return id;
}

void check_leak(void) {
    for (int64_t i = 0; i < fix_tracked_count && i < FIX_MAX_TRACKED; i++) {
        ctrl_block *cb = (ctrl_block *)fix_tracked[i].obj;
        if (cb->refcount > 0) {
            fprintf(stderr, "leak: %s (refcount=%lld)\n",
                fix_tracked[i].name, (long long)cb->refcount);
        }
    }
}

`)
}

// generateArrays emits the four array runtime functions. Array storage
// is opaque to the core compiler: a fix_array is its own
// ctrl_block-prefixed object whose payload is a raw void*-per-slot
// buffer, so the dtor release sweep in pkg/irgen never has to know
// array internals. fix_array_write always copies (the persistent-update
// semantics the language requires); fix_array_write_unique
// mutates in place when the refcount is exactly 1, otherwise falls
// back to copying, which is what lets a program free arrays promptly
// without ever observing aliasing.
func (g *Generator) generateArrays() {
	g.emitRaw(`typedef struct fix_array {
    ctrl_block cb;
    int64_t len;
    void *slots[];
} fix_array;

static void fix_array_dtor(void *obj) {
    fix_array *a = (fix_array *)obj;
    for (int64_t i = 0; i < a->len; i++) {
        release_obj(a->slots[i]);
    }
}

static fix_array *fix_array_alloc(int64_t len) {
    fix_array *a = malloc(sizeof(fix_array) + (size_t)len * sizeof(void *));
    a->cb.refcount = 1;
    a->cb.dtor = fix_array_dtor;
    a->len = len;
    return a;
}

void *fix_array_new(void *size_obj, void *init_obj) {
    int64_t *size_payload = (int64_t *)((char *)size_obj + sizeof(ctrl_block));
    int64_t len = *size_payload;
    fix_array *a = fix_array_alloc(len);
    for (int64_t i = 0; i < len; i++) {
        retain_obj(init_obj);
        a->slots[i] = init_obj;
    }
    release_obj(size_obj);
    release_obj(init_obj);
    return a;
}

void *fix_array_read(void *arr_obj, void *idx_obj) {
    fix_array *a = (fix_array *)arr_obj;
    int64_t *idx_payload = (int64_t *)((char *)idx_obj + sizeof(ctrl_block));
    int64_t idx = *idx_payload;
    void *result = a->slots[idx];
    retain_obj(result);
    release_obj(idx_obj);
    release_obj(arr_obj);
    return result;
}

static fix_array *fix_array_copy(fix_array *a) {
    fix_array *copy = fix_array_alloc(a->len);
    for (int64_t i = 0; i < a->len; i++) {
        retain_obj(a->slots[i]);
        copy->slots[i] = a->slots[i];
    }
    return copy;
}

void *fix_array_write(void *arr_obj, void *idx_obj, void *val_obj) {
    fix_array *a = (fix_array *)arr_obj;
    int64_t *idx_payload = (int64_t *)((char *)idx_obj + sizeof(ctrl_block));
    int64_t idx = *idx_payload;
    fix_array *copy = fix_array_copy(a);
    release_obj(copy->slots[idx]);
    copy->slots[idx] = val_obj;
    release_obj(idx_obj);
    release_obj(arr_obj);
    return copy;
}

void *fix_array_write_unique(void *arr_obj, void *idx_obj, void *val_obj) {
    fix_array *a = (fix_array *)arr_obj;
    int64_t *idx_payload = (int64_t *)((char *)idx_obj + sizeof(ctrl_block));
    int64_t idx = *idx_payload;
    if (a->cb.refcount == 1) {
        release_obj(a->slots[idx]);
        a->slots[idx] = val_obj;
        release_obj(idx_obj);
        return a;
    }
    fix_array *copy = fix_array_copy(a);
    release_obj(copy->slots[idx]);
    copy->slots[idx] = val_obj;
    release_obj(idx_obj);
    release_obj(arr_obj);
    return copy;
}
`)
}

// Source returns the runtime as a string, for callers (pkg/jit) that
// need to write it alongside generated IR rather than stream it.
func Source(sanitize bool) string {
	var sb strings.Builder
	Generate(&sb, sanitize)
	return sb.String()
}
