// Package irgen is an IR builder facade: typed wrappers around
// github.com/llir/llvm's low-level IR builder for pointer casts, field
// load/store by index, shared-object allocation, retain/release,
// destructor invocation and runtime-function calls.
package irgen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"fixlang/pkg/irgen/scope"
	"fixlang/pkg/layout"
)

// RuntimeFunc names one of the externally-linked runtime functions a
// Context can call via CallRuntime.
type RuntimeFunc int

const (
	RuntimeRetain RuntimeFunc = iota
	RuntimeRelease
	RuntimeReportMalloc
	RuntimeCheckLeak
	RuntimeArrayNew
	RuntimeArrayRead
	RuntimeArrayWrite
	RuntimeArrayWriteUnique
)

func (k RuntimeFunc) symbol() string {
	switch k {
	case RuntimeRetain:
		return "retain_obj"
	case RuntimeRelease:
		return "release_obj"
	case RuntimeReportMalloc:
		return "report_malloc"
	case RuntimeCheckLeak:
		return "check_leak"
	case RuntimeArrayNew:
		return "fix_array_new"
	case RuntimeArrayRead:
		return "fix_array_read"
	case RuntimeArrayWrite:
		return "fix_array_write"
	case RuntimeArrayWriteUnique:
		return "fix_array_write_unique"
	default:
		panic("irgen: unknown runtime function kind")
	}
}

// shared holds the state that every Context forked from the same
// compilation shares: the module under construction, the runtime
// function registry (append-only after initialization) and the
// destructor cache (append-only, memoized per object layout). Exactly
// one emission context owns the current basic-block cursor and Scope
// at a time; those live on Context itself, not here.
type shared struct {
	Module       *ir.Module
	Sanitize     bool
	GenericPtr   *types.PointerType
	CtrlBlock    types.Type
	LamFuncPtr   *types.PointerType
	MallocFunc   *ir.Func
	Runtimes     map[RuntimeFunc]*ir.Func
	Dtors        map[string]*ir.Func
	globalCount  int
	stats        Stats
}

// Stats counts how many retain/release calls the expression compiler
// actually emitted, for -v diagnostic output.
type Stats struct {
	RetainsEmitted  int
	ReleasesEmitted int
}

// Context is one emission context: a module-wide shared state plus a
// private basic-block cursor and Scope. A nested emission (a lambda's
// generated function body) gets its own Context via Fork, which moves
// a fresh Scope and block in while leaving Module/Runtimes/Dtors shared.
type Context struct {
	sh    *shared
	Block *ir.Block
	Scope *scope.Scope
}

// New creates the module-wide shared state and declares every runtime
// function up front (the registry is append-only after this point).
// sanitize enables the object-id control-block field and the
// report_malloc/check_leak calls around allocation and program exit.
func New(moduleName string, sanitize bool) *Context {
	m := ir.NewModule()
	m.SourceFilename = moduleName

	genericPtr := types.NewPointer(types.I8)
	dtorFuncType := types.NewFunc(types.Void, genericPtr)
	dtorPtrType := types.NewPointer(dtorFuncType)

	var ctrlBlock types.Type
	if sanitize {
		ctrlBlock = types.NewStruct(types.I64, dtorPtrType, types.I64)
	} else {
		ctrlBlock = types.NewStruct(types.I64, dtorPtrType)
	}

	lamFuncType := types.NewFunc(genericPtr, genericPtr, genericPtr)
	lamFuncPtr := types.NewPointer(lamFuncType)

	mallocFunc := m.NewFunc("malloc", genericPtr, ir.NewParam("size", types.I64))

	sh := &shared{
		Module:     m,
		Sanitize:   sanitize,
		GenericPtr: genericPtr,
		CtrlBlock:  ctrlBlock,
		LamFuncPtr: lamFuncPtr,
		MallocFunc: mallocFunc,
		Runtimes:   make(map[RuntimeFunc]*ir.Func),
		Dtors:      make(map[string]*ir.Func),
	}

	declareRuntime := func(kind RuntimeFunc, retType types.Type, paramTypes ...types.Type) {
		fn := m.NewFunc(kind.symbol(), retType)
		for _, pt := range paramTypes {
			fn.Params = append(fn.Params, ir.NewParam("", pt))
		}
		sh.Runtimes[kind] = fn
	}
	declareRuntime(RuntimeRetain, types.Void, genericPtr)
	declareRuntime(RuntimeRelease, types.Void, genericPtr)
	declareRuntime(RuntimeReportMalloc, types.I64, genericPtr, genericPtr)
	declareRuntime(RuntimeCheckLeak, types.Void)
	declareRuntime(RuntimeArrayNew, genericPtr, genericPtr, genericPtr)
	declareRuntime(RuntimeArrayRead, genericPtr, genericPtr, genericPtr)
	declareRuntime(RuntimeArrayWrite, genericPtr, genericPtr, genericPtr, genericPtr)
	declareRuntime(RuntimeArrayWriteUnique, genericPtr, genericPtr, genericPtr, genericPtr)

	return &Context{sh: sh, Scope: scope.New()}
}

// Fork starts a nested emission context (a fresh top-level IR function
// body) that shares this context's module, runtime registry and
// destructor cache but owns a fresh Scope and the given block cursor.
func (c *Context) Fork(block *ir.Block) *Context {
	return &Context{sh: c.sh, Block: block, Scope: scope.New()}
}

// Module returns the module under construction.
func (c *Context) Module() *ir.Module { return c.sh.Module }

// GenericPtrType returns the generic object-pointer type (i8*).
func (c *Context) GenericPtrType() *types.PointerType { return c.sh.GenericPtr }

// LamFuncPtrType returns the pointer-to-closure-function type,
// `i8* (i8*, i8*)*`.
func (c *Context) LamFuncPtrType() *types.PointerType { return c.sh.LamFuncPtr }

// Sanitize reports whether sanitizer mode (object-id tracking and the
// leak check) is enabled for this compilation.
func (c *Context) Sanitize() bool { return c.sh.Sanitize }

// NewBlock appends a fresh basic block to the function currently being
// built (the one owning c.Block) and returns it.
func (c *Context) NewBlock(name string) *ir.Block {
	parent := c.Block.Parent
	return parent.NewBlock(name)
}

// PointerCast casts v to the pointer type to, eliding the cast if v is
// already of that type.
func (c *Context) PointerCast(v value.Value, to types.Type) value.Value {
	if v.Type().Equal(to) {
		return v
	}
	return c.Block.NewBitCast(v, to)
}

// structPtrType returns the pointer-to-struct type for ot.
func (c *Context) structPtrType(ot layout.ObjectType) *types.PointerType {
	st := ot.ToStructType(c.sh.GenericPtr, c.sh.CtrlBlock, c.sh.LamFuncPtr)
	return types.NewPointer(st)
}

// LoadField casts obj to layout ot's struct-pointer type, GEPs field i,
// and loads it.
func (c *Context) LoadField(obj value.Value, ot layout.ObjectType, i int64) value.Value {
	st := ot.ToStructType(c.sh.GenericPtr, c.sh.CtrlBlock, c.sh.LamFuncPtr)
	ptr := c.PointerCast(obj, types.NewPointer(st))
	fieldPtr := c.Block.NewGetElementPtr(st, ptr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, i))
	return c.Block.NewLoad(st.Fields[i], fieldPtr)
}

// SetField is the store analogue of LoadField.
func (c *Context) SetField(obj value.Value, ot layout.ObjectType, i int64, val value.Value) {
	st := ot.ToStructType(c.sh.GenericPtr, c.sh.CtrlBlock, c.sh.LamFuncPtr)
	ptr := c.PointerCast(obj, types.NewPointer(st))
	fieldPtr := c.Block.NewGetElementPtr(st, ptr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, i))
	c.Block.NewStore(val, fieldPtr)
}

// PtrToControlBlock casts obj to a pointer to the control-block struct.
func (c *Context) PtrToControlBlock(obj value.Value) value.Value {
	return c.PointerCast(obj, types.NewPointer(c.sh.CtrlBlock))
}

// PtrToRefcnt returns a pointer to obj's refcount field (control-block
// field 0).
func (c *Context) PtrToRefcnt(obj value.Value) value.Value {
	ptr := c.PtrToControlBlock(obj)
	cb := c.sh.CtrlBlock
	return c.Block.NewGetElementPtr(cb, ptr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
}

// CallDtor loads the destructor pointer from obj's control block (field
// 1) and invokes it with obj.
func (c *Context) CallDtor(obj value.Value) {
	cb := c.sh.CtrlBlock
	ptr := c.PtrToControlBlock(obj)
	dtorFieldPtr := c.Block.NewGetElementPtr(cb, ptr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 1))
	dtorPtrType := cb.(*types.StructType).Fields[1]
	dtor := c.Block.NewLoad(dtorPtrType, dtorFieldPtr)
	genericObj := c.PointerCast(obj, c.sh.GenericPtr)
	c.Block.NewCall(dtor, genericObj)
}

// Apply loads the function pointer from offset 1 of funObj (a closure)
// and calls it with (argObj, funObj), marked as a tail call so every
// application compiles down to constant stack space.
func (c *Context) Apply(funObj, argObj value.Value) value.Value {
	lamObjType := layout.LamObjType(0)
	fnPtr := c.LoadField(funObj, lamObjType, 1)
	call := c.Block.NewCall(fnPtr, argObj, funObj)
	call.Tail = enum.TailTail
	return call
}

// Retain asserts obj has the generic object-pointer type and calls
// retain_obj.
func (c *Context) Retain(obj value.Value) {
	c.assertGenericPtr(obj)
	c.sh.stats.RetainsEmitted++
	c.CallRuntime(RuntimeRetain, obj)
}

// Release asserts obj has the generic object-pointer type and calls
// release_obj.
func (c *Context) Release(obj value.Value) {
	c.assertGenericPtr(obj)
	c.sh.stats.ReleasesEmitted++
	c.CallRuntime(RuntimeRelease, obj)
}

// Stats returns the accumulated retain/release counters for this
// compilation, shared across every Context forked from the same root.
func (c *Context) Stats() Stats { return c.sh.stats }

func (c *Context) assertGenericPtr(obj value.Value) {
	if !obj.Type().Equal(c.sh.GenericPtr) {
		panic(fmt.Sprintf("irgen: expected generic object pointer, got %s", obj.Type()))
	}
}

// CallRuntime invokes the runtime function kind with args.
func (c *Context) CallRuntime(kind RuntimeFunc, args ...value.Value) value.Value {
	fn, ok := c.sh.Runtimes[kind]
	if !ok {
		panic("irgen: runtime function not declared: " + kind.symbol())
	}
	return c.Block.NewCall(fn, args...)
}

// sizeOf computes sizeof(st) as an i64 by GEPing element 1 off a null
// pointer to st and converting the resulting address to an integer —
// the standard LLVM-frontend trick for computing a struct's size
// without consulting a target data layout.
func (c *Context) sizeOf(st types.Type) value.Value {
	nullPtr := constant.NewNull(types.NewPointer(st))
	sizePtr := c.Block.NewGetElementPtr(st, nullPtr, constant.NewInt(types.I64, 1))
	return c.Block.NewPtrToInt(sizePtr, types.I64)
}

// globalString interns s as a module-level constant C string and
// returns a pointer to its first byte, for the debug label passed to
// report_malloc under sanitizer mode.
func (c *Context) globalString(s string) value.Value {
	c.sh.globalCount++
	data := constant.NewCharArrayFromString(s + "\x00")
	g := c.sh.Module.NewGlobalDef(fmt.Sprintf("str.%d", c.sh.globalCount), data)
	g.Immutable = true
	return c.Block.NewGetElementPtr(data.Type(), g, constant.NewInt(types.I64, 0), constant.NewInt(types.I64, 0))
}

// AllocateSharedObj mallocs a record of shape ot, initializes its
// refcount to 1 and stores a pointer to ot's memoized destructor; under
// sanitizer mode it also registers the allocation and stores the
// returned object id. name is a short debug label (the literal's
// printable name, or a lambda's rendered source text) used only when
// sanitizer mode is on.
func (c *Context) AllocateSharedObj(ot layout.ObjectType, name string) value.Value {
	st := ot.ToStructType(c.sh.GenericPtr, c.sh.CtrlBlock, c.sh.LamFuncPtr)
	size := c.sizeOf(st)
	raw := c.Block.NewCall(c.sh.MallocFunc, size)
	obj := value.Value(raw)

	refcntPtr := c.PtrToRefcnt(obj)
	c.Block.NewStore(constant.NewInt(types.I64, 1), refcntPtr)

	cb := c.sh.CtrlBlock
	cbPtr := c.PtrToControlBlock(obj)
	dtorFieldPtr := c.Block.NewGetElementPtr(cb, cbPtr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 1))
	dtor := c.dtorFor(ot)
	c.Block.NewStore(dtor, dtorFieldPtr)

	if c.sh.Sanitize {
		namePtr := c.globalString(name)
		objID := c.CallRuntime(RuntimeReportMalloc, obj, namePtr)
		idFieldPtr := c.Block.NewGetElementPtr(cb, cbPtr, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 2))
		c.Block.NewStore(objID, idFieldPtr)
	}

	return obj
}

// dtorFor returns the memoized destructor function for ot, generating
// it the first time a given shape is requested. Destructors are shared
// across all allocations of the same layout.
func (c *Context) dtorFor(ot layout.ObjectType) *ir.Func {
	key := ot.Key()
	if fn, ok := c.sh.Dtors[key]; ok {
		return fn
	}

	fn := c.sh.Module.NewFunc("dtor."+key, types.Void, ir.NewParam("obj", c.sh.GenericPtr))
	entry := fn.NewBlock("entry")
	dtorCtx := c.Fork(entry)

	objParam := fn.Params[0]
	for _, idx := range ot.SubObjectIndices() {
		sub := dtorCtx.LoadField(objParam, ot, int64(idx))
		dtorCtx.Release(sub)
	}
	entry.NewRet(nil)

	c.sh.Dtors[key] = fn
	return fn
}
