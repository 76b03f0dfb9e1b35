// Package layout describes the field shape of every heap object the
// compiled program manipulates: the fixed control-block prefix, the
// function pointer of a closure, and the captured sub-object slots.
//
// A layout is a value, not a pointer and not a distinct nominal type
// per closure, so that two closures with the same capture arity and
// field kinds are structurally identical and can share one destructor.
package layout

import (
	"strings"

	"github.com/llir/llvm/ir/types"
)

// FieldKind is the shape of one field of a heap object.
type FieldKind int

const (
	// ControlBlock is the fixed refcount+destructor (+object id) prefix.
	ControlBlock FieldKind = iota
	// LambdaFunction is a pointer to a closure's generated function.
	LambdaFunction
	// SubObject is a pointer to another heap object (released by the dtor).
	SubObject
	// Int is a raw 64-bit payload integer.
	Int
	// Bool is a raw 8-bit payload boolean.
	Bool
)

func (k FieldKind) code() byte {
	switch k {
	case ControlBlock:
		return 'c'
	case LambdaFunction:
		return 'l'
	case SubObject:
		return 's'
	case Int:
		return 'i'
	case Bool:
		return 'b'
	default:
		panic("layout: unknown field kind")
	}
}

// ObjectType is an ordered sequence of field kinds. It is a value type:
// two ObjectTypes with the same fields in the same order are considered
// the same layout.
type ObjectType struct {
	Fields []FieldKind
}

// Key returns a string uniquely identifying this layout's shape, used to
// memoize destructors per shape.
func (o ObjectType) Key() string {
	var sb strings.Builder
	for _, f := range o.Fields {
		sb.WriteByte(f.code())
	}
	return sb.String()
}

// Sanitizer mode is toggled globally by the compiler driver, not per
// layout: the optional object-id field lives in the control-block
// struct type that irgen.New builds and passes to ToStructType, so an
// ObjectType never records it.

// IntObjType is the standard layout for a boxed 64-bit integer.
func IntObjType() ObjectType {
	return ObjectType{Fields: []FieldKind{ControlBlock, Int}}
}

// BoolObjType is the standard layout for a boxed 8-bit boolean.
func BoolObjType() ObjectType {
	return ObjectType{Fields: []FieldKind{ControlBlock, Bool}}
}

// LamObjType is the layout of a closure with the given number of
// captured sub-objects, appended in declaration order after the
// function pointer.
func LamObjType(numCaptures int) ObjectType {
	fields := []FieldKind{ControlBlock, LambdaFunction}
	for i := 0; i < numCaptures; i++ {
		fields = append(fields, SubObject)
	}
	return ObjectType{Fields: fields}
}

// ToStructType builds the LLVM struct type for this layout. genericPtr
// is the generic object-pointer type (i8*), ctrlBlock is the already
// built control-block struct type, and lamFuncPtr is the pointer-to-
// closure-function type; callers own those building blocks so this
// package never has to decide whether sanitizer mode is active.
func (o ObjectType) ToStructType(genericPtr *types.PointerType, ctrlBlock types.Type, lamFuncPtr *types.PointerType) *types.StructType {
	var fields []types.Type
	for _, f := range o.Fields {
		switch f {
		case ControlBlock:
			fields = append(fields, ctrlBlock)
		case LambdaFunction:
			fields = append(fields, lamFuncPtr)
		case SubObject:
			fields = append(fields, genericPtr)
		case Int:
			fields = append(fields, types.I64)
		case Bool:
			fields = append(fields, types.I8)
		}
	}
	return types.NewStruct(fields...)
}

// SubObjectIndices returns the field indices (0-based, matching the
// struct's own field numbering) holding SubObject pointers, in order.
// Used by the destructor builder to know which fields to release.
func (o ObjectType) SubObjectIndices() []int {
	var idx []int
	for i, f := range o.Fields {
		if f == SubObject {
			idx = append(idx, i)
		}
	}
	return idx
}
