package compiler

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the closed set of HiLow type variants.
type TypeKind int

const (
	TypeI8 TypeKind = iota
	TypeI16
	TypeI32
	TypeI64
	TypeI128
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeU128
	TypeF32
	TypeF64
	TypeBool
	TypeString
	TypeNothing
	TypeUnknown
	TypeArray
	TypeFunction
	TypeObject
)

// scalarTypeNames maps annotation spellings to their scalar kind.
var scalarTypeNames = map[string]TypeKind{
	"i8":     TypeI8,
	"i16":    TypeI16,
	"i32":    TypeI32,
	"i64":    TypeI64,
	"i128":   TypeI128,
	"u8":     TypeU8,
	"u16":    TypeU16,
	"u32":    TypeU32,
	"u64":    TypeU64,
	"u128":   TypeU128,
	"f32":    TypeF32,
	"f64":    TypeF64,
	"bool":   TypeBool,
	"string": TypeString,
	"object": TypeObject,
}

// Type is a tagged variant describing a HiLow type annotation.
//
// For arrays, Len < 0 marks an unbounded (dynamically sized) array; the
// distinction decides which runtime representation lowering selects.
type Type struct {
	Kind   TypeKind
	Elem   *Type  // array element type
	Len    int    // array length; < 0 for unbounded
	Params []Type // function parameter types (empty when unspecified)
	Result *Type  // function result type (nil when unspecified)
}

func (t *Type) String() string {
	switch t.Kind {
	case TypeI8:
		return "i8"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeI128:
		return "i128"
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeU128:
		return "u128"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeNothing:
		return "nothing"
	case TypeUnknown:
		return "unknown"
	case TypeObject:
		return "object"
	case TypeArray:
		if t.Len >= 0 {
			return fmt.Sprintf("[%s; %d]", t.Elem, t.Len)
		}
		return fmt.Sprintf("[%s]", t.Elem)
	case TypeFunction:
		if len(t.Params) == 0 && t.Result == nil {
			return "function"
		}
		var b strings.Builder
		b.WriteString("function(")
		for i := range t.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(t.Params[i].String())
		}
		b.WriteString(")")
		if t.Result != nil {
			b.WriteString(": ")
			b.WriteString(t.Result.String())
		}
		return b.String()
	default:
		return fmt.Sprintf("Type(%d)", int(t.Kind))
	}
}
