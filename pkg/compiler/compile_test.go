package compiler

import (
	"strings"
	"testing"
)

// showcaseProgram exercises most language features in one translation unit.
const showcaseProgram = `
import helper from "lib.hl";

function demo_arrays(): i32 {
	let fixed: [i32; 5] = [10, 20, 30, 40, 50];
	let dynamic: [i32];
	dynamic.push(100);
	dynamic.push(200);
	let sum: i32 = 0;
	for (num in fixed) {
		sum += num;
	}
	return sum;
}

function demo_strings(): i32 {
	let text: string = "  Hello HiLow World  ";
	let trimmed: string = text.trim();
	let upper: string = trimmed.toUpperCase();
	let words: [string] = trimmed.split(" ");
	let joined: string = words.join("-");
	print(f"Joined: '{joined}'");
	return trimmed.length;
}

function demo_control_flow(): i32 {
	let result: i32 = 0;
	let i: i32 = 0;
	while (i < 5) {
		if (i % 2 ?= 0) {
			i += 1;
			continue;
		}
		result += i;
		i += 1;
	}
	switch (result) {
		case 4:
			result += 20;
			break;
		default:
			result += 5;
			break;
	}
	return result;
}

function demo_closures(): i32 {
	let multiplier: i32 = 3;
	let scale: function = function(x: i32): i32 {
		return x * multiplier;
	};
	defer print("closures done");
	return scale(7);
}

export function main(): i32 {
	print("=== showcase ===");
	let total: i32 = demo_arrays() + demo_strings() + demo_control_flow() + demo_closures();
	print(f"Total: {total}");
	return total;
}
`

func TestCompileShowcase(t *testing.T) {
	code, err := Compile(showcaseProgram)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	// every user function is forward declared, then defined
	for _, fn := range []string{"demo_arrays", "demo_strings", "demo_control_flow", "demo_closures", "main"} {
		decl := "int32_t " + fn + "();"
		def := "int32_t " + fn + "() {"
		if !strings.Contains(code, decl) {
			t.Errorf("missing forward declaration for %s", fn)
		}
		if !strings.Contains(code, def) {
			t.Errorf("missing definition for %s", fn)
		}
		if strings.Index(code, decl) > strings.Index(code, def) {
			t.Errorf("declaration of %s must precede its definition", fn)
		}
	}

	// closure machinery present
	assertContains(t, code, "int32_t __cap_0_multiplier;")
	assertContains(t, code, "(__cap_0_multiplier = multiplier, (void*)__lambda_0)")

	// feature-gated segments: no HOF, math, or Unknown use in this program
	assertNotContains(t, code, "array_map_i32")
	assertNotContains(t, code, "create_unknown")

	// f-strings in print position compile to single printf calls
	assertContains(t, code, `printf("Joined: '%s'\n", joined);`)
	assertContains(t, code, `printf("Total: %d\n", total);`)
}

func TestCompileStageErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantLex bool
		wantPar bool
	}{
		{name: "LexError", src: `let x = "unterminated`, wantLex: true},
		{name: "ParseError", src: `function f( { }`, wantPar: true},
		{name: "CodegenError", src: `function main(): i32 { return missing(); }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			switch {
			case tt.wantLex:
				if _, ok := err.(*LexError); !ok {
					t.Errorf("got %T, want *LexError", err)
				}
			case tt.wantPar:
				if _, ok := err.(*ParseError); !ok {
					t.Errorf("got %T, want *ParseError", err)
				}
			default:
				if _, ok := err.(*CodegenError); !ok {
					t.Errorf("got %T, want *CodegenError", err)
				}
			}
		})
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	first, err := Compile(showcaseProgram)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	second, err := Compile(showcaseProgram)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if first != second {
		t.Error("two compilations of the same source differ")
	}
}
