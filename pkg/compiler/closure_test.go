package compiler

import (
	"strings"
	"testing"
)

func TestClosureWithoutCaptures(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let square: function = function(x: i32): i32 { return x * x; };
			return square(4);
		}
	`)
	assertContains(t, code, "int32_t __lambda_0(int32_t x, int32_t dummy) {")
	assertContains(t, code, "return (x * x);")
	assertContains(t, code, "void* square = __lambda_0;")
	assertNotContains(t, code, "__cap_0_")
}

func TestClosureCapture(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let multiplier: i32 = 10;
			let scale: function = function(x: i32): i32 { return x * multiplier; };
			let result: i32 = scale(5);
			return result;
		}
	`)
	// one global cell per capture, aliased inside the lambda body
	assertContains(t, code, "int32_t __cap_0_multiplier;")
	assertContains(t, code, "#define multiplier __cap_0_multiplier")
	assertContains(t, code, "#undef multiplier")
	assertContains(t, code, "int32_t __lambda_0(int32_t x, int32_t dummy) {")
	assertContains(t, code, "return (x * multiplier);")

	// evaluation stores the captured value, then yields the pointer
	assertContains(t, code, "void* scale = (__cap_0_multiplier = multiplier, (void*)__lambda_0);")

	// calls go through the uniform two-argument ABI
	assertContains(t, code, "int32_t result = ((int32_t(*)(int32_t, int32_t))scale)(5, 0);")
}

func TestClosureCaptureCellPrecedesLambda(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let base: i32 = 1;
			let f: function = function(x: i32): i32 { return x + base; };
			return f(0);
		}
	`)
	cell := strings.Index(code, "int32_t __cap_0_base;")
	def := strings.Index(code, "int32_t __lambda_0(")
	use := strings.Index(code, "void* f = (")
	if cell == -1 || def == -1 || use == -1 || !(cell < def && def < use) {
		t.Errorf("layout: cell=%d lambda=%d use=%d, want cell < lambda < use", cell, def, use)
	}
}

func TestClosureMultipleCapturesSorted(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let zebra: i32 = 1;
			let apple: i32 = 2;
			let f: function = function(x: i32): i32 { return x + zebra + apple; };
			return f(0);
		}
	`)
	assertContains(t, code, "int32_t __cap_0_apple;")
	assertContains(t, code, "int32_t __cap_0_zebra;")
	assertContains(t, code, "(__cap_0_apple = apple, __cap_0_zebra = zebra, (void*)__lambda_0)")
}

func TestClosureStringCapture(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let prefix: string = ">> ";
			let f: function = function(x: i32): i32 {
				print(prefix);
				return x;
			};
			return f(1);
		}
	`)
	assertContains(t, code, "char* __cap_0_prefix;")
	assertContains(t, code, `printf("%s\n", prefix);`)
}

func TestClosureDoesNotCaptureGlobalsOrParams(t *testing.T) {
	code := compileSource(t, `
		function helper(v: i32): i32 { return v; }
		function main(): i32 {
			let f: function = function(x: i32): i32 { return helper(x); };
			return f(1);
		}
	`)
	assertNotContains(t, code, "__cap_0_helper")
	assertNotContains(t, code, "__cap_0_x")
	assertContains(t, code, "void* f = __lambda_0;")
	assertContains(t, code, "return helper(x);")
}

func TestClosureDoesNotCaptureFileScopeVariables(t *testing.T) {
	code := compileSource(t, `
		let base: i32 = 5;
		function main(): i32 {
			let f: function = function(x: i32): i32 { return x + base; };
			return f(1);
		}
	`)
	// file-scope variables are directly addressable; no capture cell
	assertNotContains(t, code, "__cap_0_base")
	assertContains(t, code, "void* f = __lambda_0;")
	assertContains(t, code, "return (x + base);")
}

func TestMultipleLambdasGetDistinctIndexes(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let a: function = function(x: i32): i32 { return x + 1; };
			let b: function = function(x: i32): i32 { return x + 2; };
			return 0;
		}
	`)
	assertContains(t, code, "int32_t __lambda_0(")
	assertContains(t, code, "int32_t __lambda_1(")
	assertContains(t, code, "void* a = __lambda_0;")
	assertContains(t, code, "void* b = __lambda_1;")
}

func TestClosureTooManyParamsRejected(t *testing.T) {
	_, err := Compile(`
		function main(): i32 {
			let f: function = function(a: i32, b: i32, c: i32): i32 { return a; };
			return 0;
		}
	`)
	if err == nil {
		t.Fatal("expected codegen error for a 3-parameter literal")
	}
	if !strings.Contains(err.Error(), "at most 2") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestClosureZeroParamsPadded(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let f: function = function(): i32 { return 42; };
			return f();
		}
	`)
	assertContains(t, code, "int32_t __lambda_0(int32_t dummy, int32_t dummy2) {")
	assertContains(t, code, "((int32_t(*)(int32_t, int32_t))f)(0, 0)")
}

func TestClosurePassedToHigherOrderFunction(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let nums: [i32] = [1, 2, 3];
			let doubled: [i32] = nums.map(function(x: i32): i32 { return x * 2; });
			return doubled.length;
		}
	`)
	assertContains(t, code, "array_map_i32(")
	assertContains(t, code, "__lambda_0")
	assertContains(t, code, "return (x * 2);")
}
