package compiler

import (
	"strings"
	"testing"
)

func TestDeferRunsBeforeReturn(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			print("step 1");
			defer print("cleanup");
			print("step 2");
			return 0;
		}
	`)
	// the runtime library also contains "return 0;", so order checks must
	// stay inside the emitted main body
	body := code[strings.Index(code, "int32_t main() {"):]
	cleanup := `printf("%s\n", "cleanup");`
	if n := strings.Count(body, cleanup); n != 1 {
		t.Fatalf("deferred statement emitted %d times, want exactly 1", n)
	}
	step2 := strings.Index(body, `printf("%s\n", "step 2");`)
	flush := strings.Index(body, cleanup)
	ret := strings.Index(body, "return 0;")
	if !(step2 < flush && flush < ret) {
		t.Errorf("flush out of order: step2=%d flush=%d return=%d", step2, flush, ret)
	}
}

func TestDeferReverseOrder(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			defer print("first registered");
			defer print("last registered");
			return 0;
		}
	`)
	last := strings.Index(code, `printf("%s\n", "last registered");`)
	first := strings.Index(code, `printf("%s\n", "first registered");`)
	if last == -1 || first == -1 || last > first {
		t.Errorf("defers must flush in reverse registration order: last=%d first=%d", last, first)
	}
}

func TestDeferOncePerReturnPath(t *testing.T) {
	code := compileSource(t, `
		function test(val: i32): i32 {
			defer print("defer executed");
			if (val < 0) {
				print("early path");
				return 0 - 1;
			}
			print("normal path");
			return val;
		}
		function main(): i32 {
			return test(5);
		}
	`)
	// one flush per return path, no trailing duplicate after the final return
	if n := strings.Count(code, `printf("%s\n", "defer executed");`); n != 2 {
		t.Fatalf("deferred statement emitted %d times, want 2 (one per return path)", n)
	}
}

func TestDeferBlockScope(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let x: i32 = 0;
			{
				print("inside block");
				defer print("block cleanup");
				x += 1;
			}
			print("after block");
			return x;
		}
	`)
	if n := strings.Count(code, `printf("%s\n", "block cleanup");`); n != 1 {
		t.Fatalf("block defer emitted %d times, want 1", n)
	}
	flush := strings.Index(code, `printf("%s\n", "block cleanup");`)
	after := strings.Index(code, `printf("%s\n", "after block");`)
	inc := strings.Index(code, "x = (x + 1);")
	if !(inc < flush && flush < after) {
		t.Errorf("block defer must flush at block end: inc=%d flush=%d after=%d", inc, flush, after)
	}
}

func TestDeferFlushesOnBreakAndContinue(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			let i: i32 = 0;
			while (i < 10) {
				defer print("iteration end");
				i += 1;
				if (i ?= 3) {
					break;
				}
				if (i ?= 1) {
					continue;
				}
			}
			return i;
		}
	`)
	// flushed before break, before continue, and at the natural end of the body
	if n := strings.Count(code, `printf("%s\n", "iteration end");`); n != 3 {
		t.Fatalf("loop defer emitted %d times, want 3 (break, continue, fallthrough)", n)
	}
	breakIdx := strings.Index(code, "break;")
	firstFlush := strings.Index(code, `printf("%s\n", "iteration end");`)
	if firstFlush > breakIdx {
		t.Error("defer must flush before break")
	}
}

func TestDeferInsideFunctionScopeOnlyFlushesOnce(t *testing.T) {
	code := compileSource(t, `
		function main(): i32 {
			defer print("done");
			print("work");
			return 0;
		}
	`)
	body := code[strings.Index(code, "int32_t main() {"):]
	flush := strings.Index(body, `printf("%s\n", "done");`)
	ret := strings.Index(body, "return 0;")
	if flush == -1 || flush > ret {
		t.Errorf("flush must precede return: flush=%d return=%d", flush, ret)
	}
	if n := strings.Count(body, `printf("%s\n", "done");`); n != 1 {
		t.Errorf("got %d flushes, want 1", n)
	}
}
