package compiler

import (
	"reflect"
	"testing"
)

// litFromSource extracts the first function literal in a snippet.
func litFromSource(t *testing.T, src string) *FuncLit {
	t.Helper()
	program := parseSource(t, src)
	var found *FuncLit
	var scan func(e Expr)
	scan = func(e Expr) {
		if fn, ok := e.(*FuncLit); ok && found == nil {
			found = fn
		}
	}
	for _, s := range program.Statements {
		if fn, ok := s.(*FunctionDecl); ok {
			for _, bs := range fn.Body.Stmts {
				if d, ok := bs.(*VariableDecl); ok {
					scan(d.Init)
				}
			}
		}
	}
	if found == nil {
		t.Fatal("no function literal in snippet")
	}
	return found
}

func TestFreeVariables(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "CapturesOuterName",
			src: `function main(): i32 {
				let f = function(x: i32): i32 { return x * multiplier; };
				return 0;
			}`,
			want: []string{"multiplier"},
		},
		{
			name: "ParamsAreBound",
			src: `function main(): i32 {
				let f = function(x: i32, y: i32): i32 { return x + y; };
				return 0;
			}`,
			want: []string{},
		},
		{
			name: "LetBindsAfterItself",
			src: `function main(): i32 {
				let f = function(x: i32): i32 {
					let a = b;
					let b = a;
					return b;
				};
				return 0;
			}`,
			want: []string{"b"},
		},
		{
			name: "SortedAndDeduplicated",
			src: `function main(): i32 {
				let f = function(x: i32): i32 { return z + y + z; };
				return 0;
			}`,
			want: []string{"y", "z"},
		},
		{
			name: "BlockScopeDoesNotLeak",
			src: `function main(): i32 {
				let f = function(x: i32): i32 {
					if (x > 0) {
						let tmp = x;
					}
					return tmp;
				};
				return 0;
			}`,
			want: []string{"tmp"},
		},
		{
			name: "ForInBindsLoopVar",
			src: `function main(): i32 {
				let f = function(x: i32): i32 {
					let sum = 0;
					for (n in 0..x) {
						sum = sum + n + step;
					}
					return sum;
				};
				return 0;
			}`,
			want: []string{"step"},
		},
		{
			name: "NestedLiteralPropagates",
			src: `function main(): i32 {
				let f = function(x: i32): i32 {
					let inner = function(y: i32): i32 { return y + x + outer; };
					return 0;
				};
				return 0;
			}`,
			want: []string{"outer"},
		},
		{
			name: "FreeInCallAndIndex",
			src: `function main(): i32 {
				let f = function(x: i32): i32 { return helper(data[x]); };
				return 0;
			}`,
			want: []string{"data", "helper"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := litFromSource(t, tt.src)
			got := FreeVariables(fn)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
