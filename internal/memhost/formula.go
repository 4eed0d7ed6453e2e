package memhost

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// sizeEnv is the environment a size formula is evaluated against.
type sizeEnv struct {
	Index int `expr:"index"`
	Count int `expr:"count"`
	// Group is the index of the enclosing group child, or -1 for
	// top-level children.
	Group int `expr:"group"`
}

// SizeFormula computes a declared main size per index, e.g.
// `index % 5 == 0 ? 3 : 1`.
type SizeFormula struct {
	source  string
	program *vm.Program
}

// CompileSizeFormula compiles src. The expression may reference index,
// count and group, and must produce a number.
func CompileSizeFormula(src string) (*SizeFormula, error) {
	program, err := expr.Compile(src,
		expr.Env(sizeEnv{}),
		expr.AsFloat64(),
	)
	if err != nil {
		return nil, fmt.Errorf("compiling size formula %q: %w", src, err)
	}
	return &SizeFormula{source: src, program: program}, nil
}

// String returns the formula source.
func (f *SizeFormula) String() string { return f.source }

// Eval returns the size of index. Non-finite and negative results are
// reported as errors.
func (f *SizeFormula) Eval(index, count, group int) (float64, error) {
	out, err := expr.Run(f.program, sizeEnv{Index: index, Count: count, Group: group})
	if err != nil {
		return 0, fmt.Errorf("evaluating size formula at index %d: %w", index, err)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("size formula returned %T", out)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("size formula returned %v at index %d", v, index)
	}
	return v, nil
}
