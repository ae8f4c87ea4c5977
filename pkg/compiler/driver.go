package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ccPath is the C compiler the driver shells out to. Overridable for tests.
var ccPath = "gcc"

// BuildOptions controls the native build step.
type BuildOptions struct {
	// Optimization is the -O level passed to the C compiler, clamped to 0-3.
	Optimization int
	// KeepC leaves the intermediate .c file next to the output binary
	// instead of removing it after a successful build.
	KeepC bool
}

// Build compiles src and drives the system C compiler to produce a native
// executable at outputPath. The intermediate C file lands at outputPath.c
// and is removed on success unless KeepC is set; on a failed native build it
// stays behind for inspection.
func Build(ctx context.Context, src, outputPath string, opts BuildOptions) error {
	cCode, err := Compile(src)
	if err != nil {
		return err
	}

	cPath := outputPath + ".c"
	if err := os.WriteFile(cPath, []byte(cCode), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", cPath, err)
	}

	opt := opts.Optimization
	if opt < 0 {
		opt = 0
	}
	if opt > 3 {
		opt = 3
	}

	cmd := exec.CommandContext(ctx, ccPath,
		cPath,
		"-o", outputPath,
		fmt.Sprintf("-O%d", opt),
		"-std=c11",
		"-lm",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed:\n%s", filepath.Base(ccPath), strings.TrimSpace(string(out)))
	}

	if !opts.KeepC {
		if err := os.Remove(cPath); err != nil {
			return fmt.Errorf("removing %s: %w", cPath, err)
		}
	}
	return nil
}
