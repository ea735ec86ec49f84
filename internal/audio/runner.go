package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// osRunner executes commands with os/exec.
type osRunner struct{}

// Run executes the command, returning stdout. Stderr is included in the
// error because ffmpeg reports diagnostics there.
func (osRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w, stderr: %s", name, err, stderr.String())
	}
	return stdout.Bytes(), nil
}
