package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// graceDelay is how long a cancelled subprocess gets after SIGINT before it
// is killed.
const graceDelay = 100 * time.Millisecond

// run executes name with stdin fully prepared before start, so the child
// never races the parent for input. Cancelling ctx interrupts the process,
// then kills it after graceDelay.
func run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = graceDelay

	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%s: %w: %w", name, tts.ErrTimeout, ctxErr)
			}
			return nil, fmt.Errorf("%s: %w", name, ctxErr)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", name, tts.ErrEngineNotAvailable, err)
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no output, stderr: %s", name, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func lookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", name, tts.ErrEngineNotAvailable)
	}
	return nil
}

func checkText(text string, max int) error {
	if strings.TrimSpace(text) == "" {
		return tts.ErrEmptyText
	}
	if n := len([]rune(text)); n > max {
		return fmt.Errorf("%w: %d characters (max %d)", tts.ErrTextTooLong, n, max)
	}
	return nil
}
