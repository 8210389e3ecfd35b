package hook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
)

// promptTTY offers the approval prompt on the controlling terminal, in
// parallel with the remote channel. Returns an error when no terminal is
// attached (hook running headless), which the coordinator treats as
// "remote only".
//
// The returned cancel func closes the terminal to unblock the pending
// read; call it when another verdict source wins.
func promptTTY(ctx context.Context, path, command, reason string, verdicts chan<- verdict) (cancel func(), err error) {
	if path == "" {
		path = "/dev/tty"
	}
	tty, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open terminal: %w", err)
	}
	go promptLoop(ctx, tty, tty, command, reason, verdicts)
	return func() { tty.Close() }, nil
}

// promptLoop writes the prompt and reads answers until one parses. Split
// from promptTTY so tests can drive it with plain readers.
func promptLoop(ctx context.Context, in io.Reader, out io.Writer, command, reason string, verdicts chan<- verdict) {
	// Keep the prompt on one line even for pathological commands.
	display := runewidth.Truncate(command, 120, "…")
	fmt.Fprintf(out, "\n⚠ Command needs approval: %s\n  %s\n  Approve? [y/N] ", reason, display)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			select {
			case verdicts <- verdict{source: sourceTTY, approved: true}:
			case <-ctx.Done():
			}
			return
		case "n", "no":
			select {
			case verdicts <- verdict{source: sourceTTY, approved: false}:
			case <-ctx.Done():
			}
			return
		default:
			fmt.Fprint(out, "  Please answer y or n: ")
		}
	}
	// Read aborted: terminal closed by the winner, or EOF.
}
