package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const stderrTail = 512

// workspace holds the temp files of one command-line transcode.
type workspace struct {
	dir    string
	input  string
	output string
}

// newWorkspace writes req.Input to a temp dir so external tools can seek in it.
func newWorkspace(req Request, outExt string) (*workspace, error) {
	dir, err := os.MkdirTemp("", "webshrink-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	inExt := filepath.Ext(req.Filename)
	if inExt == "" {
		inExt = ".bin"
	}
	ws := &workspace{
		dir:    dir,
		input:  filepath.Join(dir, "input"+inExt),
		output: filepath.Join(dir, "output"+outExt),
	}
	if err := os.WriteFile(ws.input, req.Input, 0o600); err != nil {
		ws.cleanup()
		return nil, fmt.Errorf("failed to write input: %w", err)
	}
	return ws, nil
}

func (w *workspace) readOutput() ([]byte, error) {
	data, err := os.ReadFile(w.output)
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("encoder produced an empty file")
	}
	return data, nil
}

func (w *workspace) cleanup() {
	_ = os.RemoveAll(w.dir)
}

// commandError prefers the context error so cancellation is never reported as a tool failure.
func commandError(ctx context.Context, name string, err error, stderr *bytes.Buffer) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	msg := strings.TrimSpace(stderr.String())
	if len(msg) > stderrTail {
		msg = "..." + msg[len(msg)-stderrTail:]
	}
	if msg == "" {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return fmt.Errorf("%s failed: %w: %s", name, err, msg)
}

// scanLinesOrCR splits on '\n' or '\r' so carriage-return progress meters
// produce one token per update.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = scanLinesOrCR

// progressReporter forwards only increases and holds 100 back for the caller.
type progressReporter struct {
	fn   ProgressFunc
	last int
}

func (p *progressReporter) report(percent int) {
	if percent > 99 {
		percent = 99
	}
	if percent <= p.last || p.fn == nil {
		return
	}
	p.last = percent
	p.fn(percent)
}
