package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os/exec"
	"regexp"
	"strconv"

	"webshrink/models"
)

// CWebP converts images to WebP with the cwebp command line tool.
type CWebP struct {
	Path string
}

func NewCWebP(path string) *CWebP {
	if path == "" {
		path = "cwebp"
	}
	return &CWebP{Path: path}
}

func (c *CWebP) Load(ctx context.Context) error {
	if _, err := exec.LookPath(c.Path); err != nil {
		return fmt.Errorf("command '%s' not found in PATH: %w", c.Path, err)
	}
	if out, err := exec.CommandContext(ctx, c.Path, "-version").CombinedOutput(); err != nil {
		return fmt.Errorf("cwebp -version failed: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

// Args builds the cwebp command line. width and height of 0 skip resizing.
func (c *CWebP) Args(in, out string, o models.Options, width, height int) []string {
	args := []string{
		"-q", strconv.Itoa(o.Quality),
		"-m", strconv.Itoa(o.Speed),
		"-mt",
		"-progress",
	}
	if width > 0 || height > 0 {
		args = append(args, "-resize", strconv.Itoa(width), strconv.Itoa(height))
	}
	return append(args, in, "-o", out)
}

func (c *CWebP) Transcode(ctx context.Context, req Request, onProgress ProgressFunc) ([]byte, error) {
	if req.Format != models.FormatWebP {
		return nil, fmt.Errorf("cwebp backend cannot produce %s", req.Format)
	}

	width, height := 0, 0
	if req.Options.MaxWidth > 0 || req.Options.MaxHeight > 0 {
		// unknown source formats are passed through unresized
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(req.Input)); err == nil {
			width, height = fitWithin(cfg.Width, cfg.Height, req.Options.MaxWidth, req.Options.MaxHeight)
		}
	}

	ws, err := newWorkspace(req, req.Format.Extension())
	if err != nil {
		return nil, err
	}
	defer ws.cleanup()

	cmd := exec.CommandContext(ctx, c.Path, c.Args(ws.input, ws.output, req.Options, width, height)...)
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start cwebp: %w", err)
	}

	var stderr bytes.Buffer
	parseCWebPProgress(io.TeeReader(stderrPipe, &stderr), onProgress)

	if err := cmd.Wait(); err != nil {
		return nil, commandError(ctx, "cwebp", err, &stderr)
	}
	return ws.readOutput()
}

var percentPattern = regexp.MustCompile(`(\d{1,3})\s*%`)

// parseCWebPProgress picks the last "NN%" of each carriage-return separated
// update that cwebp -progress writes to stderr.
func parseCWebPProgress(r io.Reader, onProgress ProgressFunc) {
	reporter := &progressReporter{fn: onProgress}
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLinesOrCR)
	for scanner.Scan() {
		matches := percentPattern.FindAllSubmatch(scanner.Bytes(), -1)
		if len(matches) == 0 {
			continue
		}
		pct, err := strconv.Atoi(string(matches[len(matches)-1][1]))
		if err != nil {
			continue
		}
		reporter.report(pct)
	}
	_, _ = io.Copy(io.Discard, r)
}

// fitWithin returns the target size that fits (w, h) within the bounds
// keeping the aspect ratio, or 0, 0 if no shrinking is needed. A zero bound
// is unconstrained.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
	}
	if scale >= 1 {
		return 0, 0
	}
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
