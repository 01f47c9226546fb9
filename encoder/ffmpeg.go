package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"webshrink/logger"
	"webshrink/models"
)

// FFmpeg converts video to WebM (VP9 + Opus) with the ffmpeg command line tool.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string

	probeDuration bool
}

func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// Load checks that ffmpeg exists and was built with libvpx-vp9. Without
// ffprobe the job still runs, but only reports progress at the end.
func (f *FFmpeg) Load(ctx context.Context) error {
	if _, err := exec.LookPath(f.FFmpegPath); err != nil {
		return fmt.Errorf("command '%s' not found in PATH: %w", f.FFmpegPath, err)
	}

	out, err := exec.CommandContext(ctx, f.FFmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to list ffmpeg encoders: %w", err)
	}
	if !bytes.Contains(out, []byte("libvpx-vp9")) {
		return fmt.Errorf("ffmpeg was built without libvpx-vp9")
	}
	if !bytes.Contains(out, []byte("libopus")) {
		logger.Warnf("ffmpeg has no libopus encoder, WebM audio may fail")
	}

	if _, err := exec.LookPath(f.FFprobePath); err != nil {
		logger.Warnf("ffprobe not found (%v), video progress will jump to completion", err)
		f.probeDuration = false
	} else {
		f.probeDuration = true
	}
	return nil
}

// Args builds the ffmpeg command line for one conversion.
func (f *FFmpeg) Args(in, out string, o models.Options) []string {
	args := []string{
		"-y", "-hide_banner",
		"-i", in,
		"-map", "0:v:0", "-map", "0:a:0?",
		"-c:v", "libvpx-vp9",
		"-crf", strconv.Itoa(o.Quality),
		"-b:v", "0",
		"-cpu-used", strconv.Itoa(o.Speed),
		"-row-mt", "1",
	}
	if vf := scaleFilter(o.MaxWidth, o.MaxHeight); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args,
		"-c:a", "libopus",
		"-b:a", "128k",
		"-progress", "pipe:1",
		"-nostats",
		"-f", "webm",
		out,
	)
	return args
}

// scaleFilter shrinks to fit within the bounds, never enlarges and keeps even dimensions.
func scaleFilter(maxW, maxH int) string {
	switch {
	case maxW > 0 && maxH > 0:
		return fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2", maxW, maxH)
	case maxW > 0:
		return fmt.Sprintf("scale='min(%d,iw)':-2", maxW)
	case maxH > 0:
		return fmt.Sprintf("scale=-2:'min(%d,ih)'", maxH)
	}
	return ""
}

func (f *FFmpeg) Transcode(ctx context.Context, req Request, onProgress ProgressFunc) ([]byte, error) {
	if req.Format != models.FormatWebM {
		return nil, fmt.Errorf("ffmpeg backend cannot produce %s", req.Format)
	}

	ws, err := newWorkspace(req, req.Format.Extension())
	if err != nil {
		return nil, err
	}
	defer ws.cleanup()

	var totalUs int64
	if f.probeDuration {
		if seconds, err := f.duration(ctx, ws.input); err == nil {
			totalUs = int64(seconds * 1e6)
		} else {
			logger.Debugf("ffprobe could not read duration: %v", err)
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cmd := exec.CommandContext(ctx, f.FFmpegPath, f.Args(ws.input, ws.output, req.Options)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	parseFFmpegProgress(stdout, totalUs, onProgress)

	if err := cmd.Wait(); err != nil {
		return nil, commandError(ctx, "ffmpeg", err, &stderr)
	}
	return ws.readOutput()
}

func (f *FFmpeg) duration(ctx context.Context, input string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		input,
	}
	out, err := exec.CommandContext(ctx, f.FFprobePath, args...).Output()
	if err != nil {
		return 0, err
	}
	value := strings.TrimSpace(string(out))
	if value == "" || value == "N/A" {
		return 0, fmt.Errorf("duration missing")
	}
	return strconv.ParseFloat(value, 64)
}

// parseFFmpegProgress reads "-progress pipe:1" key=value lines until r is
// drained. out_time_us and out_time_ms are both microseconds.
func parseFFmpegProgress(r io.Reader, totalUs int64, onProgress ProgressFunc) {
	reporter := &progressReporter{fn: onProgress}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || totalUs <= 0 {
			continue
		}
		if key != "out_time_us" && key != "out_time_ms" {
			continue
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			continue
		}
		reporter.report(int(float64(us) / float64(totalUs) * 100))
	}
	// drain so ffmpeg never blocks on a full pipe
	_, _ = io.Copy(io.Discard, r)
}
