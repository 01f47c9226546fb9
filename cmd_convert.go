package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"webshrink/config"
	"webshrink/engine"
	"webshrink/failures"
	"webshrink/logger"
	"webshrink/models"
	"webshrink/progress"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type convertOptions struct {
	kind      string
	format    string
	quality   int
	speed     int
	maxWidth  int
	maxHeight int
	output    string
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert one file locally and write the result next to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runConvert(cmd.Context(), cfg, args[0], opts, cmd.Flags().Changed)
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", "", "Media kind (video or image); inferred from the file when empty")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Target format (webm or webp)")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, qualityHelp())
	cmd.Flags().IntVar(&opts.speed, "speed", 0, speedHelp())
	cmd.Flags().IntVar(&opts.maxWidth, "max-width", 0, "Downscale to at most this width")
	cmd.Flags().IntVar(&opts.maxHeight, "max-height", 0, "Downscale to at most this height")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path (default: <name>-optimized.<format> next to FILE)")
	return cmd
}

func qualityHelp() string {
	crfLo, crfHi := models.QualityRange(models.FormatWebM)
	qLo, qHi := models.QualityRange(models.FormatWebP)
	return fmt.Sprintf("Quality: webm CRF %d-%d (lower is better, default %d), webp %d-%d (higher is better, default %d)",
		crfLo, crfHi, models.DefaultVideoCRF, qLo, qHi, models.DefaultImageQuality)
}

func speedHelp() string {
	vLo, vHi := models.SpeedRange(models.FormatWebM)
	iLo, iHi := models.SpeedRange(models.FormatWebP)
	return fmt.Sprintf("Encoder speed: webm cpu-used %d-%d (higher is faster), webp method %d-%d (higher is smaller and slower)",
		vLo, vHi, iLo, iHi)
}

func runConvert(ctx context.Context, cfg *config.Config, path string, opts convertOptions, changed func(string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	in := models.Input{Data: data, Filename: filepath.Base(path)}
	if opts.kind != "" {
		if in.Kind, err = models.ParseKind(opts.kind); err != nil {
			return err
		}
	} else {
		in.Kind = detectKind(path, data)
	}

	format := models.DefaultFormat(in.Kind)
	if opts.format != "" {
		if format, err = models.ParseFormat(opts.format); err != nil {
			return err
		}
	}
	jobOpts := models.DefaultOptions(format)
	if changed("quality") {
		jobOpts.Quality = opts.quality
	}
	if changed("speed") {
		jobOpts.Speed = opts.speed
	}
	if changed("max-width") {
		jobOpts.MaxWidth = opts.maxWidth
	}
	if changed("max-height") {
		jobOpts.MaxHeight = opts.maxHeight
	}

	// one-shot conversions keep nothing on disk
	local := *cfg
	local.Artifacts.Backend = config.ArtifactsMemory
	eng, err := engine.New(ctx, &local, engine.Deps{})
	if err != nil {
		return err
	}
	defer eng.Close(context.Background())

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.EnsureReady(runCtx); err != nil {
		return err
	}
	id, err := eng.Submit(in, format, jobOpts)
	if err != nil {
		return err
	}
	logger.Debugf("Submitted job %s for %s", id, path)

	sub, err := eng.Subscribe(id)
	if err != nil {
		return err
	}
	last, err := followJob(runCtx, sub, in.Filename)
	if errors.Is(err, context.Canceled) {
		if _, cerr := eng.Cancel(id); cerr != nil {
			logger.Warnf("Failed to cancel job %s: %v", id, cerr)
		}
		return err
	}
	if err != nil {
		return err
	}

	snap, err := eng.GetJob(id)
	if err != nil {
		return err
	}
	switch last.State {
	case models.StateSucceeded:
	case models.StateFailed:
		return failures.Newf(last.Kind, "%s", last.Detail)
	default:
		return fmt.Errorf("job %s ended %s", id, last.State)
	}

	art, err := eng.RetrieveArtifact(ctx, id)
	if err != nil {
		return err
	}
	out := opts.output
	if out == "" {
		out = filepath.Join(filepath.Dir(path), art.Filename)
	}
	if err := os.WriteFile(out, art.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	reduction := 0.0
	if snap.Output != nil {
		reduction = snap.Output.ReductionPercent
	}
	fmt.Printf("%s -> %s (%s -> %s, %.1f%% smaller, %s)\n",
		path, out, formatBytes(in.Size()), formatBytes(art.Size()), reduction, snap.Duration().Round(time.Millisecond))
	return nil
}

// followJob drains the job's events until the terminal one, drawing a
// progress bar on terminals and logging phase changes elsewhere.
func followJob(ctx context.Context, sub *progress.Subscription, name string) (progress.Event, error) {
	var bar *progressbar.ProgressBar
	if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(name),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
	}

	var last progress.Event
	var phase models.Phase
	for ev := range sub.All(ctx) {
		last = ev
		if bar != nil {
			_ = bar.Set(ev.Percent)
		} else if ev.Phase != phase {
			logger.Infof("%s: %s (%d%%)", name, ev.Phase, ev.Percent)
		}
		phase = ev.Phase
	}
	if bar != nil {
		_ = bar.Finish()
	}
	if !last.Terminal {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		return last, errors.New("event stream ended before the job finished")
	}
	return last, nil
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true, ".m4v": true, ".mpeg": true, ".mpg": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true, ".tif": true, ".tiff": true,
}

// detectKind guesses the media kind from the extension, then from the content.
// Unknown input is left empty so the engine rejects it as invalid.
func detectKind(path string, data []byte) models.MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExtensions[ext]:
		return models.KindVideo
	case imageExtensions[ext]:
		return models.KindImage
	}
	mime := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(mime, "video/"):
		return models.KindVideo
	case strings.HasPrefix(mime, "image/"):
		return models.KindImage
	}
	return ""
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
