package encoder

import (
	"webshrink/config"
	"webshrink/models"
)

// FromConfig builds the backend selected by cfg.Type. The local backend
// routes WebM to ffmpeg and WebP to cwebp.
func FromConfig(cfg config.BackendConfig) Backend {
	if cfg.Type == config.BackendRemote {
		return NewRemote(cfg.RemoteURL, cfg.RemoteRetries)
	}
	mux := NewMux()
	mux.Register(models.FormatWebM, NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath))
	mux.Register(models.FormatWebP, NewCWebP(cfg.CWebPPath))
	return mux
}
