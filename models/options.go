package models

import "fmt"

// Options tunes the encoder for one job.
//
// For WebM, Quality is a VP9 CRF value (0-63, lower is better) and Speed maps
// to -cpu-used (0-8). For WebP, Quality is the cwebp quality factor (0-100)
// and Speed is the compression method (0-6). MaxWidth and MaxHeight of 0 keep
// the source dimensions.
type Options struct {
	Quality   int `json:"quality"`
	Speed     int `json:"speed"`
	MaxWidth  int `json:"max_width,omitempty"`
	MaxHeight int `json:"max_height,omitempty"`
}

const (
	DefaultVideoCRF     = 30
	DefaultVideoSpeed   = 4
	DefaultImageQuality = 80
	DefaultImageSpeed   = 4

	maxDimension = 16384
)

type optionRange struct {
	qualityMin, qualityMax int
	speedMin, speedMax     int
}

var optionRanges = map[Format]optionRange{
	FormatWebM: {0, 63, 0, 8},
	FormatWebP: {0, 100, 0, 6},
}

// QualityRange returns the accepted Quality bounds for f.
func QualityRange(f Format) (lo, hi int) {
	r := optionRanges[f]
	return r.qualityMin, r.qualityMax
}

// SpeedRange returns the accepted Speed bounds for f.
func SpeedRange(f Format) (lo, hi int) {
	r := optionRanges[f]
	return r.speedMin, r.speedMax
}

// DefaultOptions returns the documented defaults for a format.
func DefaultOptions(f Format) Options {
	switch f {
	case FormatWebM:
		return Options{Quality: DefaultVideoCRF, Speed: DefaultVideoSpeed}
	case FormatWebP:
		return Options{Quality: DefaultImageQuality, Speed: DefaultImageSpeed}
	}
	return Options{}
}

// Validate checks every option against the range of the given format.
func (o Options) Validate(f Format) error {
	r, ok := optionRanges[f]
	if !ok {
		return fmt.Errorf("unknown target format %q", f)
	}
	if o.Quality < r.qualityMin || o.Quality > r.qualityMax {
		return fmt.Errorf("quality %d out of range [%d, %d] for %s", o.Quality, r.qualityMin, r.qualityMax, f)
	}
	if o.Speed < r.speedMin || o.Speed > r.speedMax {
		return fmt.Errorf("speed %d out of range [%d, %d] for %s", o.Speed, r.speedMin, r.speedMax, f)
	}
	if o.MaxWidth < 0 || o.MaxWidth > maxDimension {
		return fmt.Errorf("max_width %d out of range [0, %d]", o.MaxWidth, maxDimension)
	}
	if o.MaxHeight < 0 || o.MaxHeight > maxDimension {
		return fmt.Errorf("max_height %d out of range [0, %d]", o.MaxHeight, maxDimension)
	}
	return nil
}
