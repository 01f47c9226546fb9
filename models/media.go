package models

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// MediaKind is the declared kind of an uploaded file.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindImage MediaKind = "image"
)

// ParseKind accepts "video" or "image" in any case.
func ParseKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindVideo:
		return KindVideo, nil
	case KindImage:
		return KindImage, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// Format is a conversion target. Each format belongs to exactly one media kind.
type Format string

const (
	FormatWebM Format = "webm"
	FormatWebP Format = "webp"
)

// ParseFormat accepts "webm" or "webp" in any case, with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	switch Format(s) {
	case FormatWebM:
		return FormatWebM, nil
	case FormatWebP:
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unknown target format %q", s)
}

// DefaultFormat returns the target format used for a media kind.
func DefaultFormat(kind MediaKind) Format {
	if kind == KindImage {
		return FormatWebP
	}
	return FormatWebM
}

// Kind returns the media kind the format encodes, or "" for unknown formats.
func (f Format) Kind() MediaKind {
	switch f {
	case FormatWebM:
		return KindVideo
	case FormatWebP:
		return KindImage
	}
	return ""
}

func (f Format) MIME() string {
	switch f {
	case FormatWebM:
		return "video/webm"
	case FormatWebP:
		return "image/webp"
	}
	return "application/octet-stream"
}

func (f Format) Extension() string {
	return "." + string(f)
}

// Input is the immutable source of a job.
type Input struct {
	Data     []byte
	Kind     MediaKind
	Filename string // original name, used to derive the download name
	MIME     string // declared content type, may be empty
}

func (in Input) Size() int64 {
	return int64(len(in.Data))
}

// OutputName derives the download filename: "clip.mp4" becomes "clip-optimized.webm".
func OutputName(filename string, format Format) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "output"
	}
	return stem + "-optimized" + format.Extension()
}

// ReductionPercent reports how much smaller the output is, rounded to one
// decimal. Negative values mean the output grew.
func ReductionPercent(inputSize, outputSize int64) float64 {
	if inputSize <= 0 {
		return 0
	}
	pct := float64(inputSize-outputSize) / float64(inputSize) * 100
	return math.Round(pct*10) / 10
}
