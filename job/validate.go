package job

import (
	"net/http"
	"strings"

	"webshrink/failures"
	"webshrink/models"
)

const sniffLen = 512

// validate runs every admission check. Nothing here touches the backend.
func (r *Registry) validate(in models.Input, format models.Format, opts models.Options) error {
	kind, err := models.ParseKind(string(in.Kind))
	if err != nil {
		return failures.Wrap(failures.KindInvalidInput, err)
	}
	if format.Kind() == "" {
		return failures.Newf(failures.KindInvalidInput, "unknown target format %q", format)
	}
	if format.Kind() != kind {
		return failures.Newf(failures.KindInvalidInput, "format %s cannot encode %s input", format, kind)
	}
	if len(in.Data) == 0 {
		return failures.New(failures.KindInvalidInput, "input is empty")
	}

	limit := r.limits.MaxInputSizeVideo
	if kind == models.KindImage {
		limit = r.limits.MaxInputSizeImage
	}
	if limit > 0 && in.Size() > limit {
		return failures.Newf(failures.KindInputTooLarge, "%s input is %d bytes, limit is %d", kind, in.Size(), limit)
	}

	if err := opts.Validate(format); err != nil {
		return failures.Wrap(failures.KindInvalidInput, err)
	}

	if declared := contentKind(in.MIME); declared != "" && declared != kind {
		return failures.Newf(failures.KindInvalidInput, "declared content type %s is not %s", in.MIME, kind)
	}
	head := in.Data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if sniffed := http.DetectContentType(head); contentKind(sniffed) != "" && contentKind(sniffed) != kind {
		return failures.Newf(failures.KindInvalidInput, "file content looks like %s, not %s", sniffed, kind)
	}
	return nil
}

// contentKind maps a MIME type to a media kind by its top-level type.
func contentKind(mime string) models.MediaKind {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "video/"):
		return models.KindVideo
	case strings.HasPrefix(mime, "image/"):
		return models.KindImage
	}
	return ""
}
