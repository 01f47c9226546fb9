// Package export copies finished artifacts to registered destinations.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"webshrink/artifacts"
	"webshrink/credentials"
	"webshrink/logger"
	"webshrink/models"

	"golang.org/x/sync/errgroup"
)

// ErrNoDestinations is returned when Export is called without destination keys.
var ErrNoDestinations = errors.New("no export destinations given")

// Exporter resolves destination keys through the credentials store and
// writes artifacts to them.
type Exporter struct {
	creds   *credentials.Store
	baseDir string
}

// New returns an exporter. baseDir is the root of every "local" destination.
func New(creds *credentials.Store, baseDir string) *Exporter {
	return &Exporter{creds: creds, baseDir: baseDir}
}

// Result describes where one copy of an artifact ended up.
type Result struct {
	Destination string `json:"destination"`
	Type        string `json:"type"`
	Location    string `json:"location"`
}

// Export writes art to every destination in parallel. All destinations are
// resolved before anything is written; the first write error cancels the rest.
func (e *Exporter) Export(ctx context.Context, art artifacts.Artifact, keys ...string) ([]Result, error) {
	if len(keys) == 0 {
		return nil, ErrNoDestinations
	}
	dests := make([]models.Destination, len(keys))
	for i, key := range keys {
		dest, err := e.creds.GetCredentials(key)
		if err != nil {
			return nil, err
		}
		dests[i] = dest
	}

	results := make([]Result, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i := range dests {
		g.Go(func() error {
			loc, err := e.write(gctx, dests[i], art, bytes.NewReader(art.Data))
			if err != nil {
				return fmt.Errorf("export to %s destination %s: %w", dests[i].Type, keys[i], err)
			}
			results[i] = Result{Destination: keys[i], Type: dests[i].Type, Location: loc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Infof("Exported artifact of job %s to %d destination(s)", art.JobID, len(keys))
	return results, nil
}

// write dispatches on the destination type and returns the written location.
func (e *Exporter) write(ctx context.Context, dest models.Destination, art artifacts.Artifact, reader io.Reader) (string, error) {
	switch dest.Type {
	case "local":
		return UploadToLocal(ctx, e.baseDir, dest.Credentials, art.Filename, reader)
	case "s3":
		return UploadToS3WithCreds(ctx, dest.Credentials, art.Filename, art.MIME, reader)
	case "gcs":
		return UploadToGCSWithJSON(ctx, dest.Credentials, art.Filename, art.MIME, reader)
	case "sftp":
		return UploadToSFTPWithCreds(ctx, dest.Credentials, art.Filename, reader)
	}
	return "", fmt.Errorf("unknown backend type: %s", dest.Type)
}

// objectName joins an optional prefix from accessInfo with the file name.
// An explicit key in accessInfo[field] wins over both.
func objectName(accessInfo map[string]string, field, filename string) string {
	if name := accessInfo[field]; name != "" {
		return name
	}
	prefix := accessInfo["prefix"]
	if prefix == "" {
		return filename
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix + filename
	}
	return prefix + "/" + filename
}
