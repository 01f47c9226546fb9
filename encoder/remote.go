package encoder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const maxRemoteErrorBody = 1024

// Remote delegates transcoding to an HTTP service:
//
//	GET  {base}/health                          → 200 when the service can accept work
//	POST {base}/transcode?format=&quality=&...  → body is the input, response body is the output
type Remote struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewRemote creates a robust HTTP client with retries
func NewRemote(baseURL string, retries int) *Remote {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil // the engine logs outcomes itself

	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (r *Remote) Load(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote encoder unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote encoder health returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Remote) Transcode(ctx context.Context, req Request, onProgress ProgressFunc) ([]byte, error) {
	q := url.Values{}
	q.Set("format", string(req.Format))
	q.Set("kind", string(req.Kind))
	q.Set("quality", strconv.Itoa(req.Options.Quality))
	q.Set("speed", strconv.Itoa(req.Options.Speed))
	if req.Options.MaxWidth > 0 {
		q.Set("max_width", strconv.Itoa(req.Options.MaxWidth))
	}
	if req.Options.MaxHeight > 0 {
		q.Set("max_height", strconv.Itoa(req.Options.MaxHeight))
	}
	if req.Filename != "" {
		q.Set("filename", req.Filename)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/transcode?"+q.Encode(), req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRemoteErrorBody))
		return nil, fmt.Errorf("remote encoder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// headers arrive once the service has finished encoding
	if onProgress != nil {
		onProgress(95)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("remote encoder returned an empty body")
	}
	return data, nil
}
