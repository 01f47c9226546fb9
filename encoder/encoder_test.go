package encoder

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"webshrink/config"
	"webshrink/models"
)

type stubBackend struct {
	loadErr error
	loads   int
	output  []byte
}

func (s *stubBackend) Load(ctx context.Context) error {
	s.loads++
	return s.loadErr
}

func (s *stubBackend) Transcode(ctx context.Context, req Request, onProgress ProgressFunc) ([]byte, error) {
	return s.output, nil
}

func TestMuxDispatch(t *testing.T) {
	video := &stubBackend{output: []byte("webm")}
	image := &stubBackend{output: []byte("webp")}
	mux := NewMux()
	mux.Register(models.FormatWebM, video)
	mux.Register(models.FormatWebP, image)

	out, err := mux.Transcode(context.Background(), Request{Format: models.FormatWebP}, nil)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if string(out) != "webp" {
		t.Errorf("Expected the webp backend, got %s", out)
	}

	if _, err := mux.Transcode(context.Background(), Request{Format: "gif"}, nil); !errors.Is(err, ErrNoBackend) {
		t.Errorf("Expected ErrNoBackend, got %v", err)
	}

	if got := mux.Formats(); !reflect.DeepEqual(got, []models.Format{models.FormatWebM, models.FormatWebP}) {
		t.Errorf("Unexpected formats %v", got)
	}
}

func TestMuxLoad(t *testing.T) {
	shared := &stubBackend{}
	mux := NewMux()
	mux.Register(models.FormatWebM, shared)
	mux.Register(models.FormatWebP, shared)

	if err := mux.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if shared.loads != 1 {
		t.Errorf("Shared backend should load once, loaded %d times", shared.loads)
	}

	broken := NewMux()
	broken.Register(models.FormatWebM, &stubBackend{loadErr: errors.New("libvpx missing")})
	err := broken.Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "libvpx missing") {
		t.Errorf("Expected load error to surface, got %v", err)
	}

	if err := NewMux().Load(context.Background()); err == nil {
		t.Error("Loading an empty mux should fail")
	}
}

func TestFFmpegArgs(t *testing.T) {
	f := NewFFmpeg("", "")
	args := f.Args("in.mp4", "out.webm", models.DefaultOptions(models.FormatWebM))
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i in.mp4",
		"-c:v libvpx-vp9",
		"-crf 30",
		"-b:v 0",
		"-cpu-used 4",
		"-c:a libopus",
		"-b:a 128k",
		"-progress pipe:1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected %q in args: %s", want, joined)
		}
	}
	if args[len(args)-1] != "out.webm" {
		t.Errorf("Output should be the last argument, got %s", args[len(args)-1])
	}
	if strings.Contains(joined, "-vf") {
		t.Error("No scale filter expected without size limits")
	}

	args = f.Args("in.mp4", "out.webm", models.Options{Quality: 20, Speed: 2, MaxWidth: 1280})
	joined = strings.Join(args, " ")
	if !strings.Contains(joined, "-vf scale='min(1280,iw)':-2") {
		t.Errorf("Expected width-only scale filter: %s", joined)
	}
}

func TestScaleFilter(t *testing.T) {
	if got := scaleFilter(0, 0); got != "" {
		t.Errorf("Expected no filter, got %s", got)
	}
	if got := scaleFilter(0, 720); got != "scale=-2:'min(720,ih)'" {
		t.Errorf("Unexpected height filter %s", got)
	}
	if got := scaleFilter(1920, 1080); !strings.Contains(got, "force_original_aspect_ratio=decrease") {
		t.Errorf("Expected aspect preserving filter, got %s", got)
	}
}

func TestParseFFmpegProgress(t *testing.T) {
	input := strings.Join([]string{
		"frame=1",
		"out_time_us=1000000",
		"out_time_ms=1000000",
		"out_time_us=5000000",
		"out_time_us=4000000",
		"out_time_us=garbage",
		"out_time_us=10000000",
		"progress=end",
	}, "\n")

	var got []int
	parseFFmpegProgress(strings.NewReader(input), 10_000_000, func(p int) { got = append(got, p) })

	want := []int{10, 50, 99}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseFFmpegProgressUnknownDuration(t *testing.T) {
	called := false
	parseFFmpegProgress(strings.NewReader("out_time_us=5000000\n"), 0, func(int) { called = true })
	if called {
		t.Error("No progress should be reported without a duration")
	}
}

func TestParseCWebPProgress(t *testing.T) {
	input := "Saving file 'out.webp'\rencoding [  5%]\rencoding [ 40%]\rencoding [ 40%]\rencoding [100%]\nOutput: 1234 bytes"

	var got []int
	parseCWebPProgress(strings.NewReader(input), func(p int) { got = append(got, p) })

	want := []int{5, 40, 99}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestCWebPArgs(t *testing.T) {
	c := NewCWebP("")
	args := c.Args("in.png", "out.webp", models.DefaultOptions(models.FormatWebP), 0, 0)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-q 80") || !strings.Contains(joined, "-m 4") {
		t.Errorf("Unexpected args: %s", joined)
	}
	if strings.Contains(joined, "-resize") {
		t.Errorf("Resize should be skipped: %s", joined)
	}

	args = c.Args("in.png", "out.webp", models.Options{Quality: 60, Speed: 6}, 800, 600)
	joined = strings.Join(args, " ")
	if !strings.Contains(joined, "-resize 800 600") {
		t.Errorf("Expected resize: %s", joined)
	}
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{4000, 3000, 2000, 0, 2000, 1500},
		{4000, 3000, 0, 1000, 1333, 1000},
		{4000, 3000, 1000, 1000, 1000, 750},
		{800, 600, 2000, 2000, 0, 0},
		{0, 0, 100, 100, 0, 0},
	}
	for _, tc := range cases {
		w, h := fitWithin(tc.w, tc.h, tc.maxW, tc.maxH)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("fitWithin(%d,%d,%d,%d) = %d,%d want %d,%d", tc.w, tc.h, tc.maxW, tc.maxH, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestScanLinesOrCR(t *testing.T) {
	data := []byte("a\rb\nc")
	var tokens []string
	for len(data) > 0 {
		adv, tok, _ := scanLinesOrCR(data, true)
		tokens = append(tokens, string(tok))
		data = data[adv:]
	}
	if strings.Join(tokens, ",") != "a,b,c" {
		t.Errorf("Unexpected tokens %v", tokens)
	}
}

func newTestRemote(url string) *Remote {
	r := NewRemote(url, 2)
	r.client.RetryWaitMin = time.Millisecond
	r.client.RetryWaitMax = 5 * time.Millisecond
	return r
}

func TestRemoteTranscode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/transcode":
			if r.URL.Query().Get("format") != "webp" || r.URL.Query().Get("quality") != "75" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			body, _ := io.ReadAll(r.Body)
			w.Write(append([]byte("converted:"), body...))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	remote := newTestRemote(server.URL + "/")
	if err := remote.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var progress []int
	out, err := remote.Transcode(context.Background(), Request{
		Input:   []byte("png"),
		Kind:    models.KindImage,
		Format:  models.FormatWebP,
		Options: models.Options{Quality: 75, Speed: 4},
	}, func(p int) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if string(out) != "converted:png" {
		t.Errorf("Unexpected output %q", out)
	}
	if len(progress) == 0 || progress[len(progress)-1] >= 100 {
		t.Errorf("Remote must not report completion itself, got %v", progress)
	}
}

func TestRemoteErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "unsupported codec", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	remote := newTestRemote(server.URL)
	if err := remote.Load(context.Background()); err == nil {
		t.Error("Expected load to fail on an unhealthy service")
	}

	calls.Store(0)
	_, err := remote.Transcode(context.Background(), Request{Input: []byte("x"), Format: models.FormatWebM}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported codec") {
		t.Errorf("Expected remote error text, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx responses should not be retried, got %d calls", calls.Load())
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default().Backend
	if _, ok := FromConfig(cfg).(*Mux); !ok {
		t.Error("Local config should build a mux")
	}
	cfg.Type = config.BackendRemote
	cfg.RemoteURL = "http://encoder.internal"
	if _, ok := FromConfig(cfg).(*Remote); !ok {
		t.Error("Remote config should build a remote backend")
	}
}
