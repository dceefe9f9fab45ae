package prober

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"radio-manager/work/cache"
	"radio-manager/work/client"
	"radio-manager/work/config"
	"radio-manager/work/logger"
	"radio-manager/work/parser"
	"radio-manager/work/types"
)

func newTestProber(t *testing.T, maxConcurrency int, timeout time.Duration) *Prober {
	t.Helper()
	cfg := &config.Config{
		UserAgent:      "test-agent",
		MaxConcurrency: maxConcurrency,
		CheckTimeout:   timeout,
	}
	resolver := parser.New(client.New(cfg, timeout), cache.NewCache(time.Minute, false), cfg, logger.New("ERROR"))
	return New(cfg, resolver, logger.New("ERROR"))
}

// drain collects every event from a run and fails on a malformed stream: the
// terminal event must be exactly one Summary or Cancelled, right before close.
func drain(t *testing.T, events <-chan Event) (results []Event, terminal Event) {
	t.Helper()
	sawTerminal := false
	for ev := range events {
		switch ev.Kind {
		case EventResult:
			results = append(results, ev)
		case EventSummary, EventCancelled:
			if sawTerminal {
				t.Fatal("received more than one terminal event")
			}
			sawTerminal = true
			terminal = ev
		}
	}
	if !sawTerminal {
		t.Fatal("run closed without a terminal event")
	}
	return results, terminal
}

func audioHandler(name, genre, bitrate string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-name", name)
		w.Header().Set("icy-genre", genre)
		w.Header().Set("icy-br", bitrate)
		w.Write(make([]byte, 512))
	}
}

func TestProbeLiveStream(t *testing.T) {
	server := httptest.NewServer(audioHandler("Radio X", "Pop", "128"))
	defer server.Close()

	p := newTestProber(t, 1, 5*time.Second)
	res, _ := p.probe(context.Background(), server.URL)

	if res.Kind != types.ResultLiveStream {
		t.Fatalf("expected live stream, got %+v", res)
	}
	if res.RealName != "Radio X" || res.Codec != "MP3" || res.Bitrate != "128" || res.Genre != "Pop" {
		t.Errorf("unexpected metadata: %+v", res)
	}
}

func TestProbeMissingMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/aacp")
		w.Write(make([]byte, 512))
	}))
	defer server.Close()

	p := newTestProber(t, 1, 5*time.Second)
	res, _ := p.probe(context.Background(), server.URL)

	if res.Kind != types.ResultLiveStream {
		t.Fatalf("expected live stream, got %+v", res)
	}
	if res.RealName != "" || res.Codec != "AAC+" || res.Bitrate != "" {
		t.Errorf("unexpected metadata: %+v", res)
	}
}

func TestProbeHTMLPageIsDead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		fmt.Fprint(w, "<!DOCTYPE html><html><head><title>Not a stream</title></head></html>")
	}))
	defer server.Close()

	p := newTestProber(t, 1, 5*time.Second)
	res, _ := p.probe(context.Background(), server.URL)

	if res.Kind != types.ResultDead || res.Reason != types.ReasonHTTPStatus || res.StatusCode != 404 {
		t.Errorf("expected [404] for HTML page, got %+v", res)
	}
}

func TestProbeHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := newTestProber(t, 1, 5*time.Second)
	res, _ := p.probe(context.Background(), server.URL)

	if res.Kind != types.ResultDead || res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected [503], got %+v", res)
	}
}

func TestProbePlaylist(t *testing.T) {
	var mux http.ServeMux
	server := httptest.NewServer(&mux)
	defer server.Close()

	mux.HandleFunc("/stations.m3u", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/x-mpegurl")
		w.Header().Set("icy-name", "Multi")
		fmt.Fprint(w, "#EXTM3U\n#EXTINF:-1,A\nhttp://stream.example/a\n#EXTINF:-1,B\nhttp://stream.example/b\n")
	})

	p := newTestProber(t, 1, 5*time.Second)
	res, _ := p.probe(context.Background(), server.URL+"/stations.m3u")

	if res.Kind != types.ResultLivePlaylist {
		t.Fatalf("expected live playlist, got %+v", res)
	}
	if res.EntryCount != 2 || res.RealName != "Multi" {
		t.Errorf("unexpected playlist result: %+v", res)
	}
}

func TestProbeEmptyPlaylistIsDead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/x-mpegurl")
		fmt.Fprint(w, "#EXTM3U\n")
	}))
	defer server.Close()

	p := newTestProber(t, 1, 5*time.Second)
	res, _ := p.probe(context.Background(), server.URL+"/empty.m3u")

	if res.Kind != types.ResultDead || res.Reason != types.ReasonServerError {
		t.Errorf("expected [Error] for empty playlist, got %+v", res)
	}
}

func TestProbeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer server.Close()

	p := newTestProber(t, 1, time.Second)
	res, _ := p.probe(context.Background(), server.URL)

	if res.Kind != types.ResultDead || res.Reason != types.ReasonTimeout {
		t.Errorf("expected [Timeout], got %+v", res)
	}
}

func TestProbeStalledBodyTimesOut(t *testing.T) {
	// The server answers 200 with stream headers and then never sends a
	// byte of body. The stalled sample read must classify as a timeout,
	// not as a live stream described only by its headers.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-name", "Radio X")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(3 * time.Second)
	}))
	defer server.Close()

	p := newTestProber(t, 1, time.Second)
	res, _ := p.probe(context.Background(), server.URL)

	if res.Kind != types.ResultDead || res.Reason != types.ReasonTimeout {
		t.Errorf("expected [Timeout], got %+v", res)
	}
}

func TestProbeConnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := newTestProber(t, 1, time.Second)
	res, _ := p.probe(context.Background(), url)

	if res.Kind != types.ResultDead || res.Reason != types.ReasonConnError {
		t.Errorf("expected [ConnError], got %+v", res)
	}
}

func TestProbeStreamTitle(t *testing.T) {
	const metaint = 256
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-metaint", fmt.Sprint(metaint))

		meta := []byte("StreamTitle='Test Song';")
		padded := make([]byte, 32)
		copy(padded, meta)

		w.Write(make([]byte, metaint))
		w.Write([]byte{2})
		w.Write(padded)
	}))
	defer server.Close()

	p := newTestProber(t, 1, 5*time.Second)
	res, title := p.probe(context.Background(), server.URL)

	if res.Kind != types.ResultLiveStream {
		t.Fatalf("expected live stream, got %+v", res)
	}
	if title != "Test Song" {
		t.Errorf("expected stream title %q, got %q", "Test Song", title)
	}
}

func TestRunDeliversAllResults(t *testing.T) {
	server := httptest.NewServer(audioHandler("S", "G", "96"))
	defer server.Close()

	targets := []Target{
		{Index: 0, URL: server.URL + "/a"},
		{Index: 1, URL: server.URL + "/b"},
		{Index: 2, URL: server.URL + "/c"},
	}

	p := newTestProber(t, 2, 5*time.Second)
	results, terminal := drain(t, p.Run(context.Background(), targets))

	if len(results) != len(targets) {
		t.Fatalf("expected %d results, got %d", len(targets), len(results))
	}
	seen := make(map[int]bool)
	for _, ev := range results {
		seen[ev.Index] = true
	}
	for i := range targets {
		if !seen[i] {
			t.Errorf("missing result for target %d", i)
		}
	}

	if terminal.Kind != EventSummary {
		t.Fatalf("expected summary, got kind %d", terminal.Kind)
	}
	if terminal.Summary.Checked != 3 || terminal.Summary.Live != 3 || terminal.Summary.Dead != 0 {
		t.Errorf("unexpected summary: %+v", terminal.Summary)
	}
}

func TestRunSingleWorkerSerializes(t *testing.T) {
	active := make(chan struct{}, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case active <- struct{}{}:
		default:
			t.Error("more than one probe in flight with maxConcurrency=1")
		}
		time.Sleep(50 * time.Millisecond)
		<-active

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(make([]byte, 512))
	}))
	defer server.Close()

	targets := []Target{
		{Index: 0, URL: server.URL + "/a"},
		{Index: 1, URL: server.URL + "/b"},
		{Index: 2, URL: server.URL + "/c"},
	}

	p := newTestProber(t, 1, 5*time.Second)
	results, terminal := drain(t, p.Run(context.Background(), targets))

	if len(results) != 3 || terminal.Kind != EventSummary {
		t.Errorf("expected 3 results and a summary, got %d results, kind %d", len(results), terminal.Kind)
	}
}

func TestRunCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write(make([]byte, 512))
	}))
	defer server.Close()
	defer close(release)

	var targets []Target
	for i := 0; i < 10; i++ {
		targets = append(targets, Target{Index: i, URL: fmt.Sprintf("%s/%d", server.URL, i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := newTestProber(t, 2, 5*time.Second)
	events := p.Run(ctx, targets)

	time.Sleep(100 * time.Millisecond)
	cancel()

	_, terminal := drain(t, events)
	if terminal.Kind != EventCancelled {
		t.Errorf("expected cancelled terminal event, got kind %d", terminal.Kind)
	}
}

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"audio/mpeg", "MP3"},
		{"audio/aacp", "AAC+"},
		{"audio/x-mpegurl", "M3U"},
		{"application/vnd.apple.mpegurl", "M3U8"},
		{"audio/webm; codecs=opus", "WEBM"},
		{"audio/x-custom; charset=utf-8", "CUSTOM"},
		{"audio/mpeg; charset=utf-8", "MP3"},
		{"audio/ogg", "OGG"},
		{"", "unknown"},
		{"weird", "WEIRD"},
	}

	for _, tt := range tests {
		if got := NormalizeFormat(tt.contentType); got != tt.want {
			t.Errorf("NormalizeFormat(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}
