// Package prober checks station liveness. A probe is a HEAD to settle
// redirects followed by a streaming GET with ICY headers, a short body sample
// to catch servers that answer audio URLs with HTML landing pages, and a
// classification into a live stream, a live playlist or one of the dead
// reasons. Runs execute on a bounded worker pool and report through an event
// channel so the caller can surface progress as it happens.
package prober

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"radio-manager/work/client"
	"radio-manager/work/config"
	"radio-manager/work/encoding"
	"radio-manager/work/logger"
	"radio-manager/work/metrics"
	"radio-manager/work/parser"
	"radio-manager/work/types"
	"radio-manager/work/utils"
)

const htmlSampleSize = 100

type EventKind int

const (
	EventResult EventKind = iota
	EventProgress
	EventSummary
	EventCancelled
)

// Target is one station to probe, carrying the caller's index so results can
// be applied to the right row regardless of completion order.
type Target struct {
	Index int
	URL   string
}

// Event is a single message on a probe run's channel. A run emits one Result
// and one Progress per completed target and terminates with exactly one
// Summary or Cancelled before the channel closes.
type Event struct {
	Kind        EventKind
	Index       int
	Result      types.ProbeResult
	StreamTitle string
	Checked     int
	Total       int
	Summary     types.RunSummary
}

// Prober probes stations with bounded concurrency.
type Prober struct {
	cfg        *config.Config
	headClient *client.HeaderSettingClient
	getClient  *client.HeaderSettingClient
	resolver   *parser.Resolver
	logger     *logger.Logger
}

func New(cfg *config.Config, resolver *parser.Resolver, log *logger.Logger) *Prober {
	return &Prober{
		cfg:        cfg,
		headClient: client.New(cfg, client.HeadTimeout),
		getClient:  client.New(cfg, cfg.CheckTimeout),
		resolver:   resolver,
		logger:     log,
	}
}

// Run starts probing the targets and returns the event channel. The channel
// must be drained; it closes after the terminal event. Cancelling the context
// stops submission promptly and abandons queued targets.
func (p *Prober) Run(ctx context.Context, targets []Target) <-chan Event {
	events := make(chan Event)
	go p.run(ctx, targets, events)
	return events
}

func (p *Prober) run(ctx context.Context, targets []Target, events chan<- Event) {
	defer close(events)

	metrics.ActiveProbeRuns.Inc()
	defer metrics.ActiveProbeRuns.Dec()

	// Settings are captured once at run start, so a config reload mid-run
	// never changes the bounds of probes already in flight.
	pcfg := types.ProbeConfig{
		MaxConcurrency: p.cfg.MaxConcurrency,
		TimeoutSeconds: int(p.cfg.CheckTimeout.Seconds()),
	}

	pool, err := ants.NewPool(pcfg.MaxConcurrency)
	if err != nil {
		p.logger.Error("failed to create probe pool: %v", err)
		events <- Event{Kind: EventCancelled}
		return
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		checked = xsync.NewCounter()
		live    = xsync.NewCounter()
		dead    = xsync.NewCounter()
	)

	total := len(targets)
	cancelled := false

	for _, t := range targets {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		t := t
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			if ctx.Err() != nil {
				return
			}

			start := time.Now()
			res, title := p.probe(ctx, t.URL)
			metrics.ProbeDuration.Observe(time.Since(start).Seconds())

			checked.Inc()
			if res.Live() {
				live.Inc()
			} else {
				dead.Inc()
			}
			observeOutcome(res)

			select {
			case events <- Event{Kind: EventResult, Index: t.Index, Result: res, StreamTitle: title}:
			case <-ctx.Done():
				return
			}
			select {
			case events <- Event{Kind: EventProgress, Checked: int(checked.Value()), Total: total}:
			case <-ctx.Done():
			}
		})
		if submitErr != nil {
			wg.Done()
			p.logger.Error("probe submit failed: %v", submitErr)
			cancelled = true
			break
		}
	}

	wg.Wait()

	if cancelled || ctx.Err() != nil {
		events <- Event{Kind: EventCancelled}
		return
	}

	events <- Event{Kind: EventSummary, Summary: types.RunSummary{
		Checked: int(checked.Value()),
		Live:    int(live.Value()),
		Dead:    int(dead.Value()),
	}}
}

func observeOutcome(res types.ProbeResult) {
	switch res.Kind {
	case types.ResultLiveStream:
		metrics.ProbesTotal.WithLabelValues("stream").Inc()
	case types.ResultLivePlaylist:
		metrics.ProbesTotal.WithLabelValues("playlist").Inc()
	default:
		metrics.ProbesTotal.WithLabelValues("dead").Inc()
		metrics.DeadStations.WithLabelValues(reasonLabel(res.Reason)).Inc()
	}
}

func reasonLabel(reason types.DeadReason) string {
	switch reason {
	case types.ReasonHTTPStatus:
		return "http_status"
	case types.ReasonConnError:
		return "conn_error"
	case types.ReasonTimeout:
		return "timeout"
	default:
		return "server_error"
	}
}

// probe checks one station URL. The second return is the currently playing
// track title when the server interleaves ICY metadata, repaired for charset
// mixups like the rest of the metadata.
func (p *Prober) probe(ctx context.Context, stationURL string) (types.ProbeResult, string) {
	if p.cfg.Debug {
		p.logger.Debug("probing %s", utils.LogURL(p.cfg, stationURL))
	}

	// HEAD settles redirect chains cheaply. Plenty of ICY servers reject or
	// ignore HEAD, so a failure here just means probing the original URL.
	finalURL := stationURL
	if headReq, err := http.NewRequestWithContext(ctx, http.MethodHead, stationURL, nil); err == nil {
		if headResp, err := p.headClient.Do(headReq); err == nil {
			finalURL = headResp.Request.URL.String()
			headResp.Body.Close()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return types.Dead(types.ReasonServerError), ""
	}

	resp, err := p.getClient.Do(req)
	if err != nil {
		return classifyError(err), ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.DeadStatus(resp.StatusCode), ""
	}

	contentType := resp.Header.Get("Content-Type")
	servedURL := resp.Request.URL.String()

	// A short body is fine, but a read that fails outright means the server
	// accepted the request and then stalled or dropped the stream.
	sample := make([]byte, htmlSampleSize)
	n, err := io.ReadFull(resp.Body, sample)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return classifyError(err), ""
	}
	sample = sample[:n]

	if isHTMLResponse(sample, contentType) {
		return types.DeadStatus(http.StatusNotFound), ""
	}

	info := p.collectMetadata(resp, contentType)

	if parser.LooksLikePlaylist(servedURL, contentType) {
		entries := p.resolver.Resolve(ctx, servedURL)
		if len(entries) == 0 {
			return types.Dead(types.ReasonServerError), ""
		}
		res := info
		res.Kind = types.ResultLivePlaylist
		res.EntryCount = len(entries)
		return res, ""
	}

	var title string
	if t, ok := harvestStreamTitle(resp.Body, resp.Header.Get("icy-metaint"), n); ok {
		title = encoding.Repair(t)
	}

	res := info
	res.Kind = types.ResultLiveStream
	return res, title
}

// collectMetadata pulls the ICY description headers off a live response.
func (p *Prober) collectMetadata(resp *http.Response, contentType string) types.ProbeResult {
	name := encoding.Repair(resp.Header.Get("icy-name"))
	genre := encoding.Repair(resp.Header.Get("icy-genre"))

	return types.ProbeResult{
		RealName: name,
		Genre:    genre,
		Bitrate:  resp.Header.Get("icy-br"),
		Codec:    NormalizeFormat(contentType),
	}
}

// isHTMLResponse detects audio URLs answered with an HTML page, which counts
// as a dead station even though the HTTP exchange succeeded.
func isHTMLResponse(sample []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}

	head := strings.ToLower(string(sample))
	for _, tag := range []string{"<html", "<!doctype", "<body", "<head", "<title"} {
		if strings.Contains(head, tag) {
			return true
		}
	}
	return false
}

// classifyError maps transport failures onto dead reasons.
func classifyError(err error) types.ProbeResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.Dead(types.ReasonTimeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.Dead(types.ReasonTimeout)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.Dead(types.ReasonConnError)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return types.Dead(types.ReasonConnError)
	}

	return types.Dead(types.ReasonServerError)
}
