// Package remote fetches remote entry documents over HTTP.
//
// An entry document is JSON. A module namespace carries its component under
// "default":
//
//	{"default": {"html": "<main>…</main>", "head": "<link …>"}}
//
// while a bare export is the component itself:
//
//	{"html": "<main>…</main>"}
//
// Any other shape is handed on undecoded and rejected when the module is
// normalized.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/shell/metrics"
)

const maxEntrySize = 4 << 20

// HTTPLoader loads one remote's entry document.
type HTTPLoader struct {
	name       string
	endpoint   string
	httpClient *http.Client

	Monitor *Monitor
}

// NewHTTPLoader creates a loader for the remote name served at endpoint.
// timeout bounds a single request; zero leaves it to the caller's context.
func NewHTTPLoader(name, endpoint string, timeout time.Duration) *HTTPLoader {
	return &HTTPLoader{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Monitor: NewMonitor(),
	}
}

// Name returns the remote's name.
func (l *HTTPLoader) Name() string {
	return l.name
}

// Load fetches and decodes the entry document. It satisfies domain.Loader.
func (l *HTTPLoader) Load(ctx context.Context) (domain.Module, error) {
	start := time.Now()

	mod, status, err := l.fetch(ctx)
	metrics.TransportRequests.WithLabelValues(l.name, status).Inc()
	if err != nil {
		l.Monitor.RecordFailure(err)
		return nil, err
	}

	latency := time.Since(start)
	metrics.TransportLatency.WithLabelValues(l.name).Observe(latency.Seconds())
	l.Monitor.RecordSuccess(latency)
	return mod, nil
}

func (l *HTTPLoader) fetch(ctx context.Context) (domain.Module, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return nil, "error", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "error", fmt.Errorf("%w: fetch %s: %v", domain.ErrRemoteUnavailable, l.name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	status := strconv.Itoa(resp.StatusCode)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEntrySize))
	if err != nil {
		return nil, status, fmt.Errorf("read entry: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, status, fmt.Errorf("%w: %s returned http %d", domain.ErrRemoteUnavailable, l.name, resp.StatusCode)
	}

	mod, err := Decode(body)
	if err != nil {
		return nil, status, fmt.Errorf("decode entry of %s: %w", l.name, err)
	}
	return mod, status, nil
}

type entry struct {
	HTML *string `json:"html"`
	Head string  `json:"head"`
}

// Decode turns an entry document into a module.
func Decode(body []byte) (domain.Module, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	if def, ok := raw["default"]; ok {
		var e entry
		if err := json.Unmarshal(def, &e); err == nil && e.HTML != nil {
			return domain.Namespace{Default: &Fragment{HTML: *e.HTML, Head: e.Head}}, nil
		}
	}

	var e entry
	if err := json.Unmarshal(body, &e); err == nil && e.HTML != nil {
		return &Fragment{HTML: *e.HTML, Head: e.Head}, nil
	}

	var anyShape map[string]any
	if err := json.Unmarshal(body, &anyShape); err != nil {
		return nil, err
	}
	return anyShape, nil
}
