package client

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// Strategy selects the endpoint for the next request.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyRandom     Strategy = "random"
	StrategyLeastBusy  Strategy = "least_busy"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRoundRobin, StrategyRandom, StrategyLeastBusy:
		return Strategy(s), nil
	case "":
		return StrategyRoundRobin, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", a2a.ErrBadEnum, s)
	}
}

const (
	defaultMaxRetries   = 3
	defaultChunkTimeout = 5 * time.Second
)

// endpoint tracks one backend plus its selection metrics.
type endpoint struct {
	client *Client

	mu          sync.Mutex
	requests    int64
	errors      int64
	lastLatency time.Duration
}

func (e *endpoint) begin() time.Time {
	e.mu.Lock()
	e.requests++
	e.mu.Unlock()
	return time.Now()
}

func (e *endpoint) finish(start time.Time, err error) {
	e.mu.Lock()
	e.lastLatency = time.Since(start)
	if err != nil {
		e.errors++
	}
	e.mu.Unlock()
}

// load is the selection score for least_busy; lower means less busy.
func (e *endpoint) load() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.requests) / (1 + e.lastLatency.Seconds())
}

// EndpointStats is a read-only snapshot of one endpoint's counters.
type EndpointStats struct {
	URL         string
	Requests    int64
	Errors      int64
	LastLatency time.Duration
}

// Distributed fans requests out over several A2A endpoints with endpoint
// selection, bounded retry and K-way aggregation.
type Distributed struct {
	mu        sync.Mutex
	endpoints []*endpoint
	strategy  Strategy
	next      int

	maxRetries   int
	chunkTimeout time.Duration
	rng          *rand.Rand
}

// DistributedOption configures the distributed client.
type DistributedOption func(*Distributed)

// WithStrategy sets the endpoint selection strategy.
func WithStrategy(s Strategy) DistributedOption {
	return func(d *Distributed) { d.strategy = s }
}

// WithMaxRetries bounds the endpoint-switching retries per stream.
func WithMaxRetries(n int) DistributedOption {
	return func(d *Distributed) { d.maxRetries = n }
}

// WithChunkTimeout sets the per-source wait for the next aggregation chunk.
func WithChunkTimeout(dur time.Duration) DistributedOption {
	return func(d *Distributed) { d.chunkTimeout = dur }
}

// NewDistributed builds a distributed client over the given base URLs.
func NewDistributed(urls []string, clientOpts []Option, opts ...DistributedOption) (*Distributed, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	d := &Distributed{
		strategy:     StrategyRoundRobin,
		maxRetries:   defaultMaxRetries,
		chunkTimeout: defaultChunkTimeout,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, url := range urls {
		c, err := New(url, clientOpts...)
		if err != nil {
			return nil, err
		}
		d.endpoints = append(d.endpoints, &endpoint{client: c})
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Close closes all endpoint clients.
func (d *Distributed) Close() error {
	for _, e := range d.endpoints {
		_ = e.client.Close()
	}
	return nil
}

// Stats returns per-endpoint counters.
func (d *Distributed) Stats() []EndpointStats {
	stats := make([]EndpointStats, 0, len(d.endpoints))
	for _, e := range d.endpoints {
		e.mu.Lock()
		stats = append(stats, EndpointStats{
			URL:         e.client.BaseURL(),
			Requests:    e.requests,
			Errors:      e.errors,
			LastLatency: e.lastLatency,
		})
		e.mu.Unlock()
	}
	return stats
}

// pick selects the next endpoint per the configured strategy.
func (d *Distributed) pick() *endpoint {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.strategy {
	case StrategyRandom:
		return d.endpoints[d.rng.Intn(len(d.endpoints))]
	case StrategyLeastBusy:
		best := d.endpoints[0]
		for _, e := range d.endpoints[1:] {
			if e.load() < best.load() {
				best = e
			}
		}
		return best
	default: // round robin
		e := d.endpoints[d.next%len(d.endpoints)]
		d.next++
		return e
	}
}

// SendMessage sends through one selected endpoint.
func (d *Distributed) SendMessage(ctx context.Context, msg a2a.Message) (a2a.Message, error) {
	e := d.pick()
	start := e.begin()
	reply, err := e.client.SendMessage(ctx, msg)
	e.finish(start, err)
	return reply, err
}

// Stream opens a message stream, switching endpoints on failure up to the
// retry budget. After a mid-stream failure the next attempt is prefixed with
// a retry preamble chunk so consumers can tell the transcripts apart.
func (d *Distributed) Stream(ctx context.Context, msg a2a.Message) (<-chan a2a.StreamChunk, error) {
	out := make(chan a2a.StreamChunk, 10)
	go func() {
		defer close(out)

		index := 0
		emit := func(content string, last bool) bool {
			chunk := a2a.StreamChunk{Content: content, Index: index, Append: index > 0, LastChunk: last}
			select {
			case out <- chunk:
				index++
				return true
			case <-ctx.Done():
				return false
			}
		}

		var lastErr error
		for attempt := 0; attempt <= d.maxRetries; attempt++ {
			e := d.pick()
			if attempt > 0 {
				slog.Debug("retrying stream on another endpoint",
					"attempt", attempt, "endpoint", e.client.BaseURL(), "error", lastErr)
				if !emit(fmt.Sprintf("\n[retrying via %s]\n", e.client.BaseURL()), false) {
					return
				}
			}

			start := e.begin()
			chunks, err := e.client.StreamMessage(ctx, msg)
			if err != nil {
				e.finish(start, err)
				lastErr = err
				continue
			}

			completed := false
			for chunk := range chunks {
				if chunk.LastChunk {
					completed = true
					emit("", true)
					break
				}
				if !emit(chunk.Content, false) {
					e.finish(start, ctx.Err())
					return
				}
			}
			e.finish(start, nil)
			if completed {
				return
			}
			lastErr = fmt.Errorf("%w: stream ended without terminator", a2a.ErrConnection)
		}

		emit("stream failed: "+lastErr.Error(), true)
	}()
	return out, nil
}

// Aggregate queries every endpoint concurrently and merges their streams
// into one channel of tagged chunk maps, closing with an aggregate_complete
// summary. Only sources whose stream reaches its terminator count as
// successful. A source that stalls past the chunk timeout is dropped; the
// remaining sources keep streaming.
func (d *Distributed) Aggregate(ctx context.Context, msg a2a.Message) (<-chan map[string]any, error) {
	out := make(chan map[string]any, 16)

	var mu sync.Mutex
	totalChunks := 0
	successful := 0

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range d.endpoints {
		e := e
		g.Go(func() error {
			start := e.begin()
			chunks, err := e.client.StreamMessage(gctx, msg)
			if err != nil {
				e.finish(start, err)
				slog.Debug("aggregation source failed", "endpoint", e.client.BaseURL(), "error", err)
				return nil
			}

			source := e.client.BaseURL()
			chunkIndex := 0
			timer := time.NewTimer(d.chunkTimeout)
			defer timer.Stop()

			for {
				timer.Reset(d.chunkTimeout)
				select {
				case <-gctx.Done():
					e.finish(start, gctx.Err())
					return nil
				case <-timer.C:
					e.finish(start, fmt.Errorf("chunk timeout"))
					slog.Debug("aggregation source timed out", "endpoint", source)
					return nil
				case chunk, open := <-chunks:
					if !open {
						// The stream died before its terminator: an error
						// frame or a dropped connection, not a success.
						e.finish(start, fmt.Errorf("%w: stream ended without terminator", a2a.ErrConnection))
						slog.Debug("aggregation source died mid-stream", "endpoint", source)
						return nil
					}
					if chunk.LastChunk {
						e.finish(start, nil)
						mu.Lock()
						successful++
						mu.Unlock()
						return nil
					}
					tagged := map[string]any{
						"type":        "chunk",
						"source":      source,
						"content":     chunk.Content,
						"chunk_index": chunkIndex,
						"timestamp":   time.Now().UTC().Format(time.RFC3339),
					}
					select {
					case out <- tagged:
						chunkIndex++
						mu.Lock()
						totalChunks++
						mu.Unlock()
					case <-gctx.Done():
						e.finish(start, gctx.Err())
						return nil
					}
				}
			}
		})
	}

	go func() {
		_ = g.Wait()
		mu.Lock()
		summary := map[string]any{
			"type":               "aggregate_complete",
			"total_chunks":       totalChunks,
			"successful_sources": successful,
			"total_sources":      len(d.endpoints),
		}
		mu.Unlock()
		select {
		case out <- summary:
		case <-ctx.Done():
		}
		close(out)
	}()
	return out, nil
}
