// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sparql is the single chokepoint for SPARQL HTTP traffic. Every
// query goes through one Client, which spaces dispatches by the configured
// rate limit, dedupes identical in-flight queries and stops calling an
// endpoint that keeps failing.
package sparql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sigil-dev/graphscope/internal/config"
	"github.com/sigil-dev/graphscope/internal/notify"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"github.com/sigil-dev/graphscope/pkg/health"
	"github.com/sigil-dev/graphscope/pkg/rdf"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	contentTypeForm    = "application/x-www-form-urlencoded"
	contentTypeResults = "application/sparql-results+json"

	// maxErrorBody caps how much of a failed response is kept as error text.
	maxErrorBody = 4 << 10
)

// Options configures a Client.
type Options struct {
	Config     config.Source
	HTTPClient *http.Client
	Notifier   notify.Notifier
	Logger     *slog.Logger
	Metrics    *Metrics
}

// Client issues SPARQL queries against the configured endpoint. It is safe
// for concurrent use and is meant to be shared process-wide so the rate
// limit is global.
type Client struct {
	cfg      config.Source
	http     *http.Client
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer

	limiter *limiter
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker
	health  *HealthTracker

	completed atomic.Int64
	pending   atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a Client. Config is required; everything else has a
// usable default.
func NewClient(opts Options) (*Client, error) {
	if opts.Config == nil {
		return nil, sigilerr.New(sigilerr.CodeSparqlRequestInvalid, "sparql client requires a config source")
	}
	cfg := opts.Config.Current()

	cooldown := cfg.Limits.Breaker.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultHealthCooldown
	}
	tracker, err := NewHealthTracker(cooldown)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:      opts.Config,
		http:     opts.HTTPClient,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		tracer:   otel.Tracer("github.com/sigil-dev/graphscope/internal/sparql"),
		limiter:  newLimiter(),
		health:   tracker,
		done:     make(chan struct{}),
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.notifier == nil {
		c.notifier = notify.Nop
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics()
	}
	c.breaker = c.newBreaker(cfg.Limits.Breaker, cooldown)

	return c, nil
}

func (c *Client) newBreaker(bc config.BreakerConfig, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sparql",
		MaxRequests: 1,
		Interval:    cooldown,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= bc.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("sparql circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
			c.metrics.Breaker.Set(float64(to))
			if to == gobreaker.StateOpen {
				c.notifier.Notify(notify.Event{
					Kind:    notify.KindError,
					Message: "SPARQL endpoint keeps failing, pausing queries",
				})
			}
		},
		IsSuccessful: endpointHealthy,
	})
}

// endpointHealthy decides whether a failed call counts against the
// breaker. Client-side mistakes (4xx, unusable URL) say nothing about the
// endpoint being down.
func endpointHealthy(err error) bool {
	if err == nil {
		return true
	}
	if sigilerr.HasCode(err, sigilerr.CodeSparqlRequestInvalid) {
		return true
	}
	if sigilerr.HasCode(err, sigilerr.CodeSparqlUpstreamFailure) {
		if status, ok := sigilerr.FieldsOf(err)["status"].(int); ok {
			return status < http.StatusInternalServerError
		}
	}
	return false
}

type notifierKey struct{}

// WithNotifier attaches a per-caller notifier that is told about failures
// of queries issued under ctx, in addition to the client-wide notifier.
func WithNotifier(ctx context.Context, n notify.Notifier) context.Context {
	return context.WithValue(ctx, notifierKey{}, n)
}

func notifierFrom(ctx context.Context) notify.Notifier {
	if n, ok := ctx.Value(notifierKey{}).(notify.Notifier); ok && n != nil {
		return n
	}
	return nil
}

// Query prefixes body with the known namespace declarations, waits for a
// rate-limit slot and returns the result bindings. Identical queries in
// flight at the same time share one request. Once a query has been
// enqueued it runs to completion even if ctx is cancelled; only the wait
// for its result is abandoned.
//
// Returned bindings may be shared with concurrent callers and must be
// treated as read-only.
func (c *Client) Query(ctx context.Context, body string) ([]rdf.Binding, error) {
	res, err := c.do(ctx, body)
	if err != nil {
		return nil, err
	}
	return res.Results.Bindings, nil
}

// Ask runs an ASK query and returns its boolean answer.
func (c *Client) Ask(ctx context.Context, body string) (bool, error) {
	res, err := c.do(ctx, body)
	if err != nil {
		return false, err
	}
	if res.Boolean == nil {
		return false, sigilerr.New(sigilerr.CodeSparqlResponseInvalid, "ASK response carried no boolean")
	}
	return *res.Boolean, nil
}

// Ping checks that the endpoint answers a trivial ASK query.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Ask(ctx, "ASK {}")
	return err
}

func (c *Client) do(ctx context.Context, body string) (*rdf.Results, error) {
	if strings.TrimSpace(body) == "" {
		return nil, sigilerr.New(sigilerr.CodeSparqlRequestInvalid, "empty SPARQL query")
	}

	cfg := c.cfg.Current()
	query := rdf.PrefixHeader() + body

	ch := c.group.DoChan(query, func() (any, error) {
		return c.dispatch(context.WithoutCancel(ctx), cfg, query)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			if n := notifierFrom(ctx); n != nil {
				n.Notify(notify.Failure("SPARQL query failed", r.Err))
			}
			return nil, r.Err
		}
		return r.Val.(*rdf.Results), nil
	}
}

func (c *Client) dispatch(ctx context.Context, cfg *config.Config, query string) (*rdf.Results, error) {
	c.pending.Add(1)
	c.metrics.Pending.Inc()
	defer func() {
		c.pending.Add(-1)
		c.metrics.Pending.Dec()
	}()

	if err := c.wait(cfg.Limits.RateLimit); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "sparql.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sparql.endpoint", cfg.Endpoint.URL),
			attribute.String("sparql.dialect", cfg.Endpoint.Type),
		))
	defer span.End()

	if cfg.Endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Endpoint.Timeout)
		defer cancel()
	}

	c.logger.Debug("dispatching sparql query", "endpoint", cfg.Endpoint.URL, "bytes", len(query))

	start := time.Now()
	out, err := c.breaker.Execute(func() (any, error) {
		return c.post(ctx, cfg, query)
	})
	c.metrics.Duration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = sigilerr.Wrap(err, sigilerr.CodeSparqlCircuitOpen,
				"SPARQL endpoint temporarily unavailable",
				sigilerr.FieldEndpoint(cfg.Endpoint.URL))
		}
		c.metrics.Queries.WithLabelValues(outcomeOf(err)).Inc()
		c.health.RecordFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(sigilerr.CodeOf(err)))
		c.logger.Warn("sparql query failed", "endpoint", cfg.Endpoint.URL, "code", sigilerr.CodeOf(err), "error", err)
		c.notifier.Notify(notify.Failure("SPARQL query failed", err))
		return nil, err
	}

	res := out.(*rdf.Results)
	c.completed.Add(1)
	c.health.RecordSuccess()
	c.metrics.Queries.WithLabelValues(OutcomeSuccess).Inc()
	span.SetAttributes(attribute.Int("sparql.bindings", len(res.Results.Bindings)))
	return res, nil
}

// wait blocks until the next rate-limit slot. It only gives up when the
// client is closed.
func (c *Client) wait(interval time.Duration) error {
	d := c.limiter.reserve(interval)
	if d <= 0 {
		select {
		case <-c.done:
			return sigilerr.New(sigilerr.CodeSparqlTransportFailure, "sparql client closed")
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-c.done:
		return sigilerr.New(sigilerr.CodeSparqlTransportFailure, "sparql client closed")
	}
}

func (c *Client) post(ctx context.Context, cfg *config.Config, query string) (*rdf.Results, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, sigilerr.Wrap(err, sigilerr.CodeSparqlRequestInvalid, "building SPARQL request",
			sigilerr.FieldEndpoint(cfg.Endpoint.URL))
	}
	req.Header.Set("Content-Type", contentTypeForm)
	req.Header.Set("Accept", contentTypeResults)
	if cfg.Endpoint.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.Endpoint.UserAgent)
	}
	if cfg.Endpoint.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Endpoint.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		code := sigilerr.CodeSparqlTransportFailure
		if errors.Is(err, context.DeadlineExceeded) {
			code = sigilerr.CodeSparqlQueryTimeout
		}
		return nil, sigilerr.Wrap(err, code, "sending SPARQL request",
			sigilerr.FieldEndpoint(cfg.Endpoint.URL))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, sigilerr.New(sigilerr.CodeSparqlUpstreamFailure,
			fmt.Sprintf("SPARQL query failed: %s", strings.TrimSpace(string(text))),
			sigilerr.FieldEndpoint(cfg.Endpoint.URL),
			sigilerr.FieldStatus(resp.StatusCode))
	}

	res, err := rdf.DecodeResults(resp.Body)
	if err != nil {
		return nil, sigilerr.Wrap(err, sigilerr.CodeSparqlResponseInvalid, "decoding SPARQL results",
			sigilerr.FieldEndpoint(cfg.Endpoint.URL))
	}
	return res, nil
}

func outcomeOf(err error) string {
	switch sigilerr.CodeOf(err) {
	case sigilerr.CodeSparqlUpstreamFailure:
		return OutcomeUpstream
	case sigilerr.CodeSparqlResponseInvalid:
		return OutcomeInvalid
	case sigilerr.CodeSparqlCircuitOpen:
		return OutcomeRejected
	default:
		return OutcomeTransport
	}
}

// Dialect returns the SPARQL dialect of the currently configured endpoint.
func (c *Client) Dialect() (Dialect, error) {
	return LookupDialect(c.cfg.Current().Endpoint.Type)
}

// Config returns the configuration in effect right now.
func (c *Client) Config() *config.Config {
	return c.cfg.Current()
}

// Completed returns the number of queries that finished successfully.
func (c *Client) Completed() int64 {
	return c.completed.Load()
}

// Pending returns the number of queries waiting for a slot or in flight.
func (c *Client) Pending() int64 {
	return c.pending.Load()
}

// Metrics returns the client's prometheus collectors.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Health returns a snapshot of the endpoint's health.
func (c *Client) Health() health.Metrics {
	m := c.health.Metrics()
	m.Endpoint = c.cfg.Current().Endpoint.URL
	m.CompletedQueries = c.completed.Load()
	m.Pending = c.pending.Load()
	state := c.breaker.State()
	m.Breaker = state.String()
	m.Available = m.Available && state != gobreaker.StateOpen
	return m
}

// Close releases queries still waiting for a rate-limit slot. In-flight
// requests finish normally.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
