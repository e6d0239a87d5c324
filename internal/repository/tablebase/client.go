package tablebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"chess_analysis/internal/domain"
	apperrors "chess_analysis/internal/errors"
)

const DefaultURL = "https://tablebase.lichess.ovh/standard"

type Config struct {
	URL     string
	Timeout time.Duration
	// MaxPieces is the largest piece count the service covers. Larger
	// positions are answered locally as not in tablebase.
	MaxPieces int
	CacheSize int
	// TTL applies to entries in the shared store.
	TTL time.Duration
	// FailureTTL bounds how long a transient failure is remembered.
	FailureTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:        DefaultURL,
		Timeout:    5 * time.Second,
		MaxPieces:  7,
		CacheSize:  4096,
		TTL:        24 * time.Hour,
		FailureTTL: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxPieces <= 0 {
		c.MaxPieces = d.MaxPieces
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	if c.FailureTTL <= 0 {
		c.FailureTTL = d.FailureTTL
	}
	return c
}

// Store is a shared second cache tier. It only ever holds definitive answers.
type Store interface {
	Get(ctx context.Context, key string) (domain.ExactLookup, bool, error)
	Put(ctx context.Context, key string, lookup domain.ExactLookup) error
}

// Client answers exact-result queries for positions with few pieces. It
// never returns an error: failures come back as an unavailable lookup and are
// cached like results.
type Client struct {
	cfg   Config
	http  *http.Client
	log   *zap.SugaredLogger
	cache *memoryCache
	store Store
	group singleflight.Group
}

// NewClient builds a client; store may be nil.
func NewClient(cfg Config, store Store, log *zap.SugaredLogger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		log:   log,
		cache: newMemoryCache(cfg.CacheSize),
		store: store,
	}
}

// Probe returns the result for pos relative to its side to move.
func (c *Client) Probe(ctx context.Context, pos domain.Position) domain.ExactLookup {
	if pos.IsZero() {
		return domain.ExactLookup{Err: apperrors.ErrInvalidPosition}
	}
	if n := pos.PieceCount(); n > c.cfg.MaxPieces {
		return domain.ExactLookup{Err: fmt.Errorf("%w: %d pieces", apperrors.ErrNotInTablebase, n)}
	}

	key := pos.FEN()
	if lookup, ok := c.cache.get(key); ok {
		return lookup
	}

	// Identical concurrent probes share one query. The query outlives any
	// single caller so that its result still lands in the cache.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if lookup, ok := c.cache.get(key); ok {
			return lookup, nil
		}
		lookup := c.resolve(context.WithoutCancel(ctx), key)
		if definitive(lookup) {
			c.cache.add(key, lookup, 0)
		} else {
			c.cache.add(key, lookup, c.cfg.FailureTTL)
		}
		return lookup, nil
	})

	select {
	case res := <-ch:
		return res.Val.(domain.ExactLookup)
	case <-ctx.Done():
		return domain.ExactLookup{Err: fmt.Errorf("%w: %v", apperrors.ErrTablebaseUnavailable, ctx.Err())}
	}
}

func (c *Client) resolve(ctx context.Context, key string) domain.ExactLookup {
	if c.store != nil {
		lookup, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.log.Warnw("tablebase store get failed", "fen", key, "error", err)
		} else if ok {
			return lookup
		}
	}

	lookup := c.fetch(ctx, key)
	if lookup.Err != nil {
		c.log.Warnw("tablebase probe failed", "fen", key, "error", lookup.Err)
	}

	if c.store != nil && definitive(lookup) {
		if err := c.store.Put(ctx, key, lookup); err != nil {
			c.log.Warnw("tablebase store put failed", "fen", key, "error", err)
		}
	}
	return lookup
}

type probeResponse struct {
	Category   string `json:"category"`
	DTZ        *int   `json:"dtz"`
	PreciseDTZ *int   `json:"precise_dtz"`
}

func (c *Client) fetch(ctx context.Context, fen string) domain.ExactLookup {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.cfg.URL + "?" + url.Values{"fen": {fen}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return unavailable(apperrors.ErrTablebaseUnavailable, err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return unavailable(apperrors.ErrTablebaseUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return unavailable(apperrors.ErrNotInTablebase, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return unavailable(apperrors.ErrTablebaseUnavailable, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var pr probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return unavailable(apperrors.ErrMalformedTablebase, err)
	}
	return normalize(pr)
}

// normalize maps the service categories onto the five outcomes. "maybe-*"
// and "syzygy-*" answers may hide a fifty-move draw or carry a rounded
// distance, so they are marked imprecise.
func normalize(pr probeResponse) domain.ExactLookup {
	var res domain.ExactResult
	precise := true
	switch pr.Category {
	case "win":
		res.Outcome = domain.OutcomeWin
	case "cursed-win":
		res.Outcome = domain.OutcomeCursedWin
	case "draw":
		res.Outcome = domain.OutcomeDraw
	case "blessed-loss":
		res.Outcome = domain.OutcomeBlessedLoss
	case "loss":
		res.Outcome = domain.OutcomeLoss
	case "maybe-win", "syzygy-win":
		res.Outcome = domain.OutcomeWin
		precise = false
	case "maybe-loss", "syzygy-loss":
		res.Outcome = domain.OutcomeLoss
		precise = false
	case "unknown":
		return unavailable(apperrors.ErrNotInTablebase, errors.New("category unknown"))
	default:
		return unavailable(apperrors.ErrMalformedTablebase, fmt.Errorf("category %q", pr.Category))
	}

	// draws have no distance to report
	switch {
	case res.Outcome == domain.OutcomeDraw:
	case pr.PreciseDTZ != nil:
		m := abs(*pr.PreciseDTZ)
		res.Margin = &m
	case pr.DTZ != nil:
		m := abs(*pr.DTZ)
		res.Margin = &m
		precise = false
	}
	res.Precise = precise
	return domain.ExactLookup{Result: res}
}

func unavailable(kind, cause error) domain.ExactLookup {
	return domain.ExactLookup{Err: fmt.Errorf("%w: %v", kind, cause)}
}

// definitive reports whether lookup will not change on retry.
func definitive(lookup domain.ExactLookup) bool {
	return lookup.Err == nil || errors.Is(lookup.Err, apperrors.ErrNotInTablebase)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
