package entities

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// HeaderRateLimitRemaining carries the number of calls left in the current window.
	HeaderRateLimitRemaining = "x-ratelimit-remaining"
	// HeaderRateLimitReset carries the epoch second at which the window resets.
	HeaderRateLimitReset = "x-ratelimit-reset"

	// LatestRef is the reserved reference under which the latest release of a
	// repository is stored in the tag metadata cache. Only tags that pass
	// NormalizeVersion are cached by name, and "@latest" never does, so the
	// entries cannot collide.
	LatestRef = "@latest"
)

// Clock abstracts time so the budget wait can be tested.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// TagMetadata describes one released version of a repository.
type TagMetadata struct {
	Name        string     // tag name as published (e.g. "v4.2.4")
	Version     string     // normalized version (e.g. "4.2.4")
	PublishedAt *time.Time // nil when the source does not expose dates
	Hash        string     // commit hash; empty when the listing did not include it
}

// RateLimit is a snapshot of the rate-limit state.
type RateLimit struct {
	Remaining int
	Reset     time.Time
	Known     bool // false until a response carried a remaining count
}

// Exhausted reports whether no call may be issued at instant now.
func (r RateLimit) Exhausted(now time.Time) bool {
	return r.Known && r.Remaining <= 0 && now.Before(r.Reset)
}

// CacheStats holds statistics about cache usage.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// ClientContext is the state shared by every resolution in a run: the remote
// endpoint, the rate-limit budget and the three reference caches.
// All mutable fields are guarded by mu.
type ClientContext struct {
	BaseURL string
	Token   string
	clock   Clock

	mu                 sync.Mutex
	rateLimitRemaining int
	rateLimitReset     time.Time
	rateLimitKnown     bool
	kinds              map[string]RefKind
	tags               map[string]TagMetadata
	tagHashes          map[string]string
	hits               int64
	misses             int64
}

// NewClientContext creates the context for one run.
func NewClientContext(baseURL, token string) *ClientContext {
	return NewClientContextWithClock(baseURL, token, SystemClock())
}

// NewClientContextWithClock creates a context driven by the given clock.
func NewClientContextWithClock(baseURL, token string, clock Clock) *ClientContext {
	if clock == nil {
		clock = SystemClock()
	}
	return &ClientContext{
		BaseURL:   baseURL,
		Token:     token,
		clock:     clock,
		kinds:     make(map[string]RefKind),
		tags:      make(map[string]TagMetadata),
		tagHashes: make(map[string]string),
	}
}

// HasToken reports whether calls are authenticated.
func (it *ClientContext) HasToken() bool {
	return it.Token != ""
}

// Clock returns the clock driving this context.
func (it *ClientContext) Clock() Clock {
	return it.clock
}

// UpdateRateLimitInfo records the remaining budget and reset time carried by a
// response. Values may be strings, integers, integral floats or header slices.
// Anything missing or invalid leaves the previous value in place.
func (it *ClientContext) UpdateRateLimitInfo(headers map[string]any) {
	if len(headers) == 0 {
		return
	}

	var (
		remaining, reset     int64
		hasRemaining, hasRst bool
	)
	for key, value := range headers {
		switch strings.ToLower(key) {
		case HeaderRateLimitRemaining:
			if n, ok := parseHeaderInt(value); ok && n >= 0 {
				remaining, hasRemaining = n, true
			}
		case HeaderRateLimitReset:
			if n, ok := parseHeaderInt(value); ok && n >= 0 {
				reset, hasRst = n, true
			}
		}
	}

	it.mu.Lock()
	defer it.mu.Unlock()
	if hasRemaining {
		it.rateLimitRemaining = int(min(remaining, math.MaxInt32))
		it.rateLimitKnown = true
	}
	if hasRst {
		it.rateLimitReset = time.Unix(reset, 0)
	}
}

// RateLimit returns a snapshot of the budget.
func (it *ClientContext) RateLimit() RateLimit {
	it.mu.Lock()
	defer it.mu.Unlock()
	return RateLimit{
		Remaining: it.rateLimitRemaining,
		Reset:     it.rateLimitReset,
		Known:     it.rateLimitKnown,
	}
}

// WaitForBudget blocks while the shared budget is exhausted and the reset time
// has not passed. Every worker calls it before a dispatch, so all of them stop
// together. It returns ctx.Err() when the context ends first.
func (it *ClientContext) WaitForBudget(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		limit := it.RateLimit()
		now := it.clock.Now()
		if !limit.Exhausted(now) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-it.clock.After(limit.Reset.Sub(now)):
		}
	}
}

// KindKey is the reference-kind cache key.
func KindKey(owner, repo, ref string) string {
	return repositoryKey(owner, repo) + "@" + ref
}

// TagKey is the tag metadata cache key.
func TagKey(owner, repo, ref string) string {
	return repositoryKey(owner, repo) + "@" + ref
}

// TagHashKey is the tag to commit hash cache key.
func TagHashKey(owner, repo, tag string) string {
	return repositoryKey(owner, repo) + "@" + tag
}

func repositoryKey(owner, repo string) string {
	return strings.ToLower(owner) + "/" + strings.ToLower(repo)
}

// GetKind returns the cached kind of a reference.
func (it *ClientContext) GetKind(key string) (RefKind, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	kind, ok := it.kinds[key]
	it.count(ok)
	return kind, ok
}

// SetKind caches the kind of a reference.
func (it *ClientContext) SetKind(key string, kind RefKind) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.kinds[key] = kind
}

// GetTag returns cached tag metadata.
func (it *ClientContext) GetTag(key string) (TagMetadata, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	tag, ok := it.tags[key]
	it.count(ok)
	return tag, ok
}

// SetTag caches tag metadata.
func (it *ClientContext) SetTag(key string, tag TagMetadata) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.tags[key] = tag
}

// GetTagHash returns the cached commit hash of a tag.
func (it *ClientContext) GetTagHash(key string) (string, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	hash, ok := it.tagHashes[key]
	it.count(ok)
	return hash, ok
}

// SetTagHash caches the commit hash of a tag.
func (it *ClientContext) SetTagHash(key, hash string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.tagHashes[key] = hash
}

// CacheStats returns the hit and miss counters of all three caches.
func (it *ClientContext) CacheStats() CacheStats {
	it.mu.Lock()
	defer it.mu.Unlock()
	return CacheStats{Hits: it.hits, Misses: it.misses}
}

// count must be called with mu held.
func (it *ClientContext) count(hit bool) {
	if hit {
		it.hits++
	} else {
		it.misses++
	}
}

// HeadersFromHTTP converts transport headers into the map accepted by UpdateRateLimitInfo.
func HeadersFromHTTP(header http.Header) map[string]any {
	headers := make(map[string]any, 2)
	for _, name := range []string{HeaderRateLimitRemaining, HeaderRateLimitReset} {
		if values := header.Values(name); len(values) > 0 {
			headers[name] = values
		}
	}
	return headers
}

func parseHeaderInt(value any) (int64, bool) {
	switch v := value.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case []string:
		if len(v) == 0 {
			return 0, false
		}
		return parseHeaderInt(v[0])
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return uintToInt64(uint64(v))
	case uint32:
		return int64(v), true
	case uint64:
		return uintToInt64(v)
	case float64:
		return floatToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case fmt.Stringer:
		return parseHeaderInt(v.String())
	default:
		return 0, false
	}
}

func uintToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

func floatToInt64(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}
