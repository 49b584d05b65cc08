// Package audiocache provides a content-addressed in-memory store for
// synthesized audio. Entries are keyed by a deterministic hash of the
// synthesis inputs, so identical audition requests reuse the same
// artifact and any change to text, voice, or prosody naturally misses.
package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/narratorapp/narrator-server/internal/logger"
	"github.com/narratorapp/narrator-server/internal/tts"
)

const (
	// DefaultMaxAge is how long an artifact stays valid before eviction.
	DefaultMaxAge = 30 * time.Minute
	// DefaultMaxBytes bounds the total audio payload held in memory.
	DefaultMaxBytes = 64 << 20
)

// Key identifies one cached artifact.
type Key string

// KeyFor derives the cache key for a synthesis request. The text is
// hashed rather than embedded so keys stay bounded regardless of
// segment length.
func KeyFor(req tts.Request) Key {
	h := sha256.New()
	h.Write([]byte(voiceTextTag(req.VoiceID, req.Text)))
	h.Write([]byte(req.Prosody.Style))
	h.Write([]byte{0})

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(req.Prosody.StyleIntensity))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(int64(req.Prosody.RatePercent)))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(int64(req.Prosody.PitchPercent)))
	h.Write(buf[:])

	return Key(hex.EncodeToString(h.Sum(nil)))
}

// voiceTextTag groups all prosody variants of a (voice, text) pair so
// they can be invalidated together when a segment changes.
func voiceTextTag(voiceID, text string) string {
	textHash := sha256.Sum256([]byte(text))
	return voiceID + "\x00" + hex.EncodeToString(textHash[:])
}

// GenerateFunc produces an artifact on a cache miss.
type GenerateFunc func(ctx context.Context) (tts.Artifact, error)

type entry struct {
	artifact tts.Artifact
	storedAt time.Time
	tag      string
}

type inflight struct {
	done     chan struct{}
	artifact tts.Artifact
	err      error
}

// Cache is a thread-safe artifact store with age- and size-bounded
// eviction. Concurrent GetOrGenerate calls for the same key coalesce
// into a single generation.
type Cache struct {
	maxAge   time.Duration
	maxBytes int
	logger   *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	entries  map[Key]entry
	pending  map[Key]*inflight
	sizeHeld int
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxAge overrides the entry lifetime.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) { c.maxAge = d }
}

// WithMaxBytes overrides the total payload bound.
func WithMaxBytes(n int) Option {
	return func(c *Cache) { c.maxBytes = n }
}

// withClock is used by tests to control entry age.
func withClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(log *logger.Logger, opts ...Option) *Cache {
	c := &Cache{
		maxAge:   DefaultMaxAge,
		maxBytes: DefaultMaxBytes,
		logger:   log,
		now:      time.Now,
		entries:  make(map[Key]entry),
		pending:  make(map[Key]*inflight),
	}
	if c.logger == nil {
		c.logger = logger.NewNop()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached artifact for key if present and fresh.
func (c *Cache) Get(key Key) (tts.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return tts.Artifact{}, false
	}
	if c.now().Sub(e.storedAt) > c.maxAge {
		c.removeLocked(key)
		return tts.Artifact{}, false
	}
	return e.artifact, true
}

// GetOrGenerate returns the cached artifact for the request, generating
// and storing it on a miss. Concurrent calls with the same key share one
// generation; each waiter still honors its own context. Failed
// generations are never cached, so the next call retries.
func (c *Cache) GetOrGenerate(ctx context.Context, req tts.Request, gen GenerateFunc) (tts.Artifact, error) {
	key := KeyFor(req)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.storedAt) <= c.maxAge {
		c.mu.Unlock()
		return e.artifact, nil
	}

	if fl, ok := c.pending[key]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.artifact, fl.err
		case <-ctx.Done():
			return tts.Artifact{}, ctx.Err()
		}
	}

	fl := &inflight{done: make(chan struct{})}
	c.pending[key] = fl
	c.mu.Unlock()

	artifact, err := gen(ctx)

	c.mu.Lock()
	delete(c.pending, key)
	if err == nil {
		c.storeLocked(key, voiceTextTag(req.VoiceID, req.Text), artifact)
	}
	c.mu.Unlock()

	fl.artifact = artifact
	fl.err = err
	close(fl.done)

	return artifact, err
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// InvalidateVoiceText removes every prosody variant cached for a
// (voice, text) pair. Used when a segment's text or voice assignment
// changes and its old auditions must not be served again.
func (c *Cache) InvalidateVoiceText(voiceID, text string) int {
	tag := voiceTextTag(voiceID, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	for key, e := range c.entries {
		if e.tag == tag {
			c.removeLocked(key)
			removed++
		}
	}
	return removed
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]entry)
	c.sizeHeld = 0
	c.logger.Debug("audio cache cleared")
}

// Len returns the number of cached artifacts, not counting expired
// entries that have yet to be swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the total audio bytes currently held.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sizeHeld
}

// Sweep drops entries older than the configured lifetime. The service
// layer runs this periodically.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.maxAge)
	var removed int
	for key, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			c.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("audio cache sweep",
			"removed", removed,
			"remaining", len(c.entries),
		)
	}
	return removed
}

func (c *Cache) storeLocked(key Key, tag string, artifact tts.Artifact) {
	if old, ok := c.entries[key]; ok {
		c.sizeHeld -= len(old.artifact.Audio)
	}
	c.entries[key] = entry{artifact: artifact, storedAt: c.now(), tag: tag}
	c.sizeHeld += len(artifact.Audio)
	c.evictOverflowLocked()
}

// evictOverflowLocked drops the oldest entries until the size bound
// holds again.
func (c *Cache) evictOverflowLocked() {
	if c.sizeHeld <= c.maxBytes {
		return
	}

	type aged struct {
		key      Key
		storedAt time.Time
	}
	order := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		order = append(order, aged{key: key, storedAt: e.storedAt})
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].storedAt.Before(order[j].storedAt)
	})

	for _, a := range order {
		if c.sizeHeld <= c.maxBytes || len(c.entries) == 1 {
			break
		}
		c.removeLocked(a.key)
		c.logger.Debug("audio cache evicted oldest entry", slog.String("key", string(a.key)))
	}
}

func (c *Cache) removeLocked(key Key) {
	if e, ok := c.entries[key]; ok {
		c.sizeHeld -= len(e.artifact.Audio)
		delete(c.entries, key)
	}
}
