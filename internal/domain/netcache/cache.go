package netcache

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TabForge/internal/infrastructure/logging"
)

// Category classifies a captured response by resource type.
type Category string

const (
	CategoryDocument   Category = "document"
	CategoryScript     Category = "script"
	CategoryStylesheet Category = "stylesheet"
	CategoryImage      Category = "image"
	CategoryFont       Category = "font"
	CategoryXHR        Category = "xhr"
	CategoryFetch      Category = "fetch"
	CategoryMedia      Category = "media"
	CategoryOther      Category = "other"
)

// essential resource types are always considered for admission regardless of
// the per-entry size ceiling; losing a document or script makes a clone's
// bootstrap non-deterministic, losing an image only makes it slower.
var essential = map[Category]bool{
	CategoryDocument:   true,
	CategoryScript:     true,
	CategoryStylesheet: true,
	CategoryXHR:        true,
	CategoryFetch:      true,
}

// Response is one captured HTTP exchange. Immutable after insertion except
// for whole-entry replacement on re-capture of the same fingerprint.
type Response struct {
	Method         string
	URL            string
	RequestHeaders map[string]string
	RequestBody    []byte

	Status     int
	Headers    map[string]string
	Body       []byte
	MIME       string
	Category   Category
	CapturedAt time.Time
}

// Entry pairs a fingerprint with its captured response, in insertion order.
type Entry struct {
	Key      string
	Response *Response
}

// Stats summarizes cache contents.
type Stats struct {
	Entries         int                `json:"entries"`
	TotalBytes      int64              `json:"totalBytes"`
	BytesByCategory map[Category]int64 `json:"bytesByCategory"`
}

// Policy bounds cache growth.
type Policy struct {
	MaxTotalBytes     int64
	MaxEntryBytes     int64
	CompressThreshold int64
}

// DefaultPolicy mirrors the production defaults: 500 MiB total, 10 MiB per
// entry, bodies >= 32 KiB stored gzip-compressed.
func DefaultPolicy() Policy {
	return Policy{
		MaxTotalBytes:     500 * 1024 * 1024,
		MaxEntryBytes:     10 * 1024 * 1024,
		CompressThreshold: 32 * 1024,
	}
}

// entry is the internal representation; the body may be held compressed.
type entry struct {
	resp       *Response // Body nil when compressed
	compressed []byte
	size       int64 // uncompressed body length, used for all accounting
}

// Cache is a deduplicated, size-bounded store of captured exchanges.
// Safe for concurrent use: the capture interceptor admits entries from its
// event goroutine while the session flow reads stats and exports.
type Cache struct {
	mu      sync.Mutex
	policy  Policy
	entries map[string]*entry
	order   []string
	total   int64
	logger  *logging.Logger
	onStats func(Stats)
}

// New creates an empty cache with the given policy.
func New(policy Policy, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{
		policy:  policy,
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// OnStats registers a hook invoked after every mutation with fresh stats.
// Used to keep Prometheus gauges current.
func (c *Cache) OnStats(fn func(Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStats = fn
}

// Admit applies admission policy and stores the response under key.
// It reports whether the entry was accepted. Rejection is a no-op: the
// caller falls through to the live network.
func (c *Cache) Admit(key string, resp *Response) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admitLocked(key, resp)
}

func (c *Cache) admitLocked(key string, resp *Response) bool {
	if resp == nil {
		return false
	}

	size := int64(len(resp.Body))

	if !essential[resp.Category] && size > c.policy.MaxEntryBytes {
		c.logger.Debug("cache reject: entry over per-entry ceiling",
			zap.String("key", truncate(key)),
			zap.Int64("size", size),
			zap.String("category", string(resp.Category)))
		return false
	}

	// Net delta: replacing an existing entry frees its bytes first.
	delta := size
	if prev, ok := c.entries[key]; ok {
		delta -= prev.size
	}
	if c.total+delta > c.policy.MaxTotalBytes {
		c.logger.Debug("cache reject: over total ceiling",
			zap.String("key", truncate(key)),
			zap.Int64("size", size),
			zap.Int64("total", c.total))
		return false
	}

	if resp.MIME == "" && len(resp.Body) > 0 {
		resp.MIME = mimetype.Detect(resp.Body).String()
	}

	e := &entry{size: size}
	if c.policy.CompressThreshold > 0 && size >= c.policy.CompressThreshold {
		if blob, ok := compress(resp.Body); ok {
			clone := *resp
			clone.Body = nil
			e.resp = &clone
			e.compressed = blob
		}
	}
	if e.resp == nil {
		e.resp = resp
	}

	if _, existed := c.entries[key]; !existed {
		c.order = append(c.order, key)
	}
	c.entries[key] = e
	c.total += delta
	c.notifyLocked()
	return true
}

// Lookup returns the response stored under key, or false when absent.
// The returned response always carries an uncompressed body.
func (c *Cache) Lookup(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return c.materialize(e), true
}

// Export returns all entries in insertion order with uncompressed bodies.
func (c *Cache) Export() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.entries))
	for _, key := range c.order {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		out = append(out, Entry{Key: key, Response: c.materialize(e)})
	}
	return out
}

// Import replaces all contents with the given entries, re-running admission
// per entry so an over-policy manifest is pruned rather than trusted.
// Entries are deep-copied: the imported cache never shares buffers with the
// manifest it was built from.
func (c *Cache) Import(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	for _, e := range entries {
		if !c.admitLocked(e.Key, copyResponse(e.Response)) {
			c.logger.Warn("import pruned entry failing admission",
				zap.String("key", truncate(e.Key)))
		}
	}
}

// Duplicate returns an independent deep copy: byte buffers are copied, never
// shared, so mutating a clone's cache can never leak into the source.
func (c *Cache) Duplicate() *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	dup := New(c.policy, c.logger)
	for _, key := range c.order {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		dup.admitLocked(key, copyResponse(c.materialize(e)))
	}
	return dup
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	c.entries = make(map[string]*entry)
	c.order = nil
	c.total = 0
	c.notifyLocked()
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns entry count, total bytes, and a per-category byte breakdown.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Cache) statsLocked() Stats {
	s := Stats{
		Entries:         len(c.entries),
		TotalBytes:      c.total,
		BytesByCategory: make(map[Category]int64),
	}
	for _, e := range c.entries {
		s.BytesByCategory[e.resp.Category] += e.size
	}
	return s
}

func (c *Cache) notifyLocked() {
	if c.onStats != nil {
		c.onStats(c.statsLocked())
	}
}

// materialize produces a response with its body restored from the
// compressed blob when necessary. The stored entry is never mutated.
func (c *Cache) materialize(e *entry) *Response {
	if e.compressed == nil {
		return e.resp
	}
	body, err := decompress(e.compressed)
	if err != nil {
		c.logger.Error("failed to decompress cached body", zap.Error(err),
			zap.String("url", e.resp.URL))
		body = nil
	}
	clone := *e.resp
	clone.Body = body
	return &clone
}

func compress(body []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(body); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	// Incompressible bodies (already-encoded media) stay uncompressed.
	if buf.Len() >= len(body) {
		return nil, false
	}
	return buf.Bytes(), true
}

func decompress(blob []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func copyResponse(r *Response) *Response {
	if r == nil {
		return nil
	}
	clone := *r
	clone.RequestHeaders = copyMap(r.RequestHeaders)
	clone.Headers = copyMap(r.Headers)
	clone.RequestBody = append([]byte(nil), r.RequestBody...)
	clone.Body = append([]byte(nil), r.Body...)
	return &clone
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
