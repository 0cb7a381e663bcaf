package sanitize

import (
	"strconv"
	"strings"

	"github.com/xoelrdgz/safeterm/pkg/lru"
)

// Cache keeps compiled matchers keyed by their options so that callers
// switching between a few configurations compile each one once. The matcher
// for DefaultOptions is pinned and never evicted.
type Cache struct {
	entries *lru.Cache[string, *Matcher]
}

// NewCache returns a cache holding at most capacity matchers.
func NewCache(capacity int) *Cache {
	c := &Cache{entries: lru.New[string, *Matcher](capacity)}

	def := DefaultOptions()
	key := cacheKey(def)
	c.entries.Put(key, defaultSanitizer.Matcher())
	c.entries.Pin(key)

	return c
}

// Get returns the matcher for opts, compiling it on first use. Failed
// compilations are not cached.
func (c *Cache) Get(opts Options) (*Matcher, error) {
	key := cacheKey(opts)
	if m, ok := c.entries.Get(key); ok {
		return m, nil
	}

	m, err := Compile(opts)
	if err != nil {
		return nil, err
	}
	c.entries.Put(key, m)
	return m, nil
}

// Len returns the number of cached matchers.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func cacheKey(opts Options) string {
	if !opts.SGR {
		// Exclusions and the length bound are irrelevant without SGR.
		return "sgr=off"
	}

	var b strings.Builder
	b.WriteString("sgr=on;max=")
	b.WriteString(strconv.Itoa(opts.MaxSequenceLength))
	for _, frag := range opts.ExcludeSGR {
		b.WriteByte(0)
		b.WriteString(frag)
	}
	return b.String()
}
