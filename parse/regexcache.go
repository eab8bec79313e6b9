package parse

import (
	"sync"
	"time"

	"github.com/dlclark/regexp2"
)

// RegexCacheStats reports compile cache effectiveness.
type RegexCacheStats struct {
	Hits   int
	Misses int
	Size   int
}

// regexCache holds compiled patterns for reuse across parses. Compilation
// dominates matching cost for short inputs, and grammars repeat the same
// handful of patterns at many atoms.
type regexCache struct {
	mu       sync.Mutex
	compiled map[string]*regexp2.Regexp
	hits     int
	misses   int
}

var sharedRegexCache = &regexCache{compiled: make(map[string]*regexp2.Regexp)}

func (c *regexCache) getOrCompile(pattern string, matchTimeout time.Duration) (*regexp2.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.compiled[pattern]; ok {
		c.hits++
		return re, nil
	}

	c.misses++
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	if matchTimeout > 0 {
		re.MatchTimeout = matchTimeout
	}
	c.compiled[pattern] = re
	return re, nil
}

func (c *regexCache) stats() RegexCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RegexCacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.compiled)}
}

func (c *regexCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.compiled)
	c.hits = 0
	c.misses = 0
}

// RegexStats returns hit/miss counters for the shared pattern cache.
func RegexStats() RegexCacheStats { return sharedRegexCache.stats() }

// ClearRegexCache drops all compiled patterns and resets the counters.
// Useful when many unique patterns have accumulated.
func ClearRegexCache() { sharedRegexCache.clear() }
