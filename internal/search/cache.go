package search

import (
	"github.com/bluele/gcache"

	"bikemap/internal/station"
)

// SuggestionCache memoizes Suggest results per query for the current
// labelled sequence. Reset must be called whenever that sequence changes.
type SuggestionCache struct {
	cache gcache.Cache
}

func NewSuggestionCache(size int) *SuggestionCache {
	if size <= 0 {
		size = 256
	}
	return &SuggestionCache{cache: gcache.New(size).LRU().Build()}
}

// Suggest returns the cached result for query, computing it from labelled on
// a miss. The returned slice must not be modified.
func (c *SuggestionCache) Suggest(labelled []station.LabelledStation, query string) ([]station.LabelledStation, bool) {
	if v, err := c.cache.Get(query); err == nil {
		if out, ok := v.([]station.LabelledStation); ok {
			return out, true
		}
	}
	out := Suggest(labelled, query)
	_ = c.cache.Set(query, out)
	return out, false
}

func (c *SuggestionCache) Reset() { c.cache.Purge() }
