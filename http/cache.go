package http

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"heartrisk/dataset"
	"heartrisk/pipeline"
)

// cacheKey identifies a prediction by bundle and parsed record. Records
// are compared field by field, so only inputs that coerce to the same
// typed values share an entry.
type cacheKey struct {
	runID  string
	record dataset.Record
}

// predictionCache memoizes predictions per bundle. Keys include the run id,
// so entries from a replaced bundle are never returned.
type predictionCache struct {
	entries *lru.Cache[cacheKey, *pipeline.Prediction]
}

// newPredictionCache returns nil when size is zero, which disables caching.
func newPredictionCache(size int) (*predictionCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[cacheKey, *pipeline.Prediction](size)
	if err != nil {
		return nil, err
	}
	return &predictionCache{entries: entries}, nil
}

func (c *predictionCache) Get(runID string, rec dataset.Record) (*pipeline.Prediction, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Get(cacheKey{runID: runID, record: rec})
}

func (c *predictionCache) Add(runID string, rec dataset.Record, p *pipeline.Prediction) {
	if c == nil {
		return
	}
	c.entries.Add(cacheKey{runID: runID, record: rec}, p)
}

func (c *predictionCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
