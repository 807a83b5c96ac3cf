// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package detection

import (
	"context"
	"time"

	"github.com/tomtom215/fairplay/internal/cache"
	"github.com/tomtom215/fairplay/internal/metrics"
	"github.com/tomtom215/fairplay/internal/models"
)

// CachedBaseline memoizes a BaselineSource per user and puzzle type.
// Baselines move slowly, so a few minutes of staleness is acceptable.
// Lookup errors are not cached.
type CachedBaseline struct {
	source  BaselineSource
	entries *cache.LRU[*models.UserBaseline]
}

// NewCachedBaseline wraps source with an LRU of size entries held for ttl.
func NewCachedBaseline(source BaselineSource, size int, ttl time.Duration) *CachedBaseline {
	return &CachedBaseline{
		source:  source,
		entries: cache.NewLRU[*models.UserBaseline](size, ttl),
	}
}

// Baseline implements BaselineSource.
func (c *CachedBaseline) Baseline(ctx context.Context, userID, puzzleType string) (*models.UserBaseline, error) {
	key := userID + "\x00" + puzzleType
	if b, ok := c.entries.Get(key); ok {
		metrics.RecordBaselineCacheLookup(true)
		return b, nil
	}
	metrics.RecordBaselineCacheLookup(false)

	b, err := c.source.Baseline(ctx, userID, puzzleType)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, b)
	return b, nil
}

// Forget drops the cached baseline for a user and puzzle type.
func (c *CachedBaseline) Forget(userID, puzzleType string) {
	c.entries.Remove(userID + "\x00" + puzzleType)
}
