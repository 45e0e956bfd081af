// Package timeoutcalc computes the adaptive per-job wall-clock timeout
// budget from input size and file count, per spec §4.6, and caches the
// result per input root for a short TTL to avoid repeated filesystem
// walks.
package timeoutcalc

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	baseSeconds = 600
	mibBytes    = 1 << 20

	tier1CapBytes = 50 * mibBytes
	tier2CapBytes = 50 * mibBytes // additional 50 MiB beyond tier1

	ceilingSeconds = 1800

	cacheTTL = 5 * time.Minute

	// ConverterShare is the fraction of the total budget allotted to the
	// conversion stage (spec §4.6: "60% of total").
	ConverterShare = 0.6
)

// Budget is the computed timeout allocation for a job.
type Budget struct {
	TotalSeconds     int
	ConverterSeconds int
	RemainderSeconds int // shared by analyze/compile/postprocess/validate
}

type cacheEntry struct {
	budget  Budget
	expires time.Time
}

// Calculator computes and caches per-root timeout budgets.
type Calculator struct {
	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates a Calculator with an empty cache.
func New() *Calculator {
	return &Calculator{cache: make(map[string]cacheEntry)}
}

// Compute returns the Budget for the given input root, walking the
// filesystem to total byte size and file count unless a fresh cache
// entry already exists for that root. ceilingOverride, if > 0 and below
// the computed total, caps the budget (used when an
// Options.MaxProcessingTime was supplied as a stricter cap); larger
// values leave the total unchanged.
func (c *Calculator) Compute(root string, ceilingOverride int) (Budget, error) {
	c.mu.Lock()
	if entry, ok := c.cache[root]; ok && time.Now().Before(entry.expires) {
		c.mu.Unlock()
		return applyCeiling(entry.budget, ceilingOverride), nil
	}
	c.mu.Unlock()

	bytes, count, err := walk(root)
	if err != nil {
		return Budget{}, err
	}

	budget := FromSizeAndCount(bytes, count)

	c.mu.Lock()
	c.cache[root] = cacheEntry{budget: budget, expires: time.Now().Add(cacheTTL)}
	c.mu.Unlock()

	return applyCeiling(budget, ceilingOverride), nil
}

func applyCeiling(b Budget, override int) Budget {
	if override <= 0 || override >= b.TotalSeconds {
		return b
	}
	b.TotalSeconds = override
	b.ConverterSeconds = int(float64(override) * ConverterShare)
	b.RemainderSeconds = override - b.ConverterSeconds
	return b
}

// FromSizeAndCount implements the formula in spec §4.6 directly, for
// callers (and tests) that already know byte/file totals.
func FromSizeAndCount(totalBytes int64, fileCount int) Budget {
	var sizeComponent float64

	tier1 := min64(totalBytes, tier1CapBytes)
	sizeComponent += float64(tier1) / mibBytes * 1.0

	remaining := totalBytes - tier1CapBytes
	tier2 := clamp64(remaining, 0, tier2CapBytes)
	sizeComponent += float64(tier2) / mibBytes * 2.0

	tier3 := remaining - tier2CapBytes
	if tier3 < 0 {
		tier3 = 0
	}
	sizeComponent += float64(tier3) / mibBytes * 5.0

	countComponent := (fileCount / 10) * 1

	total := baseSeconds + int(sizeComponent) + countComponent
	if total > ceilingSeconds {
		total = ceilingSeconds
	}

	converter := int(float64(total) * ConverterShare)
	return Budget{
		TotalSeconds:     total,
		ConverterSeconds: converter,
		RemainderSeconds: total - converter,
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// walk totals regular-file byte size and file count under root.
func walk(root string) (int64, int, error) {
	var totalBytes int64
	var count int
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			totalBytes += info.Size()
			count++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return totalBytes, count, nil
}
