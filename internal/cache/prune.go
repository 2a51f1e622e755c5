// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"errors"
	"os"
	"slices"
)

// PruneReport summarizes an eviction pass.
type PruneReport struct {
	Removed int
	Freed   int64
}

// Prune evicts entries older than the max age, then the least recently
// used entries until the total size is within the byte bound.
func (c *Cache) Prune() (PruneReport, error) {
	return c.prune("")
}

func (c *Cache) prune(keep Signature) (PruneReport, error) {
	var (
		report  PruneReport
		evicted []Signature
	)
	now := c.now()
	err := c.update(func(m map[Signature]*Entry) {
		evict := func(e *Entry) {
			delete(m, e.Signature)
			evicted = append(evicted, e.Signature)
			report.Removed++
			report.Freed += e.Size
		}

		var total int64
		live := make([]*Entry, 0, len(m))
		for _, e := range m {
			if c.maxAge > 0 && e.Signature != keep && now.Sub(e.LastAccessed) > c.maxAge {
				evict(e)
				continue
			}
			total += e.Size
			live = append(live, e)
		}

		if c.maxBytes <= 0 || total <= c.maxBytes {
			return
		}
		slices.SortFunc(live, func(a, b *Entry) int { return a.LastAccessed.Compare(b.LastAccessed) })
		for _, e := range live {
			if total <= c.maxBytes {
				break
			}
			if e.Signature == keep {
				continue
			}
			total -= e.Size
			evict(e)
		}
	})
	if err != nil {
		return PruneReport{}, err
	}

	for _, sig := range evicted {
		if err := os.Remove(c.blobPath(sig)); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to delete evicted blob", "signature", sig.Short(), "error", err)
		}
	}
	if report.Removed > 0 {
		c.logger.Debug("pruned", "removed", report.Removed, "freed", report.Freed)
	}
	return report, nil
}
