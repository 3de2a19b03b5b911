package types

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// CacheInfo is a diagnostic snapshot of the image cache
type CacheInfo struct {
	TotalBytes int64 `json:"total_bytes"`
	EntryCount int   `json:"entry_count"`
	MaxBytes   int64 `json:"max_bytes"`
}

// String renders usage against the budget, e.g. "cache 2.0 MiB of 200 MiB (3 entries)"
func (c CacheInfo) String() string {
	return fmt.Sprintf("cache %s of %s (%d entries)",
		humanize.IBytes(uint64(c.TotalBytes)),
		humanize.IBytes(uint64(c.MaxBytes)),
		c.EntryCount,
	)
}
