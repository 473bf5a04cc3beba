package models

import "context"

// IBarFeed is a read-only source of historical bars. Implementations must be
// safe for concurrent reads.
type IBarFeed interface {
	// FetchBars returns the bars opening at epoch for the given symbols.
	// Symbols without a bar are absent from the result.
	FetchBars(ctx context.Context, tf Timeframe, epoch int64, symbols []string) (map[string]*Bar, error)
}
