package ports

import (
	"context"

	"infodyn/domain/series"
)

// SeriesSourcePort loads a multi-channel recording from some backing store.
// Implementations exist for spreadsheet and CSV files; anything that can
// produce named, equal-length numeric columns can implement it.
type SeriesSourcePort interface {
	// Load reads the full recording. Channel order follows the source's
	// column order.
	Load(ctx context.Context) (*series.Recording, error)

	// Describe names the source for logs and run records.
	Describe() string
}
