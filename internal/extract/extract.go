// Package extract turns uploaded file bytes into per-page text.
package extract

import (
	"context"
)

// PageExtractor extracts one text string per page from a raw document.
// An unreadable document yields an error; the caller decides whether
// sibling documents in the same upload proceed.
type PageExtractor interface {
	ExtractPages(ctx context.Context, name string, data []byte) ([]string, error)
}
