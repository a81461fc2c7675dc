package feed

import (
	"github.com/mmcdole/gofeed"

	"feedwatch/internal/database"
)

// Batch is the set of items newly inserted during one ingestion cycle,
// sorted ascending by their canonical date string. The chronologically most
// recent item is the last element.
type Batch []database.Item

// MostRecent returns the last element of the batch.
func (b Batch) MostRecent() database.Item {
	return b[len(b)-1]
}

// FetchResult is the outcome of a conditional fetch. Either NotModified is
// true, or Doc holds the parsed document.
type FetchResult struct {
	NotModified bool
	Doc         *gofeed.Feed
}

// ErrorSink receives diagnostics and per-item failures from the pipeline.
// Implementations must not fail.
type ErrorSink interface {
	Report(context, message string)
}

// Source is one configured feed origin. ID tags inserted items; fetch state
// is keyed by URL, so sources sharing a URL share a conditional window.
type Source struct {
	ID  int64
	URL string
}
