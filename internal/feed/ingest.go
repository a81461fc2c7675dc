package feed

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"feedwatch/internal/database"
)

// Number of image fetches allowed in flight per cycle.
const imageWorkers = 4

// Ingester walks a parsed document, decides which items are genuinely new
// and persists them. Per-item failures are isolated: one malformed item
// never blocks the rest of the document.
type Ingester struct {
	db     *database.DB
	logger *log.Logger
	images *Resolver
	sink   ErrorSink
	now    func() time.Time
}

func NewIngester(db *database.DB, logger *log.Logger, images *Resolver, sink ErrorSink) *Ingester {
	return &Ingester{
		db:     db,
		logger: logger,
		images: images,
		sink:   sink,
		now:    time.Now,
	}
}

// candidate is an item that survived filtering and the freshness check and
// is waiting for image resolution and insertion.
type candidate struct {
	node      *gofeed.Item
	title     string
	body      string
	published time.Time
	image     []byte
}

// Ingest processes the document's items in order and returns the batch of
// newly inserted records, sorted ascending by their stored date string.
func (in *Ingester) Ingest(ctx context.Context, doc *gofeed.Feed, expungeDays int, sourceID int64, blacklist []string) Batch {
	if doc == nil {
		return nil
	}

	// Inserts happen after image resolution, so the store alone cannot
	// reject a title repeated within this document; seen covers that.
	seen := make(map[string]bool)

	var candidates []*candidate
	for _, item := range doc.Items {
		title := Extract(item, "title")
		body := Extract(item, "description")

		if blacklisted(title, body, blacklist) {
			continue
		}

		published, ok := ParseFeedDate(Extract(item, "pubDate"))
		if !ok {
			in.logger.Printf("Item %q has no parsable date, using current time", title)
			published = in.now()
		}

		if seen[title] || !in.isFresh(ctx, published, title, expungeDays) {
			continue
		}
		seen[title] = true

		candidates = append(candidates, &candidate{
			node:      item,
			title:     title,
			body:      body,
			published: published,
		})
	}

	// Image fetches are independent, so they run in parallel; ordering is
	// restored by the date sort below.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageWorkers)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			c.image = in.images.Resolve(gctx, c.node)
			return nil
		})
	}
	// Workers never return an error; Wait is only the barrier.
	_ = g.Wait()

	var batch Batch
	for _, c := range candidates {
		record := database.Item{
			Title:   c.title,
			Date:    database.FormatDate(c.published),
			Link:    Extract(c.node, "link"),
			Body:    c.body,
			Image:   c.image,
			Source:  sourceID,
			Deleted: database.Visible,
			Flag:    database.FlagUnread,
		}
		if _, err := in.db.InsertItem(ctx, &record); err != nil {
			in.sink.Report(c.title, "item could not be stored")
			in.logger.Printf("Error inserting item %q: %v", c.title, err)
			continue
		}
		batch = append(batch, record)
	}

	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Date < batch[j].Date
	})
	return batch
}

// blacklisted reports whether any term occurs in the item's body or title.
// Matching is a case-sensitive substring test.
func blacklisted(title, body string, blacklist []string) bool {
	for _, term := range blacklist {
		if strings.Contains(body, term) || strings.Contains(title, term) {
			return true
		}
	}
	return false
}

// isFresh is the freshness/dedup decision. An item is fresh iff its age in
// whole days does not exceed the expunge window (items the store may have
// purged must not come back) and no stored row, visible or deleted, has the
// same title. A failed title lookup counts as not fresh.
func (in *Ingester) isFresh(ctx context.Context, published time.Time, title string, expungeDays int) bool {
	days := int(in.now().Sub(published) / (24 * time.Hour))
	if days > expungeDays {
		return false
	}

	count, err := in.db.CountByTitle(ctx, title)
	if err != nil {
		in.sink.Report(title, "freshness lookup failed")
		in.logger.Printf("Error looking up title %q: %v", title, err)
		return false
	}
	return count == 0
}

// ParseBlacklist splits the configured comma-separated blacklist. Empty
// terms are dropped; an empty configuration means no filtering.
func ParseBlacklist(value string) []string {
	if value == "" {
		return nil
	}
	var terms []string
	for _, term := range strings.Split(value, ",") {
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
