package feed

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"feedwatch/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), database.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// sinkRecorder collects error reports for assertions.
type sinkRecorder struct {
	mu      sync.Mutex
	reports []string
}

func (s *sinkRecorder) Report(context, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, context+": "+message)
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

// feedDocument renders a minimal RSS document around the given item XML.
func feedDocument(items ...string) string {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>Test Feed</title>
	<link>http://example.com/</link>
	<description>test</description>
`
	for _, item := range items {
		doc += item + "\n"
	}
	return doc + "</channel>\n</rss>"
}

// feedItem renders one item element. The date is formatted in the feed's
// raw layout; pass the zero time to omit the pubDate tag.
func feedItem(title, body string, published time.Time) string {
	date := ""
	if !published.IsZero() {
		date = fmt.Sprintf("\t\t<pubDate>%s</pubDate>\n", published.UTC().Format("Mon, 2 Jan 2006 15:04:05 -0700"))
	}
	return fmt.Sprintf(`	<item>
		<title>%s</title>
		<link>http://example.com/%s</link>
%s		<description>%s</description>
	</item>`, title, title, date, body)
}
