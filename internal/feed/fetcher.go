package feed

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"feedwatch/internal/database"
	"feedwatch/internal/netguard"
)

const userAgent = "Feedwatch/1.0"

// Cap on feed document size to avoid unbounded downloads.
const maxFeedBytes = 5 << 20

// Fetcher performs conditional GETs against feed URLs and parses the
// responses. Fetch state is read from and written to the store, keyed by
// URL; it is only advanced after a successfully parsed 200 response.
type Fetcher struct {
	db     *database.DB
	logger *log.Logger
	parser *gofeed.Parser
	client *http.Client
	sink   ErrorSink
	now    func() time.Time
}

func NewFetcher(db *database.DB, logger *log.Logger, sink ErrorSink) *Fetcher {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Fetcher{
		db:     db,
		logger: logger,
		parser: gofeed.NewParser(),
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		sink: sink,
		now:  time.Now,
	}
}

// ifModifiedSince computes the conditional request timestamp for a feed URL:
// the later of (now - expungeDays) and the stored last-fetch time, rendered
// in RFC 1123 GMT form. Items older than the expunge window are never
// ingested anyway, so there is no point asking for content older than that.
func (f *Fetcher) ifModifiedSince(ctx context.Context, feedURL string, expungeDays int) string {
	since := f.now().UTC().AddDate(0, 0, -expungeDays)

	last, ok, err := f.db.GetFetchState(ctx, feedURL)
	if err != nil {
		f.logger.Printf("Error reading fetch state for %s: %v", feedURL, err)
	} else if ok && last.After(since) {
		since = last
	}

	return since.UTC().Format(http.TimeFormat)
}

// Fetch performs the conditional GET. It returns a NotModified result on a
// 304, the parsed document on a 200, and an error (already reported to the
// sink) for anything else. The stored fetch state is untouched on every
// path except a parsed 200, so a failed cycle retries with the same
// conditional window.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string, expungeDays int) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		f.sink.Report(feedURL, "feed URL is not valid")
		return FetchResult{}, fmt.Errorf("error creating request for %s: %w", feedURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("If-Modified-Since", f.ifModifiedSince(ctx, feedURL, expungeDays))

	if err := netguard.CheckURL(req.URL); err != nil {
		f.sink.Report(feedURL, "feed URL points at a reserved address")
		return FetchResult{}, fmt.Errorf("error validating %s: %w", feedURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.sink.Report(feedURL, "no connection to feed source")
		return FetchResult{}, fmt.Errorf("error fetching feed %s: %w", feedURL, err)
	}
	// Drain before closing so the connection can be reused, even when the
	// status says there is no usable content.
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified {
		return FetchResult{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		f.sink.Report(feedURL, fmt.Sprintf("unexpected response status %d", resp.StatusCode))
		return FetchResult{}, fmt.Errorf("unexpected response status %d from %s", resp.StatusCode, feedURL)
	}

	doc, err := f.parser.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		f.sink.Report(feedURL, "feed document could not be parsed")
		return FetchResult{}, fmt.Errorf("error parsing feed %s: %w", feedURL, err)
	}

	if err := f.db.SetFetchState(ctx, feedURL, f.now()); err != nil {
		f.logger.Printf("Error updating fetch state for %s: %v", feedURL, err)
	}

	return FetchResult{Doc: doc}, nil
}
