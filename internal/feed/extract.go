package feed

import (
	"time"

	"github.com/mmcdole/gofeed"
)

// feedDateLayouts are the publish date layouts accepted from feed sources.
// Anything else falls back to the current time.
var feedDateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// ParseFeedDate parses a raw pubDate string. The second return value is
// false when the raw value was missing or unparsable; callers substitute
// the current time in that case rather than dropping the item.
func ParseFeedDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Extract returns the named field of an item node. URL-bearing tags
// (enclosure, media:thumbnail) yield their URL attribute; the rest yield
// text content. A missing or empty field yields "".
func Extract(item *gofeed.Item, tag string) string {
	if item == nil {
		return ""
	}
	switch tag {
	case "title":
		return item.Title
	case "description":
		return item.Description
	case "link":
		return item.Link
	case "pubDate":
		return item.Published
	case "content:encoded":
		return item.Content
	case "enclosure":
		for _, enc := range item.Enclosures {
			if enc != nil && enc.URL != "" {
				return enc.URL
			}
		}
		return ""
	case "media:thumbnail":
		return mediaThumbnailURL(item)
	default:
		if values, ok := item.Custom[tag]; ok {
			return values
		}
		return ""
	}
}

func mediaThumbnailURL(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, ext := range media["thumbnail"] {
			if u := ext.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	// Some feeds surface the thumbnail as the item image instead.
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}
