// Package markup holds the small HTML helpers the ingestion pipeline needs:
// stripping feed bodies down to plain text and spotting inline image URLs.
package markup

import (
	"strings"

	"golang.org/x/net/html"
)

// Strip reduces an HTML fragment to plain text. If marker is non-empty and
// occurs in the input, everything from the marker on is dropped first (feeds
// commonly append a "continue reading" link after it). Tags are removed with
// the HTML tokenizer, which also decodes entities in text nodes; whitespace
// is collapsed afterwards.
func Strip(s, marker string) string {
	if marker != "" {
		if i := strings.Index(s, marker); i > 0 {
			s = s[:i]
		}
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}

	text := strings.ReplaceAll(b.String(), "\u00a0", " ")
	return strings.Join(strings.Fields(text), " ")
}

// InlineImageURL returns the src of the first <img> in the fragment whose
// URL ends in a jpg/jpeg extension, or "" if there is none.
func InlineImageURL(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return ""
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "img" || !hasAttr {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if string(key) == "src" && isJpegURL(string(val)) {
				return string(val)
			}
			if !more {
				break
			}
		}
	}
}

func isJpegURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg")
}
