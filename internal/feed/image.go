package feed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/mmcdole/gofeed"
	"github.com/nfnt/resize"

	"feedwatch/internal/markup"
	"feedwatch/internal/netguard"
)

const cornerRadius = 10

// Cap on image downloads, like the feed document cap.
const maxImageBytes = 5 << 20

// Resolver finds and prepares an image for a feed item. Resolution is
// strictly best effort: every failure yields no image, never an error that
// could abort the item.
type Resolver struct {
	client   *http.Client
	logger   *log.Logger
	maxWidth int
}

func NewResolver(logger *log.Logger, maxWidth int) *Resolver {
	return &Resolver{
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		maxWidth: maxWidth,
	}
}

// Resolve applies the candidate heuristics in order, fetches the first hit
// and returns it rescaled and PNG-encoded, or nil.
func (r *Resolver) Resolve(ctx context.Context, item *gofeed.Item) []byte {
	candidate := imageCandidate(item)
	if candidate == "" {
		return nil
	}

	data, err := r.fetch(ctx, candidate)
	if err != nil {
		r.logger.Printf("Error fetching item image %s: %v", candidate, err)
		return nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		r.logger.Printf("Error decoding item image %s: %v", candidate, err)
		return nil
	}

	img = r.prepare(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		r.logger.Printf("Error encoding item image %s: %v", candidate, err)
		return nil
	}
	return buf.Bytes()
}

// imageCandidate picks an image URL for the item. Precedence: inline <img>
// in the description, inline <img> in the encoded content, the media
// thumbnail, then the enclosure.
func imageCandidate(item *gofeed.Item) string {
	if u := markup.InlineImageURL(Extract(item, "description")); u != "" {
		return u
	}
	if u := markup.InlineImageURL(Extract(item, "content:encoded")); u != "" {
		return u
	}
	if u := Extract(item, "media:thumbnail"); u != "" {
		return u
	}
	return Extract(item, "enclosure")
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if err := netguard.CheckURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("got status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

// prepare downscales wide images to maxWidth, preserving aspect ratio, and
// rounds the corners.
func (r *Resolver) prepare(img image.Image) image.Image {
	if r.maxWidth > 0 && img.Bounds().Dx() > r.maxWidth {
		img = resize.Resize(uint(r.maxWidth), 0, img, resize.Lanczos3)
	}
	return roundCorners(img, cornerRadius)
}

// roundCorners draws the image through a rounded-rectangle alpha mask.
func roundCorners(img image.Image, radius int) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	mask := &roundedMask{rect: bounds, radius: radius}
	draw.DrawMask(out, bounds, img, bounds.Min, mask, bounds.Min, draw.Src)
	return out
}

// roundedMask is fully opaque except outside the quarter circles at the
// four corners.
type roundedMask struct {
	rect   image.Rectangle
	radius int
}

func (m *roundedMask) ColorModel() color.Model { return color.AlphaModel }

func (m *roundedMask) Bounds() image.Rectangle { return m.rect }

func (m *roundedMask) At(x, y int) color.Color {
	r := m.rect
	cx, cy := x, y
	switch {
	case x < r.Min.X+m.radius && y < r.Min.Y+m.radius:
		cx, cy = r.Min.X+m.radius, r.Min.Y+m.radius
	case x >= r.Max.X-m.radius && y < r.Min.Y+m.radius:
		cx, cy = r.Max.X-m.radius-1, r.Min.Y+m.radius
	case x < r.Min.X+m.radius && y >= r.Max.Y-m.radius:
		cx, cy = r.Min.X+m.radius, r.Max.Y-m.radius-1
	case x >= r.Max.X-m.radius && y >= r.Max.Y-m.radius:
		cx, cy = r.Max.X-m.radius-1, r.Max.Y-m.radius-1
	default:
		return color.Alpha{A: 0xff}
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > m.radius*m.radius {
		return color.Alpha{A: 0}
	}
	return color.Alpha{A: 0xff}
}
