// Package notify decides what the user gets alerted about and how. The
// actual presentation is behind the Surface interface; the policy here only
// shapes notifications and picks which one carries the sound.
package notify

import (
	"log"
	"sort"

	"feedwatch/internal/database"
	"feedwatch/internal/markup"
)

// errorKey is the shared notification key for error alerts, so repeated
// failures replace each other instead of stacking.
const errorKey = 42

// Action is a secondary notification action.
type Action struct {
	Label string
	URL   string
}

// BlinkPattern describes the notification light.
type BlinkPattern struct {
	Color string
	OnMS  int
	OffMS int
}

// Notification is one alert handed to the surface. Showing the same Key
// twice replaces the earlier alert.
type Notification struct {
	Key          int64
	Title        string
	Body         string
	Actions      []Action
	Sound        bool
	HighPriority bool
	Blink        *BlinkPattern
}

// Surface presents notifications. Implementations live outside the
// pipeline.
type Surface interface {
	Show(n Notification)
}

// Policy maps a batch of newly ingested items to notifications.
type Policy struct {
	surface Surface
	logger  *log.Logger
	color   string
	mode    int
	marker  string
}

// NewPolicy builds a policy. Color and mode drive the blink pattern; marker
// is the "continue reading" marker stripped from alert bodies.
func NewPolicy(surface Surface, logger *log.Logger, color string, mode int, marker string) *Policy {
	return &Policy{
		surface: surface,
		logger:  logger,
		color:   color,
		mode:    mode,
		marker:  marker,
	}
}

// Present fans a batch out to the surface. An empty batch is a no-op. A
// single item becomes one high-priority alert with sound and no actions,
// taken from the chronological end of the batch. A larger batch becomes one
// alert per item with an open-link action, presented in insertion order
// (recovered from the store-assigned ids), and only the first alert carries
// a sound.
func (p *Policy) Present(items []database.Item) {
	if len(items) == 0 {
		return
	}

	if len(items) == 1 {
		p.show(items[len(items)-1], true, true)
		return
	}

	ordered := make([]database.Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})

	sound := true
	for _, item := range ordered {
		p.show(item, sound, false)
		sound = false
	}
}

func (p *Policy) show(item database.Item, sound, headUp bool) {
	n := Notification{
		Key:          item.ID,
		Title:        markup.Strip(item.Title, p.marker),
		Body:         markup.Strip(item.Body, p.marker),
		Sound:        sound,
		HighPriority: headUp,
		Blink:        p.blink(),
	}
	if !headUp {
		n.Actions = []Action{{Label: "Open link", URL: item.Link}}
	}
	p.surface.Show(n)
}

// blink maps the configured mode to a light pattern. Unknown modes mean no
// blinking.
func (p *Policy) blink() *BlinkPattern {
	switch p.mode {
	case 1:
		return &BlinkPattern{Color: p.color, OnMS: 1000, OffMS: 0}
	case 2:
		return &BlinkPattern{Color: p.color, OnMS: 4000, OffMS: 1000}
	case 3:
		return &BlinkPattern{Color: p.color, OnMS: 500, OffMS: 200}
	default:
		return nil
	}
}

// Report is the pipeline's error sink: a high-priority alert under the
// shared error key plus a log line. It never fails.
func (p *Policy) Report(context, message string) {
	p.logger.Printf("Error: %s: %s", context, message)
	p.surface.Show(Notification{
		Key:          errorKey,
		Title:        context,
		Body:         message,
		HighPriority: true,
	})
}
