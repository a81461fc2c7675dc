package feed

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"feedwatch/internal/database"
	"feedwatch/internal/notify"
)

const defaultExpungeDays = 7

// Service owns the refresh cycle: it is triggered on a cron schedule, runs
// fetch → ingest → present for every configured source, and purges stale
// soft-deleted rows after a full pass. Cycles against the same source URL
// are serialized through a singleflight group so concurrent triggers cannot
// race on the stored fetch timestamp.
type Service struct {
	db       *database.DB
	logger   *log.Logger
	fetcher  *Fetcher
	ingester *Ingester
	policy   *notify.Policy
	sources  []Source
	cron     *cron.Cron
	group    singleflight.Group
}

func NewService(db *database.DB, logger *log.Logger, policy *notify.Policy, sources []Source) *Service {
	maxWidth, err := db.GetSettingInt(context.Background(), "max_image_width")
	if err != nil {
		logger.Printf("Error reading max_image_width, using default: %v", err)
		maxWidth = 256
	}

	fetcher := NewFetcher(db, logger, policy)
	images := NewResolver(logger, maxWidth)
	return &Service{
		db:       db,
		logger:   logger,
		fetcher:  fetcher,
		ingester: NewIngester(db, logger, images, policy),
		policy:   policy,
		sources:  sources,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start schedules periodic refreshes. Schedule takes the usual cron forms
// including "@every 15m".
func (s *Service) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.RefreshAll(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

// RefreshAll runs one cycle for every configured source, then purges
// soft-deleted rows that have aged out of the expunge window.
func (s *Service) RefreshAll(ctx context.Context) {
	for _, src := range s.sources {
		if err := s.Refresh(ctx, src); err != nil {
			s.logger.Printf("Refresh of source %d (%s) failed: %v", src.ID, src.URL, err)
		}
		if ctx.Err() != nil {
			return
		}
	}

	expunge := s.expungeDays(ctx)
	cutoff := time.Now().UTC().AddDate(0, 0, -expunge)
	if n, err := s.db.PurgeDeletedBefore(ctx, cutoff); err != nil {
		s.logger.Printf("Error purging old items: %v", err)
	} else if n > 0 {
		s.logger.Printf("Purged %d old items", n)
	}
}

// Refresh runs one ingestion cycle for a single source.
func (s *Service) Refresh(ctx context.Context, src Source) error {
	_, err, _ := s.group.Do(src.URL, func() (interface{}, error) {
		return nil, s.refresh(ctx, src)
	})
	return err
}

func (s *Service) refresh(ctx context.Context, src Source) error {
	expunge := s.expungeDays(ctx)
	blacklist := s.blacklist(ctx)

	result, err := s.fetcher.Fetch(ctx, src.URL, expunge)
	if err != nil {
		return err
	}
	if result.NotModified {
		s.logger.Printf("Source %d (%s) not modified", src.ID, src.URL)
		return nil
	}

	batch := s.ingester.Ingest(ctx, result.Doc, expunge, src.ID, blacklist)
	s.logger.Printf("Source %d (%s): %d new items", src.ID, src.URL, len(batch))

	s.policy.Present(batch)
	return nil
}

func (s *Service) expungeDays(ctx context.Context) int {
	days, err := s.db.GetSettingInt(ctx, "expunge_days")
	if err != nil || days < 1 {
		return defaultExpungeDays
	}
	return days
}

func (s *Service) blacklist(ctx context.Context) []string {
	value, err := s.db.GetSetting(ctx, "blacklist")
	if err != nil && err != database.ErrNotFound {
		s.logger.Printf("Error reading blacklist: %v", err)
	}
	return ParseBlacklist(value)
}
