package sweep

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"hostel-portal-backend/internal/store"
)

// Service periodically reclaims expired room locks so list views stay
// accurate between requests. It is best-effort only: every lock-sensitive
// store operation applies lazy expiry itself, so a missed or failed run
// self-heals on the next request.
type Service struct {
	store store.Store
	cron  *cron.Cron
	spec  string
}

// New creates a sweep service with a cron spec such as "@every 1m".
func New(s store.Store, spec string) *Service {
	return &Service{
		store: s,
		cron:  cron.New(cron.WithLocation(time.UTC)),
		spec:  spec,
	}
}

// Start schedules the sweep and begins running it.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		reclaimed, err := s.store.ReclaimExpiredLocks(context.Background(), time.Now().UTC())
		if err != nil {
			log.Printf("Expiry sweep failed: %v", err)
			return
		}
		if reclaimed > 0 {
			log.Printf("Expiry sweep reclaimed %d lock(s)", reclaimed)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}
