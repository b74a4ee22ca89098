package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"neetiq-service/internal/app"
)

// Scheduler drives the two background jobs: the repeating auto-quiz
// broadcast and the nightly leaderboard digest. The auto-quiz entry fires
// at the configured interval and the enabled flag is re-checked inside the
// broadcast on every tick, so toggling it takes effect without a restart.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *app.Dispatcher
	settings   *app.SettingsService
	digestSpec string
	log        zerolog.Logger
}

func New(dispatcher *app.Dispatcher, settings *app.SettingsService, digestSpec string, loc *time.Location, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		dispatcher: dispatcher,
		settings:   settings,
		digestSpec: digestSpec,
		log:        log,
	}
}

// Start registers the jobs and launches the cron loop. The interval is read
// once at startup; changing it requires a restart, changing the enabled
// flag does not.
func (s *Scheduler) Start(ctx context.Context) error {
	interval, err := s.settings.AutoquizInterval(ctx)
	if err != nil {
		return fmt.Errorf("read autoquiz interval: %w", err)
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %dm", interval), func() {
		if err := s.dispatcher.BroadcastQuiz(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("auto-quiz broadcast failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule auto-quiz: %w", err)
	}

	if _, err := s.cron.AddFunc(s.digestSpec, func() {
		if err := s.dispatcher.DailyDigest(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("daily digest failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule daily digest: %w", err)
	}

	s.cron.Start()
	s.log.Info().Int("autoquiz_interval_min", interval).Str("digest_cron", s.digestSpec).Msg("scheduler started")
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
