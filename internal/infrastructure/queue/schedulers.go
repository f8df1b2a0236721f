package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"asset-library-backend/internal/shared"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

type Scheduler struct {
	scheduler   *asynq.Scheduler
	refreshCron string
}

// NewScheduler creates the periodic task scheduler. An empty refreshCron
// leaves the archive refresh unregistered.
func NewScheduler(redisOpt asynq.RedisConnOpt, refreshCron string) *Scheduler {
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)
	return &Scheduler{scheduler: scheduler, refreshCron: refreshCron}
}

// RegisterJobs registers every periodic task
func (s *Scheduler) RegisterJobs() error {
	return s.registerRefreshArchivesJob()
}

// ================================================
// Refresh archives of recently changed assets (default daily at 3 AM)
// ================================================
func (s *Scheduler) registerRefreshArchivesJob() error {
	if s.refreshCron == "" {
		log.Info().Msg("archive refresh disabled")
		return nil
	}

	payload, err := json.Marshal(shared.RefreshArchivesPayload{WindowHours: 24})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeRefreshArchives, payload)
	entryID, err := s.scheduler.Register(
		s.refreshCron,
		task,
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("register refresh archives job: %w", err)
	}

	log.Info().Str("entry_id", entryID).Str("cron", s.refreshCron).Msg("registered refresh archives job")
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
