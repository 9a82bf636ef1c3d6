// -----------------------------------------------------------------------
// Ad Scheduler - enqueues recurring promotional posts on cron schedules
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
	"github.com/fanflow/fanflow/internal/services/templates"
)

// AdScheduler turns configured ad slots into create_post jobs. It only
// enqueues; the job runner owns execution, retries and pacing.
type AdScheduler struct {
	config   common.SchedulerConfig
	jobs     interfaces.JobStorage
	renderer *templates.Renderer
	events   interfaces.EventService
	logger   arbor.ILogger
	cron     *cron.Cron
}

// NewAdScheduler creates an ad scheduler
func NewAdScheduler(config common.SchedulerConfig, jobs interfaces.JobStorage, renderer *templates.Renderer, events interfaces.EventService, logger arbor.ILogger) *AdScheduler {
	return &AdScheduler{
		config:   config,
		jobs:     jobs,
		renderer: renderer,
		events:   events,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers every configured ad slot and starts the cron loop.
// A bad cron expression fails startup rather than silently skipping a slot.
func (s *AdScheduler) Start() error {
	if !s.config.Enabled {
		s.logger.Debug().Msg("Ad scheduler disabled")
		return nil
	}

	for _, ad := range s.config.Ads {
		ad := ad
		if ad.Schedule == "" {
			return fmt.Errorf("ad slot %q has no cron schedule", ad.Name)
		}
		if _, err := s.cron.AddFunc(ad.Schedule, func() { s.enqueue(ad) }); err != nil {
			return fmt.Errorf("invalid cron schedule %q for ad slot %q: %w", ad.Schedule, ad.Name, err)
		}
		s.logger.Info().
			Str("name", ad.Name).
			Str("schedule", ad.Schedule).
			Msg("Ad slot registered")
	}

	s.cron.Start()
	s.logger.Info().Int("slots", len(s.config.Ads)).Msg("Ad scheduler started")
	return nil
}

// Stop halts the cron loop and waits for any running enqueue to finish
func (s *AdScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Ad scheduler stopped")
}

// enqueue creates one create_post job for an ad slot tick
func (s *AdScheduler) enqueue(ad common.AdScheduleConfig) {
	ctx := context.Background()

	caption := ""
	if ad.TemplateID != "" {
		rendered, err := s.renderer.Render(ctx, ad.TemplateID, ad.Variables)
		if err != nil {
			s.logger.Error().Err(err).Str("name", ad.Name).Msg("Failed to render ad caption, skipping tick")
			return
		}
		caption = rendered
	}

	job, err := models.NewJob(models.JobTypeCreatePost, &models.CreatePostPayload{
		MediaPath: ad.MediaPath,
		Caption:   caption,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("name", ad.Name).Msg("Failed to build ad job")
		return
	}

	if err := s.jobs.SaveJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("name", ad.Name).Msg("Failed to enqueue ad job")
		return
	}

	s.logger.Info().
		Str("name", ad.Name).
		Str("job_id", job.ID).
		Msg("Ad post enqueued")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{
			Type:      interfaces.EventJobCreated,
			Timestamp: time.Now(),
			Payload:   map[string]interface{}{"job_id": job.ID, "source": "ad_scheduler", "slot": ad.Name},
		})
	}
}
