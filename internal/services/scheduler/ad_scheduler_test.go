package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
	"github.com/fanflow/fanflow/internal/services/templates"
	badgerstore "github.com/fanflow/fanflow/internal/storage/badger"
)

func newTestScheduler(t *testing.T, config common.SchedulerConfig) (*AdScheduler, *badgerstore.Manager) {
	t.Helper()
	manager, err := badgerstore.NewManager(&common.BadgerConfig{Path: t.TempDir()}, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	renderer := templates.NewRenderer(manager.TemplateStorage(), common.GetLogger())
	return NewAdScheduler(config, manager.JobStorage(), renderer, nil, common.GetLogger()), manager
}

func TestStartRejectsInvalidCronSchedule(t *testing.T) {
	sched, _ := newTestScheduler(t, common.SchedulerConfig{
		Enabled: true,
		Ads: []common.AdScheduleConfig{
			{Name: "daily promo", Schedule: "not a cron spec"},
		},
	})
	assert.Error(t, sched.Start())
}

func TestStartDisabledIsNoop(t *testing.T) {
	sched, _ := newTestScheduler(t, common.SchedulerConfig{Enabled: false})
	assert.NoError(t, sched.Start())
}

func TestEnqueueCreatesPostJobWithRenderedCaption(t *testing.T) {
	sched, manager := newTestScheduler(t, common.SchedulerConfig{Enabled: true})
	ctx := context.Background()

	tpl := models.NewMessageTemplate("promo", "New content from {{creator}}!")
	require.NoError(t, manager.TemplateStorage().SaveTemplate(ctx, tpl))

	sched.enqueue(common.AdScheduleConfig{
		Name:       "evening slot",
		TemplateID: tpl.ID,
		MediaPath:  "/media/promo.jpg",
		Variables:  map[string]string{"creator": "alexa"},
	})

	jobs, err := manager.JobStorage().ListJobs(ctx, &interfaces.JobListOptions{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobTypeCreatePost, jobs[0].Type)

	payload, err := jobs[0].CreatePostPayload()
	require.NoError(t, err)
	assert.Equal(t, "/media/promo.jpg", payload.MediaPath)
	assert.Equal(t, "New content from alexa!", payload.Caption)
}

func TestEnqueueSkipsTickWhenTemplateMissing(t *testing.T) {
	sched, manager := newTestScheduler(t, common.SchedulerConfig{Enabled: true})

	sched.enqueue(common.AdScheduleConfig{
		Name:       "broken slot",
		TemplateID: "tpl_missing",
		MediaPath:  "/media/promo.jpg",
	})

	jobs, err := manager.JobStorage().ListJobs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
