package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
)

func TestPublishReachesSubscribers(t *testing.T) {
	svc := NewService(common.GetLogger())
	var received int32
	done := make(chan struct{})

	err := svc.Subscribe(interfaces.EventJobCompleted, func(ctx context.Context, event interfaces.Event) error {
		atomic.AddInt32(&received, 1)
		close(done)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{
		Type:      interfaces.EventJobCompleted,
		Timestamp: time.Now(),
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&received))
}

func TestPublishSyncCollectsHandlerErrors(t *testing.T) {
	svc := NewService(common.GetLogger())

	require.NoError(t, svc.Subscribe(interfaces.EventJobFailed, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("handler broke")
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventJobFailed, func(ctx context.Context, event interfaces.Event) error {
		return nil
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventJobFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 errors")
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	svc := NewService(common.GetLogger())
	assert.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventSessionLost}))
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	svc := NewService(common.GetLogger())
	assert.Error(t, svc.Subscribe(interfaces.EventJobCreated, nil))
}
