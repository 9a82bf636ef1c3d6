package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
	badgerstore "github.com/fanflow/fanflow/internal/storage/badger"
)

func newTestRenderer(t *testing.T) (*Renderer, interfaces.TemplateStorage) {
	t.Helper()
	manager, err := badgerstore.NewManager(&common.BadgerConfig{Path: t.TempDir()}, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return NewRenderer(manager.TemplateStorage(), common.GetLogger()), manager.TemplateStorage()
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	renderer, storage := newTestRenderer(t)
	ctx := context.Background()

	tpl := models.NewMessageTemplate("welcome", "Hey {{username}}, thanks for subscribing! - {{creator}}")
	require.NoError(t, storage.SaveTemplate(ctx, tpl))

	body, err := renderer.Render(ctx, tpl.ID, map[string]string{
		"username": "sam",
		"creator":  "alexa",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hey sam, thanks for subscribing! - alexa", body)
}

func TestRenderLeavesUnresolvedPlaceholdersIntact(t *testing.T) {
	renderer, _ := newTestRenderer(t)
	body := renderer.RenderBody("Hi {{username}}, see {{link}}", map[string]string{"username": "sam"})
	assert.Equal(t, "Hi sam, see {{link}}", body)
}

func TestRenderMissingTemplate(t *testing.T) {
	renderer, _ := newTestRenderer(t)
	_, err := renderer.Render(context.Background(), "tpl_missing", nil)
	assert.Error(t, err)
}
