package templates

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/interfaces"
)

// placeholderPattern matches {{name}} slots in a template body
var placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z0-9_.-]+)\}\}`)

// Renderer resolves stored message templates into concrete message bodies
type Renderer struct {
	storage interfaces.TemplateStorage
	logger  arbor.ILogger
}

// NewRenderer creates a template renderer
func NewRenderer(storage interfaces.TemplateStorage, logger arbor.ILogger) *Renderer {
	return &Renderer{
		storage: storage,
		logger:  logger,
	}
}

// Render loads a template and substitutes {{placeholder}} slots from vars.
// Unresolved placeholders are logged and left intact so the gap is visible
// in the sent message rather than silently dropped.
func (r *Renderer) Render(ctx context.Context, templateID string, vars map[string]string) (string, error) {
	tpl, err := r.storage.GetTemplate(ctx, templateID)
	if err != nil {
		return "", fmt.Errorf("failed to load template %s: %w", templateID, err)
	}
	return r.RenderBody(tpl.Body, vars), nil
}

// RenderBody substitutes placeholders in an in-memory template body
func (r *Renderer) RenderBody(body string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		r.logger.Warn().Str("placeholder", name).Msg("Template placeholder not provided, leaving intact")
		return match
	})
}
