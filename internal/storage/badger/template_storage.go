package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
)

// TemplateStorage persists reusable message templates in Badger
type TemplateStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTemplateStorage creates a new TemplateStorage instance
func NewTemplateStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TemplateStorage {
	return &TemplateStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TemplateStorage) SaveTemplate(ctx context.Context, tpl *models.MessageTemplate) error {
	if tpl.ID == "" {
		return fmt.Errorf("template ID is required")
	}
	if tpl.Name == "" {
		return fmt.Errorf("template name is required")
	}

	tpl.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(tpl.ID, *tpl); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Trace().Str("template_id", tpl.ID).Str("name", tpl.Name).Msg("Template saved")
	return nil
}

func (s *TemplateStorage) GetTemplate(ctx context.Context, id string) (*models.MessageTemplate, error) {
	var tpl models.MessageTemplate
	if err := s.db.Store().Get(id, &tpl); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}
	return &tpl, nil
}

func (s *TemplateStorage) ListTemplates(ctx context.Context) ([]*models.MessageTemplate, error) {
	var templates []models.MessageTemplate
	if err := s.db.Store().Find(&templates, nil); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})

	result := make([]*models.MessageTemplate, len(templates))
	for i := range templates {
		result[i] = &templates[i]
	}
	return result, nil
}

func (s *TemplateStorage) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.MessageTemplate{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to delete template %s: %w", id, err)
	}
	return nil
}
