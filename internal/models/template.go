package models

import (
	"time"

	"github.com/fanflow/fanflow/internal/common"
)

// MessageTemplate is a reusable message body with {{placeholder}} slots.
// Rendered templates feed job payloads; the automation core treats the
// rendered string as opaque.
type MessageTemplate struct {
	ID        string    `json:"id" badgerhold:"key"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMessageTemplate creates a template with a fresh ID
func NewMessageTemplate(name, body string) *MessageTemplate {
	now := time.Now()
	return &MessageTemplate{
		ID:        common.NewTemplateID(),
		Name:      name,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
