package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewTemplateID generates a unique message template ID with the "tpl_" prefix
func NewTemplateID() string {
	return "tpl_" + uuid.New().String()
}
