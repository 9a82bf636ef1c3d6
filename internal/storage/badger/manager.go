package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
)

// Manager aggregates the Badger-backed storage implementations over one
// shared connection.
type Manager struct {
	db        *BadgerDB
	jobs      interfaces.JobStorage
	templates interfaces.TemplateStorage
	kv        interfaces.KeyValueStorage
}

// NewManager opens the database and wires up the storage backends
func NewManager(config *common.BadgerConfig, logger arbor.ILogger) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:        db,
		jobs:      NewJobStorage(db, logger),
		templates: NewTemplateStorage(db, logger),
		kv:        NewKVStorage(db, logger),
	}, nil
}

func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobs
}

func (m *Manager) TemplateStorage() interfaces.TemplateStorage {
	return m.templates
}

func (m *Manager) KVStorage() interfaces.KeyValueStorage {
	return m.kv
}

func (m *Manager) Close() error {
	return m.db.Close()
}
