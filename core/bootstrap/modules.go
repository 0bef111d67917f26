package bootstrap

import (
	"context"

	"github.com/m3rciful/assistbot/core/kv"
)

// Seeder is a named startup step that loads reference data into the store
// before updates are served.
type Seeder struct {
	Name string
	Run  func(ctx context.Context, store kv.Store) error
}

func (s Seeder) label() string {
	if s.Name == "" {
		return "unnamed"
	}
	return s.Name
}
