package app

import (
	"fmt"
	"log/slog"

	"github.com/emory-libraries/fedora-indexdata/internal/config"
	"github.com/emory-libraries/fedora-indexdata/internal/contentmodel"
)

// InitializeObjectTypes builds the content model registry from the types
// registered in code followed by the types declared in configuration.
// Registration order is catalog order, so code types always come first.
func InitializeObjectTypes(cfg *config.Config, types ...contentmodel.ObjectType) (*contentmodel.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	registry, err := contentmodel.NewRegistry(types...)
	if err != nil {
		return nil, fmt.Errorf("failed to register object types: %w", err)
	}

	for _, t := range contentmodel.FromConfig(cfg.ObjectTypes) {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register configured object type '%s': %w", t.Name(), err)
		}
	}

	count := len(registry.Types())
	slog.Info("Initialized object types",
		"count", count,
		"content_model_groups", len(registry.Catalog()))
	if count == 0 {
		slog.Warn("No object types registered, discovery will report an empty catalog")
	}

	return registry, nil
}
