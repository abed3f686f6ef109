package plugin

import (
	"context"
	"errors"
	"fmt"

	"strategy-validator/internal/interfaces"
	"strategy-validator/internal/logger"
)

var (
	ErrEmptyTypeName = errors.New("no strategy type name extracted from source")
	ErrUnknownType   = errors.New("strategy type not registered")
)

// Loader materializes plugins from the registry using the type name the
// static scan extracted. Any failure here is a validation rejection for the
// strategy, never a crash of the orchestrator.
type Loader struct {
	registry *Registry
}

var _ interfaces.PluginLoader = (*Loader)(nil)

func NewLoader(registry *Registry) *Loader {
	return &Loader{registry: registry}
}

func (l *Loader) Load(ctx context.Context, source, typeName string) (plugin interfaces.StrategyPlugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			plugin = nil
			err = fmt.Errorf("strategy construction panicked: %v", r)
		}
	}()

	if typeName == "" {
		return nil, ErrEmptyTypeName
	}
	if source == "" {
		return nil, errors.New("empty source payload")
	}

	p, ok := l.registry.New(typeName)
	if !ok {
		return nil, fmt.Errorf("load %q: %w (registered: %v)", typeName, ErrUnknownType, l.registry.Names())
	}
	logger.Debug(ctx, "Strategy plugin loaded", "type_name", typeName)
	return p, nil
}
