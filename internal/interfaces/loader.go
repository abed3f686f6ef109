package interfaces

import "context"

// PluginLoader turns a source payload into a callable plugin instance. A load
// failure is a validation rejection, never a crash.
type PluginLoader interface {
	Load(ctx context.Context, source, typeName string) (StrategyPlugin, error)
}
