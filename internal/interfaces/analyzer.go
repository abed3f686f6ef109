package interfaces

import (
	"context"

	"strategy-validator/internal/types"
)

// StaticAnalyzer is the cheap structural pre-filter run before a strategy is
// instantiated. It also extracts the exported type name needed by the loader.
type StaticAnalyzer interface {
	Scan(ctx context.Context, source string) (types.ScanResult, error)
}
