package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ConnFactory opens connections for registered adapter types.
type ConnFactory interface {
	// Open creates a connection for the given datasource type.
	Open(ctx context.Context, dsType string, config map[string]any) (Conn, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewConnFactory returns a factory that uses the global registry.
func NewConnFactory(logger *zap.Logger) ConnFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{logger: logger}
}

func (f *registryFactory) Open(ctx context.Context, dsType string, config map[string]any) (Conn, error) {
	open := GetOpener(dsType)
	if open == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	return open(ctx, config, f.logger.With(zap.String("adapter", dsType)))
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements ConnFactory at compile time.
var _ ConnFactory = (*registryFactory)(nil)
