package serviceinterfaces

import (
	"context"
)

// Lifecycle defines the interface for services that hold resources until shutdown
type Lifecycle interface {
	// Shutdown waits for in-flight work and releases resources
	Shutdown(ctx context.Context) error
}
