package retrieval

import (
	"context"
	"fmt"
	"io"
)

// ResourceManager bounds concurrent fetches and response body sizes
type ResourceManager struct {
	slots       chan struct{}
	maxBodySize int64
}

// NewResourceManager creates a new resource manager
func NewResourceManager(maxConcurrent int, maxBodySize int64) *ResourceManager {
	return &ResourceManager{
		slots:       make(chan struct{}, maxConcurrent),
		maxBodySize: maxBodySize,
	}
}

// Acquire claims a fetch slot, blocking until one frees or ctx ends
func (rm *ResourceManager) Acquire(ctx context.Context) error {
	select {
	case rm.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for resource: %w", ctx.Err())
	}
}

// Release returns a fetch slot
func (rm *ResourceManager) Release() {
	<-rm.slots
}

// ReadBody reads at most maxBodySize bytes and rejects anything larger.
// Reading one extra byte distinguishes an at-limit body from an oversized one.
func (rm *ResourceManager) ReadBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, rm.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > rm.maxBodySize {
		return nil, fmt.Errorf("response body too large (max %d bytes)", rm.maxBodySize)
	}
	return data, nil
}
