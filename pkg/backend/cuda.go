//go:build cuda

package backend

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorgonia.org/cu"

	"github.com/gpuhold/gpuhold/pkg/reservation"
)

// CUDA allocates device memory through the CUDA driver API. Each
// reservation owns its own context on its device so releases are
// independent of one another.
type CUDA struct {
	mu     sync.Mutex
	allocs map[reservation.Token]*cudaAlloc
}

type cudaAlloc struct {
	ctx  cu.CUContext
	ptr  cu.DevicePtr
	size int64
}

// NewCUDA initializes the CUDA driver
func NewCUDA() (*CUDA, error) {
	if err := cu.Init(0); err != nil {
		return nil, fmt.Errorf("failed to initialize CUDA driver: %w", err)
	}
	return &CUDA{allocs: make(map[reservation.Token]*cudaAlloc)}, nil
}

// Count implements reservation.DeviceCounter via the driver
func (c *CUDA) Count() (int, error) {
	n, err := cu.NumDevices()
	if err != nil {
		return 0, fmt.Errorf("failed to count CUDA devices: %w", err)
	}
	return n, nil
}

// Acquire allocates and zeroes sizeBytes of device memory on the GPU
func (c *CUDA) Acquire(device int, sizeBytes uint64) (reservation.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev := cu.Device(device)
	ctx, err := dev.MakeContext(cu.SchedAuto)
	if err != nil {
		return "", fmt.Errorf("failed to create context on GPU %d: %w", device, err)
	}

	ptr, err := cu.MemAlloc(int64(sizeBytes))
	if err != nil {
		cu.DestroyContext(&ctx)
		if strings.Contains(strings.ToLower(err.Error()), "out of memory") {
			return "", fmt.Errorf("%w: GPU %d: requested %d bytes", reservation.ErrOutOfCapacity, device, sizeBytes)
		}
		return "", fmt.Errorf("failed to allocate %d bytes on GPU %d: %w", sizeBytes, device, err)
	}

	// Zero the block so the driver actually backs the allocation.
	if err := cu.MemsetD8(ptr, 0, int64(sizeBytes)); err != nil {
		cu.MemFree(ptr)
		cu.DestroyContext(&ctx)
		return "", fmt.Errorf("failed to initialize block on GPU %d: %w", device, err)
	}

	tok := reservation.Token(uuid.NewString())
	c.allocs[tok] = &cudaAlloc{ctx: ctx, ptr: ptr, size: int64(sizeBytes)}
	return tok, nil
}

// Release frees the device block and its context
func (c *CUDA) Release(tok reservation.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	alloc, ok := c.allocs[tok]
	if !ok {
		return fmt.Errorf("unknown or already released token")
	}
	delete(c.allocs, tok)

	if err := cu.SetCurrentContext(alloc.ctx); err != nil {
		return fmt.Errorf("failed to activate context: %w", err)
	}
	if err := cu.MemFree(alloc.ptr); err != nil {
		return fmt.Errorf("failed to free device memory: %w", err)
	}
	if err := cu.DestroyContext(&alloc.ctx); err != nil {
		return fmt.Errorf("failed to destroy context: %w", err)
	}
	return nil
}

// Touch rewrites the first byte of the block so the allocation stays hot
func (c *CUDA) Touch(tok reservation.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	alloc, ok := c.allocs[tok]
	if !ok {
		return fmt.Errorf("unknown or already released token")
	}
	if err := cu.SetCurrentContext(alloc.ctx); err != nil {
		return fmt.Errorf("failed to activate context: %w", err)
	}
	if err := cu.MemsetD8(alloc.ptr, 0, 1); err != nil {
		return fmt.Errorf("keep-alive write failed: %w", err)
	}
	return nil
}
