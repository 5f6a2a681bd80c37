// Package backend provides allocation backends the reservation core
// drives through the reservation.Backend seam.
package backend

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/gpuhold/gpuhold/pkg/reservation"
)

const pageSize = 4096

// HostMem reserves host RAM. The device id is a logical slot: every slot
// draws from the same physical memory, which lets the reservation core
// run on hosts without accelerators.
type HostMem struct {
	mu sync.Mutex
	// held buffers by token; dropping the reference releases the block
	blocks map[reservation.Token][]byte
	// bytes kept free so the holder never starves the host
	headroomBytes uint64
}

// DefaultHeadroomBytes is kept free on the host regardless of what is
// requested (512 MiB).
const DefaultHeadroomBytes = 512 * 1024 * 1024

// NewHostMem creates a host-memory backend with default headroom
func NewHostMem() *HostMem {
	return &HostMem{
		blocks:        make(map[reservation.Token][]byte),
		headroomBytes: DefaultHeadroomBytes,
	}
}

// SetHeadroom overrides how many bytes are always left free
func (h *HostMem) SetHeadroom(bytes uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.headroomBytes = bytes
}

// Acquire allocates and commits sizeBytes of host memory
func (h *HostMem) Acquire(device int, sizeBytes uint64) (reservation.Token, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	vm, err := mem.VirtualMemory()
	if err != nil {
		return "", fmt.Errorf("failed to probe host memory: %w", err)
	}
	if vm.Available < sizeBytes+h.headroomBytes {
		return "", fmt.Errorf("%w: slot %d: requested %d bytes, %d available (headroom %d)",
			reservation.ErrOutOfCapacity, device, sizeBytes, vm.Available, h.headroomBytes)
	}

	buf := make([]byte, sizeBytes)
	// Write one byte per page so the memory is actually committed, not
	// just mapped.
	for i := uint64(0); i < sizeBytes; i += pageSize {
		buf[i] = 1
	}

	tok := reservation.Token(uuid.NewString())
	h.blocks[tok] = buf
	return tok, nil
}

// Release drops the block behind the token
func (h *HostMem) Release(tok reservation.Token) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.blocks[tok]; !ok {
		return fmt.Errorf("unknown or already released token")
	}
	delete(h.blocks, tok)
	return nil
}

// Touch performs a no-op write/read cycle on the head of the block
func (h *HostMem) Touch(tok reservation.Token) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.blocks[tok]
	if !ok {
		return fmt.Errorf("unknown or already released token")
	}
	if len(buf) > 0 {
		buf[0]++
		buf[0]--
	}
	return nil
}

// HeldBlocks returns the number of currently held blocks
func (h *HostMem) HeldBlocks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blocks)
}
