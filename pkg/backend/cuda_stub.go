//go:build !cuda

package backend

import (
	"fmt"

	"github.com/gpuhold/gpuhold/pkg/reservation"
)

// CUDA is unavailable in builds without the cuda tag.
type CUDA struct{}

// NewCUDA fails: this binary was built without CUDA support
func NewCUDA() (*CUDA, error) {
	return nil, fmt.Errorf("built without CUDA support: rebuild with -tags cuda")
}

func (c *CUDA) Count() (int, error) {
	return 0, fmt.Errorf("built without CUDA support")
}

func (c *CUDA) Acquire(device int, sizeBytes uint64) (reservation.Token, error) {
	return "", fmt.Errorf("built without CUDA support")
}

func (c *CUDA) Release(tok reservation.Token) error {
	return fmt.Errorf("built without CUDA support")
}

func (c *CUDA) Touch(tok reservation.Token) error {
	return fmt.Errorf("built without CUDA support")
}
