package handlers

import (
	"context"

	"github.com/polyscribe/polyscribe/internal/core/provider"
)

type CapabilitiesHandler struct{}

func NewCapabilitiesHandler() *CapabilitiesHandler { return &CapabilitiesHandler{} }

type EmptyInput struct{}

// List returns the static provider capability table so clients can populate
// provider/model pickers without hardcoding the matrix.
func (h *CapabilitiesHandler) List(_ context.Context, _ *EmptyInput) (*DataOutput[[]provider.Capability], error) {
	return OK(provider.ListCapabilities()), nil
}
