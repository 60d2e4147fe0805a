package core

import (
	"errors"
)

var (
	// Creation of a buffer, allocator, pipeline or device failed. Fatal.
	ErrResourceCreation = errors.New("gpu resource creation failed")
	// Waiting on a completion marker failed. Fatal.
	ErrSyncFailure  = errors.New("completion marker wait failed")
	ErrDeviceLost   = errors.New("device lost")
	ErrDeviceClosed = errors.New("device closed")

	// Named content (material, mesh, texture, pipeline) is missing.
	ErrContentNotFound          = errors.New("content not found")
	ErrDuplicateContent         = errors.New("content already registered")
	ErrMaterialSlotCollision    = errors.New("material constant slot already in use")
	ErrMisalignedConstantBuffer = errors.New("constant buffer address is not aligned")
	ErrCapacityExceeded         = errors.New("capacity exceeded")
	ErrInvalidHandle            = errors.New("invalid handle")
	ErrInvalidLayer             = errors.New("invalid render layer")
	ErrUnknown                  = errors.New("unknown")
)
