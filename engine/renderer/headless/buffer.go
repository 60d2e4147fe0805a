package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/castle/engine/core"
)

// UploadBuffer is host memory standing in for a mapped upload heap.
type UploadBuffer struct {
	mu       sync.Mutex
	data     []byte
	stride   uint64
	count    int
	address  uint64
	released bool
}

func (b *UploadBuffer) CopyData(index int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return fmt.Errorf("copy into released buffer: %w", core.ErrDeviceClosed)
	}
	if index < 0 || index >= b.count {
		return fmt.Errorf("element %d of %d: %w", index, b.count, core.ErrCapacityExceeded)
	}
	if uint64(len(data)) > b.stride {
		return fmt.Errorf("record of %d bytes does not fit stride %d: %w", len(data), b.stride, core.ErrCapacityExceeded)
	}
	copy(b.data[uint64(index)*b.stride:], data)
	return nil
}

func (b *UploadBuffer) Address() uint64 { return b.address }

func (b *UploadBuffer) Stride() uint64 { return b.stride }

func (b *UploadBuffer) Len() int { return b.count }

func (b *UploadBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	b.data = nil
}

// Element returns a copy of one element, stride bytes long.
func (b *UploadBuffer) Element(index int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= b.count || b.data == nil {
		return nil
	}
	start := uint64(index) * b.stride
	return append([]byte(nil), b.data[start:start+b.stride]...)
}

type commandAllocator struct {
	resets int
}

func (a *commandAllocator) Reset() error {
	a.resets++
	return nil
}
