// Package frame implements the ring of per frame resources that lets the CPU
// record frame N+1 while the device still reads the buffers of frame N.
package frame

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/gpu"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Resource is everything one in-flight frame owns. The CPU must not touch it
// while the device has not reached Marker.
type Resource struct {
	Index     int
	Allocator gpu.CommandAllocator

	ObjectCB   gpu.UploadBuffer
	MaterialCB gpu.UploadBuffer
	PassCB     gpu.UploadBuffer

	// Marker is the timeline value stamped after this slot's last submission.
	// Zero means the slot was never submitted.
	Marker uint64
}

func (r *Resource) release() {
	for _, b := range []gpu.UploadBuffer{r.ObjectCB, r.MaterialCB, r.PassCB} {
		if b != nil {
			b.Release()
		}
	}
}

type RingConfig struct {
	Count        int
	MaxObjects   int
	MaxMaterials int
}

type Ring struct {
	timeline gpu.Timeline
	slots    []*Resource
	current  int
}

func NewRing(device gpu.Device, cfg RingConfig) (*Ring, error) {
	if cfg.Count <= 0 || cfg.MaxObjects <= 0 || cfg.MaxMaterials <= 0 {
		err := fmt.Errorf("invalid frame ring config %+v: %w", cfg, core.ErrResourceCreation)
		core.LogError(err.Error())
		return nil, err
	}

	alignment := device.ConstantBufferAlignment()
	objectStride := metadata.GetAligned(metadata.ObjectConstantsSize, alignment)
	materialStride := metadata.GetAligned(metadata.MaterialConstantsSize, alignment)
	passStride := metadata.GetAligned(metadata.PassConstantsSize, alignment)

	r := &Ring{
		timeline: device,
		slots:    make([]*Resource, 0, cfg.Count),
		current:  cfg.Count - 1,
	}
	for i := 0; i < cfg.Count; i++ {
		slot, err := newResource(device, i, cfg, objectStride, materialStride, passStride)
		if err != nil {
			for _, s := range r.slots {
				s.release()
			}
			err = fmt.Errorf("frame resource %d: %w: %w", i, core.ErrResourceCreation, err)
			core.LogError(err.Error())
			return nil, err
		}
		r.slots = append(r.slots, slot)
	}

	core.LogInfo("frame ring created: %d slots, strides object=%d material=%d pass=%d", cfg.Count, objectStride, materialStride, passStride)
	return r, nil
}

func newResource(device gpu.Device, index int, cfg RingConfig, objectStride, materialStride, passStride uint64) (*Resource, error) {
	res := &Resource{Index: index}
	var err error
	if res.Allocator, err = device.NewCommandAllocator(); err != nil {
		return nil, err
	}
	if res.ObjectCB, err = device.NewUploadBuffer(objectStride, cfg.MaxObjects); err != nil {
		return nil, err
	}
	if res.MaterialCB, err = device.NewUploadBuffer(materialStride, cfg.MaxMaterials); err != nil {
		res.release()
		return nil, err
	}
	if res.PassCB, err = device.NewUploadBuffer(passStride, 1); err != nil {
		res.release()
		return nil, err
	}
	return res, nil
}

// AdvanceFrame makes the next slot current, first waiting without a timeout
// for the device to finish the work last submitted from it. A failed wait is
// not recoverable.
func (r *Ring) AdvanceFrame() (*Resource, error) {
	r.current = (r.current + 1) % len(r.slots)
	slot := r.slots[r.current]

	if slot.Marker != 0 && r.timeline.Completed() < slot.Marker {
		core.LogDebug("frame slot %d waits for marker %d", slot.Index, slot.Marker)
		if err := r.timeline.Wait(slot.Marker); err != nil {
			err = fmt.Errorf("waiting for marker %d on slot %d: %w: %w", slot.Marker, slot.Index, core.ErrSyncFailure, err)
			core.LogError(err.Error())
			return nil, err
		}
	}
	return slot, nil
}

// StampCompletion records the marker the device must reach before slot may
// be reused.
func (r *Ring) StampCompletion(slot *Resource, marker uint64) {
	slot.Marker = marker
}

func (r *Ring) Current() *Resource {
	return r.slots[r.current]
}

func (r *Ring) Slot(i int) *Resource {
	return r.slots[i]
}

func (r *Ring) Len() int {
	return len(r.slots)
}

// Close waits for every stamped slot and releases the buffers.
func (r *Ring) Close() error {
	var last uint64
	for _, s := range r.slots {
		last = max(last, s.Marker)
	}
	var err error
	if last != 0 {
		if werr := r.timeline.Wait(last); werr != nil {
			err = fmt.Errorf("draining frame ring: %w: %w", core.ErrSyncFailure, werr)
		}
	}
	for _, s := range r.slots {
		s.release()
	}
	return err
}
