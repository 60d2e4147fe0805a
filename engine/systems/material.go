package systems

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type MaterialSystemConfig struct {
	/** @brief The number of slots in the material constant buffer. */
	MaxMaterialCount uint32
	/** @brief How many frame resources a change has to reach. */
	FrameResourceCount int
}

/**
 * @brief The material table. Each material owns exactly one slot of the
 * material constant buffer; two materials never share a slot.
 */
type MaterialSystem struct {
	Config *MaterialSystemConfig

	materials []*metadata.Material
	lookup    map[string]metadata.MaterialHandle
	// slot -> owner, used to reject collisions
	slots map[int]metadata.MaterialHandle

	textureSystem *TextureSystem
}

func NewMaterialSystem(config *MaterialSystemConfig, ts *TextureSystem) (*MaterialSystem, error) {
	if config.MaxMaterialCount == 0 {
		err := fmt.Errorf("func NewMaterialSystem - config.MaxMaterialCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.FrameResourceCount <= 0 {
		err := fmt.Errorf("func NewMaterialSystem - config.FrameResourceCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &MaterialSystem{
		Config:        config,
		materials:     make([]*metadata.Material, 0, config.MaxMaterialCount),
		lookup:        make(map[string]metadata.MaterialHandle),
		slots:         make(map[int]metadata.MaterialHandle),
		textureSystem: ts,
	}, nil
}

func (ms *MaterialSystem) Shutdown() error {
	ms.materials = nil
	ms.lookup = nil
	ms.slots = nil
	return nil
}

/**
 * @brief Adds a material to the table. Fails when the name or the constant
 * slot is already taken, when the slot is out of range or when the diffuse
 * texture is unknown. A new material is dirty for every frame resource.
 */
func (ms *MaterialSystem) Register(config metadata.MaterialConfig) (metadata.MaterialHandle, error) {
	if _, ok := ms.lookup[config.Name]; ok {
		err := fmt.Errorf("material '%s': %w", config.Name, core.ErrDuplicateContent)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}
	if config.ConstantIndex < 0 || config.ConstantIndex >= int(ms.Config.MaxMaterialCount) {
		err := fmt.Errorf("material '%s': slot %d outside [0, %d): %w", config.Name, config.ConstantIndex, ms.Config.MaxMaterialCount, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}
	if owner, ok := ms.slots[config.ConstantIndex]; ok {
		err := fmt.Errorf("material '%s' wants slot %d owned by '%s': %w", config.Name, config.ConstantIndex, ms.materials[owner].Name, core.ErrMaterialSlotCollision)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}
	texture, err := ms.textureSystem.Lookup(config.DiffuseTexture)
	if err != nil {
		err = fmt.Errorf("material '%s': %w", config.Name, err)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}

	transform := math.NewMat4Identity()
	if config.Transform != nil {
		transform = *config.Transform
	}

	h := metadata.MaterialHandle(len(ms.materials))
	ms.materials = append(ms.materials, &metadata.Material{
		Name:           config.Name,
		ConstantIndex:  config.ConstantIndex,
		DiffuseTexture: texture,
		DiffuseAlbedo:  config.DiffuseAlbedo,
		FresnelR0:      config.FresnelR0,
		Roughness:      config.Roughness,
		Transform:      transform,
		NumFramesDirty: ms.Config.FrameResourceCount,
	})
	ms.lookup[config.Name] = h
	ms.slots[config.ConstantIndex] = h
	core.LogDebug("material '%s' registered in slot %d", config.Name, config.ConstantIndex)
	return h, nil
}

func (ms *MaterialSystem) Lookup(name string) (metadata.MaterialHandle, error) {
	h, ok := ms.lookup[name]
	if !ok {
		return metadata.InvalidHandle, fmt.Errorf("material '%s': %w", name, core.ErrContentNotFound)
	}
	return h, nil
}

func (ms *MaterialSystem) Get(h metadata.MaterialHandle) (*metadata.Material, error) {
	if h < 0 || int(h) >= len(ms.materials) {
		return nil, fmt.Errorf("material handle %d: %w", h, core.ErrInvalidHandle)
	}
	return ms.materials[h], nil
}

/**
 * @brief Applies a partial parameter update and marks the material dirty so
 * every frame resource receives the new constants.
 */
func (ms *MaterialSystem) SetParams(h metadata.MaterialHandle, params metadata.MaterialParams) error {
	m, err := ms.Get(h)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	if params.IsEmpty() {
		return nil
	}
	if params.DiffuseAlbedo != nil {
		m.DiffuseAlbedo = *params.DiffuseAlbedo
	}
	if params.FresnelR0 != nil {
		m.FresnelR0 = *params.FresnelR0
	}
	if params.Roughness != nil {
		m.Roughness = *params.Roughness
	}
	if params.Transform != nil {
		m.Transform = *params.Transform
	}
	m.NumFramesDirty = ms.Config.FrameResourceCount
	return nil
}

// All returns the materials in registration order.
func (ms *MaterialSystem) All() []*metadata.Material {
	return ms.materials
}

func (ms *MaterialSystem) Len() int {
	return len(ms.materials)
}

// ScrollUV moves the translation of the material's UV transform by (du, dv),
// wrapping a moved coordinate into (0, 1], and marks the material dirty.
func (ms *MaterialSystem) ScrollUV(h metadata.MaterialHandle, du, dv float32) error {
	m, err := ms.Get(h)
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	if du != 0 {
		m.Transform.Data[12] = wrapUnit(m.Transform.Data[12] + du)
	}
	if dv != 0 {
		m.Transform.Data[13] = wrapUnit(m.Transform.Data[13] + dv)
	}
	m.NumFramesDirty = ms.Config.FrameResourceCount
	return nil
}

func wrapUnit(v float32) float32 {
	for v <= 0 {
		v += 1
	}
	for v > 1 {
		v -= 1
	}
	return v
}
