package systems

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures the texture table can hold. */
	MaxTextureCount uint32
}

/**
 * @brief Owns the shader visible texture table. Textures occupy consecutive
 * slots in registration order and are referenced by handle.
 */
type TextureSystem struct {
	Config *TextureSystemConfig
	// Array of registered textures.
	RegisteredTextures []*metadata.Texture
	// Hashtable for texture lookups.
	RegisteredTextureTable map[string]metadata.TextureHandle

	table metadata.TextureTable
}

func NewTextureSystem(config *TextureSystemConfig, table metadata.TextureTable) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &TextureSystem{
		Config:                 config,
		RegisteredTextures:     make([]*metadata.Texture, 0, config.MaxTextureCount),
		RegisteredTextureTable: make(map[string]metadata.TextureHandle, config.MaxTextureCount),
		table:                  table,
	}, nil
}

func (ts *TextureSystem) Shutdown() error {
	ts.RegisteredTextures = nil
	ts.RegisteredTextureTable = nil
	return nil
}

/**
 * @brief Registers a texture in the next free table slot.
 * @param name The name materials refer to the texture by.
 * @param path The image file the device loads the texture from.
 */
func (ts *TextureSystem) Register(name, path string) (metadata.TextureHandle, error) {
	if _, ok := ts.RegisteredTextureTable[name]; ok {
		err := fmt.Errorf("texture '%s': %w", name, core.ErrDuplicateContent)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}
	if len(ts.RegisteredTextures) >= int(ts.Config.MaxTextureCount) {
		err := fmt.Errorf("texture '%s': table holds %d textures: %w", name, ts.Config.MaxTextureCount, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}

	h := metadata.TextureHandle(len(ts.RegisteredTextures))
	ts.RegisteredTextures = append(ts.RegisteredTextures, &metadata.Texture{
		Name:   name,
		Path:   path,
		Handle: h,
	})
	ts.RegisteredTextureTable[name] = h
	core.LogDebug("texture '%s' registered in slot %d", name, h)
	return h, nil
}

func (ts *TextureSystem) Lookup(name string) (metadata.TextureHandle, error) {
	h, ok := ts.RegisteredTextureTable[name]
	if !ok {
		return metadata.InvalidHandle, fmt.Errorf("texture '%s': %w", name, core.ErrContentNotFound)
	}
	return h, nil
}

func (ts *TextureSystem) Get(h metadata.TextureHandle) (*metadata.Texture, error) {
	if h < 0 || int(h) >= len(ts.RegisteredTextures) {
		return nil, fmt.Errorf("texture handle %d: %w", h, core.ErrInvalidHandle)
	}
	return ts.RegisteredTextures[h], nil
}

// Offset returns the table address a draw binds to sample texture h.
func (ts *TextureSystem) Offset(h metadata.TextureHandle) uint64 {
	return ts.table.Base + uint64(h)*ts.table.DescriptorSize
}

func (ts *TextureSystem) Len() int {
	return len(ts.RegisteredTextures)
}
