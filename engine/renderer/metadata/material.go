package metadata

import (
	"encoding/binary"

	"github.com/spaghettifunk/castle/engine/math"
)

/**
 * @brief Material configuration typically loaded from
 * a file or created in code to load a material from.
 */
type MaterialConfig struct {
	/** @brief The name of the material. */
	Name string
	/** @brief The slot the material occupies in the material constant buffer. */
	ConstantIndex int
	/** @brief The name of the diffuse texture. */
	DiffuseTexture string
	DiffuseAlbedo  math.Vec4
	FresnelR0      math.Vec3
	Roughness      float32
	/** @brief Optional UV transform. Identity when nil. */
	Transform *math.Mat4
}

/**
 * @brief A material, the shading parameters of a surface plus the texture it
 * samples.
 */
type Material struct {
	Name           string
	ConstantIndex  int
	DiffuseTexture TextureHandle

	DiffuseAlbedo math.Vec4
	FresnelR0     math.Vec3
	Roughness     float32
	/** @brief UV transform, animated for scrolling surfaces. */
	Transform math.Mat4

	/** @brief Number of frame resources that still hold stale constants. */
	NumFramesDirty int
}

// MaterialParams is a partial update; nil fields keep their current value.
type MaterialParams struct {
	DiffuseAlbedo *math.Vec4
	FresnelR0     *math.Vec3
	Roughness     *float32
	Transform     *math.Mat4
}

func (p MaterialParams) IsEmpty() bool {
	return p.DiffuseAlbedo == nil && p.FresnelR0 == nil && p.Roughness == nil && p.Transform == nil
}

// MaterialConstants is the per material record read by the pixel shader.
type MaterialConstants struct {
	DiffuseAlbedo math.Vec4
	FresnelR0     math.Vec3
	Roughness     float32
	/** @brief Stored transposed. */
	MatTransform math.Mat4
}

func (c MaterialConstants) Bytes() []byte {
	b, _ := binary.Append(nil, binary.LittleEndian, c)
	return b
}
