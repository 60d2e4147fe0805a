package systems

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type GeometrySystemConfig struct {
	/**
	 * @brief NOTE: The maximum number of meshes that can be loaded at once.
	 */
	MaxGeometryCount uint32
}

// MeshUploader copies mesh data into device memory.
type MeshUploader interface {
	UploadMesh(mesh *metadata.MeshGeometry) error
}

/**
 * @brief The mesh provider. Meshes pack several submeshes into one shared
 * vertex and index buffer; render items copy the submesh draw arguments.
 */
type GeometrySystem struct {
	Config *GeometrySystemConfig

	meshes []*metadata.MeshGeometry
	lookup map[string]metadata.MeshHandle

	jobSystem *JobSystem
	uploader  MeshUploader
}

func NewGeometrySystem(config *GeometrySystemConfig, js *JobSystem, uploader MeshUploader) (*GeometrySystem, error) {
	if config.MaxGeometryCount == 0 {
		err := fmt.Errorf("func NewGeometrySystem - config.MaxGeometryCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &GeometrySystem{
		Config:    config,
		meshes:    make([]*metadata.MeshGeometry, 0, config.MaxGeometryCount),
		lookup:    make(map[string]metadata.MeshHandle),
		jobSystem: js,
		uploader:  uploader,
	}, nil
}

func (gs *GeometrySystem) Shutdown() error {
	gs.meshes = nil
	gs.lookup = nil
	return nil
}

/**
 * @brief Generates every shape on the job system and packs them, in order,
 * into one mesh. Each shape becomes a submesh named after it.
 */
func (gs *GeometrySystem) BuildShapeGeometry(name string, shapes []metadata.ShapeConfig) (metadata.MeshHandle, error) {
	if err := gs.checkName(name); err != nil {
		return metadata.InvalidHandle, err
	}

	generated := make([]*MeshData, len(shapes))
	tasks := make([]func() error, len(shapes))
	for i, shape := range shapes {
		tasks[i] = func() error {
			md, err := GenerateShape(shape)
			if err != nil {
				return err
			}
			generated[i] = md
			return nil
		}
	}
	if err := gs.jobSystem.Run(tasks...); err != nil {
		err = fmt.Errorf("mesh '%s': %w", name, err)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}

	mesh := &metadata.MeshGeometry{
		Name:         name,
		VertexStride: metadata.VertexStride,
		Submeshes:    make(map[string]metadata.Submesh, len(shapes)),
	}
	for i, md := range generated {
		shape := shapes[i]
		if _, ok := mesh.Submeshes[shape.Name]; ok {
			err := fmt.Errorf("mesh '%s' submesh '%s': %w", name, shape.Name, core.ErrDuplicateContent)
			core.LogError(err.Error())
			return metadata.InvalidHandle, err
		}
		// indices are 16 bit and relative to the submesh base vertex
		if len(md.Vertices) > gomath.MaxUint16+1 {
			err := fmt.Errorf("mesh '%s' submesh '%s' has %d vertices, 16 bit indices address %d: %w",
				name, shape.Name, len(md.Vertices), gomath.MaxUint16+1, core.ErrCapacityExceeded)
			core.LogError(err.Error())
			return metadata.InvalidHandle, err
		}

		mesh.Submeshes[shape.Name] = metadata.Submesh{
			IndexCount: uint32(len(md.Indices)),
			StartIndex: uint32(len(mesh.Indices)),
			BaseVertex: int32(len(mesh.Vertices)),
		}
		mesh.Vertices = append(mesh.Vertices, md.Vertices...)
		for _, idx := range md.Indices {
			mesh.Indices = append(mesh.Indices, uint16(idx))
		}
	}

	return gs.register(mesh)
}

/**
 * @brief Builds a point list mesh, one point per sprite, drawn as a single
 * submesh.
 */
func (gs *GeometrySystem) BuildSpriteGeometry(name, submesh string, sprites []metadata.SpriteVertex) (metadata.MeshHandle, error) {
	if err := gs.checkName(name); err != nil {
		return metadata.InvalidHandle, err
	}
	if len(sprites) == 0 || len(sprites) > gomath.MaxUint16+1 {
		err := fmt.Errorf("mesh '%s' needs 1 to %d sprites, got %d: %w", name, gomath.MaxUint16+1, len(sprites), core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}

	mesh := &metadata.MeshGeometry{
		Name:           name,
		SpriteVertices: append([]metadata.SpriteVertex(nil), sprites...),
		Indices:        make([]uint16, len(sprites)),
		VertexStride:   metadata.SpriteVertexStride,
		Submeshes: map[string]metadata.Submesh{
			submesh: {IndexCount: uint32(len(sprites))},
		},
	}
	for i := range mesh.Indices {
		mesh.Indices[i] = uint16(i)
	}
	return gs.register(mesh)
}

func (gs *GeometrySystem) checkName(name string) error {
	if _, ok := gs.lookup[name]; ok {
		err := fmt.Errorf("mesh '%s': %w", name, core.ErrDuplicateContent)
		core.LogError(err.Error())
		return err
	}
	if len(gs.meshes) >= int(gs.Config.MaxGeometryCount) {
		err := fmt.Errorf("mesh '%s': at most %d meshes: %w", name, gs.Config.MaxGeometryCount, core.ErrCapacityExceeded)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (gs *GeometrySystem) register(mesh *metadata.MeshGeometry) (metadata.MeshHandle, error) {
	if err := gs.uploader.UploadMesh(mesh); err != nil {
		err = fmt.Errorf("uploading mesh '%s': %w", mesh.Name, err)
		core.LogError(err.Error())
		return metadata.InvalidHandle, err
	}
	mesh.Handle = metadata.MeshHandle(len(gs.meshes))
	gs.meshes = append(gs.meshes, mesh)
	gs.lookup[mesh.Name] = mesh.Handle
	core.LogInfo("mesh '%s' uploaded: %d vertices, %d indices, %d submeshes", mesh.Name, mesh.VertexCount(), len(mesh.Indices), len(mesh.Submeshes))
	return mesh.Handle, nil
}

func (gs *GeometrySystem) Lookup(name string) (metadata.MeshHandle, error) {
	h, ok := gs.lookup[name]
	if !ok {
		return metadata.InvalidHandle, fmt.Errorf("mesh '%s': %w", name, core.ErrContentNotFound)
	}
	return h, nil
}

func (gs *GeometrySystem) Get(h metadata.MeshHandle) (*metadata.MeshGeometry, error) {
	if h < 0 || int(h) >= len(gs.meshes) {
		return nil, fmt.Errorf("mesh handle %d: %w", h, core.ErrInvalidHandle)
	}
	return gs.meshes[h], nil
}

// Submesh returns the draw arguments of a named submesh.
func (gs *GeometrySystem) Submesh(h metadata.MeshHandle, name string) (metadata.Submesh, error) {
	mesh, err := gs.Get(h)
	if err != nil {
		return metadata.Submesh{}, err
	}
	sm, ok := mesh.Submeshes[name]
	if !ok {
		return metadata.Submesh{}, fmt.Errorf("submesh '%s' of mesh '%s': %w", name, mesh.Name, core.ErrContentNotFound)
	}
	return sm, nil
}

func (gs *GeometrySystem) Len() int {
	return len(gs.meshes)
}
