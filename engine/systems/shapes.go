package systems

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Shape kinds understood by GenerateShape.
const (
	ShapeBox      = "box"
	ShapeGrid     = "grid"
	ShapeSphere   = "sphere"
	ShapeCylinder = "cylinder"
	ShapeCone     = "cone"
	ShapePrism    = "prism"
	ShapeDiamond  = "diamond"
	ShapePyramid  = "pyramid"
	ShapeTorus    = "torus"
	ShapeWedge    = "wedge"
)

const maxBoxSubdivisions = 6

/**
 * @brief Vertices and 32 bit indices of one generated shape. Triangles are
 * wound clockwise when seen from the outside.
 */
type MeshData struct {
	Vertices []metadata.Vertex
	Indices  []uint32
}

var (
	quadUV = []math.Vec2{{X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	triUV  = []math.Vec2{{X: 0, Y: 1}, {X: 0.5, Y: 0}, {X: 1, Y: 1}}
)

// addPolygon appends a flat shaded convex polygon as a triangle fan. The
// points are given clockwise as seen from the front.
func (md *MeshData) addPolygon(points ...math.Vec3) {
	normal := math.FaceNormal(points[0], points[1], points[2])
	uvs := quadUV
	if len(points) == 3 {
		uvs = triUV
	}
	base := uint32(len(md.Vertices))
	for i, p := range points {
		v := metadata.Vertex{Position: p, Normal: normal}
		if i < len(uvs) {
			v.TexC = uvs[i]
		}
		md.Vertices = append(md.Vertices, v)
	}
	for i := uint32(1); i+1 < uint32(len(points)); i++ {
		md.Indices = append(md.Indices, base, base+i, base+i+1)
	}
}

func nonZero(what string, v float32) float32 {
	if v == 0 {
		core.LogWarn("%s must be nonzero. Defaulting to one.", what)
		return 1.0
	}
	return v
}

func atLeast(what string, v, min uint32) uint32 {
	if v < min {
		core.LogWarn("%s must be at least %d. Defaulting to %d.", what, min, min)
		return min
	}
	return v
}

// GenerateShape builds the mesh described by config.
func GenerateShape(config metadata.ShapeConfig) (*MeshData, error) {
	switch config.Kind {
	case ShapeBox:
		return GenerateBox(config.Width, config.Height, config.Depth, config.Subdivisions), nil
	case ShapeGrid:
		md := GenerateGrid(config.Width, config.Depth, config.Rows, config.Columns)
		if config.Hills {
			ApplyHills(md)
		}
		return md, nil
	case ShapeSphere:
		return GenerateSphere(config.Radius, config.Slices, config.Stacks), nil
	case ShapeCylinder:
		return GenerateCylinder(config.Radius, config.MinorRadius, config.Height, config.Slices, config.Stacks), nil
	case ShapeCone:
		return GenerateCone(config.Radius, config.Height, config.Slices, config.Stacks), nil
	case ShapePrism:
		return GenerateTriangularPrism(config.Width, config.Height, config.Depth), nil
	case ShapeDiamond:
		return GenerateDiamond(config.Width, config.Height, config.Depth, config.Slices), nil
	case ShapePyramid:
		return GeneratePyramid(config.Width, config.Height, config.Depth), nil
	case ShapeTorus:
		return GenerateTorus(config.MinorRadius, config.Radius, config.Slices, config.Stacks), nil
	case ShapeWedge:
		return GenerateWedge(config.Width, config.Height, config.Depth), nil
	}
	return nil, fmt.Errorf("shape '%s' has unknown kind '%s': %w", config.Name, config.Kind, core.ErrContentNotFound)
}

/**
 * @brief Generates an axis aligned box centered on the origin, 24 vertices
 * before subdivision.
 * @param subdivisions How many times every triangle is split in four, at most 6.
 */
func GenerateBox(width, height, depth float32, subdivisions uint32) *MeshData {
	w2 := nonZero("width", width) * 0.5
	h2 := nonZero("height", height) * 0.5
	d2 := nonZero("depth", depth) * 0.5

	type face struct {
		normal math.Vec3
		points [4]math.Vec3
		uvs    [4]math.Vec2
	}
	faces := []face{
		// front
		{math.NewVec3(0, 0, -1),
			[4]math.Vec3{{X: -w2, Y: -h2, Z: -d2}, {X: -w2, Y: +h2, Z: -d2}, {X: +w2, Y: +h2, Z: -d2}, {X: +w2, Y: -h2, Z: -d2}},
			[4]math.Vec2{{X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
		// back
		{math.NewVec3(0, 0, 1),
			[4]math.Vec3{{X: -w2, Y: -h2, Z: +d2}, {X: +w2, Y: -h2, Z: +d2}, {X: +w2, Y: +h2, Z: +d2}, {X: -w2, Y: +h2, Z: +d2}},
			[4]math.Vec2{{X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}}},
		// top
		{math.NewVec3(0, 1, 0),
			[4]math.Vec3{{X: -w2, Y: +h2, Z: -d2}, {X: -w2, Y: +h2, Z: +d2}, {X: +w2, Y: +h2, Z: +d2}, {X: +w2, Y: +h2, Z: -d2}},
			[4]math.Vec2{{X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
		// bottom
		{math.NewVec3(0, -1, 0),
			[4]math.Vec3{{X: -w2, Y: -h2, Z: -d2}, {X: +w2, Y: -h2, Z: -d2}, {X: +w2, Y: -h2, Z: +d2}, {X: -w2, Y: -h2, Z: +d2}},
			[4]math.Vec2{{X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}}},
		// left
		{math.NewVec3(-1, 0, 0),
			[4]math.Vec3{{X: -w2, Y: -h2, Z: +d2}, {X: -w2, Y: +h2, Z: +d2}, {X: -w2, Y: +h2, Z: -d2}, {X: -w2, Y: -h2, Z: -d2}},
			[4]math.Vec2{{X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
		// right
		{math.NewVec3(1, 0, 0),
			[4]math.Vec3{{X: +w2, Y: -h2, Z: -d2}, {X: +w2, Y: +h2, Z: -d2}, {X: +w2, Y: +h2, Z: +d2}, {X: +w2, Y: -h2, Z: +d2}},
			[4]math.Vec2{{X: 0, Y: 1}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
	}

	md := &MeshData{
		Vertices: make([]metadata.Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	for i, f := range faces {
		for j := 0; j < 4; j++ {
			md.Vertices = append(md.Vertices, metadata.Vertex{Position: f.points[j], Normal: f.normal, TexC: f.uvs[j]})
		}
		o := uint32(i * 4)
		md.Indices = append(md.Indices, o+0, o+1, o+2, o+0, o+2, o+3)
	}

	for i := uint32(0); i < min(subdivisions, maxBoxSubdivisions); i++ {
		md = subdivide(md)
	}
	return md
}

func midpoint(a, b metadata.Vertex) metadata.Vertex {
	return metadata.Vertex{
		Position: a.Position.Add(b.Position).MulScalar(0.5),
		Normal:   a.Normal.Add(b.Normal).Normalized(),
		TexC:     a.TexC.Add(b.TexC).MulScalar(0.5),
	}
}

// subdivide splits every triangle into four, keeping the winding.
//
//	      v1
//	      *
//	     / \
//	 m0 *---* m1
//	   / \ / \
//	  *---*---*
//	 v0   m2   v2
func subdivide(in *MeshData) *MeshData {
	triangles := len(in.Indices) / 3
	out := &MeshData{
		Vertices: make([]metadata.Vertex, 0, triangles*6),
		Indices:  make([]uint32, 0, triangles*12),
	}
	for t := 0; t < triangles; t++ {
		v0 := in.Vertices[in.Indices[t*3+0]]
		v1 := in.Vertices[in.Indices[t*3+1]]
		v2 := in.Vertices[in.Indices[t*3+2]]

		m0 := midpoint(v0, v1)
		m1 := midpoint(v1, v2)
		m2 := midpoint(v0, v2)

		o := uint32(len(out.Vertices))
		out.Vertices = append(out.Vertices, v0, v1, v2, m0, m1, m2)
		out.Indices = append(out.Indices,
			o+0, o+3, o+5,
			o+3, o+4, o+5,
			o+5, o+4, o+2,
			o+3, o+1, o+4,
		)
	}
	return out
}

/**
 * @brief Generates a rows x columns grid of vertices in the xz-plane,
 * centered on the origin, facing +y.
 */
func GenerateGrid(width, depth float32, rows, columns uint32) *MeshData {
	width = nonZero("width", width)
	depth = nonZero("depth", depth)
	m := atLeast("rows", rows, 2)
	n := atLeast("columns", columns, 2)

	halfWidth := 0.5 * width
	halfDepth := 0.5 * depth
	dx := width / float32(n-1)
	dz := depth / float32(m-1)
	du := 1.0 / float32(n-1)
	dv := 1.0 / float32(m-1)

	md := &MeshData{
		Vertices: make([]metadata.Vertex, 0, m*n),
		Indices:  make([]uint32, 0, (m-1)*(n-1)*6),
	}
	for i := uint32(0); i < m; i++ {
		z := halfDepth - float32(i)*dz
		for j := uint32(0); j < n; j++ {
			x := -halfWidth + float32(j)*dx
			md.Vertices = append(md.Vertices, metadata.Vertex{
				Position: math.NewVec3(x, 0, z),
				Normal:   math.NewVec3(0, 1, 0),
				TexC:     math.NewVec2(float32(j)*du, float32(i)*dv),
			})
		}
	}
	for i := uint32(0); i < m-1; i++ {
		for j := uint32(0); j < n-1; j++ {
			md.Indices = append(md.Indices,
				i*n+j, i*n+j+1, (i+1)*n+j,
				(i+1)*n+j, i*n+j+1, (i+1)*n+j+1,
			)
		}
	}
	return md
}

// ApplyHills displaces every vertex with the hills height field.
func ApplyHills(md *MeshData) {
	for i := range md.Vertices {
		p := &md.Vertices[i].Position
		p.Y = math.HillsHeight(p.X, p.Z)
		md.Vertices[i].Normal = math.HillsNormal(p.X, p.Z)
	}
}

/**
 * @brief Generates a UV sphere centered on the origin. The poles are single
 * vertices, so texture coordinates are distorted there.
 */
func GenerateSphere(radius float32, slices, stacks uint32) *MeshData {
	radius = nonZero("radius", radius)
	slices = atLeast("slices", slices, 3)
	stacks = atLeast("stacks", stacks, 2)

	md := &MeshData{}
	md.Vertices = append(md.Vertices, metadata.Vertex{
		Position: math.NewVec3(0, radius, 0),
		Normal:   math.NewVec3(0, 1, 0),
		TexC:     math.NewVec2(0, 0),
	})

	phiStep := math.K_PI / float32(stacks)
	thetaStep := 2.0 * math.K_PI / float32(slices)
	for i := uint32(1); i <= stacks-1; i++ {
		phi := float32(i) * phiStep
		for j := uint32(0); j <= slices; j++ {
			theta := float32(j) * thetaStep
			p := math.SphericalToCartesian(radius, theta, phi)
			md.Vertices = append(md.Vertices, metadata.Vertex{
				Position: p,
				Normal:   p.Normalized(),
				TexC:     math.NewVec2(theta/(2.0*math.K_PI), phi/math.K_PI),
			})
		}
	}
	md.Vertices = append(md.Vertices, metadata.Vertex{
		Position: math.NewVec3(0, -radius, 0),
		Normal:   math.NewVec3(0, -1, 0),
		TexC:     math.NewVec2(0, 1),
	})

	// north pole fan
	for i := uint32(1); i <= slices; i++ {
		md.Indices = append(md.Indices, 0, i+1, i)
	}

	base := uint32(1)
	ringVertexCount := slices + 1
	for i := uint32(0); i < stacks-2; i++ {
		for j := uint32(0); j < slices; j++ {
			md.Indices = append(md.Indices,
				base+i*ringVertexCount+j,
				base+i*ringVertexCount+j+1,
				base+(i+1)*ringVertexCount+j,

				base+(i+1)*ringVertexCount+j,
				base+i*ringVertexCount+j+1,
				base+(i+1)*ringVertexCount+j+1,
			)
		}
	}

	// south pole fan
	south := uint32(len(md.Vertices) - 1)
	base = south - ringVertexCount
	for i := uint32(0); i < slices; i++ {
		md.Indices = append(md.Indices, south, base+i, base+i+1)
	}
	return md
}

/**
 * @brief Generates a cylinder along the y axis centered on the origin. The
 * radius varies linearly from bottomRadius to topRadius, a zero radius end
 * gets no cap.
 */
func GenerateCylinder(bottomRadius, topRadius, height float32, slices, stacks uint32) *MeshData {
	height = nonZero("height", height)
	slices = atLeast("slices", slices, 3)
	stacks = atLeast("stacks", stacks, 1)

	md := &MeshData{}
	stackHeight := height / float32(stacks)
	radiusStep := (topRadius - bottomRadius) / float32(stacks)
	dTheta := 2.0 * math.K_PI / float32(slices)
	dr := bottomRadius - topRadius

	for i := uint32(0); i <= stacks; i++ {
		y := -0.5*height + float32(i)*stackHeight
		r := bottomRadius + float32(i)*radiusStep
		for j := uint32(0); j <= slices; j++ {
			c := math.Cos(float32(j) * dTheta)
			s := math.Sin(float32(j) * dTheta)

			tangent := math.NewVec3(-s, 0, c)
			bitangent := math.NewVec3(dr*c, -height, dr*s)
			md.Vertices = append(md.Vertices, metadata.Vertex{
				Position: math.NewVec3(r*c, y, r*s),
				Normal:   tangent.Cross(bitangent).Normalized(),
				TexC:     math.NewVec2(float32(j)/float32(slices), 1.0-float32(i)/float32(stacks)),
			})
		}
	}

	ringVertexCount := slices + 1
	for i := uint32(0); i < stacks; i++ {
		for j := uint32(0); j < slices; j++ {
			md.Indices = append(md.Indices,
				i*ringVertexCount+j,
				(i+1)*ringVertexCount+j,
				(i+1)*ringVertexCount+j+1,

				i*ringVertexCount+j,
				(i+1)*ringVertexCount+j+1,
				i*ringVertexCount+j+1,
			)
		}
	}

	if topRadius > 0 {
		md.addCap(topRadius, 0.5*height, height, slices, true)
	}
	if bottomRadius > 0 {
		md.addCap(bottomRadius, -0.5*height, height, slices, false)
	}
	return md
}

func (md *MeshData) addCap(radius, y, height float32, slices uint32, top bool) {
	normal := math.NewVec3(0, -1, 0)
	if top {
		normal = math.NewVec3(0, 1, 0)
	}
	base := uint32(len(md.Vertices))
	dTheta := 2.0 * math.K_PI / float32(slices)
	for i := uint32(0); i <= slices; i++ {
		x := radius * math.Cos(float32(i)*dTheta)
		z := radius * math.Sin(float32(i)*dTheta)
		md.Vertices = append(md.Vertices, metadata.Vertex{
			Position: math.NewVec3(x, y, z),
			Normal:   normal,
			// scale down by the height so the cap texture is proportional to the sides
			TexC: math.NewVec2(x/height+0.5, z/height+0.5),
		})
	}
	md.Vertices = append(md.Vertices, metadata.Vertex{
		Position: math.NewVec3(0, y, 0),
		Normal:   normal,
		TexC:     math.NewVec2(0.5, 0.5),
	})
	center := uint32(len(md.Vertices) - 1)
	for i := uint32(0); i < slices; i++ {
		if top {
			md.Indices = append(md.Indices, center, base+i+1, base+i)
		} else {
			md.Indices = append(md.Indices, center, base+i, base+i+1)
		}
	}
}

// GenerateCone is a cylinder whose top radius is zero.
func GenerateCone(radius, height float32, slices, stacks uint32) *MeshData {
	return GenerateCylinder(nonZero("radius", radius), 0, height, slices, stacks)
}

/**
 * @brief Generates a prism with a triangular cross section in the yz-plane,
 * extruded along x. The ridge runs along the top.
 */
func GenerateTriangularPrism(width, height, depth float32) *MeshData {
	w := nonZero("width", width) * 0.5
	h := nonZero("height", height) * 0.5
	d := nonZero("depth", depth) * 0.5

	md := &MeshData{}
	md.addPolygon(math.NewVec3(-w, -h, +d), math.NewVec3(-w, +h, 0), math.NewVec3(-w, -h, -d))
	md.addPolygon(math.NewVec3(+w, -h, -d), math.NewVec3(+w, +h, 0), math.NewVec3(+w, -h, +d))
	md.addPolygon(math.NewVec3(-w, -h, -d), math.NewVec3(+w, -h, -d), math.NewVec3(+w, -h, +d), math.NewVec3(-w, -h, +d))
	md.addPolygon(math.NewVec3(-w, -h, -d), math.NewVec3(-w, +h, 0), math.NewVec3(+w, +h, 0), math.NewVec3(+w, -h, -d))
	md.addPolygon(math.NewVec3(+w, -h, +d), math.NewVec3(+w, +h, 0), math.NewVec3(-w, +h, 0), math.NewVec3(-w, -h, +d))
	return md
}

// GeneratePyramid generates a square based pyramid with its apex on +y.
func GeneratePyramid(width, height, depth float32) *MeshData {
	w := nonZero("width", width) * 0.5
	h := nonZero("height", height) * 0.5
	d := nonZero("depth", depth) * 0.5
	apex := math.NewVec3(0, h, 0)

	md := &MeshData{}
	md.addPolygon(math.NewVec3(-w, -h, -d), math.NewVec3(+w, -h, -d), math.NewVec3(+w, -h, +d), math.NewVec3(-w, -h, +d))
	md.addPolygon(math.NewVec3(-w, -h, -d), apex, math.NewVec3(+w, -h, -d))
	md.addPolygon(math.NewVec3(+w, -h, -d), apex, math.NewVec3(+w, -h, +d))
	md.addPolygon(math.NewVec3(+w, -h, +d), apex, math.NewVec3(-w, -h, +d))
	md.addPolygon(math.NewVec3(-w, -h, +d), apex, math.NewVec3(-w, -h, -d))
	return md
}

/**
 * @brief Generates a ramp: a vertical face at +z sloping down to the bottom
 * edge at -z.
 */
func GenerateWedge(width, height, depth float32) *MeshData {
	w := nonZero("width", width) * 0.5
	h := nonZero("height", height) * 0.5
	d := nonZero("depth", depth) * 0.5

	md := &MeshData{}
	md.addPolygon(math.NewVec3(-w, -h, -d), math.NewVec3(+w, -h, -d), math.NewVec3(+w, -h, +d), math.NewVec3(-w, -h, +d))
	md.addPolygon(math.NewVec3(+w, -h, +d), math.NewVec3(+w, +h, +d), math.NewVec3(-w, +h, +d), math.NewVec3(-w, -h, +d))
	md.addPolygon(math.NewVec3(-w, -h, -d), math.NewVec3(-w, +h, +d), math.NewVec3(+w, +h, +d), math.NewVec3(+w, -h, -d))
	md.addPolygon(math.NewVec3(-w, -h, +d), math.NewVec3(-w, +h, +d), math.NewVec3(-w, -h, -d))
	md.addPolygon(math.NewVec3(+w, -h, -d), math.NewVec3(+w, +h, +d), math.NewVec3(+w, -h, +d))
	return md
}

/**
 * @brief Generates a double pyramid over a ring of slices points in the
 * xz-plane, the gem shape.
 */
func GenerateDiamond(width, height, depth float32, slices uint32) *MeshData {
	w := nonZero("width", width) * 0.5
	h := nonZero("height", height) * 0.5
	d := nonZero("depth", depth) * 0.5
	slices = atLeast("slices", slices, 3)

	top := math.NewVec3(0, h, 0)
	bottom := math.NewVec3(0, -h, 0)
	dTheta := 2.0 * math.K_PI / float32(slices)
	ring := func(k uint32) math.Vec3 {
		theta := float32(k%slices) * dTheta
		return math.NewVec3(w*math.Cos(theta), 0, d*math.Sin(theta))
	}

	md := &MeshData{}
	for k := uint32(0); k < slices; k++ {
		md.addPolygon(ring(k+1), ring(k), top)
	}
	for k := uint32(0); k < slices; k++ {
		md.addPolygon(ring(k), ring(k+1), bottom)
	}
	return md
}

/**
 * @brief Generates a torus lying in the xz-plane.
 * @param tubeRadius The radius of the tube.
 * @param ringRadius The distance from the origin to the center of the tube.
 */
func GenerateTorus(tubeRadius, ringRadius float32, tubeSlices, ringSlices uint32) *MeshData {
	tubeRadius = nonZero("tube radius", tubeRadius)
	ringRadius = nonZero("ring radius", ringRadius)
	tubeSlices = atLeast("tube slices", tubeSlices, 3)
	ringSlices = atLeast("ring slices", ringSlices, 3)

	md := &MeshData{}
	for i := uint32(0); i <= ringSlices; i++ {
		u := float32(i) / float32(ringSlices) * 2.0 * math.K_PI
		cu, su := math.Cos(u), math.Sin(u)
		center := math.NewVec3(ringRadius*cu, 0, ringRadius*su)
		for j := uint32(0); j <= tubeSlices; j++ {
			v := float32(j) / float32(tubeSlices) * 2.0 * math.K_PI
			cv, sv := math.Cos(v), math.Sin(v)
			normal := math.NewVec3(cv*cu, sv, cv*su)
			md.Vertices = append(md.Vertices, metadata.Vertex{
				Position: center.Add(normal.MulScalar(tubeRadius)),
				Normal:   normal,
				TexC:     math.NewVec2(float32(i)/float32(ringSlices), float32(j)/float32(tubeSlices)),
			})
		}
	}

	rowLen := tubeSlices + 1
	for i := uint32(0); i < ringSlices; i++ {
		for j := uint32(0); j < tubeSlices; j++ {
			a := i*rowLen + j
			b := (i+1)*rowLen + j
			md.Indices = append(md.Indices,
				a, b+1, b,
				a, a+1, b+1,
			)
		}
	}
	return md
}
