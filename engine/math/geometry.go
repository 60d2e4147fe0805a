package math

// FaceNormal returns the normal of the triangle p0, p1, p2 wound clockwise
// when viewed from the front.
func FaceNormal(p0, p1, p2 Vec3) Vec3 {
	edge1 := p1.Sub(p0)
	edge2 := p2.Sub(p0)
	return edge1.Cross(edge2).Normalized()
}

// HillsHeight is the height field used for rolling terrain.
func HillsHeight(x, z float32) float32 {
	return 0.1 * (z*Sin(0.1*x) + x*Cos(0.1*z))
}

// HillsNormal is the terrain normal at (x, z), (-df/dx, 1, -df/dz) normalized.
func HillsNormal(x, z float32) Vec3 {
	n := Vec3{
		X: -0.03*z*Cos(0.1*x) - 0.1*Cos(0.1*z),
		Y: 1.0,
		Z: -0.1*Sin(0.1*x) + 0.03*x*Sin(0.1*z),
	}
	return n.Normalized()
}
