package math

/**
 * @brief Represents the placement of an object in the world as a scale,
 * a rotation around the Y axis and a translation, applied in that order.
 */
type Transform struct {
	/** @brief The scale in the world. */
	Scale Vec3
	/** @brief The rotation around the Y axis, in radians. */
	RotationY float32
	/** @brief The position in the world. */
	Translation Vec3
}

// NewTransform returns a transform with unit scale, no rotation and no
// translation.
func NewTransform() Transform {
	return Transform{Scale: NewVec3One()}
}

func NewTransformFromPosition(position Vec3) Transform {
	t := NewTransform()
	t.Translation = position
	return t
}

// Matrix composes the transform as S*R*T.
func (t Transform) Matrix() Mat4 {
	m := NewMat4Scale(t.Scale)
	if t.RotationY != 0 {
		m = m.Mul(NewMat4EulerY(t.RotationY))
	}
	return m.Mul(NewMat4Translation(t.Translation))
}
