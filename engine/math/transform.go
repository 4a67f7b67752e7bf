package math

func TransformCreate() *Transform {
	t := &Transform{}
	t.SetPositionRotationScale(NewVec3Zero(), NewQuatIdentity(), NewVec3One())
	return t
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
}

func (t *Transform) SetPositionRotation(position Vec3, rotation Quaternion) {
	t.Position = position
	t.Rotation = rotation
}

func (t *Transform) SetPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) {
	t.Position = position
	t.Rotation = rotation
	t.Scale = scale
}

// WorldPosition walks the parent chain.
func (t *Transform) WorldPosition() Vec3 {
	if t == nil {
		return NewVec3Zero()
	}
	if t.Parent == nil {
		return t.Position
	}
	p := t.Parent
	return p.WorldPosition().Add(p.WorldRotation().RotateVec3(p.LossyScale().Mul(t.Position)))
}

func (t *Transform) WorldRotation() Quaternion {
	if t == nil {
		return NewQuatIdentity()
	}
	if t.Parent == nil {
		return t.Rotation
	}
	return t.Parent.WorldRotation().Mul(t.Rotation).Normalize()
}

/**
 * @brief The world scale, approximated as the component-wise product of the
 * scales up the chain. Exact unless a rotated parent is scaled non-uniformly.
 */
func (t *Transform) LossyScale() Vec3 {
	if t == nil {
		return NewVec3One()
	}
	if t.Parent == nil {
		return t.Scale
	}
	return t.Parent.LossyScale().Mul(t.Scale)
}

/**
 * @brief Attaches t to parent (nil detaches). When worldPositionStays is true the
 * local values are recomputed so the world position, rotation and scale do not
 * move; otherwise the local values are kept and the node follows the new parent.
 */
func (t *Transform) SetParent(parent *Transform, worldPositionStays bool) {
	if !worldPositionStays {
		t.Parent = parent
		return
	}

	wp := t.WorldPosition()
	wr := t.WorldRotation()
	ws := t.LossyScale()

	t.Parent = parent
	if parent == nil {
		t.SetPositionRotationScale(wp, wr, ws)
		return
	}

	pInv := parent.WorldRotation().Inverse()
	pScale := parent.LossyScale()
	t.Position = pInv.RotateVec3(wp.Sub(parent.WorldPosition())).Div(pScale)
	t.Rotation = pInv.Mul(wr).Normalize()
	t.Scale = ws.Div(pScale)
}
