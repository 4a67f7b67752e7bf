package math

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

/** @brief A quaternion, used to represent rotational orientation. Stored as x, y, z, w. */
type Quaternion struct {
	X, Y, Z, W float32
}

/**
 * @brief Represents the transform of a node in the scene. Position, rotation and
 * scale are local to the parent transform, if one is assigned.
 * NOTE: Parent should only be changed through SetParent so the world-space
 * bookkeeping stays consistent.
 */
type Transform struct {
	/** @brief The position relative to the parent. */
	Position Vec3
	/** @brief The rotation relative to the parent. */
	Rotation Quaternion
	/** @brief The scale relative to the parent. */
	Scale Vec3
	/** @brief A pointer to a parent transform if one is assigned. Can also be nil. */
	Parent *Transform
}
