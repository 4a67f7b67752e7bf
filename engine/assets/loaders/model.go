package loaders

import (
	"bytes"
	"fmt"
	gomath "math"

	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/math"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
)

// GLTFLoader decodes glTF JSON or GLB data into a detached scene graph.
// The returned scaffold node stands for the glTF scene; its children are the
// scene's root nodes in document order.
type GLTFLoader struct{}

func (gl *GLTFLoader) Load(name string, data []byte) (*scene.Node, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode model '%s': %w: %v", name, core.ErrUnsupportedAsset, err)
	}

	if len(doc.Scenes) == 0 {
		core.LogWarn("model '%s' has no scenes", name)
		return scene.NewNode(name), nil
	}

	sceneIndex := 0
	if doc.Scene != nil {
		sceneIndex = int(*doc.Scene)
	}
	if sceneIndex >= len(doc.Scenes) {
		return nil, fmt.Errorf("model '%s': default scene %d out of range (scenes=%d): %w", name, sceneIndex, len(doc.Scenes), core.ErrUnsupportedAsset)
	}
	gs := doc.Scenes[sceneIndex]
	sceneName := gs.Name
	if sceneName == "" {
		sceneName = name
	}

	b := &gltfBuilder{doc: doc, visited: make(map[int]bool)}
	root := scene.NewNode(sceneName)
	for _, idx := range gs.Nodes {
		n, err := b.build(int(idx))
		if err != nil {
			return nil, fmt.Errorf("model '%s': %w", name, err)
		}
		if err := root.AppendChild(n); err != nil {
			return nil, err
		}
	}
	core.LogDebug("decoded model '%s': %d nodes, %d meshes, %d skins", name, len(doc.Nodes), len(doc.Meshes), len(doc.Skins))
	return root, nil
}

type gltfBuilder struct {
	doc     *gltf.Document
	visited map[int]bool
}

func (b *gltfBuilder) build(idx int) (*scene.Node, error) {
	if idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range: %w", idx, core.ErrUnsupportedAsset)
	}
	if b.visited[idx] {
		return nil, fmt.Errorf("node %d is referenced twice: %w", idx, core.ErrUnsupportedAsset)
	}
	b.visited[idx] = true

	gn := b.doc.Nodes[idx]
	name := gn.Name
	if name == "" {
		name = fmt.Sprintf("node_%d", idx)
	}
	n := scene.NewNode(name)
	if gn.Mesh != nil {
		n.Mesh = int(*gn.Mesh)
		n.Kind = scene.NodeKindMesh
		if gn.Skin != nil {
			n.Skin = int(*gn.Skin)
			n.Kind = scene.NodeKindSkinnedMesh
		}
	}
	position, rotation, scale := nodeTRS(gn)
	n.Transform.SetPositionRotationScale(position, rotation, scale)

	for _, c := range gn.Children {
		child, err := b.build(int(c))
		if err != nil {
			return nil, err
		}
		if err := n.AppendChild(child); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// nodeTRS reads the node's local transform. Zero rotation and scale mean "not
// set"; a matrix is only used when it is present and no TRS values are.
func nodeTRS(gn *gltf.Node) (math.Vec3, math.Quaternion, math.Vec3) {
	t, r, s := gn.Translation, gn.Rotation, gn.Scale

	position := math.NewVec3(float32(t[0]), float32(t[1]), float32(t[2]))
	rotation := math.Quaternion{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}
	scale := math.NewVec3(float32(s[0]), float32(s[1]), float32(s[2]))

	rotationSet := r[0] != 0 || r[1] != 0 || r[2] != 0 || r[3] != 0
	scaleSet := s[0] != 0 || s[1] != 0 || s[2] != 0
	translationSet := t[0] != 0 || t[1] != 0 || t[2] != 0

	if !translationSet && (!rotationSet || rotation.Compare(math.NewQuatIdentity(), 1e-6)) &&
		(!scaleSet || scale.Compare(math.NewVec3One(), 1e-6)) {
		var m [16]float64
		for i := range m {
			m[i] = float64(gn.Matrix[i])
		}
		if p, q, sc, ok := decomposeMatrix(m); ok {
			return p, q, sc
		}
	}

	if !rotationSet {
		rotation = math.NewQuatIdentity()
	}
	if !scaleSet {
		scale = math.NewVec3One()
	}
	return position, rotation.Normalize(), scale
}

// decomposeMatrix splits a column-major affine matrix into TRS. It reports
// false for a zero or identity matrix so the caller keeps the TRS defaults.
func decomposeMatrix(m [16]float64) (math.Vec3, math.Quaternion, math.Vec3, bool) {
	identity := [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	if m == identity || m == [16]float64{} {
		return math.Vec3{}, math.Quaternion{}, math.Vec3{}, false
	}

	position := math.NewVec3(float32(m[12]), float32(m[13]), float32(m[14]))
	sx := gomath.Sqrt(m[0]*m[0] + m[1]*m[1] + m[2]*m[2])
	sy := gomath.Sqrt(m[4]*m[4] + m[5]*m[5] + m[6]*m[6])
	sz := gomath.Sqrt(m[8]*m[8] + m[9]*m[9] + m[10]*m[10])
	if sx == 0 || sy == 0 || sz == 0 {
		return position, math.NewQuatIdentity(), math.NewVec3(float32(sx), float32(sy), float32(sz)), true
	}

	// Rotation matrix elements, row r column c.
	r00, r10, r20 := m[0]/sx, m[1]/sx, m[2]/sx
	r01, r11, r21 := m[4]/sy, m[5]/sy, m[6]/sy
	r02, r12, r22 := m[8]/sz, m[9]/sz, m[10]/sz

	var x, y, z, w float64
	trace := r00 + r11 + r22
	switch {
	case trace > 0:
		s := gomath.Sqrt(trace+1.0) * 2
		w = 0.25 * s
		x = (r21 - r12) / s
		y = (r02 - r20) / s
		z = (r10 - r01) / s
	case r00 > r11 && r00 > r22:
		s := gomath.Sqrt(1.0+r00-r11-r22) * 2
		w = (r21 - r12) / s
		x = 0.25 * s
		y = (r01 + r10) / s
		z = (r02 + r20) / s
	case r11 > r22:
		s := gomath.Sqrt(1.0+r11-r00-r22) * 2
		w = (r02 - r20) / s
		x = (r01 + r10) / s
		y = 0.25 * s
		z = (r12 + r21) / s
	default:
		s := gomath.Sqrt(1.0+r22-r00-r11) * 2
		w = (r10 - r01) / s
		x = (r02 + r20) / s
		y = (r12 + r21) / s
		z = 0.25 * s
	}
	rotation := math.Quaternion{X: float32(x), Y: float32(y), Z: float32(z), W: float32(w)}.Normalize()
	return position, rotation, math.NewVec3(float32(sx), float32(sy), float32(sz)), true
}
