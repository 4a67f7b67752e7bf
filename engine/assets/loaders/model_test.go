package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/math"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
)

const avatarGLTF = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"name": "AvatarScene", "nodes": [0]}],
  "nodes": [
    {"name": "Armature", "children": [1, 3, 4]},
    {"name": "Hips", "translation": [0, 1, 0], "children": [2]},
    {"name": "Spine", "translation": [0, 0.25, 0]},
    {"name": "Body", "mesh": 0, "skin": 0},
    {"name": "Glasses", "mesh": 0}
  ],
  "meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
  "skins": [{"joints": [1, 2]}]
}`

func childNames(n *scene.Node) []string {
	names := make([]string, 0, n.ChildCount())
	for _, c := range n.Children() {
		names = append(names, c.Name())
	}
	return names
}

func TestGLTFLoader_BuildsHierarchy(t *testing.T) {
	root, err := (&GLTFLoader{}).Load("avatar", []byte(avatarGLTF))
	require.NoError(t, err)

	assert.Equal(t, "AvatarScene", root.Name())
	require.Equal(t, 1, root.ChildCount())

	armature := root.Child(0)
	assert.Equal(t, "Armature", armature.Name())
	assert.Equal(t, []string{"Hips", "Body", "Glasses"}, childNames(armature))

	hips := armature.Child(0)
	assert.Equal(t, scene.NodeKindTransform, hips.Kind)
	assert.True(t, hips.Transform.Position.Compare(math.NewVec3(0, 1, 0), 1e-6))
	assert.True(t, hips.Transform.Rotation.Compare(math.NewQuatIdentity(), 1e-6))
	assert.True(t, hips.Transform.Scale.Compare(math.NewVec3One(), 1e-6))

	spine := hips.Child(0)
	assert.True(t, spine.Transform.WorldPosition().Compare(math.NewVec3(0, 1.25, 0), 1e-5))

	body := armature.Child(1)
	assert.Equal(t, scene.NodeKindSkinnedMesh, body.Kind)
	assert.Equal(t, 0, body.Mesh)
	assert.Equal(t, 0, body.Skin)

	glasses := armature.Child(2)
	assert.Equal(t, scene.NodeKindMesh, glasses.Kind)
	assert.Equal(t, scene.InvalidIndex, glasses.Skin)
}

func TestGLTFLoader_SceneNameFallsBackToAssetName(t *testing.T) {
	doc := `{"asset":{"version":"2.0"},"scenes":[{"nodes":[0]}],"nodes":[{}]}`
	root, err := (&GLTFLoader{}).Load("model", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "model", root.Name())
	require.Equal(t, 1, root.ChildCount())
	assert.Equal(t, "node_0", root.Child(0).Name())
}

func TestGLTFLoader_NoScenesGivesEmptyScaffold(t *testing.T) {
	root, err := (&GLTFLoader{}).Load("empty", []byte(`{"asset":{"version":"2.0"}}`))
	require.NoError(t, err)
	assert.Equal(t, "empty", root.Name())
	assert.Zero(t, root.ChildCount())
}

func TestGLTFLoader_MatrixIsDecomposed(t *testing.T) {
	doc := `{"asset":{"version":"2.0"},"scenes":[{"nodes":[0]}],
	  "nodes":[{"name":"M","matrix":[2,0,0,0, 0,2,0,0, 0,0,2,0, 2,3,4,1]}]}`
	root, err := (&GLTFLoader{}).Load("matrix", []byte(doc))
	require.NoError(t, err)

	m := root.Child(0)
	assert.True(t, m.Transform.Position.Compare(math.NewVec3(2, 3, 4), 1e-5), "got %+v", m.Transform.Position)
	assert.True(t, m.Transform.Scale.Compare(math.NewVec3(2, 2, 2), 1e-5))
	assert.True(t, m.Transform.Rotation.Compare(math.NewQuatIdentity(), 1e-5))
}

func TestGLTFLoader_RejectsBrokenDocuments(t *testing.T) {
	cases := map[string]string{
		"not a model":        `definitely not gltf`,
		"child out of range": `{"asset":{"version":"2.0"},"scenes":[{"nodes":[0]}],"nodes":[{"children":[5]}]}`,
		"node reused":        `{"asset":{"version":"2.0"},"scenes":[{"nodes":[0]}],"nodes":[{"children":[1,1]},{}]}`,
		"scene out of range": `{"asset":{"version":"2.0"},"scene":3,"scenes":[{"nodes":[]}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := (&GLTFLoader{}).Load("broken", []byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrUnsupportedAsset)
		})
	}
}

func TestBinaryLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avatar.glb")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	data, err := (&BinaryLoader{}).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	_, err = (&BinaryLoader{MaxBytes: 4}).Load(path)
	assert.Error(t, err)

	_, err = (&BinaryLoader{}).Load(dir)
	assert.Error(t, err)

	_, err = (&BinaryLoader{}).Load(filepath.Join(dir, "missing.glb"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
