package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/rig"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
	"github.com/spaghettifunk/anima-avatar/engine/state"
)

const humanoidGLTF = `{
  "asset": {"version": "2.0"},
  "scenes": [{"name": "AvatarScene", "nodes": [0, 16]}],
  "nodes": [
    {"name": "mixamorig:Hips", "children": [1, 4, 7, 10, 13]},
    {"name": "mixamorig:Spine", "children": [2]},
    {"name": "mixamorig:Neck", "children": [3]},
    {"name": "mixamorig:Head"},
    {"name": "mixamorig:LeftArm", "children": [5]},
    {"name": "mixamorig:LeftForeArm", "children": [6]},
    {"name": "mixamorig:LeftHand"},
    {"name": "mixamorig:RightArm", "children": [8]},
    {"name": "mixamorig:RightForeArm", "children": [9]},
    {"name": "mixamorig:RightHand"},
    {"name": "mixamorig:LeftUpLeg", "children": [11]},
    {"name": "mixamorig:LeftLeg", "children": [12]},
    {"name": "mixamorig:LeftFoot"},
    {"name": "mixamorig:RightUpLeg", "children": [14]},
    {"name": "mixamorig:RightLeg", "children": [15]},
    {"name": "mixamorig:RightFoot"},
    {"name": "Body", "mesh": 0, "skin": 0}
  ],
  "meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
  "skins": [{"joints": [0]}]
}`

func testGame(config *ApplicationConfig) *Game {
	return &Game{
		ApplicationConfig: config,
		FnBoot: func(world *scene.World) (*HostScene, error) {
			container, err := world.CreateNode("AvatarContainer", nil)
			if err != nil {
				return nil, err
			}
			root, err := world.CreateNode("Rig", nil)
			if err != nil {
				return nil, err
			}
			if _, err := world.CreateNode("CameraRig", root); err != nil {
				return nil, err
			}
			return &HostScene{Rig: rig.New(root, true), Container: container}, nil
		},
	}
}

func memoryConfig() *ApplicationConfig {
	config := DefaultApplicationConfig()
	config.State = state.StoreConfig{Backend: state.BackendMemory}
	config.Application.TickRate = Duration{5 * time.Millisecond}
	return config
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultApplicationConfig(), config)

	config, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 1, config.Avatar.ClearRootFromIndex)
	assert.True(t, config.Avatar.WorldPositionStays)
	assert.Equal(t, state.BackendTOML, config.State.Backend)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anima.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[application]
log_level = "debug"

[avatar]
start_url = "https://models.example.com/avatar.glb"
clear_root_from_index = 2
world_position_stays = false

[state]
backend = "sqlite"
path = "session.db"

[fetch]
timeout = "30s"
headers = { Authorization = "Bearer token" }

[watch]
enabled = true
debounce = "1s"
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", config.Application.LogLevel)
	assert.Equal(t, "Anima Avatar", config.Application.Name, "unset keys keep their default")
	assert.Equal(t, "https://models.example.com/avatar.glb", config.Avatar.StartURL)
	assert.Equal(t, 2, config.Avatar.ClearRootFromIndex)
	assert.False(t, config.Avatar.WorldPositionStays)
	assert.True(t, config.Avatar.ApplyRootMotion)
	assert.Equal(t, state.StoreConfig{Backend: state.BackendSQLite, Path: "session.db"}, config.State)
	assert.Equal(t, 30*time.Second, config.Fetch.Timeout.Duration)
	assert.True(t, config.Watch.Enabled)
	assert.Equal(t, time.Second, config.Watch.Debounce.Duration)

	client := config.ClientConfig()
	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.Equal(t, "Bearer token", client.Headers["Authorization"])
	assert.Equal(t, 2, client.MaxRetries)
}

func TestLoadConfig_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "[avatar]\nstart_uri = \"typo\"\n",
		"bad duration":    "[fetch]\ntimeout = \"soon\"\n",
		"negative index":  "[avatar]\nclear_root_from_index = -1\n",
		"unknown backend": "[state]\nbackend = \"redis\"\n",
		"not toml":        "this is = = not toml",
		"zero tick rate":  "[application]\ntick_rate = \"0s\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "anima.toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestEngine_FetchTransplantsLocalModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatar.gltf")
	require.NoError(t, os.WriteFile(path, []byte(humanoidGLTF), 0o644))

	e, err := New(testGame(memoryConfig()))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	require.True(t, e.Fetch(context.Background(), path))

	host := e.Host()
	assert.Equal(t, []string{"CameraRig", "mixamorig:Hips", "Body"}, childNames(host.Rig.Root()))
	require.True(t, host.Rig.IsAnimatable())
	assert.Equal(t, "mixamorig:LeftForeArm", host.Rig.Mapping().Bone(rig.LeftLowerArm).Name())

	session := e.Session()
	assert.Equal(t, path, session.StartURL)
	assert.True(t, session.DownloadOnStart)
}

func TestEngine_FetchEmptyModelAbortsTransplant(t *testing.T) {
	docs := map[string]string{
		"no scenes":   `{"asset":{"version":"2.0"}}`,
		"empty scene": `{"asset":{"version":"2.0"},"scenes":[{"name":"Nothing","nodes":[]}]}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "empty.gltf")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

			var logs bytes.Buffer
			core.SetLogOutput(&logs)
			defer core.SetLogOutput(os.Stderr)

			e, err := New(testGame(memoryConfig()))
			require.NoError(t, err)
			require.NoError(t, e.Initialize())

			assert.True(t, e.Fetch(context.Background(), path), "the model itself loaded")
			host := e.Host()
			assert.Equal(t, []string{"CameraRig"}, childNames(host.Rig.Root()))
			assert.False(t, host.Rig.IsAnimatable())
			require.NoError(t, e.Shutdown())
			assert.Zero(t, host.Container.ChildCount(), "the empty scaffold is discarded")

			out := logs.String()
			assert.Contains(t, out, "nothing to transplant")
			assert.NotContains(t, out, "missing required bones")
		})
	}
}

func TestEngine_RunAutoLoadsAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "avatar.gltf")
	require.NoError(t, os.WriteFile(model, []byte(humanoidGLTF), 0o644))

	config := memoryConfig()
	config.State = state.StoreConfig{Backend: state.BackendTOML, Path: filepath.Join(dir, "session.toml")}
	store, err := state.Open(config.State)
	require.NoError(t, err)
	store.SetString(state.KeyStartURL, model)
	store.SetBool(state.KeyDownloadOnStart, true)
	require.NoError(t, store.Close())

	e, err := New(testGame(config))
	require.NoError(t, err)
	require.NoError(t, e.Initialize())

	runErr := make(chan error, 1)
	go func() { runErr <- e.Run() }()

	rigRoot := e.Host().Rig.Root()
	require.Eventually(t, func() bool { return e.Host().Rig.IsAnimatable() }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return e.Host().Container.Find("AvatarScene") == nil
	}, 2*time.Second, 5*time.Millisecond, "the ticker removes the scaffold")

	require.NoError(t, e.Shutdown())
	require.NoError(t, <-runErr)
	assert.Equal(t, EngineStageShutdown, e.Stage())
	assert.Equal(t, 3, rigRoot.ChildCount())
	require.NoError(t, e.Shutdown())
}

func TestEngine_StageChecks(t *testing.T) {
	_, err := New(&Game{})
	assert.Error(t, err)

	e, err := New(testGame(memoryConfig()))
	require.NoError(t, err)
	assert.Error(t, e.Run(), "run before initialize")
	require.NoError(t, e.Initialize())
	assert.Error(t, e.Initialize())
	require.NoError(t, e.Shutdown())
}

func childNames(n *scene.Node) []string {
	out := []string{}
	for _, c := range n.Children() {
		out = append(out, c.Name())
	}
	return out
}
