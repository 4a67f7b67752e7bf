package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const avatarGLTF = `{
  "asset": {"version": "2.0"},
  "scenes": [{"nodes": [0]}],
  "nodes": [
    {"name": "Hips", "children": [1, 3, 6, 9, 12]},
    {"name": "Spine", "children": [2]},
    {"name": "Head"},
    {"name": "LeftArm", "children": [4]},
    {"name": "LeftForeArm", "children": [5]},
    {"name": "LeftHand"},
    {"name": "RightArm", "children": [7]},
    {"name": "RightForeArm", "children": [8]},
    {"name": "RightHand"},
    {"name": "LeftUpLeg", "children": [10]},
    {"name": "LeftLeg", "children": [11]},
    {"name": "LeftFoot"},
    {"name": "RightUpLeg", "children": [13]},
    {"name": "RightLeg", "children": [14]},
    {"name": "RightFoot"}
  ]
}`

// writeConfig writes a config whose session lives next to it.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	config := fmt.Sprintf(`
[application]
log_level = "error"
tick_rate = "10ms"

[state]
backend = "toml"
path = %q
`, filepath.Join(dir, "session.toml"))
	path := filepath.Join(dir, "anima.toml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o644))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_FetchThenState(t *testing.T) {
	config, dir := writeConfig(t)
	model := filepath.Join(dir, "avatar.gltf")
	require.NoError(t, os.WriteFile(model, []byte(avatarGLTF), 0o644))

	out, err := execute(t, "fetch", model, "-c", config, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("loaded %s (15 bones mapped)", model))

	out, err = execute(t, "state", "-c", config)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("AvatarStartUrl = %q\nHasAvatarDownloadOnStart = true\n", model), out)
}

func TestCLI_FetchMissingFileFails(t *testing.T) {
	config, dir := writeConfig(t)
	model := filepath.Join(dir, "avatar.gltf")
	require.NoError(t, os.WriteFile(model, []byte(avatarGLTF), 0o644))
	_, err := execute(t, "fetch", model, "-c", config, "--log-level", "error")
	require.NoError(t, err)

	missing := filepath.Join(dir, "missing.glb")
	_, err = execute(t, "fetch", missing, "-c", config, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not fetch avatar")

	out, err := execute(t, "state", "-c", config)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("AvatarStartUrl = %q\nHasAvatarDownloadOnStart = false\n", model), out,
		"a failed fetch disables auto-load and keeps the last good source")
}

func TestCLI_Arguments(t *testing.T) {
	config, _ := writeConfig(t)

	_, err := execute(t, "fetch", "-c", config)
	assert.Error(t, err, "fetch needs a location")

	_, err = execute(t, "state", "extra", "-c", config)
	assert.Error(t, err)

	broken := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[application]\nunknown_key = 1\n"), 0o644))
	_, err = execute(t, "state", "-c", broken)
	assert.Error(t, err, "unknown config keys are rejected")
}
