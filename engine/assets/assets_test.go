package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spaghettifunk/castle/engine/assets/loaders"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func castleScene(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "assets", "scenes", "castle.toml"))
	require.NoError(t, err)
	return string(data)
}

// replaceFile swaps the file in one rename so the watcher never sees it half
// written.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := filepath.Join(filepath.Dir(filepath.Dir(path)), "scene.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, AssetTypeScene, determineAssetType("assets/scenes/castle.toml"))
	assert.Equal(t, AssetTypeNone, determineAssetType("textures/water1.dds"))
	assert.Equal(t, "scene", AssetTypeScene.String())
}

func TestDiffMaterials(t *testing.T) {
	previous := &loaders.SceneConfig{Materials: []loaders.MaterialConfig{
		{Name: "water0", Slot: 4, Texture: "waterTex", Albedo: [4]float32{1, 1, 1, 0.5}, Fresnel: [3]float32{1, 1, 1}},
		{Name: "sand0", Slot: 2, Texture: "sandTex", Albedo: [4]float32{1, 1, 1, 1}, Roughness: 0.95},
		{Name: "ice0", Slot: 5, Texture: "iceTex"},
	}}
	next := &loaders.SceneConfig{Materials: []loaders.MaterialConfig{
		{Name: "water0", Slot: 4, Texture: "waterTex", Albedo: [4]float32{1, 1, 1, 0.3}, Fresnel: [3]float32{1, 1, 1}},
		{Name: "sand0", Slot: 2, Texture: "sandTex", Albedo: [4]float32{1, 1, 1, 1}, Roughness: 0.95},
		{Name: "moss0", Slot: 6, Texture: "mossTex"},
	}}

	updates := DiffMaterials(previous, next)
	require.Len(t, updates, 1)
	assert.Equal(t, "water0", updates[0].Name)
	require.NotNil(t, updates[0].Params.DiffuseAlbedo)
	assert.Equal(t, math.NewVec4(1, 1, 1, 0.3), *updates[0].Params.DiffuseAlbedo)
	assert.Nil(t, updates[0].Params.FresnelR0)
	assert.Nil(t, updates[0].Params.Roughness)

	assert.Empty(t, DiffMaterials(previous, previous))
	assert.Empty(t, DiffMaterials(nil, next))
}

func TestLoadSceneIndexesTheFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "castle.toml")
	require.NoError(t, os.WriteFile(path, []byte(castleScene(t)), 0o644))

	am, err := NewAssetManager(nil)
	require.NoError(t, err)
	defer am.Shutdown()

	scene, err := am.LoadScene(path)
	require.NoError(t, err)
	assert.Equal(t, "castle", scene.Name)

	info, ok := am.Asset(path)
	require.True(t, ok)
	assert.Equal(t, AssetTypeScene, info.Type)
	assert.False(t, info.LastLoaded.IsZero())

	_, err = am.LoadScene(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestSceneHotReloadPublishesMaterialUpdates(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "scenes")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "castle.toml")
	content := castleScene(t)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	events := core.NewEventBus()
	reloaded := make(chan uint32, 4)
	events.Register(core.EVENT_CODE_SCENE_RELOADED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		reloaded <- data.Data.U32[0]
		return true
	})

	am, err := NewAssetManager(events)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	defer am.Shutdown()

	_, err = am.LoadScene(path)
	require.NoError(t, err)

	// sand0 is the only material with this roughness
	require.Equal(t, 1, strings.Count(content, "roughness = 0.95"))
	replaceFile(t, path, strings.Replace(content, "roughness = 0.95", "roughness = 0.4", 1))

	select {
	case u := <-am.Updates():
		assert.Equal(t, "sand0", u.Name)
		require.NotNil(t, u.Params.Roughness)
		assert.Equal(t, float32(0.4), *u.Params.Roughness)
		assert.Nil(t, u.Params.DiffuseAlbedo)
	case <-time.After(5 * time.Second):
		t.Fatal("no material update after the scene was rewritten")
	}

	select {
	case n := <-reloaded:
		assert.Equal(t, uint32(1), n)
	case <-time.After(5 * time.Second):
		t.Fatal("scene reload event never fired")
	}
}

func TestBrokenReloadKeepsThePreviousScene(t *testing.T) {
	dir := t.TempDir()
	scenes := filepath.Join(dir, "scenes")
	require.NoError(t, os.Mkdir(scenes, 0o755))
	path := filepath.Join(scenes, "castle.toml")
	content := castleScene(t)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	am, err := NewAssetManager(nil)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(scenes))
	defer am.Shutdown()

	_, err = am.LoadScene(path)
	require.NoError(t, err)

	replaceFile(t, path, "name = ")
	// then a valid edit relative to the version loaded first
	replaceFile(t, path, strings.Replace(content, "albedo = [1.0, 1.0, 1.0, 0.8]", "albedo = [1.0, 1.0, 1.0, 0.6]", 1))

	select {
	case u := <-am.Updates():
		assert.Equal(t, "ice0", u.Name)
		require.NotNil(t, u.Params.DiffuseAlbedo)
		assert.InDelta(t, 0.6, u.Params.DiffuseAlbedo.W, 1e-6)
	case <-time.After(5 * time.Second):
		t.Fatal("no material update after the scene was fixed")
	}
}

func TestShutdownClosesUpdates(t *testing.T) {
	am, err := NewAssetManager(nil)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(t.TempDir()))
	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())

	_, open := <-am.Updates()
	assert.False(t, open)
	assert.Error(t, am.Initialize(t.TempDir()))
}
