package assets

import (
	"path/filepath"

	"github.com/spaghettifunk/castle/engine/assets/loaders"
)

type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeScene
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeScene:
		return "scene"
	}
	return "none"
}

// Loader decodes one type of asset from disk. The concrete type of the
// returned value depends on the loader.
type Loader interface {
	Load(path string) (any, error)
}

// SceneLoader decodes .toml scene files into *loaders.SceneConfig.
type SceneLoader struct{}

func (sl *SceneLoader) Load(path string) (any, error) {
	scene, err := loaders.LoadScene(path)
	if err != nil {
		return nil, err
	}
	return scene, nil
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".toml":
		return AssetTypeScene
	default:
		return AssetTypeNone
	}
}
