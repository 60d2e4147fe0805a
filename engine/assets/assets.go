package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/castle/engine/assets/loaders"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

const updateQueueSize = 64

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

// MaterialUpdate carries the parameters of one material that changed on
// disk. Only the changed fields are set.
type MaterialUpdate struct {
	Name   string
	Params metadata.MaterialParams
}

/**
 * @brief Indexes the asset directory and watches it for changes. Scenes
 * loaded through LoadScene are decoded again when their file is written and
 * the material parameters that changed are published on Updates().
 */
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader
	// scenes loaded so far by absolute path, reloads are diffed against them
	scenes map[string]*loaders.SceneConfig

	mutex sync.RWMutex

	events   *core.EventBus
	updates  chan MaterialUpdate
	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	started  bool
	isClosed bool
}

// NewAssetManager creates the manager. events may be nil; otherwise every
// scene reload fires EVENT_CODE_SCENE_RELOADED with the number of material
// updates in U32[0].
func NewAssetManager(events *core.EventBus) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		scenes:   make(map[string]*loaders.SceneConfig),
		events:   events,
		updates:  make(chan MaterialUpdate, updateQueueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		fsnotify: fsWatch,
	}
	// Register loaders
	am.registerLoader(AssetTypeScene, &SceneLoader{})
	return am, nil
}

// Initialize indexes assetsDir and starts watching it and all of its
// sub-directories.
func (am *AssetManager) Initialize(assetsDir string) error {
	if err := am.addRecursive(assetsDir); err != nil {
		return err
	}

	am.mutex.Lock()
	am.started = true
	am.mutex.Unlock()
	go am.start()

	core.LogInfo("watching %s for asset changes", assetsDir)
	return nil
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.closed() {
		return errors.New("asset manager already closed")
	}
	return am.watchRecursive(name)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

// Updates delivers material changes picked up from scene files. The
// channel is closed by Shutdown.
func (am *AssetManager) Updates() <-chan MaterialUpdate {
	return am.updates
}

// Asset returns the index entry of a file below the watched directory.
func (am *AssetManager) Asset(path string) (AssetInfo, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return AssetInfo{}, false
	}
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[abs]
	return info, ok
}

// LoadScene decodes a scene file and remembers it, so later writes to the
// file are diffed against this version.
func (am *AssetManager) LoadScene(path string) (*loaders.SceneConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	scene, err := am.load(abs, AssetTypeScene)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.scenes[abs] = scene
	am.assets[abs] = AssetInfo{Path: abs, Type: AssetTypeScene, LastLoaded: time.Now()}
	am.mutex.Unlock()

	core.LogInfo("scene '%s' loaded from %s", scene.Name, path)
	return scene, nil
}

func (am *AssetManager) load(path string, assetType AssetType) (*loaders.SceneConfig, error) {
	loader, loaderExists := am.loaders[assetType]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", assetType)
	}
	v, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	scene, ok := v.(*loaders.SceneConfig)
	if !ok {
		return nil, fmt.Errorf("loader for %s returned %T", assetType, v)
	}
	return scene, nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	started := am.started
	am.mutex.Unlock()

	close(am.done)
	if started {
		<-am.stopped
	}
	// the watcher goroutine was the only sender
	close(am.updates)
	return am.fsnotify.Close()
}

func (am *AssetManager) closed() bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return am.isClosed
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("watching %s: %s", e.Name, err)
					}
					continue
				}
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			// a renamed file shows up again as a Create under its new name
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list
// and indexes the files it finds.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.indexFile(walkPath)
		return nil
	})
}

func (am *AssetManager) indexFile(path string) (string, AssetType) {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return "", assetType
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", AssetTypeNone
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[abs]
	info.Path = abs
	info.Type = assetType
	am.assets[abs] = info
	return abs, assetType
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	abs, assetType := am.indexFile(path)
	if assetType != AssetTypeScene {
		return
	}

	am.mutex.RLock()
	_, loaded := am.scenes[abs]
	am.mutex.RUnlock()
	if loaded {
		am.reloadScene(abs)
	}
}

func (am *AssetManager) reloadScene(path string) {
	scene, err := am.load(path, AssetTypeScene)
	if err != nil {
		// editors often write in several steps, the next event retries
		core.LogWarn("reloading %s failed, keeping the previous version: %s", path, err)
		return
	}

	am.mutex.Lock()
	previous := am.scenes[path]
	am.scenes[path] = scene
	info := am.assets[path]
	info.LastLoaded = time.Now()
	am.assets[path] = info
	am.mutex.Unlock()

	updates := DiffMaterials(previous, scene)
	for _, u := range updates {
		select {
		case am.updates <- u:
		case <-am.done:
			return
		}
	}
	core.LogInfo("scene %s reloaded, %d material(s) changed", path, len(updates))

	if am.events != nil {
		ctx := core.EventContext{}
		ctx.Data.U32[0] = uint32(len(updates))
		am.events.Fire(core.EVENT_CODE_SCENE_RELOADED, am, ctx)
	}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, abs)
}

/**
 * @brief Compares the materials of two versions of a scene and returns one
 * update per material whose albedo, fresnel or roughness changed. Materials
 * that were added, removed, moved to another slot or given another texture
 * cannot be changed at runtime and are only reported in the log.
 */
func DiffMaterials(previous, next *loaders.SceneConfig) []MaterialUpdate {
	if previous == nil || next == nil {
		return nil
	}
	old := make(map[string]loaders.MaterialConfig, len(previous.Materials))
	for _, m := range previous.Materials {
		old[m.Name] = m
	}

	var updates []MaterialUpdate
	for _, m := range next.Materials {
		prev, ok := old[m.Name]
		if !ok {
			core.LogWarn("material '%s' was added, restart to use it", m.Name)
			continue
		}
		delete(old, m.Name)
		if prev.Slot != m.Slot || prev.Texture != m.Texture {
			core.LogWarn("material '%s' changed slot or texture, restart to apply", m.Name)
		}

		var params metadata.MaterialParams
		if prev.Albedo != m.Albedo {
			albedo := math.NewVec4(m.Albedo[0], m.Albedo[1], m.Albedo[2], m.Albedo[3])
			params.DiffuseAlbedo = &albedo
		}
		if prev.Fresnel != m.Fresnel {
			fresnel := math.NewVec3(m.Fresnel[0], m.Fresnel[1], m.Fresnel[2])
			params.FresnelR0 = &fresnel
		}
		if prev.Roughness != m.Roughness {
			roughness := m.Roughness
			params.Roughness = &roughness
		}
		if !params.IsEmpty() {
			updates = append(updates, MaterialUpdate{Name: m.Name, Params: params})
		}
	}
	for name := range old {
		core.LogWarn("material '%s' was removed, it stays in use until restart", name)
	}
	return updates
}
