package loaders

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

/**
 * @brief A scene description as written in a .toml scene file. It names the
 * textures, materials, pipelines and geometry a scene is built from, and the
 * render items that place them.
 */
type SceneConfig struct {
	Name        string     `toml:"name"`
	ClearColour [4]float32 `toml:"clear_colour"`

	Camera     CameraConfig      `toml:"camera"`
	Lighting   LightingConfig    `toml:"lighting"`
	Textures   []TextureConfig   `toml:"textures"`
	Materials  []MaterialConfig  `toml:"materials"`
	Pipelines  []PipelineConfig  `toml:"pipelines"`
	Layers     map[string]string `toml:"layers"`
	Geometry   []GeometryConfig  `toml:"geometry"`
	Sprites    []SpriteConfig    `toml:"sprites"`
	Items      []ItemConfig      `toml:"items"`
	Animations []AnimationConfig `toml:"animations"`
}

type CameraConfig struct {
	Position [3]float32 `toml:"position"`
	// optional, the camera looks down +z when unset
	LookAt     *[3]float32 `toml:"look_at"`
	FovDegrees float32     `toml:"fov_degrees"`
	Near       float32     `toml:"near"`
	Far        float32     `toml:"far"`
}

type LightingConfig struct {
	Ambient   [4]float32    `toml:"ambient"`
	FogColour [4]float32    `toml:"fog_colour"`
	FogStart  float32       `toml:"fog_start"`
	FogRange  float32       `toml:"fog_range"`
	Lights    []LightConfig `toml:"lights"`
}

// LightConfig fields left unset keep the values of metadata.DefaultLight.
type LightConfig struct {
	Kind         string      `toml:"kind"`
	Strength     *[3]float32 `toml:"strength"`
	Direction    *[3]float32 `toml:"direction"`
	Position     *[3]float32 `toml:"position"`
	FalloffStart *float32    `toml:"falloff_start"`
	FalloffEnd   *float32    `toml:"falloff_end"`
	SpotPower    *float32    `toml:"spot_power"`
}

type TextureConfig struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type MaterialConfig struct {
	Name      string     `toml:"name"`
	Slot      int        `toml:"slot"`
	Texture   string     `toml:"texture"`
	Albedo    [4]float32 `toml:"albedo"`
	Fresnel   [3]float32 `toml:"fresnel"`
	Roughness float32    `toml:"roughness"`
}

type PipelineConfig struct {
	Name           string `toml:"name"`
	VertexShader   string `toml:"vs"`
	GeometryShader string `toml:"gs"`
	PixelShader    string `toml:"ps"`
	Topology       string `toml:"topology"`
	Blend          string `toml:"blend"`
	Cull           string `toml:"cull"`
	AlphaTest      bool   `toml:"alpha_test"`
}

// GeometryConfig is one vertex/index buffer pair holding every listed shape
// as a submesh.
type GeometryConfig struct {
	Name   string                 `toml:"name"`
	Shapes []metadata.ShapeConfig `toml:"shapes"`
}

/**
 * @brief Billboard points scattered over rectangular regions. The same seed
 * always yields the same placement.
 */
type SpriteConfig struct {
	Mesh    string         `toml:"mesh"`
	Submesh string         `toml:"submesh"`
	Size    float32        `toml:"size"`
	Y       float32        `toml:"y"`
	Seed    uint64         `toml:"seed"`
	Regions []SpriteRegion `toml:"regions"`
}

type SpriteRegion struct {
	Count int     `toml:"count"`
	MinX  float32 `toml:"min_x"`
	MaxX  float32 `toml:"max_x"`
	MinZ  float32 `toml:"min_z"`
	MaxZ  float32 `toml:"max_z"`
}

/**
 * @brief One render item, or a row of them when Ring or Line is set. The
 * world transform is Scale * RotY(RotateY) * Translate; TexScale becomes the
 * texture transform.
 */
type ItemConfig struct {
	Name     string `toml:"name"`
	Mesh     string `toml:"mesh"`
	Submesh  string `toml:"submesh"`
	Material string `toml:"material"`
	Layer    string `toml:"layer"`
	// defaults to triangle_list
	Topology  string      `toml:"topology"`
	Scale     *[3]float32 `toml:"scale"`
	RotateY   float32     `toml:"rotate_y"`
	Translate [3]float32  `toml:"translate"`
	TexScale  *[3]float32 `toml:"tex_scale"`

	Ring *RingRepeat `toml:"ring"`
	Line *LineRepeat `toml:"line"`
}

/**
 * @brief Places Count copies on a circle of Radius around the item
 * translation, at angles Offset + i*Step degrees. With Rotate each copy is
 * also turned by its angle.
 */
type RingRepeat struct {
	Count  int     `toml:"count"`
	Radius float32 `toml:"radius"`
	Step   float32 `toml:"step"`
	Offset float32 `toml:"offset"`
	Rotate bool    `toml:"rotate"`
}

// LineRepeat places Count copies, each Step further than the previous one.
type LineRepeat struct {
	Count int        `toml:"count"`
	Step  [3]float32 `toml:"step"`
}

// AnimationConfig scrolls the texture coordinates of a material, in UV
// units per second.
type AnimationConfig struct {
	Material string  `toml:"material"`
	DU       float32 `toml:"du"`
	DV       float32 `toml:"dv"`
}

/**
 * @brief A render item after repeats were expanded and transforms built.
 */
type RenderItemConfig struct {
	Name         string
	Mesh         string
	Submesh      string
	Material     string
	Layer        metadata.RenderLayer
	Topology     metadata.PrimitiveTopology
	World        math.Mat4
	TexTransform math.Mat4
}

// LoadScene reads, decodes and validates a scene file. Unknown keys are an
// error so typos do not silently fall back to zero values.
func LoadScene(path string) (*SceneConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scene := &SceneConfig{}
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(scene); err != nil {
		err = fmt.Errorf("decoding scene %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := validateScene(scene); err != nil {
		err = fmt.Errorf("scene %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	return scene, nil
}

func validateScene(scene *SceneConfig) error {
	if scene.Name == "" {
		return fmt.Errorf("scene name is required")
	}
	if !isValidColour(scene.ClearColour) {
		return fmt.Errorf("clear_colour values must be between 0.0 and 1.0")
	}
	if scene.Camera.Near <= 0 || scene.Camera.Far <= scene.Camera.Near {
		return fmt.Errorf("camera needs 0 < near < far, got near=%v far=%v", scene.Camera.Near, scene.Camera.Far)
	}
	if scene.Camera.FovDegrees <= 0 || scene.Camera.FovDegrees >= 180 {
		return fmt.Errorf("camera fov_degrees must be in (0, 180)")
	}

	if len(scene.Lighting.Lights) > metadata.MaxLights {
		return fmt.Errorf("%d lights, at most %d: %w", len(scene.Lighting.Lights), metadata.MaxLights, core.ErrCapacityExceeded)
	}
	for i, l := range scene.Lighting.Lights {
		if err := validateLight(l); err != nil {
			return fmt.Errorf("light %d: %w", i, err)
		}
	}

	textures := make(map[string]bool, len(scene.Textures))
	for _, t := range scene.Textures {
		if t.Name == "" || t.Path == "" {
			return fmt.Errorf("texture needs a name and a path")
		}
		if textures[t.Name] {
			return fmt.Errorf("texture '%s': %w", t.Name, core.ErrDuplicateContent)
		}
		textures[t.Name] = true
	}

	materials := make(map[string]bool, len(scene.Materials))
	for _, m := range scene.Materials {
		if err := validateMaterial(m, textures); err != nil {
			return err
		}
		if materials[m.Name] {
			return fmt.Errorf("material '%s': %w", m.Name, core.ErrDuplicateContent)
		}
		materials[m.Name] = true
	}

	pipelines := make(map[string]metadata.PipelineDesc, len(scene.Pipelines))
	for _, p := range scene.Pipelines {
		desc, err := p.Desc()
		if err != nil {
			return err
		}
		pipelines[p.Name] = desc
	}
	// every layer an item is drawn in needs a pipeline of the item's topology
	layers := make(map[metadata.RenderLayer]metadata.PipelineDesc, len(scene.Layers))
	for name, pipeline := range scene.Layers {
		layer, err := metadata.ParseRenderLayer(name)
		if err != nil {
			return fmt.Errorf("%w: %w", err, core.ErrInvalidLayer)
		}
		desc, ok := pipelines[pipeline]
		if !ok {
			return fmt.Errorf("layer %s uses pipeline '%s': %w", name, pipeline, core.ErrContentNotFound)
		}
		layers[layer] = desc
	}

	// mesh name -> submesh names
	meshes := make(map[string]map[string]bool)
	for _, g := range scene.Geometry {
		if g.Name == "" || len(g.Shapes) == 0 {
			return fmt.Errorf("geometry needs a name and at least one shape")
		}
		if meshes[g.Name] != nil {
			return fmt.Errorf("mesh '%s': %w", g.Name, core.ErrDuplicateContent)
		}
		meshes[g.Name] = make(map[string]bool, len(g.Shapes))
		for _, s := range g.Shapes {
			meshes[g.Name][s.Name] = true
		}
	}
	for _, s := range scene.Sprites {
		if err := validateSprites(s); err != nil {
			return err
		}
		if meshes[s.Mesh] != nil {
			return fmt.Errorf("mesh '%s': %w", s.Mesh, core.ErrDuplicateContent)
		}
		meshes[s.Mesh] = map[string]bool{s.Submesh: true}
	}

	for _, item := range scene.Items {
		if err := validateItem(item, materials, meshes, layers); err != nil {
			return err
		}
	}
	for _, a := range scene.Animations {
		if !materials[a.Material] {
			return fmt.Errorf("animation of material '%s': %w", a.Material, core.ErrContentNotFound)
		}
	}
	return nil
}

func validateLight(l LightConfig) error {
	switch l.Kind {
	case "directional":
		if l.Direction == nil {
			return fmt.Errorf("directional light needs a direction")
		}
	case "point":
		if l.Position == nil {
			return fmt.Errorf("point light needs a position")
		}
	case "spot":
		if l.Position == nil || l.Direction == nil {
			return fmt.Errorf("spot light needs a position and a direction")
		}
	default:
		return fmt.Errorf("unknown light kind %q", l.Kind)
	}
	if l.FalloffStart != nil && l.FalloffEnd != nil && *l.FalloffEnd < *l.FalloffStart {
		return fmt.Errorf("falloff_end must not be smaller than falloff_start")
	}
	return nil
}

func validateMaterial(m MaterialConfig, textures map[string]bool) error {
	if m.Name == "" {
		return fmt.Errorf("material name is required")
	}
	if m.Slot < 0 {
		return fmt.Errorf("material '%s': slot must be a non-negative value", m.Name)
	}
	if !textures[m.Texture] {
		return fmt.Errorf("material '%s' uses texture '%s': %w", m.Name, m.Texture, core.ErrContentNotFound)
	}
	// Check that albedo values are within [0.0, 1.0] range
	if !isValidColour(m.Albedo) {
		return fmt.Errorf("material '%s': albedo values must be between 0.0 and 1.0", m.Name)
	}
	if !inRange(m.Roughness) {
		return fmt.Errorf("material '%s': roughness must be between 0.0 and 1.0", m.Name)
	}
	return nil
}

func validateSprites(s SpriteConfig) error {
	if s.Mesh == "" || s.Submesh == "" {
		return fmt.Errorf("sprites need a mesh and a submesh name")
	}
	if s.Size <= 0 {
		return fmt.Errorf("sprites '%s': size must be positive", s.Mesh)
	}
	count := 0
	for _, r := range s.Regions {
		if r.Count <= 0 || r.MaxX < r.MinX || r.MaxZ < r.MinZ {
			return fmt.Errorf("sprites '%s': region needs a positive count and min <= max", s.Mesh)
		}
		count += r.Count
	}
	if count == 0 {
		return fmt.Errorf("sprites '%s': no sprites to place", s.Mesh)
	}
	return nil
}

func validateItem(item ItemConfig, materials map[string]bool, meshes map[string]map[string]bool, layers map[metadata.RenderLayer]metadata.PipelineDesc) error {
	if item.Name == "" {
		return fmt.Errorf("render item name is required")
	}
	if !materials[item.Material] {
		return fmt.Errorf("render item '%s' uses material '%s': %w", item.Name, item.Material, core.ErrContentNotFound)
	}
	submeshes, ok := meshes[item.Mesh]
	if !ok {
		return fmt.Errorf("render item '%s' uses mesh '%s': %w", item.Name, item.Mesh, core.ErrContentNotFound)
	}
	if !submeshes[item.Submesh] {
		return fmt.Errorf("render item '%s' uses submesh '%s' of '%s': %w", item.Name, item.Submesh, item.Mesh, core.ErrContentNotFound)
	}
	layer, err := metadata.ParseRenderLayer(item.Layer)
	if err != nil {
		return fmt.Errorf("render item '%s': %w: %w", item.Name, err, core.ErrInvalidLayer)
	}
	topology, err := parseTopology(item.Topology)
	if err != nil {
		return fmt.Errorf("render item '%s': %w", item.Name, err)
	}
	pipeline, ok := layers[layer]
	if !ok {
		return fmt.Errorf("render item '%s': no pipeline bound to layer %s: %w", item.Name, layer, core.ErrContentNotFound)
	}
	if pipeline.Topology != topology {
		return fmt.Errorf("render item '%s' draws a %s but pipeline '%s' of layer %s takes a %s: %w",
			item.Name, topology, pipeline.Name, layer, pipeline.Topology, core.ErrInvalidLayer)
	}
	if item.Ring != nil && item.Line != nil {
		return fmt.Errorf("render item '%s': ring and line repeats are exclusive", item.Name)
	}
	if item.Ring != nil && item.Ring.Count <= 0 {
		return fmt.Errorf("render item '%s': ring count must be positive", item.Name)
	}
	if item.Line != nil && item.Line.Count <= 0 {
		return fmt.Errorf("render item '%s': line count must be positive", item.Name)
	}
	return nil
}

func isValidColour(v [4]float32) bool {
	return inRange(v[0]) && inRange(v[1]) && inRange(v[2]) && inRange(v[3])
}

// Check if a float32 value is within [0.0, 1.0]
func inRange(value float32) bool {
	return value >= 0.0 && value <= 1.0
}

func parseTopology(name string) (metadata.PrimitiveTopology, error) {
	switch strings.ToLower(name) {
	case "", "triangle_list":
		return metadata.TopologyTriangleList, nil
	case "point_list":
		return metadata.TopologyPointList, nil
	case "line_list":
		return metadata.TopologyLineList, nil
	}
	return metadata.TopologyTriangleList, fmt.Errorf("unknown topology %q", name)
}

// Desc converts the pipeline entry into the description the device builds
// the pipeline from.
func (p PipelineConfig) Desc() (metadata.PipelineDesc, error) {
	desc := metadata.PipelineDesc{
		Name:           p.Name,
		VertexShader:   p.VertexShader,
		GeometryShader: p.GeometryShader,
		PixelShader:    p.PixelShader,
		AlphaTest:      p.AlphaTest,
	}
	if p.Name == "" {
		return desc, fmt.Errorf("pipeline name is required")
	}
	topology, err := parseTopology(p.Topology)
	if err != nil {
		return desc, fmt.Errorf("pipeline '%s': %w", p.Name, err)
	}
	desc.Topology = topology

	switch strings.ToLower(p.Blend) {
	case "", "opaque":
		desc.Blend = metadata.BlendModeOpaque
	case "alpha":
		desc.Blend = metadata.BlendModeAlpha
	default:
		return desc, fmt.Errorf("pipeline '%s': unknown blend mode %q", p.Name, p.Blend)
	}

	switch strings.ToLower(p.Cull) {
	case "", "back":
		desc.Cull = metadata.FaceCullModeBack
	case "none":
		desc.Cull = metadata.FaceCullModeNone
	case "front":
		desc.Cull = metadata.FaceCullModeFront
	default:
		return desc, fmt.Errorf("pipeline '%s': unknown cull mode %q", p.Name, p.Cull)
	}
	return desc, nil
}

// MaterialConfigs returns the materials in the form the material system
// registers them.
func (scene *SceneConfig) MaterialConfigs() []metadata.MaterialConfig {
	configs := make([]metadata.MaterialConfig, 0, len(scene.Materials))
	for _, m := range scene.Materials {
		configs = append(configs, metadata.MaterialConfig{
			Name:           m.Name,
			ConstantIndex:  m.Slot,
			DiffuseTexture: m.Texture,
			DiffuseAlbedo:  vec4(m.Albedo),
			FresnelR0:      vec3(m.Fresnel),
			Roughness:      m.Roughness,
		})
	}
	return configs
}

// LayerBindings resolves the layer table into layer -> pipeline name.
func (scene *SceneConfig) LayerBindings() (map[metadata.RenderLayer]string, error) {
	bindings := make(map[metadata.RenderLayer]string, len(scene.Layers))
	for name, pipeline := range scene.Layers {
		layer, err := metadata.ParseRenderLayer(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", err, core.ErrInvalidLayer)
		}
		bindings[layer] = pipeline
	}
	return bindings, nil
}

// Lights builds the light records. Fields a light leaves unset keep the
// defaults of metadata.DefaultLight.
func (scene *SceneConfig) Lights() []metadata.Light {
	lights := make([]metadata.Light, 0, len(scene.Lighting.Lights))
	for _, lc := range scene.Lighting.Lights {
		l := metadata.DefaultLight()
		if lc.Strength != nil {
			l.Strength = vec3(*lc.Strength)
		}
		if lc.Direction != nil {
			l.Direction = vec3(*lc.Direction)
		}
		if lc.Position != nil {
			l.Position = vec3(*lc.Position)
		}
		if lc.FalloffStart != nil {
			l.FalloffStart = *lc.FalloffStart
		}
		if lc.FalloffEnd != nil {
			l.FalloffEnd = *lc.FalloffEnd
		}
		if lc.SpotPower != nil {
			l.SpotPower = *lc.SpotPower
		}
		lights = append(lights, l)
	}
	return lights
}

/**
 * @brief Scatters the sprites over their regions. Points are drawn region by
 * region from one generator seeded with Seed.
 */
func (s SpriteConfig) Vertices() []metadata.SpriteVertex {
	rng := math.NewRandom(s.Seed)
	size := math.NewVec2(s.Size, s.Size)

	var vertices []metadata.SpriteVertex
	for _, r := range s.Regions {
		for i := 0; i < r.Count; i++ {
			x := rng.InRange(r.MinX, r.MaxX)
			z := rng.InRange(r.MinZ, r.MaxZ)
			vertices = append(vertices, metadata.SpriteVertex{
				Position: math.NewVec3(x, s.Y, z),
				Size:     size,
			})
		}
	}
	return vertices
}

/**
 * @brief Expands every item into the render items it stands for, in file
 * order. Repeated items are named <name><i>.
 */
func (scene *SceneConfig) Expand() ([]RenderItemConfig, error) {
	var items []RenderItemConfig
	for _, item := range scene.Items {
		layer, err := metadata.ParseRenderLayer(item.Layer)
		if err != nil {
			return nil, fmt.Errorf("render item '%s': %w: %w", item.Name, err, core.ErrInvalidLayer)
		}
		topology, err := parseTopology(item.Topology)
		if err != nil {
			return nil, fmt.Errorf("render item '%s': %w", item.Name, err)
		}

		base := RenderItemConfig{
			Name:         item.Name,
			Mesh:         item.Mesh,
			Submesh:      item.Submesh,
			Material:     item.Material,
			Layer:        layer,
			Topology:     topology,
			TexTransform: math.NewMat4Identity(),
		}
		if item.TexScale != nil {
			base.TexTransform = math.NewMat4Scale(vec3(*item.TexScale))
		}

		scale := math.NewVec3One()
		if item.Scale != nil {
			scale = vec3(*item.Scale)
		}
		local := math.NewMat4Scale(scale).Mul(math.NewMat4EulerY(math.DegToRad(item.RotateY)))
		translate := vec3(item.Translate)

		switch {
		case item.Ring != nil:
			ring := item.Ring
			for i := 0; i < ring.Count; i++ {
				theta := math.DegToRad(ring.Offset + float32(i)*ring.Step)
				world := local
				if ring.Rotate {
					world = world.Mul(math.NewMat4EulerY(theta))
				}
				offset := math.NewVec3(ring.Radius*math.Cos(theta), 0, ring.Radius*math.Sin(theta))
				ri := base
				ri.Name = repeatName(item.Name, i, ring.Count)
				ri.World = world.Mul(math.NewMat4Translation(translate.Add(offset)))
				items = append(items, ri)
			}
		case item.Line != nil:
			step := vec3(item.Line.Step)
			for i := 0; i < item.Line.Count; i++ {
				ri := base
				ri.Name = repeatName(item.Name, i, item.Line.Count)
				ri.World = local.Mul(math.NewMat4Translation(translate.Add(step.MulScalar(float32(i)))))
				items = append(items, ri)
			}
		default:
			ri := base
			ri.World = local.Mul(math.NewMat4Translation(translate))
			items = append(items, ri)
		}
	}
	return items, nil
}

func repeatName(name string, i, count int) string {
	if count == 1 {
		return name
	}
	return fmt.Sprintf("%s%d", name, i)
}

func vec3(v [3]float32) math.Vec3 {
	return math.NewVec3(v[0], v[1], v[2])
}

func vec4(v [4]float32) math.Vec4 {
	return math.NewVec4(v[0], v[1], v[2], v[3])
}

// ClearColourVec returns the clear colour as a vector.
func (scene *SceneConfig) ClearColourVec() math.Vec4 {
	return vec4(scene.ClearColour)
}

// AmbientVec returns the ambient light colour as a vector.
func (l LightingConfig) AmbientVec() math.Vec4 {
	return vec4(l.Ambient)
}

// FogColourVec returns the fog colour as a vector.
func (l LightingConfig) FogColourVec() math.Vec4 {
	return vec4(l.FogColour)
}

// PositionVec returns the camera position as a vector.
func (c CameraConfig) PositionVec() math.Vec3 {
	return vec3(c.Position)
}

// Target returns the look-at point and whether one was set.
func (c CameraConfig) Target() (math.Vec3, bool) {
	if c.LookAt == nil {
		return math.Vec3{}, false
	}
	return vec3(*c.LookAt), true
}
