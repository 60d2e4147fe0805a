package metadata

/**
 * @brief A texture registered in the shader visible texture table. The image
 * itself is loaded by the device; only its table slot matters to the renderer.
 */
type Texture struct {
	Name   string
	Path   string
	Handle TextureHandle
}

/**
 * @brief The location of the texture table: Base is the handle of slot 0 and
 * DescriptorSize the distance between consecutive slots.
 */
type TextureTable struct {
	Base           uint64
	DescriptorSize uint64
}
