package boundary

// Surface is a displayable bitmap: raw pixel rows plus dimensions. Surfaces
// can be large, so they are always moved across a context boundary rather
// than copied.
type Surface struct {
	Width  int
	Height int
	Pix    []byte
}

// NewSurface allocates a zeroed 32-bit RGBA surface.
func NewSurface(width, height int) *Surface {
	return &Surface{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// RenderTarget is an off-screen drawing target backed by a surface. Like
// Surface it is move-eligible: ownership follows the message that carries it.
type RenderTarget struct {
	Surface *Surface
}

// NewRenderTarget allocates a render target with its own backing surface.
func NewRenderTarget(width, height int) *RenderTarget {
	return &RenderTarget{Surface: NewSurface(width, height)}
}
