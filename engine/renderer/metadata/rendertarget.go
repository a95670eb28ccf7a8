package metadata

import (
	"errors"
	"fmt"
)

/**
 * @brief Backend independent off-screen render target parameters.
 */
type RenderTargetData struct {
	Width  uint32
	Height uint32
	/** @brief Format of the colour attachment. */
	Format PixelFormat
	/** @brief Attach a depth buffer. */
	Depth bool
	/** @brief Attach a stencil buffer. */
	Stencil bool
}

func (rt *RenderTargetData) Validate() error {
	if rt == nil {
		return errors.New("missing render target payload")
	}
	if rt.Width == 0 || rt.Height == 0 {
		return fmt.Errorf("render target size %dx%d must be non-zero", rt.Width, rt.Height)
	}
	if rt.Format.BytesPerPixel() == 0 {
		return fmt.Errorf("unsupported colour format %s", rt.Format)
	}
	return nil
}
