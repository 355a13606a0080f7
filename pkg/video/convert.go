package video

import (
	"fmt"

	"github.com/go-drift/surfacekit/pkg/errors"
	"github.com/go-drift/surfacekit/pkg/gpu"
)

// Classify returns the buffer's base format.
func Classify(buf *PixelBuffer) (BaseFormat, error) {
	base := buf.Format.Base()
	if base == BaseUnknown {
		return BaseUnknown, fmt.Errorf("%w: pixel format %v", errors.ErrUnsupported, buf.Format)
	}
	return base, nil
}

// MakeImage imports buf's planes through ctx's texture cache and assembles
// them into one drawable image. YUV buffers carry their subsampling layout;
// RGB buffers import as a single texture.
func MakeImage(ctx *gpu.Context, buf *PixelBuffer) (*Image, error) {
	base, err := Classify(buf)
	if err != nil {
		return nil, err
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	cache, err := ctx.TextureCache()
	if err != nil {
		return nil, err
	}

	img := &Image{width: buf.Width, height: buf.Height, format: buf.Format}
	for i := 0; i < buf.PlaneCount(); i++ {
		tex, err := cache.TextureFromPlane(buf, i, buf.Format.PlaneFormat(i))
		if err != nil {
			img.Release()
			return nil, fmt.Errorf("import plane %d: %w", i, err)
		}
		img.textures = append(img.textures, tex)
	}

	if base == BaseYUV {
		info, _ := YUVAInfoFor(buf.Format, buf.Width, buf.Height)
		img.yuva = &info
	}

	if asm, ok := ctx.Raw().(gpu.ImageAssembler); ok {
		if img.yuva != nil {
			img.native, err = asm.AssembleYUVA(img.textures, img.yuva.toSkia())
		} else {
			img.native, err = asm.AssembleRGBA(img.textures[0], buf.Format == PixelFormatBGRA)
		}
		if err != nil {
			img.Release()
			return nil, fmt.Errorf("assemble image: %w", err)
		}
	}
	// Recycle textures whose frames were released since the last import.
	cache.Flush()
	return img, nil
}
