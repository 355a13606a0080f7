package skia

// PlaneConfig mirrors SkYUVAInfo::PlaneConfig for the planes the shim accepts.
type PlaneConfig int

const (
	PlaneConfigYUV  PlaneConfig = iota // three planes: Y, U, V
	PlaneConfigYUV2                    // two planes: Y, interleaved UV
	PlaneConfigYVU                     // three planes: Y, V, U
)

// Subsampling mirrors SkYUVAInfo::Subsampling.
type Subsampling int

const (
	Subsampling444 Subsampling = iota
	Subsampling422
	Subsampling420
)

// YUVColorSpace mirrors SkYUVColorSpace for the spaces decoders produce.
type YUVColorSpace int

const (
	ColorSpaceRec601Limited YUVColorSpace = iota
	ColorSpaceJPEGFull
	ColorSpaceRec709Limited
)

// YUVAInfo describes how a multi-plane image is laid out.
type YUVAInfo struct {
	Width       int
	Height      int
	PlaneConfig PlaneConfig
	Subsampling Subsampling
	ColorSpace  YUVColorSpace
}
