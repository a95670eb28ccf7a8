package metadata

/** @brief Primitive topology for draw calls. */
type Primitive int

const (
	PrimitiveTriangles Primitive = iota
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
	PrimitiveLines
	PrimitiveLineStrip
	PrimitivePoints
)

/** @brief Which buffers a Clear command touches. */
type ClearFlags uint8

const (
	ClearColour  ClearFlags = 0x1
	ClearDepth   ClearFlags = 0x2
	ClearStencil ClearFlags = 0x4
)

type BlendFactor int

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
	BlendFactorSrcColour
	BlendFactorOneMinusSrcColour
	BlendFactorDstColour
	BlendFactorOneMinusDstColour
)

type BlendEquation int

const (
	BlendEquationAdd BlendEquation = iota
	BlendEquationSubtract
	BlendEquationReverseSubtract
)

/** @brief Blending configuration. The zero value is "blending disabled". */
type BlendState struct {
	Enabled  bool
	Src      BlendFactor
	Dst      BlendFactor
	Equation BlendEquation
}

// Premultiplied-alpha "over" compositing.
var BlendStatePremultiplied = BlendState{Enabled: true, Src: BlendFactorOne, Dst: BlendFactorOneMinusSrcAlpha}

// Straight-alpha "over" compositing.
var BlendStateAlpha = BlendState{Enabled: true, Src: BlendFactorSrcAlpha, Dst: BlendFactorOneMinusSrcAlpha}

type CompareFunc int

const (
	CompareLess CompareFunc = iota
	CompareLessEqual
	CompareEqual
	CompareGreater
	CompareGreaterEqual
	CompareNotEqual
	CompareAlways
	CompareNever
)

/** @brief Depth test configuration. The zero value disables the test. */
type DepthState struct {
	Test  bool
	Write bool
	Func  CompareFunc
}

type StencilOp int

const (
	StencilOpKeep StencilOp = iota
	StencilOpZero
	StencilOpReplace
	StencilOpIncrement
	StencilOpDecrement
	StencilOpInvert
)

/** @brief Stencil test configuration. The zero value disables the test. */
type StencilState struct {
	Test      bool
	Func      CompareFunc
	Ref       int32
	ReadMask  uint32
	WriteMask uint32
	Fail      StencilOp
	DepthFail StencilOp
	Pass      StencilOp
}

/** @brief A pixel rectangle, origin bottom-left as in GL. */
type Rect struct {
	X, Y          int32
	Width, Height int32
}
