package service

import (
	"fmt"
	"image"
	"image/color"
)

// PixelBuffer 3 通道 8 位像素缓冲，通道顺序固定为 B,G,R（与 OpenCV 一致）
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8 // 行优先，每行 3*Width 字节
}

// NewPixelBuffer 创建全黑缓冲
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, 3*width*height),
	}
}

// Stride 每行字节数
func (p *PixelBuffer) Stride() int {
	return 3 * p.Width
}

// Offset 返回 (x, y) 处 B 通道的下标
func (p *PixelBuffer) Offset(x, y int) int {
	return y*p.Stride() + 3*x
}

// BGR 读取 (x, y) 处的像素
func (p *PixelBuffer) BGR(x, y int) (b, g, r uint8) {
	i := p.Offset(x, y)
	return p.Pix[i], p.Pix[i+1], p.Pix[i+2]
}

// SetBGR 写入 (x, y) 处的像素
func (p *PixelBuffer) SetBGR(x, y int, b, g, r uint8) {
	i := p.Offset(x, y)
	p.Pix[i], p.Pix[i+1], p.Pix[i+2] = b, g, r
}

// Clone 深拷贝
func (p *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]uint8, len(p.Pix))
	copy(pix, p.Pix)
	return &PixelBuffer{Width: p.Width, Height: p.Height, Pix: pix}
}

func (p *PixelBuffer) ColorModel() color.Model { return color.RGBAModel }

func (p *PixelBuffer) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

func (p *PixelBuffer) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(p.Bounds())) {
		return color.RGBA{}
	}
	b, g, r := p.BGR(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// NRGBA 转成标准库图像，供 PNG 编码使用
func (p *PixelBuffer) NRGBA() *image.NRGBA {
	dst := image.NewNRGBA(p.Bounds())
	for y := 0; y < p.Height; y++ {
		src := p.Pix[y*p.Stride() : (y+1)*p.Stride()]
		row := dst.Pix[y*dst.Stride : y*dst.Stride+4*p.Width]
		for x := 0; x < p.Width; x++ {
			row[4*x] = src[3*x+2]
			row[4*x+1] = src[3*x+1]
			row[4*x+2] = src[3*x]
			row[4*x+3] = 0xff
		}
	}
	return dst
}

// Rectangle 种子矩形，原点在左上角
type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rectangle) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}

// Image 转成 image.Rectangle
func (r Rectangle) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// TrimapClass GrabCut 输出的四类标签，取值与 OpenCV 的 GC_* 常量相同
type TrimapClass uint8

const (
	DefiniteBackground TrimapClass = 0
	DefiniteForeground TrimapClass = 1
	ProbableBackground TrimapClass = 2
	ProbableForeground TrimapClass = 3
)

// Trimap 每个像素一个 TrimapClass
type Trimap struct {
	Width  int
	Height int
	Cells  []TrimapClass
}

// NewTrimap 创建全部为 DefiniteBackground 的 trimap
func NewTrimap(width, height int) *Trimap {
	return &Trimap{Width: width, Height: height, Cells: make([]TrimapClass, width*height)}
}

func (t *Trimap) At(x, y int) TrimapClass {
	return t.Cells[y*t.Width+x]
}

func (t *Trimap) Set(x, y int, c TrimapClass) {
	t.Cells[y*t.Width+x] = c
}

const (
	MaskBackground uint8 = 0
	MaskForeground uint8 = 255
)

// BinaryMask 单通道掩码，取值只有 MaskBackground 和 MaskForeground
type BinaryMask struct {
	Width  int
	Height int
	Pix    []uint8
}

func (m *BinaryMask) IsForeground(x, y int) bool {
	return m.Pix[y*m.Width+x] == MaskForeground
}

// Gray 转成 image.Gray，共享底层数据
func (m *BinaryMask) Gray() *image.Gray {
	return &image.Gray{Pix: m.Pix, Stride: m.Width, Rect: image.Rect(0, 0, m.Width, m.Height)}
}

// Coverage 前景像素占比
func (m *BinaryMask) Coverage() float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.Pix {
		if v == MaskForeground {
			n++
		}
	}
	return float64(n) / float64(len(m.Pix))
}

// BoundingBox 前景像素的外接矩形，没有前景时返回零值
func (m *BinaryMask) BoundingBox() Rectangle {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if v != MaskForeground {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return Rectangle{}
	}
	return Rectangle{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// Style 合成风格
type Style int

const (
	StyleCutout Style = iota
	StyleGrayscaleBackground
)

func (s Style) String() string {
	switch s {
	case StyleCutout:
		return "cutout"
	case StyleGrayscaleBackground:
		return "grayscale-background"
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// CompositeResult 合成结果及其风格
type CompositeResult struct {
	Image *PixelBuffer
	Style Style
}
