package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels 未指定像素上限时使用（约 5000x5000）
const DefaultMaxPixels = 25_000_000

// Decode 把 PNG/JPEG/GIF/WebP/BMP/TIFF 字节解码为 BGR 缓冲，像素上限为 DefaultMaxPixels
func Decode(data []byte) (*PixelBuffer, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit 同 Decode，宽高乘积超过 maxPixels 时在分配像素前拒绝
//
// alpha 通道直接丢弃：颜色取非预乘值，不与任何底色混合。
// 预乘格式（如 *image.RGBA）中 alpha 为 0 的像素颜色无法恢复，结果为黑色。
func DecodeLimit(data []byte, maxPixels int) (*PixelBuffer, error) {
	img, err := decodeBounded(data, maxPixels)
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// decodeBounded 先读头部尺寸，再完整解码
func decodeBounded(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, decodeError("empty image data", nil)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, classifyDecodeError(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, decodeError("zero-sized image", nil)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, decodeError(fmt.Sprintf("image is %dx%d, exceeds %d pixels", cfg.Width, cfg.Height, maxPixels), nil)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, classifyDecodeError(err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, decodeError("zero-sized image", nil)
	}
	return img, nil
}

func classifyDecodeError(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return decodeError("unsupported image format", err)
	}
	return decodeError("malformed image", err)
}

// FromImage 将任意 image.Image 规范化为 BGR 缓冲
//
// 非预乘格式（NRGBA、NRGBA64、调色板、NYCbCrA）直接读取颜色值，其余格式经 draw 转换。
func FromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewPixelBuffer(w, h)

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				out.SetBGR(x, y, row[4*x+2], row[4*x+1], row[4*x])
			}
		}
		return out
	case *image.NRGBA64:
		// 每通道 2 字节大端，取高字节
		for y := 0; y < h; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				out.SetBGR(x, y, row[8*x+4], row[8*x+2], row[8*x])
			}
		}
		return out
	case *image.Paletted:
		palette := make([][3]uint8, len(src.Palette))
		for i, c := range src.Palette {
			n := nonPremultiplied(c)
			palette[i] = [3]uint8{n.B, n.G, n.R}
		}
		for y := 0; y < h; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				idx := int(row[x])
				if idx >= len(palette) {
					continue
				}
				p := palette[idx]
				out.SetBGR(x, y, p[0], p[1], p[2])
			}
		}
		return out
	case *image.NYCbCrA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := src.YCbCrAt(b.Min.X+x, b.Min.Y+y)
				r, g, bl := color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
				out.SetBGR(x, y, bl, g, r)
			}
		}
		return out
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			r, g, bl, a := row[4*x], row[4*x+1], row[4*x+2], row[4*x+3]
			if a != 0 && a != 0xff {
				r = unpremultiply(r, a)
				g = unpremultiply(g, a)
				bl = unpremultiply(bl, a)
			}
			out.SetBGR(x, y, bl, g, r)
		}
	}
	return out
}

// nonPremultiplied 调色板项的非预乘颜色；PNG tRNS 项本身就是 color.NRGBA
func nonPremultiplied(c color.Color) color.NRGBA {
	switch v := c.(type) {
	case color.NRGBA:
		return v
	case color.NRGBA64:
		return color.NRGBA{R: uint8(v.R >> 8), G: uint8(v.G >> 8), B: uint8(v.B >> 8), A: uint8(v.A >> 8)}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func unpremultiply(c, a uint8) uint8 {
	return uint8((uint32(c)*0xff + uint32(a)/2) / uint32(a))
}

// DecodeGray 解码单通道图像（掩码、灰度结果），非灰度图按亮度折算
func DecodeGray(data []byte) (*image.Gray, error) {
	img, err := decodeBounded(data, DefaultMaxPixels)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(gray.Pix[y*gray.Stride:(y+1)*gray.Stride], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return gray, nil
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return gray, nil
}

// Encode 无损编码为 PNG
func Encode(img image.Image) ([]byte, error) {
	if p, ok := img.(*PixelBuffer); ok {
		img = p.NRGBA()
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeMask 编码二值掩码为单通道 PNG
func EncodeMask(m *BinaryMask) ([]byte, error) {
	return Encode(m.Gray())
}
