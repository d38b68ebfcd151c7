package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// gradientPNG w x h 的 PNG，像素值随坐标变化
func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: uint8(x + y), A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gradientBuffer(w, h int) *PixelBuffer {
	p := NewPixelBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p.SetBGR(x, y, uint8(x+y), uint8(y*5), uint8(x*7))
		}
	}
	return p
}

func uniformMask(w, h int, v uint8) *BinaryMask {
	m := &BinaryMask{Width: w, Height: h, Pix: make([]uint8, w*h)}
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

func httpSniff(data []byte) string {
	return http.DetectContentType(data)
}
