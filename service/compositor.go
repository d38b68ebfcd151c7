package service

import (
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// 像素数超过该值时按行分块并行合成
const parallelPixelThreshold = 256 * 256

// CutoutFill 抠图背景的填充色（黑色），B,G,R
var CutoutFill = [3]uint8{0, 0, 0}

type renderRowFunc func(src, dst []uint8, mask []uint8)

var styleTable = map[Style]renderRowFunc{
	StyleCutout:              cutoutRow,
	StyleGrayscaleBackground: grayscaleBackgroundRow,
}

// ParseStyle 解析合成风格，空串为 cutout；兼容旧前端的 normal / bw
func ParseStyle(name string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cutout", "normal":
		return StyleCutout, nil
	case "grayscale-background", "grayscale_background", "bw":
		return StyleGrayscaleBackground, nil
	}
	return 0, unknownMethodError("composite", name)
}

// RenderCutout 前景保留原色，背景填充 CutoutFill，边缘不做混合
func RenderCutout(img *PixelBuffer, mask *BinaryMask) (*CompositeResult, error) {
	return render(img, mask, StyleCutout)
}

// RenderGrayscaleBackground 背景按 Luminosity 去色，前景保留原色
func RenderGrayscaleBackground(img *PixelBuffer, mask *BinaryMask) (*CompositeResult, error) {
	return render(img, mask, StyleGrayscaleBackground)
}

// Render 按风格合成
func Render(img *PixelBuffer, mask *BinaryMask, style Style) (*CompositeResult, error) {
	if _, ok := styleTable[style]; !ok {
		return nil, unknownMethodError("composite", style.String())
	}
	return render(img, mask, style)
}

func render(img *PixelBuffer, mask *BinaryMask, style Style) (*CompositeResult, error) {
	if img.Width != mask.Width || img.Height != mask.Height || len(mask.Pix) != img.Width*img.Height {
		return nil, ErrSizeMismatch
	}

	fn := styleTable[style]
	out := NewPixelBuffer(img.Width, img.Height)
	stride := img.Stride()

	rows := func(from, to int) {
		for y := from; y < to; y++ {
			fn(img.Pix[y*stride:(y+1)*stride], out.Pix[y*stride:(y+1)*stride], mask.Pix[y*img.Width:(y+1)*img.Width])
		}
	}

	if img.Width*img.Height < parallelPixelThreshold {
		rows(0, img.Height)
		return &CompositeResult{Image: out, Style: style}, nil
	}

	workers := runtime.GOMAXPROCS(0)
	band := (img.Height + workers - 1) / workers
	var g errgroup.Group
	for from := 0; from < img.Height; from += band {
		from, to := from, min(from+band, img.Height)
		g.Go(func() error {
			rows(from, to)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &CompositeResult{Image: out, Style: style}, nil
}

func cutoutRow(src, dst, mask []uint8) {
	for x, m := range mask {
		i := 3 * x
		if m == MaskForeground {
			dst[i], dst[i+1], dst[i+2] = src[i], src[i+1], src[i+2]
		} else {
			dst[i], dst[i+1], dst[i+2] = CutoutFill[0], CutoutFill[1], CutoutFill[2]
		}
	}
}

func grayscaleBackgroundRow(src, dst, mask []uint8) {
	for x, m := range mask {
		i := 3 * x
		if m == MaskForeground {
			dst[i], dst[i+1], dst[i+2] = src[i], src[i+1], src[i+2]
			continue
		}
		y := Luminosity(src[i], src[i+1], src[i+2])
		dst[i], dst[i+1], dst[i+2] = y, y, y
	}
}
