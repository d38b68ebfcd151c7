package service

import (
	"context"
	"fmt"
)

// DefaultIterations 调用方未指定迭代次数时使用
const DefaultIterations = 5

// Segmenter 前景/背景分割能力
//
// seed 之外的像素必须标记为 DefiniteBackground；返回的 trimap 与 img 尺寸一致。
// 无法处理时返回 SegmentationError，不能退化为全背景结果。
type Segmenter interface {
	Segment(ctx context.Context, img *PixelBuffer, seed Rectangle, iterations int) (*Trimap, error)
}

// checkSegmentInput 引擎运行前的公共检查
func checkSegmentInput(ctx context.Context, img *PixelBuffer, seed Rectangle, iterations int) error {
	if err := ctx.Err(); err != nil {
		return segmentationError("aborted before start", err)
	}
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return segmentationError("empty image", nil)
	}
	if len(img.Pix) != 3*img.Width*img.Height {
		return segmentationError(fmt.Sprintf("unsupported pixel format: %d bytes for %dx%d BGR", len(img.Pix), img.Width, img.Height), nil)
	}
	if iterations <= 0 {
		return segmentationError(fmt.Sprintf("iterations must be positive, got %d", iterations), nil)
	}
	if _, err := ValidateRect(img.Width, img.Height, seed); err != nil {
		return segmentationError("degenerate seed rectangle", err)
	}
	return nil
}

// checkTrimap 校验引擎输出
func checkTrimap(t *Trimap, img *PixelBuffer) error {
	if t == nil {
		return segmentationError("engine returned no trimap", nil)
	}
	if t.Width != img.Width || t.Height != img.Height || len(t.Cells) != img.Width*img.Height {
		return segmentationError(fmt.Sprintf("trimap is %dx%d, image is %dx%d", t.Width, t.Height, img.Width, img.Height), nil)
	}
	return nil
}

// RectSegmenter 不做迭代优化的确定性分割：矩形内为 PR_FGD，矩形外为 BGD
//
// 用于未编译 OpenCV 的部署和测试。
type RectSegmenter struct{}

func NewRectSegmenter() *RectSegmenter {
	return &RectSegmenter{}
}

func (s *RectSegmenter) Segment(ctx context.Context, img *PixelBuffer, seed Rectangle, iterations int) (*Trimap, error) {
	if err := checkSegmentInput(ctx, img, seed, iterations); err != nil {
		return nil, err
	}

	t := NewTrimap(img.Width, img.Height)
	for y := seed.Y; y < seed.Y+seed.Height; y++ {
		for x := seed.X; x < seed.X+seed.Width; x++ {
			t.Set(x, y, ProbableForeground)
		}
	}
	return t, nil
}

var _ Segmenter = (*RectSegmenter)(nil)
