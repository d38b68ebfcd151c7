//go:build gocv
// +build gocv

package service

import (
	"context"
	"fmt"

	"github.com/TIANLI0/PopCut/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// GrabCutSegmenter 基于 OpenCV GrabCut 的分割引擎
type GrabCutSegmenter struct{}

func NewGrabCutSegmenter() *GrabCutSegmenter {
	return &GrabCutSegmenter{}
}

// Segment 以矩形初始化运行 GrabCut，返回 OpenCV 原始四值掩码
func (s *GrabCutSegmenter) Segment(ctx context.Context, img *PixelBuffer, seed Rectangle, iterations int) (*Trimap, error) {
	if err := checkSegmentInput(ctx, img, seed, iterations); err != nil {
		return nil, err
	}
	// 矩形覆盖整幅图时没有背景样本，GMM 无法初始化
	if seed.X == 0 && seed.Y == 0 && seed.Width == img.Width && seed.Height == img.Height {
		return nil, segmentationError("seed rectangle covers the whole image, no background samples", nil)
	}

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return nil, segmentationError("wrap pixel buffer", err)
	}
	defer mat.Close()

	mask := gocv.NewMatWithSize(img.Height, img.Width, gocv.MatTypeCV8U)
	defer mask.Close()

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	gocv.GrabCut(mat, &mask, seed.Image(), &bgdModel, &fgdModel, iterations, gocv.GCInitWithRect)

	if mask.Empty() || mask.Rows() != img.Height || mask.Cols() != img.Width {
		return nil, segmentationError(fmt.Sprintf("grabcut produced a %dx%d mask", mask.Cols(), mask.Rows()), nil)
	}

	data := mask.ToBytes()
	t := &Trimap{Width: img.Width, Height: img.Height, Cells: make([]TrimapClass, len(data))}
	for i, v := range data {
		t.Cells[i] = TrimapClass(v)
	}
	if err := checkTrimap(t, img); err != nil {
		return nil, err
	}

	utils.Logger.Debug("grabcut finished",
		zap.Int("iterations", iterations),
		zap.Stringer("seed", seed))

	return t, nil
}

var _ Segmenter = (*GrabCutSegmenter)(nil)
