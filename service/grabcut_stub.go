//go:build !gocv
// +build !gocv

package service

import (
	"context"
)

// GrabCutSegmenter 未启用 gocv 构建标签时的占位实现
type GrabCutSegmenter struct{}

func NewGrabCutSegmenter() *GrabCutSegmenter {
	return &GrabCutSegmenter{}
}

// Segment 总是返回 SegmentationError
func (s *GrabCutSegmenter) Segment(ctx context.Context, img *PixelBuffer, seed Rectangle, iterations int) (*Trimap, error) {
	if err := checkSegmentInput(ctx, img, seed, iterations); err != nil {
		return nil, err
	}
	return nil, segmentationError("gocv build tag is not enabled, grabcut engine unavailable", nil)
}

var _ Segmenter = (*GrabCutSegmenter)(nil)
