package service

import (
	"context"
	"fmt"
	"time"

	"github.com/TIANLI0/PopCut/utils"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// 会话状态
const (
	StateEmpty        = "empty"
	StateImageLoaded  = "image_loaded"
	StateRectangleSet = "rectangle_set"
	StateSegmented    = "segmented"
	StateComposited   = "composited"
)

const (
	eventLoad      = "load"
	eventSetRect   = "set_rect"
	eventSegment   = "segment"
	eventComposite = "composite"
)

// Session 单次请求的分割会话，只能由创建它的请求使用
type Session struct {
	ID string

	fsm       *fsm.FSM
	segmenter Segmenter
	logger    *zap.Logger
	maxPixels int

	image  *PixelBuffer
	rect   Rectangle
	trimap *Trimap
	mask   *BinaryMask
	result *CompositeResult
}

// SessionResults 编码后的输出
type SessionResults struct {
	Style     Style
	Composite []byte // PNG，3 通道
	Mask      []byte // PNG，单通道 0/255
}

// SessionOption 会话选项
type SessionOption func(*Session)

// WithMaxPixels 设置 load 允许的最大像素数
func WithMaxPixels(n int) SessionOption {
	return func(s *Session) {
		s.maxPixels = n
	}
}

// NewSession 创建处于 empty 状态的新会话
func NewSession(id string, segmenter Segmenter, opts ...SessionOption) *Session {
	s := &Session{
		ID:        id,
		segmenter: segmenter,
		logger:    utils.Logger.With(zap.String("session", id)),
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.fsm = fsm.NewFSM(
		StateEmpty,
		fsm.Events{
			{Name: eventLoad, Src: []string{StateEmpty}, Dst: StateImageLoaded},
			{Name: eventSetRect, Src: []string{StateImageLoaded, StateRectangleSet}, Dst: StateRectangleSet},
			{Name: eventSegment, Src: []string{StateRectangleSet}, Dst: StateSegmented},
			{Name: eventComposite, Src: []string{StateSegmented, StateComposited}, Dst: StateComposited},
		},
		fsm.Callbacks{
			"after_event": func(e *fsm.Event) {
				if e.Src != e.Dst {
					s.logger.Debug("session transition",
						zap.String("event", e.Event),
						zap.String("from", e.Src),
						zap.String("to", e.Dst))
				}
			},
		},
	)
	return s
}

// State 当前状态
func (s *Session) State() string {
	return s.fsm.Current()
}

// Load 解码图像：empty -> image_loaded
func (s *Session) Load(data []byte) error {
	if err := s.allow(eventLoad); err != nil {
		return err
	}

	img, err := DecodeLimit(data, s.maxPixels)
	if err != nil {
		return err
	}

	s.image = img
	s.logger.Info("image loaded", zap.Int("width", img.Width), zap.Int("height", img.Height))
	return s.fire(eventLoad)
}

// SetRect 设置种子矩形，可重复调用，以最后一次为准
func (s *Session) SetRect(r Rectangle) error {
	if err := s.allow(eventSetRect); err != nil {
		return err
	}

	rect, err := ValidateRect(s.image.Width, s.image.Height, r)
	if err != nil {
		return err
	}

	s.rect = rect
	s.logger.Info("rectangle set", zap.Stringer("rect", rect))
	return s.fire(eventSetRect)
}

// Segment 运行分割引擎并生成二值掩码，iterations 为 0 时使用 DefaultIterations
func (s *Session) Segment(ctx context.Context, iterations int) error {
	if err := s.allow(eventSegment); err != nil {
		return err
	}
	if iterations == 0 {
		iterations = DefaultIterations
	}

	start := time.Now()
	trimap, err := s.segmenter.Segment(ctx, s.image, s.rect, iterations)
	if err != nil {
		if KindOf(err) == KindSegmentation {
			return err
		}
		return segmentationError("engine failed", err)
	}
	if err := checkTrimap(trimap, s.image); err != nil {
		return err
	}

	mask := ToBinaryMask(trimap)
	stats := CountTrimap(trimap)

	s.trimap = trimap
	s.mask = mask
	s.logger.Info("segmentation finished",
		zap.Int("iterations", iterations),
		zap.Duration("duration", time.Since(start)),
		zap.Int("fgd", stats.DefiniteForeground),
		zap.Int("pr_fgd", stats.ProbableForeground),
		zap.Int("pr_bgd", stats.ProbableBackground),
		zap.Int("bgd", stats.DefiniteBackground),
		zap.Float64("foreground_ratio", mask.Coverage()))
	return s.fire(eventSegment)
}

// Composite 按风格合成，分割完成后可用不同风格重复调用
func (s *Session) Composite(style Style) (*CompositeResult, error) {
	if err := s.allow(eventComposite); err != nil {
		return nil, err
	}

	result, err := Render(s.image, s.mask, style)
	if err != nil {
		return nil, err
	}

	s.result = result
	if err := s.fire(eventComposite); err != nil {
		return nil, err
	}
	return result, nil
}

// Results 编码最近一次合成结果与掩码，仅在 composited 状态可用
func (s *Session) Results() (*SessionResults, error) {
	if s.State() != StateComposited {
		return nil, stateError("results", s.State())
	}

	composite, err := Encode(s.result.Image)
	if err != nil {
		return nil, fmt.Errorf("encode composite: %w", err)
	}
	mask, err := EncodeMask(s.mask)
	if err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}

	return &SessionResults{Style: s.result.Style, Composite: composite, Mask: mask}, nil
}

// Image 已解码的图像，load 之前为 nil
func (s *Session) Image() *PixelBuffer {
	return s.image
}

// Rect 当前种子矩形
func (s *Session) Rect() Rectangle {
	return s.rect
}

// Mask 二值掩码，segment 之前为 nil
func (s *Session) Mask() *BinaryMask {
	return s.mask
}

// Trimap 引擎原始输出，segment 之前为 nil
func (s *Session) Trimap() *Trimap {
	return s.trimap
}

func (s *Session) allow(event string) error {
	if !s.fsm.Can(event) {
		return stateError(event, s.fsm.Current())
	}
	return nil
}

// fire 推进状态机，自环（set_rect、composite 重入）不算错误
func (s *Session) fire(event string) error {
	err := s.fsm.Event(event)
	if _, ok := err.(fsm.NoTransitionError); err != nil && !ok {
		return fmt.Errorf("session %s: %s: %w", s.ID, event, err)
	}
	return nil
}
