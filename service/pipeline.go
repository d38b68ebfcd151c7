package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TIANLI0/PopCut/config"
	"github.com/TIANLI0/PopCut/model"
	"github.com/TIANLI0/PopCut/utils"
	"go.uber.org/zap"
)

const mimePNG = "image/png"

// Request 一次抠图请求
type Request struct {
	Image      []byte
	Rect       Rectangle
	Style      Style
	Iterations int // 0 表示使用配置的默认值
}

// Output 抠图输出
type Output struct {
	Result *model.CutoutResult
	Cached bool
}

// GrabCutService 负责调度抠图流水线
type GrabCutService struct {
	segmenter      Segmenter
	cache          ResultCache
	iterations     int
	maxIterations  int
	maxPixels      int
	semaphore      chan struct{}
	queueTimeout   time.Duration
	processTimeout time.Duration
}

// NewSegmenter 按配置选择分割引擎
func NewSegmenter(engine string) (Segmenter, error) {
	switch engine {
	case config.EngineGrabCut:
		return NewGrabCutSegmenter(), nil
	case config.EngineRect:
		return NewRectSegmenter(), nil
	}
	return nil, fmt.Errorf("unknown segmentation engine %q", engine)
}

// NewGrabCutService cache 可以为 nil，表示不缓存
func NewGrabCutService(cfg *config.Config, segmenter Segmenter, cache ResultCache) *GrabCutService {
	return &GrabCutService{
		segmenter:      segmenter,
		cache:          cache,
		iterations:     cfg.GrabCut.Iterations,
		maxIterations:  cfg.GrabCut.MaxIterations,
		maxPixels:      cfg.Upload.MaxPixels,
		semaphore:      make(chan struct{}, cfg.GrabCut.MaxConcurrent),
		queueTimeout:   cfg.GrabCut.QueueTimeout,
		processTimeout: cfg.GrabCut.ProcessTimeout,
	}
}

// ResultID 结果ID，由图像内容和全部参数决定
func ResultID(md5 string, rect Rectangle, iterations int, style Style) string {
	key := fmt.Sprintf("%s:%d,%d,%d,%d:%d:%s", md5, rect.X, rect.Y, rect.Width, rect.Height, iterations, style)
	return utils.BytesMD5([]byte(key))
}

// Process 为本次请求创建独立会话并跑完整条流水线
func (s *GrabCutService) Process(ctx context.Context, req Request) (*Output, error) {
	iterations := req.Iterations
	if iterations == 0 {
		iterations = s.iterations
	}
	if iterations < 0 || iterations > s.maxIterations {
		return nil, segmentationError(fmt.Sprintf("iterations must be in [1, %d], got %d", s.maxIterations, iterations), nil)
	}

	md5 := utils.BytesMD5(req.Image)
	id := ResultID(md5, req.Rect, iterations, req.Style)

	if cached := s.lookup(ctx, id); cached != nil {
		utils.Logger.Info("cache hit", zap.String("id", id))
		return &Output{Result: cached, Cached: true}, nil
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.processTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.processTimeout)
		defer cancel()
	}

	start := time.Now()
	session := NewSession(utils.GenerateID(), s.segmenter, WithMaxPixels(s.maxPixels))

	if err := session.Load(req.Image); err != nil {
		return nil, err
	}
	if err := session.SetRect(req.Rect); err != nil {
		return nil, err
	}
	if err := session.Segment(ctx, iterations); err != nil {
		return nil, err
	}
	if _, err := session.Composite(req.Style); err != nil {
		return nil, err
	}
	results, err := session.Results()
	if err != nil {
		return nil, err
	}

	img, mask := session.Image(), session.Mask()
	bbox := mask.BoundingBox()
	result := &model.CutoutResult{
		ID:              id,
		MD5:             md5,
		Style:           results.Style.String(),
		Width:           img.Width,
		Height:          img.Height,
		Rect:            model.Rect{X: req.Rect.X, Y: req.Rect.Y, Width: req.Rect.Width, Height: req.Rect.Height},
		Iterations:      iterations,
		ResultImage:     utils.EncodeDataURL(mimePNG, results.Composite),
		MaskImage:       utils.EncodeDataURL(mimePNG, results.Mask),
		BoundingBox:     model.BBox{X: bbox.X, Y: bbox.Y, Width: bbox.Width, Height: bbox.Height},
		ForegroundRatio: mask.Coverage(),
		Timestamp:       time.Now().Unix(),
	}

	utils.Logger.Info("image processed successfully",
		zap.String("id", id),
		zap.String("session", session.ID),
		zap.String("style", result.Style),
		zap.Duration("duration", time.Since(start)),
		zap.Float64("foreground_ratio", result.ForegroundRatio))

	s.store(ctx, id, result)
	return &Output{Result: result}, nil
}

// Get 按ID读取缓存结果
func (s *GrabCutService) Get(ctx context.Context, id string) (*model.CutoutResult, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.GetResult(ctx, id)
}

// acquire 并发控制，排队超过 queueTimeout 返回 ErrQueueFull
func (s *GrabCutService) acquire(ctx context.Context) (func(), error) {
	wait := ctx
	if s.queueTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, s.queueTimeout)
		defer cancel()
	}

	select {
	case s.semaphore <- struct{}{}:
		return func() { <-s.semaphore }, nil
	case <-wait.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, ErrQueueFull
	}
}

func (s *GrabCutService) lookup(ctx context.Context, id string) *model.CutoutResult {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.GetResult(ctx, id)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.String("id", id), zap.Error(err))
		return nil
	}
	return cached
}

func (s *GrabCutService) store(ctx context.Context, id string, result *model.CutoutResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetResult(ctx, id, result); err != nil {
		utils.Logger.Warn("failed to set cache", zap.String("id", id), zap.Error(err))
	}
}
