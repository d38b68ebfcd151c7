package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/TIANLI0/PopCut/config"
	"github.com/TIANLI0/PopCut/model"
	"github.com/TIANLI0/PopCut/utils"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	results map[string]*model.CutoutResult
	gets    int
}

func newMemCache() *memCache {
	return &memCache{results: map[string]*model.CutoutResult{}}
}

func (c *memCache) GetResult(_ context.Context, id string) (*model.CutoutResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.results[id], nil
}

func (c *memCache) SetResult(_ context.Context, id string, result *model.CutoutResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[id] = result
	return nil
}

// blockingSegmenter 在 release 关闭前一直占用并发名额
type blockingSegmenter struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSegmenter) Segment(ctx context.Context, img *PixelBuffer, seed Rectangle, iterations int) (*Trimap, error) {
	close(s.entered)
	<-s.release
	return NewRectSegmenter().Segment(ctx, img, seed, iterations)
}

func testGrabCutConfig() *config.Config {
	cfg := config.Default()
	cfg.GrabCut = config.GrabCutConfig{
		Engine:         config.EngineRect,
		Iterations:     5,
		MaxIterations:  20,
		MaxConcurrent:  2,
		QueueTimeout:   50 * time.Millisecond,
		ProcessTimeout: 5 * time.Second,
	}
	return cfg
}

func TestGrabCutService_Process(t *testing.T) {
	svc := NewGrabCutService(testGrabCutConfig(), NewRectSegmenter(), nil)
	req := Request{
		Image: gradientPNG(t, 100, 100),
		Rect:  Rectangle{X: 10, Y: 10, Width: 50, Height: 50},
	}

	out, err := svc.Process(testContext(t), req)
	require.NoError(t, err)
	require.False(t, out.Cached)

	res := out.Result
	require.Equal(t, utils.BytesMD5(req.Image), res.MD5)
	require.Equal(t, ResultID(res.MD5, req.Rect, 5, StyleCutout), res.ID)
	require.Equal(t, "cutout", res.Style)
	require.Equal(t, 100, res.Width)
	require.Equal(t, 100, res.Height)
	require.Equal(t, 5, res.Iterations)
	require.Equal(t, model.BBox{X: 10, Y: 10, Width: 50, Height: 50}, res.BoundingBox)
	require.InDelta(t, 0.25, res.ForegroundRatio, 1e-9)

	maskData, mimeType, err := utils.DecodeDataURL(res.MaskImage)
	require.NoError(t, err)
	require.Equal(t, "image/png", mimeType)
	mask, err := DecodeGray(maskData)
	require.NoError(t, err)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			want := MaskBackground
			if x >= 10 && x < 60 && y >= 10 && y < 60 {
				want = MaskForeground
			}
			require.Equal(t, want, mask.GrayAt(x, y).Y, "(%d,%d)", x, y)
		}
	}

	again, err := svc.Process(testContext(t), req)
	require.NoError(t, err)
	require.Equal(t, res.ResultImage, again.Result.ResultImage)
	require.Equal(t, res.MaskImage, again.Result.MaskImage)
}

func TestGrabCutService_Cache(t *testing.T) {
	cache := newMemCache()
	svc := NewGrabCutService(testGrabCutConfig(), NewRectSegmenter(), cache)
	req := Request{
		Image: gradientPNG(t, 30, 30),
		Rect:  Rectangle{X: 5, Y: 5, Width: 10, Height: 10},
		Style: StyleGrayscaleBackground,
	}

	first, err := svc.Process(testContext(t), req)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := svc.Process(testContext(t), req)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.Result, second.Result)

	got, err := svc.Get(testContext(t), first.Result.ID)
	require.NoError(t, err)
	require.Equal(t, first.Result, got)

	// 参数不同则缓存键不同
	req.Style = StyleCutout
	third, err := svc.Process(testContext(t), req)
	require.NoError(t, err)
	require.False(t, third.Cached)
	require.NotEqual(t, first.Result.ID, third.Result.ID)
}

func TestGrabCutService_GetWithoutCache(t *testing.T) {
	svc := NewGrabCutService(testGrabCutConfig(), NewRectSegmenter(), nil)
	got, err := svc.Get(testContext(t), "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGrabCutService_Iterations(t *testing.T) {
	svc := NewGrabCutService(testGrabCutConfig(), NewRectSegmenter(), nil)
	req := Request{Image: gradientPNG(t, 20, 20), Rect: Rectangle{X: 1, Y: 1, Width: 5, Height: 5}}

	for _, n := range []int{-1, 21} {
		req.Iterations = n
		_, err := svc.Process(testContext(t), req)
		require.Equal(t, KindSegmentation, KindOf(err), "iterations=%d", n)
	}

	req.Iterations = 20
	out, err := svc.Process(testContext(t), req)
	require.NoError(t, err)
	require.Equal(t, 20, out.Result.Iterations)
}

func TestGrabCutService_Errors(t *testing.T) {
	svc := NewGrabCutService(testGrabCutConfig(), NewRectSegmenter(), nil)

	_, err := svc.Process(testContext(t), Request{Image: []byte("nope"), Rect: Rectangle{Width: 1, Height: 1}})
	require.Equal(t, KindDecode, KindOf(err))

	_, err = svc.Process(testContext(t), Request{Image: gradientPNG(t, 20, 20), Rect: Rectangle{X: 15, Y: 0, Width: 10, Height: 5}})
	require.Equal(t, KindRect, KindOf(err))
}

func TestGrabCutService_QueueFull(t *testing.T) {
	cfg := testGrabCutConfig()
	cfg.GrabCut.MaxConcurrent = 1
	seg := &blockingSegmenter{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewGrabCutService(cfg, seg, nil)
	req := Request{Image: gradientPNG(t, 20, 20), Rect: Rectangle{X: 1, Y: 1, Width: 5, Height: 5}}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Process(context.Background(), req)
		done <- err
	}()
	<-seg.entered

	_, err := svc.Process(testContext(t), req)
	require.ErrorIs(t, err, ErrQueueFull)

	close(seg.release)
	require.NoError(t, <-done)
}

func TestGrabCutService_MaxPixels(t *testing.T) {
	cfg := testGrabCutConfig()
	cfg.Upload.MaxPixels = 20 * 20
	svc := NewGrabCutService(cfg, NewRectSegmenter(), nil)
	rect := Rectangle{X: 1, Y: 1, Width: 5, Height: 5}

	_, err := svc.Process(testContext(t), Request{Image: gradientPNG(t, 20, 20), Rect: rect})
	require.NoError(t, err)

	_, err = svc.Process(testContext(t), Request{Image: gradientPNG(t, 21, 20), Rect: rect})
	require.Equal(t, KindDecode, KindOf(err))
	require.ErrorContains(t, err, "exceeds 400 pixels")
}

func TestNewSegmenter(t *testing.T) {
	seg, err := NewSegmenter(config.EngineRect)
	require.NoError(t, err)
	require.IsType(t, &RectSegmenter{}, seg)

	seg, err = NewSegmenter(config.EngineGrabCut)
	require.NoError(t, err)
	require.IsType(t, &GrabCutSegmenter{}, seg)

	_, err = NewSegmenter("magic")
	require.Error(t, err)
}
