package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/TIANLI0/PopCut/config"
	"github.com/TIANLI0/PopCut/middleware"
	"github.com/TIANLI0/PopCut/model"
	"github.com/TIANLI0/PopCut/service"
	"github.com/TIANLI0/PopCut/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipart 与 base64 的额外开销
const bodyOverhead = 1 << 20

type GrabCutHandler struct {
	cfg     *config.Config
	grabCut *service.GrabCutService
	store   *service.ResultStore
}

func NewGrabCutHandler(cfg *config.Config, grabCut *service.GrabCutService, store *service.ResultStore) *GrabCutHandler {
	return &GrabCutHandler{
		cfg:     cfg,
		grabCut: grabCut,
		store:   store,
	}
}

// Process 处理抠图请求，支持 JSON 与 multipart 两种上传方式
func (h *GrabCutHandler) Process(c *gin.Context) {
	var (
		req service.Request
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err = h.parseMultipart(c)
	} else {
		req, err = h.parseJSON(c)
	}
	if err != nil {
		fail(c, processMessage(err), err)
		return
	}

	utils.Logger.Info("cutout requested",
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.Int("size", len(req.Image)),
		zap.Stringer("rect", req.Rect),
		zap.Stringer("style", req.Style),
		zap.Int("iterations", req.Iterations))

	out, err := h.grabCut.Process(c.Request.Context(), req)
	if err != nil {
		fail(c, processMessage(err), err)
		return
	}

	message := "处理成功"
	if out.Cached {
		message = "处理成功（来自缓存）"
	}
	c.JSON(http.StatusOK, model.ProcessResponse{
		Success: true,
		Message: message,
		Cached:  out.Cached,
		Data:    out.Result,
	})
}

// GetResult 根据ID获取缓存的抠图结果
func (h *GrabCutHandler) GetResult(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		fail(c, "ID参数缺失", errBadRequest)
		return
	}

	result, err := h.grabCut.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, "查询失败", err)
		return
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该结果",
		})
		return
	}

	c.JSON(http.StatusOK, model.ProcessResponse{
		Success: true,
		Message: "查询成功",
		Cached:  true,
		Data:    result,
	})
}

// Save 把抠图结果与掩码保存到结果目录
func (h *GrabCutHandler) Save(c *gin.Context) {
	h.limitBody(c, 2*h.cfg.Upload.MaxSize)

	var req model.SaveCutoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindMessage(err), fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if req.ResultImage == "" || req.MaskImage == "" {
		fail(c, "缺少结果图或掩码", errBadRequest)
		return
	}

	resultData, _, err := utils.DecodeDataURL(req.ResultImage)
	if err != nil {
		fail(c, "结果图格式错误", service.NewDecodeError("result_image", err))
		return
	}
	maskData, _, err := utils.DecodeDataURL(req.MaskImage)
	if err != nil {
		fail(c, "掩码格式错误", service.NewDecodeError("mask_image", err))
		return
	}

	ctx := c.Request.Context()
	resultPath, err := h.store.Save(ctx, "grabcut", "result", resultData, "image/png")
	if err != nil {
		fail(c, "保存结果图失败", err)
		return
	}
	maskPath, err := h.store.Save(ctx, "grabcut", "mask", maskData, "image/png")
	if err != nil {
		fail(c, "保存掩码失败", err)
		return
	}

	c.JSON(http.StatusOK, model.SaveCutoutResponse{
		Success:    true,
		ResultPath: resultPath,
		MaskPath:   maskPath,
	})
}

func (h *GrabCutHandler) parseJSON(c *gin.Context) (service.Request, error) {
	h.limitBody(c, 2*h.cfg.Upload.MaxSize)

	var body model.ProcessRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return service.Request{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if body.Image == "" || body.Rect == nil {
		return service.Request{}, fmt.Errorf("%w: image and rect are required", errBadRequest)
	}

	data, _, err := utils.DecodeDataURL(body.Image)
	if err != nil {
		return service.Request{}, service.NewDecodeError("invalid base64 image", err)
	}

	style, err := service.ParseStyle(firstNonEmpty(body.Style, body.ResultType))
	if err != nil {
		return service.Request{}, err
	}

	return service.Request{
		Image:      data,
		Rect:       service.Rectangle{X: body.Rect.X, Y: body.Rect.Y, Width: body.Rect.Width, Height: body.Rect.Height},
		Style:      style,
		Iterations: body.Iterations,
	}, nil
}

func (h *GrabCutHandler) parseMultipart(c *gin.Context) (service.Request, error) {
	h.limitBody(c, h.cfg.Upload.MaxSize)

	file, err := c.FormFile("image")
	if err != nil {
		return service.Request{}, fmt.Errorf("%w: image file is required: %w", errBadRequest, err)
	}

	// 验证文件大小
	if file.Size > h.cfg.Upload.MaxSize {
		return service.Request{}, fmt.Errorf("%w: file exceeds %d MB", errBadRequest, h.cfg.Upload.MaxSize/(1024*1024))
	}

	// 验证文件类型
	if !isAllowedType(h.cfg.Upload.AllowedTypes, file.Header.Get("Content-Type")) {
		return service.Request{}, fmt.Errorf("%w: unsupported content type %q", errBadRequest, file.Header.Get("Content-Type"))
	}

	f, err := file.Open()
	if err != nil {
		return service.Request{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.Request{}, fmt.Errorf("read upload: %w", err)
	}

	var rect service.Rectangle
	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"x", &rect.X}, {"y", &rect.Y}, {"width", &rect.Width}, {"height", &rect.Height},
	} {
		raw, ok := c.GetPostForm(field.name)
		if !ok {
			return service.Request{}, fmt.Errorf("%w: form field %q is required", errBadRequest, field.name)
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return service.Request{}, fmt.Errorf("%w: form field %q: %w", errBadRequest, field.name, err)
		}
		*field.dst = v
	}

	iterations := 0
	if raw := c.PostForm("iterations"); raw != "" {
		if iterations, err = strconv.Atoi(raw); err != nil {
			return service.Request{}, fmt.Errorf("%w: form field \"iterations\": %w", errBadRequest, err)
		}
	}

	style, err := service.ParseStyle(firstNonEmpty(c.PostForm("style"), c.PostForm("result_type")))
	if err != nil {
		return service.Request{}, err
	}

	return service.Request{Image: data, Rect: rect, Style: style, Iterations: iterations}, nil
}

func (h *GrabCutHandler) limitBody(c *gin.Context, limit int64) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+bodyOverhead)
}

func processMessage(err error) string {
	switch service.KindOf(err) {
	case service.KindDecode:
		return "图片解码失败"
	case service.KindRect:
		return "矩形坐标无效"
	case service.KindUnknownMethod:
		return "不支持的合成风格"
	case service.KindSegmentation:
		return "图像分割失败"
	}
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "请求参数错误"
	case http.StatusRequestEntityTooLarge:
		return "文件大小超过限制"
	case http.StatusServiceUnavailable:
		return "处理队列已满，请稍后重试"
	}
	return "图片处理失败"
}

func isAllowedType(allowed []string, contentType string) bool {
	for _, t := range allowed {
		if strings.EqualFold(contentType, t) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
