package handler

import (
	"fmt"
	"net/http"

	"github.com/TIANLI0/PopCut/config"
	"github.com/TIANLI0/PopCut/model"
	"github.com/TIANLI0/PopCut/service"
	"github.com/TIANLI0/PopCut/utils"
	"github.com/gin-gonic/gin"
)

type BWConverterHandler struct {
	cfg       *config.Config
	converter *service.ConverterService
	store     *service.ResultStore
}

func NewBWConverterHandler(cfg *config.Config, converter *service.ConverterService, store *service.ResultStore) *BWConverterHandler {
	return &BWConverterHandler{
		cfg:       cfg,
		converter: converter,
		store:     store,
	}
}

// Convert 按指定公式把图片转为黑白
func (h *BWConverterHandler) Convert(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.cfg.Upload.MaxSize+bodyOverhead)

	var req model.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindMessage(err), fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if req.Image == "" || req.Method == "" {
		fail(c, "缺少图片或转换方法", errBadRequest)
		return
	}

	method, err := service.ParseMethod(req.Method)
	if err != nil {
		fail(c, "不支持的转换方法", err)
		return
	}

	data, _, err := utils.DecodeDataURL(req.Image)
	if err != nil {
		fail(c, "图片解码失败", service.NewDecodeError("invalid base64 image", err))
		return
	}

	out, err := h.converter.Convert(data, method)
	if err != nil {
		fail(c, "黑白转换失败", err)
		return
	}

	c.JSON(http.StatusOK, model.ConvertResponse{
		Success:     true,
		ResultImage: utils.EncodeDataURL("image/png", out),
		Method:      method.String(),
	})
}

// Save 保存黑白结果
func (h *BWConverterHandler) Save(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.cfg.Upload.MaxSize+bodyOverhead)

	var req model.SaveConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, bindMessage(err), fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	if req.ResultImage == "" {
		fail(c, "缺少结果图", errBadRequest)
		return
	}

	prefix := "bw_custom"
	if req.Method != "" {
		method, err := service.ParseMethod(req.Method)
		if err != nil {
			fail(c, "不支持的转换方法", err)
			return
		}
		prefix = "bw_" + method.String()
	}

	data, _, err := utils.DecodeDataURL(req.ResultImage)
	if err != nil {
		fail(c, "结果图格式错误", service.NewDecodeError("result_image", err))
		return
	}

	resultPath, err := h.store.Save(c.Request.Context(), "bw_converter", prefix, data, "image/png")
	if err != nil {
		fail(c, "保存结果图失败", err)
		return
	}

	c.JSON(http.StatusOK, model.SaveConvertResponse{
		Success:    true,
		ResultPath: resultPath,
	})
}
