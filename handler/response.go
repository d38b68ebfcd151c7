package handler

import (
	"errors"
	"net/http"

	"github.com/TIANLI0/PopCut/middleware"
	"github.com/TIANLI0/PopCut/model"
	"github.com/TIANLI0/PopCut/service"
	"github.com/TIANLI0/PopCut/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errBadRequest 请求体本身有问题（缺字段、JSON 格式错误）
var errBadRequest = errors.New("bad request")

// statusFor 错误类别到 HTTP 状态码
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindDecode, service.KindRect, service.KindUnknownMethod:
		return http.StatusBadRequest
	case service.KindSegmentation:
		return http.StatusUnprocessableEntity
	}
	// 超限的请求体同时带有 errBadRequest，先判断
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, service.ErrInvalidResult):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// bindMessage 请求体解析失败时的提示
func bindMessage(err error) string {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "文件大小超过限制"
	}
	return "请求参数错误"
}

// fail 输出错误响应，不返回任何部分结果
func fail(c *gin.Context, message string, err error) {
	status := statusFor(err)
	kind := string(service.KindOf(err))

	log := utils.Logger.Warn
	if status >= http.StatusInternalServerError {
		log = utils.Logger.Error
	}
	log(message,
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.Int("status", status),
		zap.String("kind", kind),
		zap.Error(err))

	c.JSON(status, model.ErrorResponse{
		Success: false,
		Message: message,
		Kind:    kind,
		Error:   err.Error(),
	})
}
