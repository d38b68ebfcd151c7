package service

import (
	"time"

	"github.com/TIANLI0/PopCut/config"
	"github.com/TIANLI0/PopCut/utils"
	"go.uber.org/zap"
)

// ConverterService 黑白转换，无会话状态
type ConverterService struct {
	maxPixels int
}

func NewConverterService(cfg *config.UploadConfig) *ConverterService {
	return &ConverterService{maxPixels: cfg.MaxPixels}
}

// Convert 解码、按公式折算为单通道、编码为 PNG
func (s *ConverterService) Convert(data []byte, method Method) ([]byte, error) {
	if method < 0 || method >= methodCount {
		return nil, unknownMethodError("convert", method.String())
	}

	start := time.Now()
	img, err := DecodeLimit(data, s.maxPixels)
	if err != nil {
		return nil, err
	}

	out, err := Encode(ToGray(img, method))
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("image converted",
		zap.String("method", method.String()),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}
