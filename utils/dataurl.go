package utils

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrEmptyDataURL = errors.New("empty data url")

// DecodeDataURL 解析 data:<mime>;base64,<data>，也接受不带前缀的纯 base64
func DecodeDataURL(s string) (data []byte, mimeType string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", ErrEmptyDataURL
	}

	payload := s
	if idx := strings.Index(s, "base64,"); idx >= 0 {
		header := s[:idx]
		payload = s[idx+len("base64,"):]
		if rest, ok := strings.CutPrefix(header, "data:"); ok {
			mimeType = strings.TrimSuffix(rest, ";")
		}
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// 部分客户端不带 padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", err
		}
	}
	return data, mimeType, nil
}

// EncodeDataURL 生成 data URL
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
