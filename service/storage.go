package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/TIANLI0/PopCut/utils"
	"go.uber.org/zap"
)

// ErrInvalidResult 待保存的数据或名称不合法
var ErrInvalidResult = errors.New("invalid result")

// PublicPrefix 存储目录对外暴露的 URL 前缀
const PublicPrefix = "/results"

var (
	extensions = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/webp": ".webp",
	}
	safeName = regexp.MustCompile(`^[a-z0-9_\-]+$`)
)

// ResultStore 把已编码的结果写入本地目录
type ResultStore struct {
	dir string
}

func NewResultStore(dir string) *ResultStore {
	return &ResultStore{dir: dir}
}

// Dir 根目录
func (s *ResultStore) Dir() string {
	return s.dir
}

// Save 写入 <dir>/<kind>/<prefix>_<ksuid><ext>，返回对外路径
func (s *ResultStore) Save(ctx context.Context, kind, prefix string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !safeName.MatchString(kind) || !safeName.MatchString(prefix) {
		return "", fmt.Errorf("%w: name %q/%q", ErrInvalidResult, kind, prefix)
	}
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrInvalidResult, contentType)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty %s data", ErrInvalidResult, contentType)
	}
	if sniffed := http.DetectContentType(data); sniffed != contentType {
		return "", fmt.Errorf("%w: data looks like %q, not %q", ErrInvalidResult, sniffed, contentType)
	}

	dir := filepath.Join(s.dir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}

	name := prefix + "_" + utils.GenerateID() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}

	utils.Logger.Info("result saved",
		zap.String("kind", kind),
		zap.String("file", name),
		zap.Int("size", len(data)))
	return path.Join(PublicPrefix, kind, name), nil
}
