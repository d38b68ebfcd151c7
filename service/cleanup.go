package service

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/TIANLI0/PopCut/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor 定时删除超过保留期的结果文件
type Janitor struct {
	dir       string
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

func NewJanitor(dir string, retention time.Duration) *Janitor {
	return &Janitor{
		dir:       dir,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start 按 cron 表达式（支持 @every）启动清理任务
func (j *Janitor) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, func() {
		if _, err := j.Sweep(); err != nil {
			utils.Logger.Warn("result cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop 停止调度并等待正在执行的清理结束
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

// Sweep 执行一次清理，返回删除的文件数
func (j *Janitor) Sweep() (int, error) {
	cutoff := j.now().Add(-j.retention)
	removed := 0

	err := filepath.WalkDir(j.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		removed++
		return nil
	})

	if removed > 0 {
		utils.Logger.Info("expired results removed",
			zap.Int("count", removed),
			zap.Duration("retention", j.retention))
	}
	return removed, err
}
