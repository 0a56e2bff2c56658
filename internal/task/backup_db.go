package task

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"aimlib/internal/config"
	"aimlib/internal/db"
	"aimlib/internal/storage"
)

const (
	defaultDBName     = "aimlib.db"
	backupMaxRetries  = 4
	backupInitialWait = 2 * time.Second
)

// StartDailyMaintenance 每日零点清理过期会话；开启 BACKUP_ENABLE 且配置了 S3 时顺带备份数据库。
func StartDailyMaintenance(ctx context.Context, cfg config.Config, store *db.DB, reg *storage.Registry) {
	logger := store.Logger
	var backupTarget storage.Storage
	dbPath, pathOK := resolveDBPath(cfg.DatabasePath)
	if cfg.AppConfig.BackupEnable {
		switch {
		case reg == nil || reg.Storages[storage.PlatformS3] == nil:
			logger.Warn("S3 存储未初始化，跳过数据库备份")
		case !pathOK:
			logger.Warn("数据库路径无效，跳过数据库备份", "path", cfg.DatabasePath)
		default:
			backupTarget = reg.Storages[storage.PlatformS3]
		}
	}

	run := func() {
		purgeSessions(ctx, store, logger)
		if backupTarget != nil {
			if err := backupWithRetry(ctx, store, dbPath, backupTarget, logger); err != nil {
				logger.Error("数据库备份失败", "err", err)
			}
		}
	}

	go func() {
		run()
		logger.Info("启动每日维护任务", "backup", backupTarget != nil)
		for {
			timer := time.NewTimer(time.Until(nextMidnight(time.Now())))
			select {
			case <-ctx.Done():
				timer.Stop()
				logger.Info("每日维护任务已停止")
				return
			case <-timer.C:
			}
			run()
		}
	}()
}

func purgeSessions(ctx context.Context, store *db.DB, logger *slog.Logger) {
	cctx, cancel := store.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := store.Session.PurgeExpired(cctx)
	if err != nil {
		logger.Error("清理过期会话失败", "err", err)
		return
	}
	if n > 0 {
		logger.Info("已清理过期会话", "count", n)
	}
}

func backupWithRetry(ctx context.Context, store *db.DB, dbPath string, stg storage.Storage, logger *slog.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = backupInitialWait
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := backupOnce(ctx, store, dbPath, stg, logger)
		if err != nil {
			logger.Warn("数据库备份重试", "attempt", attempt, "err", err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, backupMaxRetries), ctx))
}

// backupOnce 先用 VACUUM INTO 生成一致的快照，再上传快照文件。
func backupOnce(ctx context.Context, store *db.DB, dbPath string, stg storage.Storage, logger *slog.Logger) error {
	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("aimlib-backup-%d.db", time.Now().UnixNano()))
	defer os.Remove(snapshot)
	if err := store.Client.WithContext(ctx).Exec("VACUUM INTO ?", snapshot).Error; err != nil {
		return fmt.Errorf("生成数据库快照失败: %w", err)
	}

	file, err := os.Open(snapshot)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	objectKey := buildBackupObjectKey(time.Now(), filepath.Base(dbPath))
	if err := stg.Write(ctx, objectKey, file, info.Size(), "application/octet-stream"); err != nil {
		return err
	}
	logger.Info("数据库已备份到 S3",
		"objectKey", objectKey,
		"size", fmt.Sprintf("%.2f KB", float64(info.Size())/1024.0))
	return nil
}

func buildBackupObjectKey(now time.Time, base string) string {
	name := strings.TrimSpace(base)
	if name == "" || name == "." {
		name = defaultDBName
	}
	prefix := now.Format("2006_01_02_150405")
	filename := fmt.Sprintf("%s_%s", prefix, name)
	return path.Join("backup", filename)
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
}

func resolveDBPath(dbPath string) (string, bool) {
	pathStr := strings.TrimSpace(dbPath)
	if pathStr == "" || strings.HasPrefix(pathStr, ":memory:") {
		return "", false
	}
	if after, ok := strings.CutPrefix(pathStr, "file:"); ok {
		pathStr = after
	}
	if idx := strings.Index(pathStr, "?"); idx >= 0 {
		pathStr = pathStr[:idx]
	}
	if pathStr == "" {
		return "", false
	}
	return filepath.Clean(pathStr), true
}
