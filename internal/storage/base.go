package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"aimlib/internal/config"
)

type BucketPlatform string

const (
	PlatformLocal BucketPlatform = "local"
	PlatformS3    BucketPlatform = "s3"
)

// Storage 媒体文件所在位置。objectKey 为相对路径，如 crosshairs/a.png。
type Storage interface {
	Platform() BucketPlatform
	// List 返回 dir 下后缀为 ext 的文件名（不含目录），按字母序。
	List(ctx context.Context, dir, ext string) ([]string, error)
	Write(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectKey string) error
}

type Registry struct {
	DefaultDriver BucketPlatform
	Storages      map[BucketPlatform]Storage
	Logger        *slog.Logger
}

func NormalizeDriver(driver string) (BucketPlatform, error) {
	switch strings.ToLower(driver) {
	case "local", "":
		return PlatformLocal, nil
	case "s3", "cloudflare":
		return PlatformS3, nil
	default:
		return "", fmt.Errorf("无效的存储驱动: %s", driver)
	}
}

func NormalizeObjectKey(key string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	clean = strings.TrimLeft(clean, "/")
	if clean == "." || clean == "" {
		return "", errors.New("存储路径为空")
	}
	if strings.Contains(clean, "..") {
		return "", errors.New("存储路径非法")
	}
	return clean, nil
}

// ObjectKeyFromFilePath 资源的 filePath（/crosshairs/a.png）转换为存储 key。
func ObjectKeyFromFilePath(filePath string) (string, error) {
	return NormalizeObjectKey(filePath)
}

// MatchExt 后缀比较忽略大小写；ext 为空表示不过滤。
func MatchExt(name, ext string) bool {
	if ext == "" {
		return true
	}
	return strings.EqualFold(filepath.Ext(name), ext)
}

func sortedNames(names []string) []string {
	sort.Strings(names)
	return names
}

func SetupRegistry(cfg config.Config, logger *slog.Logger) (*Registry, error) {
	platform, err := NormalizeDriver(cfg.AppConfig.StorageDriver)
	if err != nil {
		return nil, err
	}
	reg := &Registry{DefaultDriver: platform, Storages: make(map[BucketPlatform]Storage), Logger: logger}

	local, err := NewLocal(cfg.MediaRoot)
	if err != nil {
		return nil, err
	}
	reg.Storages[PlatformLocal] = local

	if platform == PlatformS3 || (cfg.AppConfig.S3Bucket != "" && cfg.AppConfig.S3AccessKey != "" && cfg.AppConfig.S3SecretKey != "" && cfg.AppConfig.S3Endpoint != "") {
		s3, err := NewS3(cfg, logger)
		if err != nil {
			return nil, err
		}
		reg.Storages[PlatformS3] = s3
	}
	if platform == PlatformS3 {
		if _, ok := reg.Storages[PlatformS3]; !ok {
			return nil, fmt.Errorf("已选择 S3 存储驱动，但缺少必要配置")
		}
	}
	logger.Info(fmt.Sprintf("初始化 Storage 成功，%s", platform))
	return reg, nil
}

func (r *Registry) Active() Storage {
	return r.Storages[r.DefaultDriver]
}

// 基于扩展名推断 MIME
func GuessMime(filename string) string {
	lower := strings.ToLower(filepath.Ext(filename))
	switch lower {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".db":
		return "application/vnd.sqlite3"
	}
	return "application/octet-stream"
}
