package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type LocalStorage struct {
	root string
}

func NewLocal(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{root: root}, nil
}

func (l *LocalStorage) Platform() BucketPlatform {
	return PlatformLocal
}

func (l *LocalStorage) Root() string {
	return l.root
}

// List 目录不存在或不可读时直接返回错误，不当作空目录。
func (l *LocalStorage) List(ctx context.Context, dir, ext string) ([]string, error) {
	normalized, err := NormalizeObjectKey(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(l.root, filepath.FromSlash(normalized)))
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !MatchExt(entry.Name(), ext) {
			continue
		}
		names = append(names, entry.Name())
	}
	return sortedNames(names), nil
}

func (l *LocalStorage) Write(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	normalized, err := NormalizeObjectKey(objectKey)
	if err != nil {
		return err
	}
	target := filepath.Join(l.root, filepath.FromSlash(normalized))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// Delete 文件不存在视为已删除。
func (l *LocalStorage) Delete(ctx context.Context, objectKey string) error {
	normalized, err := NormalizeObjectKey(objectKey)
	if err != nil {
		return err
	}
	target := filepath.Join(l.root, filepath.FromSlash(normalized))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
