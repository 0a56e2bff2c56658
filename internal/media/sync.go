// Package media 把存储中的准星/音效文件同步到资源表。
package media

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"aimlib/internal/config"
	"aimlib/internal/db/model"
)

// Kind 一类静态托管的媒体资源。
type Kind struct {
	Type model.ResourceType
	Dir  string
	Ext  string
}

// FilePath 由文件名确定性地推导，如 /crosshairs/a.png。
func (k Kind) FilePath(filename string) string {
	return "/" + path.Join(k.Dir, filename)
}

func Kinds(cfg config.Config) map[model.ResourceType]Kind {
	return map[model.ResourceType]Kind{
		model.ResourceCrosshair: {Type: model.ResourceCrosshair, Dir: cfg.CrosshairDir, Ext: cfg.CrosshairExt},
		model.ResourceSound:     {Type: model.ResourceSound, Dir: cfg.SoundDir, Ext: cfg.SoundExt},
	}
}

type Lister interface {
	List(ctx context.Context, dir, ext string) ([]string, error)
}

type ResourceInserter interface {
	InsertIfMissing(ctx context.Context, resource *model.Resource) (bool, error)
}

type Syncer struct {
	files     Lister
	resources ResourceInserter
	logger    *slog.Logger
}

func NewSyncer(files Lister, resources ResourceInserter, logger *slog.Logger) *Syncer {
	return &Syncer{files: files, resources: resources, logger: logger}
}

// Sync 为存储中尚未入库的文件插入资源行，返回新增条数。
// 目录读取失败直接返回错误。
func (s *Syncer) Sync(ctx context.Context, kind Kind) (int, error) {
	names, err := s.files.List(ctx, kind.Dir, kind.Ext)
	if err != nil {
		return 0, fmt.Errorf("扫描 %s 失败: %w", kind.Dir, err)
	}
	inserted := 0
	for _, name := range names {
		ok, err := s.resources.InsertIfMissing(ctx, &model.Resource{
			Name:        name,
			Type:        kind.Type,
			FilePath:    kind.FilePath(name),
			SubmittedBy: model.SystemUserID,
		})
		if err != nil {
			return inserted, fmt.Errorf("写入资源 %s 失败: %w", name, err)
		}
		if ok {
			inserted++
		}
	}
	if inserted > 0 {
		s.logger.Info("同步媒体文件", "type", kind.Type, "dir", kind.Dir, "scanned", len(names), "inserted", inserted)
	}
	return inserted, nil
}
