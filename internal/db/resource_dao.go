package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aimlib/internal/apperr"
	"aimlib/internal/db/model"
)

type ResourceDao struct {
	store *DB
}

// ListFilter Type 为空表示所有类型；ViewerID 为空表示匿名访问。
type ListFilter struct {
	Type           model.ResourceType
	ViewerID       string
	IncludeDeleted bool
}

type aggregateRow struct {
	model.Resource
	Likes       int64
	ViewerLikes int64
}

const aggregateSelect = `
SELECT r.id, r.name, r.type, r.file_path, r.submitted_by, r.status, r.created_at, r.updated_at,
       COUNT(l.resource_id) AS likes,
       COALESCE(SUM(CASE WHEN l.user_id = ? THEN 1 ELSE 0 END), 0) AS viewer_likes
FROM resources r
LEFT JOIN likes l ON l.resource_id = r.id
`

func (r *ResourceDao) Insert(ctx context.Context, resource *model.Resource) error {
	return r.store.Client.WithContext(ctx).Create(resource).Error
}

// InsertIfMissing 名称或文件路径已存在（含软删除）时不写入。
func (r *ResourceDao) InsertIfMissing(ctx context.Context, resource *model.Resource) (bool, error) {
	var count int64
	err := r.store.Client.WithContext(ctx).Model(&model.Resource{}).
		Where("name = ? OR file_path = ?", resource.Name, resource.FilePath).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	res := r.store.Client.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(resource)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ResourceDao) FindByID(ctx context.Context, id string) (*model.Resource, error) {
	var res model.Resource
	if err := r.store.Client.WithContext(ctx).Where("id = ?", id).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// FindLive 软删除的资源视为不存在。
func (r *ResourceDao) FindLive(ctx context.Context, id string) (*model.Resource, error) {
	res, err := r.FindByID(ctx, id)
	if err != nil || res == nil {
		return nil, err
	}
	if res.Status == model.StatusDeleted {
		return nil, nil
	}
	return res, nil
}

func (r *ResourceDao) ListAggregated(ctx context.Context, filter ListFilter) ([]model.ResourceWithLikes, error) {
	var sb strings.Builder
	sb.WriteString(aggregateSelect)
	args := []any{filter.ViewerID}
	conds := make([]string, 0, 2)
	if !filter.IncludeDeleted {
		conds = append(conds, "r.status <> ?")
		args = append(args, model.StatusDeleted)
	}
	if filter.Type != "" {
		conds = append(conds, "r.type = ?")
		args = append(args, filter.Type)
	}
	if len(conds) > 0 {
		sb.WriteString("WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
		sb.WriteString("\n")
	}
	sb.WriteString("GROUP BY r.id\nORDER BY r.created_at DESC, r.name ASC")

	var rows []aggregateRow
	if err := r.store.Client.WithContext(ctx).Raw(sb.String(), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]model.ResourceWithLikes, 0, len(rows))
	for _, row := range rows {
		items = append(items, toAggregated(row))
	}
	return items, nil
}

func (r *ResourceDao) GetAggregated(ctx context.Context, id, viewerID string) (*model.ResourceWithLikes, error) {
	var rows []aggregateRow
	query := aggregateSelect + "WHERE r.id = ? AND r.status <> ?\nGROUP BY r.id"
	if err := r.store.Client.WithContext(ctx).Raw(query, viewerID, id, model.StatusDeleted).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	item := toAggregated(rows[0])
	return &item, nil
}

func toAggregated(row aggregateRow) model.ResourceWithLikes {
	return model.ResourceWithLikes{
		Resource:    row.Resource,
		Likes:       row.Likes,
		LikedByUser: row.ViewerLikes > 0,
	}
}

// Update 重命名/修改类型；调用方负责参数格式校验。
func (r *ResourceDao) Update(ctx context.Context, id, name string, typ model.ResourceType) (*model.Resource, error) {
	var updated model.Resource
	err := r.store.Client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status <> ?", id, model.StatusDeleted).First(&updated).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("资源不存在")
			}
			return err
		}
		var taken int64
		if err := tx.Model(&model.Resource{}).Where("name = ? AND id <> ?", name, id).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return apperr.Validation("名称已被占用")
		}
		updated.Name = name
		updated.Type = typ
		return tx.Model(&updated).Select("name", "type", "updated_at").Updates(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// HardDelete 物理删除资源行，并清理其点赞。
func (r *ResourceDao) HardDelete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.store.Client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_id = ?", id).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Resource{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// SoftDeleteMedia 将准星/音效标记为 deleted 并清理点赞，行本身保留以占住名称。
func (r *ResourceDao) SoftDeleteMedia(ctx context.Context, id string, typ model.ResourceType) (bool, error) {
	var deleted bool
	err := r.store.Client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Resource{}).
			Where("id = ? AND type = ? AND status <> ?", id, typ, model.StatusDeleted).
			Update("status", model.StatusDeleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("resource_id = ?", id).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

type TypeCount struct {
	Type  model.ResourceType `json:"type"`
	Total int64              `json:"total"`
}

func (r *ResourceDao) CountByType(ctx context.Context) ([]TypeCount, error) {
	out := make([]TypeCount, 0)
	err := r.store.Client.WithContext(ctx).Model(&model.Resource{}).
		Select("type, COUNT(1) AS total").
		Where("status <> ?", model.StatusDeleted).
		Group("type").Order("type").
		Scan(&out).Error
	return out, err
}
