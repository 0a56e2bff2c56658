package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aimlib/internal/apperr"
	"aimlib/internal/db/model"
)

type LikeDao struct {
	store *DB
}

// requireLive typ 为空时不校验类型。
func requireLive(tx *gorm.DB, resourceID string, typ model.ResourceType) error {
	q := tx.Model(&model.Resource{}).Where("id = ? AND status <> ?", resourceID, model.StatusDeleted)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	var res model.Resource
	if err := q.First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("资源不存在")
		}
		return err
	}
	return nil
}

// insertLike 主键冲突视为“已点赞”，不报错。
func insertLike(tx *gorm.DB, userID, resourceID string) (bool, error) {
	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Like{UserID: userID, ResourceID: resourceID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func deleteLike(tx *gorm.DB, userID, resourceID string) (bool, error) {
	res := tx.Where("user_id = ? AND resource_id = ?", userID, resourceID).Delete(&model.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Toggle 已点赞则取消，未点赞则点赞；返回切换后的状态。
// 先删后插，并发的重复请求最多留下一行。
func (l *LikeDao) Toggle(ctx context.Context, userID, resourceID string) (bool, error) {
	var liked bool
	err := l.store.Client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireLive(tx, resourceID, ""); err != nil {
			return err
		}
		removed, err := deleteLike(tx, userID, resourceID)
		if err != nil {
			return err
		}
		if removed {
			liked = false
			return nil
		}
		if _, err := insertLike(tx, userID, resourceID); err != nil {
			return err
		}
		liked = true
		return nil
	})
	return liked, err
}

// Add created=false 表示此前已点赞。
func (l *LikeDao) Add(ctx context.Context, userID, resourceID string, typ model.ResourceType) (bool, error) {
	var created bool
	err := l.store.Client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireLive(tx, resourceID, typ); err != nil {
			return err
		}
		var err error
		created, err = insertLike(tx, userID, resourceID)
		return err
	})
	return created, err
}

func (l *LikeDao) Remove(ctx context.Context, userID, resourceID string, typ model.ResourceType) (bool, error) {
	var removed bool
	err := l.store.Client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireLive(tx, resourceID, typ); err != nil {
			return err
		}
		var err error
		removed, err = deleteLike(tx, userID, resourceID)
		return err
	})
	return removed, err
}

// ListByUser 返回用户点赞过的未删除资源 ID，typ 为空表示全部类型。
func (l *LikeDao) ListByUser(ctx context.Context, userID string, typ model.ResourceType) ([]string, error) {
	q := l.store.Client.WithContext(ctx).Table("likes").
		Joins("JOIN resources ON resources.id = likes.resource_id").
		Where("likes.user_id = ? AND resources.status <> ?", userID, model.StatusDeleted)
	if typ != "" {
		q = q.Where("resources.type = ?", typ)
	}
	ids := make([]string, 0)
	if err := q.Order("likes.created_at DESC").Pluck("likes.resource_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (l *LikeDao) CountByResource(ctx context.Context, resourceID string) (int64, error) {
	var total int64
	err := l.store.Client.WithContext(ctx).Model(&model.Like{}).Where("resource_id = ?", resourceID).Count(&total).Error
	return total, err
}

func (l *LikeDao) Count(ctx context.Context) (int64, error) {
	var total int64
	err := l.store.Client.WithContext(ctx).Model(&model.Like{}).Count(&total).Error
	return total, err
}
