package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"aimlib/internal/db/model"
)

type UserDao struct {
	store *DB
}

func (u *UserDao) first(ctx context.Context, query string, args ...any) (*model.User, error) {
	var user model.User
	if err := u.store.Client.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (u *UserDao) FindByID(ctx context.Context, id string) (*model.User, error) {
	return u.first(ctx, "id = ?", id)
}

func (u *UserDao) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.first(ctx, "email = ?", email)
}

func (u *UserDao) Insert(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	return u.store.Client.WithContext(ctx).Create(user).Error
}

// List 不含系统账户。
func (u *UserDao) List(ctx context.Context) ([]model.User, error) {
	users := make([]model.User, 0)
	err := u.store.Client.WithContext(ctx).Where("id <> ?", model.SystemUserID).Order("created_at DESC").Find(&users).Error
	return users, err
}

func (u *UserDao) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	return u.store.Client.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("role", role).Error
}

// Delete 删除用户及其点赞、会话；其提交的资源转交系统账户。
func (u *UserDao) Delete(ctx context.Context, userID string) (bool, error) {
	var deleted bool
	err := u.store.Client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Resource{}).Where("submitted_by = ?", userID).Update("submitted_by", model.SystemUserID).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", userID).Delete(&model.User{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (u *UserDao) Count(ctx context.Context) (int64, error) {
	var total int64
	err := u.store.Client.WithContext(ctx).Model(&model.User{}).Where("id <> ?", model.SystemUserID).Count(&total).Error
	return total, err
}
