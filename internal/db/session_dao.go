package db

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"

	"aimlib/internal/auth"
	"aimlib/internal/db/model"
)

// SessionDao 会话由外部 OAuth 流程写入；这里只负责按 token 解析用户，以及 CLI 签发开发用会话。
type SessionDao struct {
	store *DB
}

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Issue 返回明文 token，库中只保存摘要。
func (s *SessionDao) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", err
	}
	sess := model.Session{
		TokenHash: auth.HashToken(token),
		UserID:    userID,
		Expires:   time.Now().Add(ttl),
	}
	if err := s.store.Client.WithContext(ctx).Create(&sess).Error; err != nil {
		return "", err
	}
	return token, nil
}

// GetUserByToken 过期或不存在返回 nil。
func (s *SessionDao) GetUserByToken(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	err := s.store.Client.WithContext(ctx).
		Joins("JOIN sessions ON sessions.user_id = users.id").
		Where("sessions.token_hash = ? AND sessions.expires > ?", auth.HashToken(token), time.Now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *SessionDao) Revoke(ctx context.Context, token string) error {
	return s.store.Client.WithContext(ctx).Where("token_hash = ?", auth.HashToken(token)).Delete(&model.Session{}).Error
}

func (s *SessionDao) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.store.Client.WithContext(ctx).Where("expires <= ?", time.Now()).Delete(&model.Session{})
	return res.RowsAffected, res.Error
}
