package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"aimlib/internal/apperr"
	"aimlib/internal/config"
	"aimlib/internal/db/model"
)

type AppConfigDao struct {
	store *DB
}

// GetConfigs 从数据库读取所有配置项，返回 kv。
func (dao *AppConfigDao) GetConfigs(ctx context.Context) (map[string]string, error) {
	var items []model.AppConfigItem
	if err := dao.store.Client.WithContext(ctx).Find(&items).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		key := strings.ToUpper(strings.TrimSpace(item.Key))
		if key == "" {
			continue
		}
		out[key] = item.Value
	}
	return out, nil
}

func (dao *AppConfigDao) setConfig(ctx context.Context, key, value string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	return dao.store.Client.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.AppConfigItem{Key: key, Value: value}).Error
}

// SetConfig 校验后写入数据库（仅允许白名单 AppConfig）。
// 运行中的 cfg 与存储驱动不会改变，新值在下次启动 Sync 时生效。
func (dao *AppConfigDao) SetConfig(ctx context.Context, key, value string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	if !config.IsAppConfigKey(key) {
		return apperr.Validation(fmt.Sprintf("不支持的配置项: %s", key))
	}
	var scratch config.Config
	if !scratch.SetAppConfigValue(key, value) {
		return apperr.Validation(fmt.Sprintf("配置值无效: %s=%s", key, value))
	}
	return dao.setConfig(ctx, key, value)
}
