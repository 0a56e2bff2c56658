package db

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aimlib/internal/config"
	"aimlib/internal/db/model"
)

const (
	systemUserName  = "system"
	systemUserEmail = "system@aimlib.local"
)

type DB struct {
	Client    *gorm.DB
	Logger    *slog.Logger
	Cfg       config.Config
	AppConfig *AppConfigDao
	User      *UserDao
	Resource  *ResourceDao
	Like      *LikeDao
	Session   *SessionDao
}

func NewStore(cfg config.Config, logger *slog.Logger) (*DB, error) {
	if err := ensureDir(cfg.DatabasePath); err != nil {
		return nil, err
	}
	logLevel := gormlogger.Silent
	if strings.EqualFold(cfg.LogLevel, "debug") {
		logLevel = gormlogger.Info
	}
	client, err := gorm.Open(sqlite.Open(buildDSN(cfg.DatabasePath)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(cfg.DatabasePath, ":memory:") {
		// 内存库每个连接都是独立的库
		sqlDB, err := client.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	store := &DB{Client: client, Logger: logger, Cfg: cfg}
	store.Resource = &ResourceDao{store: store}
	store.User = &UserDao{store: store}
	store.Like = &LikeDao{store: store}
	store.Session = &SessionDao{store: store}
	store.AppConfig = &AppConfigDao{store: store}

	ctx := context.Background()
	if err := store.migrate(ctx); err != nil {
		return nil, err
	}
	if err := store.ensureSystemUser(ctx); err != nil {
		return nil, err
	}
	if err := store.ensureAdmin(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// buildDSN 补齐 go-sqlite3 连接参数：写事务以 IMMEDIATE 开启并等待锁，
// 并发点赞不会直接报 database is locked。已显式给出的参数保持不变。
func buildDSN(path string) string {
	params := [][2]string{
		{"_foreign_keys", "1"},
		{"_busy_timeout", "5000"},
		{"_txlock", "immediate"},
	}
	if !strings.HasPrefix(path, ":memory:") && !strings.Contains(path, "mode=memory") {
		params = append(params, [2]string{"_journal_mode", "WAL"})
	}

	base, query, _ := strings.Cut(path, "?")
	present := make(map[string]bool)
	for _, kv := range strings.Split(query, "&") {
		if k, _, _ := strings.Cut(kv, "="); k != "" {
			present[k] = true
		}
	}
	parts := make([]string, 0, len(params)+1)
	if query != "" {
		parts = append(parts, query)
	}
	for _, p := range params {
		if !present[p[0]] {
			parts = append(parts, p[0]+"="+p[1])
		}
	}
	return base + "?" + strings.Join(parts, "&")
}

func ensureDir(dbPath string) error {
	if strings.HasPrefix(dbPath, ":memory:") {
		return nil
	}
	path := dbPath
	if strings.HasPrefix(dbPath, "file:") {
		path = strings.TrimPrefix(dbPath, "file:")
	}
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	clean := filepath.Clean(path)
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *DB) Close() error {
	sqlDB, err := s.Client.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *DB) migrate(ctx context.Context) error {
	return s.Client.WithContext(ctx).AutoMigrate(
		&model.User{},
		&model.Resource{},
		&model.Like{},
		&model.Session{},
		&model.AppConfigItem{},
	)
}

func (s *DB) ensureSystemUser(ctx context.Context) error {
	var existing model.User
	err := s.Client.WithContext(ctx).Where("id = ?", model.SystemUserID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	u := model.User{ID: model.SystemUserID, Name: systemUserName, Email: systemUserEmail, Role: model.RoleUser}
	if err := s.Client.WithContext(ctx).Create(&u).Error; err != nil {
		return err
	}
	s.Logger.Info("创建系统账户", "id", u.ID)
	return nil
}

// ensureAdmin 配置了 ADMIN_EMAIL 时，保证该账户存在且为管理员。
func (s *DB) ensureAdmin(ctx context.Context) error {
	email := strings.TrimSpace(s.Cfg.AdminEmail)
	if email == "" {
		return nil
	}
	existing, err := s.User.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role != model.RoleAdmin {
			s.Logger.Info("提升为管理员", "email", email)
			return s.User.UpdateRole(ctx, existing.ID, model.RoleAdmin)
		}
		s.Logger.Info("管理员账户已存在", "email", email)
		return nil
	}
	u := model.User{Name: s.Cfg.AdminName, Email: email, Role: model.RoleAdmin}
	if err := s.Client.WithContext(ctx).Create(&u).Error; err != nil {
		return err
	}
	s.Logger.Info("创建默认管理员账户", "email", email)
	return nil
}

func (s *DB) WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
