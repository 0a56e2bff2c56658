package config

import (
	"context"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 可由管理后台覆盖的运行时配置（白名单来自 config tag）。
type AppConfig struct {
	StorageDriver string `config:"STORAGE_DRIVER"`
	// s3 config
	S3Bucket    string `config:"S3_BUCKET"`
	S3AccessKey string `config:"S3_ACCESS_KEY"`
	S3SecretKey string `config:"S3_SECRET_KEY"`
	S3Endpoint  string `config:"S3_ENDPOINT"`
	S3Region    string `config:"S3_REGION"`
	// 每日备份数据库到 S3
	BackupEnable bool `config:"BACKUP_ENABLE"`
}

type Config struct {
	Port           int
	FrontendOrigin string
	DatabasePath   string
	MediaRoot      string
	CrosshairDir   string
	CrosshairExt   string
	SoundDir       string
	SoundExt       string
	SessionCookie  string
	SessionTTL     time.Duration
	CookieSecure   bool
	AdminEmail     string
	AdminName      string
	LogLevel       string
	AppConfig      AppConfig
}

type AppConfigDao interface {
	GetConfigs(ctx context.Context) (map[string]string, error)
}

var (
	appConfigKeyOnce  sync.Once
	appConfigKeyIndex map[string][]int
)

func getAppConfigKeyIndex() map[string][]int {
	appConfigKeyOnce.Do(func() {
		appConfigKeyIndex = make(map[string][]int)
		t := reflect.TypeOf(AppConfig{})
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			key := strings.ToUpper(strings.TrimSpace(f.Tag.Get("config")))
			if key == "" {
				continue
			}
			appConfigKeyIndex[key] = f.Index
		}
	})
	return appConfigKeyIndex
}

// AppConfigKeys 返回所有 AppConfig 白名单 key，并按字母序排序。
func AppConfigKeys() []string {
	index := getAppConfigKeyIndex()
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load 读取环境变量（以及工作目录下可选的 .env 文件）。
// .env 不会覆盖已存在的环境变量。
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:           getInt("PORT", 3301),
		FrontendOrigin: getEnv("FRONTEND_ORIGIN", "*"),
		DatabasePath:   getEnv("DATABASE_PATH", "./data/aimlib.db"),
		MediaRoot:      getEnv("MEDIA_ROOT", "./public"),
		CrosshairDir:   getEnv("CROSSHAIR_DIR", "crosshairs"),
		CrosshairExt:   normalizeExt(getEnv("CROSSHAIR_EXT", ".png")),
		SoundDir:       getEnv("SOUND_DIR", "sounds"),
		SoundExt:       normalizeExt(getEnv("SOUND_EXT", ".ogg")),

		SessionCookie: getEnv("SESSION_COOKIE", "aimlib_session"),
		SessionTTL:    time.Duration(getInt("SESSION_TTL_HOURS", 24*30)) * time.Hour,
		CookieSecure:  getEnv("COOKIE_SECURE", "false") == "true",

		AdminEmail: getEnv("ADMIN_EMAIL", ""),
		AdminName:  getEnv("ADMIN_NAME", "admin"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

func IsAppConfigKey(key string) bool {
	key = strings.ToUpper(strings.TrimSpace(key))
	_, ok := getAppConfigKeyIndex()[key]
	return ok
}

// SetAppConfigValue 仅对 AppConfig 白名单 key 生效；非白名单 key 会被忽略。
func (cfg *Config) SetAppConfigValue(key, value string) bool {
	key = strings.ToUpper(strings.TrimSpace(key))
	index, ok := getAppConfigKeyIndex()[key]
	if !ok {
		return false
	}
	v := reflect.ValueOf(&cfg.AppConfig).Elem()
	f := v.FieldByIndex(index)
	if !f.IsValid() || !f.CanSet() {
		return false
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(value)
		return true
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false
		}
		f.SetBool(b)
		return true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false
		}
		f.SetInt(i)
		return true
	default:
		return false
	}
}

// GetAppConfigValue 获取 AppConfig 白名单配置的当前值（用于展示/回显）。
func (cfg *Config) GetAppConfigValue(key string) (string, bool) {
	key = strings.ToUpper(strings.TrimSpace(key))
	index, ok := getAppConfigKeyIndex()[key]
	if !ok {
		return "", false
	}
	f := reflect.ValueOf(cfg.AppConfig).FieldByIndex(index)
	if !f.IsValid() {
		return "", false
	}
	switch f.Kind() {
	case reflect.String:
		return f.String(), true
	case reflect.Bool:
		return strconv.FormatBool(f.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(f.Int(), 10), true
	default:
		return "", false
	}
}

// Sync 用于在 Load() 之后同步 AppConfig。
// 优先级：数据库 > env > 硬编码。
func (cfg *Config) Sync(ctx context.Context, dao AppConfigDao) error {
	cfg.AppConfig = AppConfig{
		StorageDriver: getEnv("STORAGE_DRIVER", "local"),
		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("S3_SECRET_KEY"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      getEnv("S3_REGION", "auto"),
		BackupEnable:  getEnv("BACKUP_ENABLE", "false") == "true",
	}
	if dao == nil {
		return nil
	}
	items, err := dao.GetConfigs(ctx)
	if err != nil {
		return err
	}
	for k, v := range items {
		cfg.SetAppConfigValue(k, v)
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
