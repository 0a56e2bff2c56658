package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aimlib/internal/config"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
	"aimlib/internal/storage"
)

func TestResolveDBPath(t *testing.T) {
	if got, ok := resolveDBPath("./data/aimlib.db"); !ok || got != filepath.Clean("./data/aimlib.db") {
		t.Fatalf("期望解析成功，实际=%q", got)
	}
	if got, ok := resolveDBPath("file:./data/aimlib.db?cache=shared"); !ok || got != filepath.Clean("./data/aimlib.db") {
		t.Fatalf("file: URI 解析错误，实际=%q", got)
	}
	if _, ok := resolveDBPath(":memory:"); ok {
		t.Fatalf("内存数据库不应参与备份")
	}
}

func TestBuildBackupObjectKeyFormat(t *testing.T) {
	now := time.Date(2025, 12, 21, 19, 56, 22, 0, time.UTC)
	if key := buildBackupObjectKey(now, "aimlib.db"); key != "backup/2025_12_21_195622_aimlib.db" {
		t.Fatalf("对象路径格式不正确: %q", key)
	}
	if key := buildBackupObjectKey(now, ""); key != "backup/2025_12_21_195622_aimlib.db" {
		t.Fatalf("空文件名应使用默认名: %q", key)
	}
}

func newStore(t *testing.T) *db.DB {
	t.Helper()
	t.Setenv("DATABASE_PATH", ":memory:")
	cfg := config.Load()
	store, err := db.NewStore(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBackupOnce_上传数据库快照(t *testing.T) {
	store := newStore(t)
	root := t.TempDir()
	local, err := storage.NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal 失败: %v", err)
	}
	if err := backupOnce(context.Background(), store, "./data/aimlib.db", local, store.Logger); err != nil {
		t.Fatalf("backupOnce 失败: %v", err)
	}
	names, err := local.List(context.Background(), "backup", ".db")
	if err != nil || len(names) != 1 {
		t.Fatalf("期望 1 个备份文件 names=%v err=%v", names, err)
	}
	info, err := os.Stat(filepath.Join(root, "backup", names[0]))
	if err != nil || info.Size() == 0 {
		t.Fatalf("备份文件不应为空 err=%v", err)
	}
}

type failingStorage struct {
	storage.Storage
	calls int
}

func (f *failingStorage) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	f.calls++
	return errors.New("upload failed")
}

func TestBackupWithRetry_上下文取消后停止(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stg := &failingStorage{}
	if err := backupWithRetry(ctx, store, "./data/aimlib.db", stg, store.Logger); err == nil {
		t.Fatalf("期望返回错误")
	}
	if stg.calls > 1 {
		t.Fatalf("上下文取消后不应继续重试，calls=%d", stg.calls)
	}
}

func TestPurgeSessions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	u := &model.User{Name: "u", Email: "u@example.com"}
	if err := store.User.Insert(ctx, u); err != nil {
		t.Fatalf("Insert 失败: %v", err)
	}
	if _, err := store.Session.Issue(ctx, u.ID, -time.Minute); err != nil {
		t.Fatalf("Issue 失败: %v", err)
	}
	live, err := store.Session.Issue(ctx, u.ID, time.Hour)
	if err != nil {
		t.Fatalf("Issue 失败: %v", err)
	}

	purgeSessions(ctx, store, store.Logger)

	var n int64
	store.Client.Model(&model.Session{}).Count(&n)
	if n != 1 {
		t.Fatalf("应只保留 1 个会话，实际=%d", n)
	}
	if got, _ := store.Session.GetUserByToken(ctx, live); got == nil {
		t.Fatalf("未过期会话应保留")
	}
}
