package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"aimlib/internal/apperr"
	"aimlib/internal/config"
	"aimlib/internal/db/model"
)

func seedUser(t *testing.T, store *DB, email string) *model.User {
	t.Helper()
	u := &model.User{Name: email, Email: email, Role: model.RoleUser}
	if err := store.User.Insert(context.Background(), u); err != nil {
		t.Fatalf("插入用户失败: %v", err)
	}
	return u
}

func seedResource(t *testing.T, store *DB, name string, typ model.ResourceType) *model.Resource {
	t.Helper()
	r := &model.Resource{Name: name, Type: typ, FilePath: "/x/" + name, SubmittedBy: model.SystemUserID}
	if err := store.Resource.Insert(context.Background(), r); err != nil {
		t.Fatalf("插入资源失败: %v", err)
	}
	return r
}

func likesOf(t *testing.T, store *DB, resourceID string) int64 {
	t.Helper()
	n, err := store.Like.CountByResource(context.Background(), resourceID)
	if err != nil {
		t.Fatalf("统计点赞失败: %v", err)
	}
	return n
}

func TestToggle_两次切换恢复原状(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	u1 := seedUser(t, store, "u1@example.com")
	r1 := seedResource(t, store, "R1", model.ResourceTheme)

	liked, err := store.Like.Toggle(ctx, u1.ID, r1.ID)
	if err != nil {
		t.Fatalf("Toggle 失败: %v", err)
	}
	if !liked || likesOf(t, store, r1.ID) != 1 {
		t.Fatalf("第一次切换后应为已点赞且计数为 1")
	}

	liked, err = store.Like.Toggle(ctx, u1.ID, r1.ID)
	if err != nil {
		t.Fatalf("Toggle 失败: %v", err)
	}
	if liked || likesOf(t, store, r1.ID) != 0 {
		t.Fatalf("第二次切换后应为未点赞且计数为 0")
	}
}

func TestToggle_资源不存在或已删除(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	u1 := seedUser(t, store, "u1@example.com")

	if _, err := store.Like.Toggle(ctx, u1.ID, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("期望 NotFound，实际=%v", err)
	}

	r := seedResource(t, store, "gone.png", model.ResourceCrosshair)
	if _, err := store.Resource.SoftDeleteMedia(ctx, r.ID, model.ResourceCrosshair); err != nil {
		t.Fatalf("软删除失败: %v", err)
	}
	if _, err := store.Like.Toggle(ctx, u1.ID, r.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("已删除资源应返回 NotFound，实际=%v", err)
	}
}

func TestAdd_重复点赞幂等(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	u1 := seedUser(t, store, "u1@example.com")
	r1 := seedResource(t, store, "P1", model.ResourcePlaylist)

	created, err := store.Like.Add(ctx, u1.ID, r1.ID, model.ResourcePlaylist)
	if err != nil || !created {
		t.Fatalf("首次点赞应创建 err=%v created=%v", err, created)
	}
	created, err = store.Like.Add(ctx, u1.ID, r1.ID, model.ResourcePlaylist)
	if err != nil || created {
		t.Fatalf("重复点赞应为无操作 err=%v created=%v", err, created)
	}
	if likesOf(t, store, r1.ID) != 1 {
		t.Fatalf("重复点赞不应增加计数")
	}

	if _, err := store.Like.Add(ctx, u1.ID, r1.ID, model.ResourceSound); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("类型不匹配应返回 NotFound，实际=%v", err)
	}

	removed, err := store.Like.Remove(ctx, u1.ID, r1.ID, model.ResourcePlaylist)
	if err != nil || !removed {
		t.Fatalf("取消点赞失败 err=%v removed=%v", err, removed)
	}
	removed, err = store.Like.Remove(ctx, u1.ID, r1.ID, model.ResourcePlaylist)
	if err != nil || removed {
		t.Fatalf("重复取消应为无操作 err=%v removed=%v", err, removed)
	}
}

func TestListByUser_按类型过滤(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	u1 := seedUser(t, store, "u1@example.com")
	c1 := seedResource(t, store, "c1.png", model.ResourceCrosshair)
	s1 := seedResource(t, store, "s1.ogg", model.ResourceSound)
	for _, id := range []string{c1.ID, s1.ID} {
		if _, err := store.Like.Toggle(ctx, u1.ID, id); err != nil {
			t.Fatalf("Toggle 失败: %v", err)
		}
	}

	ids, err := store.Like.ListByUser(ctx, u1.ID, model.ResourceSound)
	if err != nil {
		t.Fatalf("ListByUser 失败: %v", err)
	}
	if len(ids) != 1 || ids[0] != s1.ID {
		t.Fatalf("期望仅返回音效，实际=%v", ids)
	}
	all, err := store.Like.ListByUser(ctx, u1.ID, "")
	if err != nil {
		t.Fatalf("ListByUser 失败: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("期望 2 条，实际=%v", all)
	}
}

func newFileStore(t *testing.T) *DB {
	t.Helper()
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "likes.db"))
	t.Setenv("ADMIN_EMAIL", "")
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	store, err := NewStore(cfg, logger)
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestToggle_文件库并发切换不报锁冲突(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()
	r1 := seedResource(t, store, "R1", model.ResourceTheme)

	const users = 20
	const repeats = 7
	ids := make([]string, users)
	for i := range ids {
		ids[i] = seedUser(t, store, fmt.Sprintf("c%d@example.com", i)).ID
	}
	same := seedUser(t, store, "same@example.com")

	var wg sync.WaitGroup
	errs := make(chan error, users+repeats)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := store.Like.Toggle(ctx, id, r1.ID); err != nil {
				errs <- err
			}
		}(id)
	}
	for i := 0; i < repeats; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Like.Toggle(ctx, same.ID, r1.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("并发 Toggle 失败: %v", err)
	}

	// 同一用户切换奇数次，最终为已点赞
	if got := likesOf(t, store, r1.ID); got != users+1 {
		t.Fatalf("期望点赞数=%d，实际=%d", users+1, got)
	}
	var rows int64
	if err := store.Client.Model(&model.Like{}).Where("resource_id = ?", r1.ID).Count(&rows).Error; err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if rows != users+1 {
		t.Fatalf("点赞行数与计数不一致: rows=%d", rows)
	}
}
