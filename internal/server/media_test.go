package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"aimlib/internal/db"
	"aimlib/internal/db/model"
	"aimlib/internal/media"
	"aimlib/internal/storage"
)

func writeMedia(t *testing.T, root, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
		t.Fatalf("MkdirAll 失败: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(root, dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile 失败: %v", err)
		}
	}
}

func TestMediaListHandler_同步后返回聚合列表(t *testing.T) {
	store, _ := newTestStore(t)
	u := seedUser(t, store, "u@example.com", model.RoleUser)
	root := t.TempDir()
	writeMedia(t, root, "crosshairs", "b.png", "a.png")
	local, err := storage.NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal 失败: %v", err)
	}
	syncer := media.NewSyncer(local, store.Resource, slog.New(slog.NewTextHandler(io.Discard, nil)))
	kind := media.Kind{Type: model.ResourceCrosshair, Dir: "crosshairs", Ext: ".png"}

	r := newRouter(u)
	r.GET("/api/crosshairs/get-crosshairs", MediaListHandler(store, syncer, kind))

	w := doJSON(r, http.MethodGet, "/api/crosshairs/get-crosshairs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[[]model.ResourceWithLikes](t, w)
	if len(resp.Data) != 2 || resp.Data[0].Name != "a.png" || resp.Data[1].FilePath != "/crosshairs/b.png" {
		t.Fatalf("列表错误: %+v", resp.Data)
	}

	if _, err := store.Like.Toggle(context.Background(), u.ID, resp.Data[1].ID); err != nil {
		t.Fatalf("Toggle 失败: %v", err)
	}
	resp = decode[[]model.ResourceWithLikes](t, doJSON(r, http.MethodGet, "/api/crosshairs/get-crosshairs?sort=likes", nil))
	if resp.Data[0].Name != "b.png" || resp.Data[0].Likes != 1 || !resp.Data[0].LikedByUser {
		t.Fatalf("按点赞排序错误: %+v", resp.Data)
	}

	if w := doJSON(r, http.MethodGet, "/api/crosshairs/get-crosshairs?sort=random", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("非法排序期望 400，实际=%d", w.Code)
	}
}

func TestMediaListHandler_目录缺失返回500(t *testing.T) {
	store, _ := newTestStore(t)
	local, _ := storage.NewLocal(t.TempDir())
	syncer := media.NewSyncer(local, store.Resource, store.Logger)
	kind := media.Kind{Type: model.ResourceSound, Dir: "sounds", Ext: ".ogg"}

	r := newRouter(nil)
	r.GET("/api/sounds/get-sounds", MediaListHandler(store, syncer, kind))
	if w := doJSON(r, http.MethodGet, "/api/sounds/get-sounds", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("期望 500，实际=%d body=%s", w.Code, w.Body.String())
	}
}

func TestMediaDeleteHandler_删除文件软删除并清理点赞(t *testing.T) {
	store, _ := newTestStore(t)
	admin := seedUser(t, store, "a@example.com", model.RoleAdmin)
	root := t.TempDir()
	writeMedia(t, root, "sounds", "hit.ogg")
	local, _ := storage.NewLocal(root)
	res := seedResource(t, store, "hit.ogg", model.ResourceSound, "/sounds/hit.ogg")
	if _, err := store.Like.Toggle(context.Background(), admin.ID, res.ID); err != nil {
		t.Fatalf("Toggle 失败: %v", err)
	}
	kind := media.Kind{Type: model.ResourceSound, Dir: "sounds", Ext: ".ogg"}

	r := newRouter(admin)
	r.DELETE("/api/sounds/delete-sound", MediaDeleteHandler(store, local, kind))
	r.DELETE("/api/crosshairs/delete-crosshair", MediaDeleteHandler(store, local, media.Kind{Type: model.ResourceCrosshair, Dir: "crosshairs", Ext: ".png"}))

	if w := doJSON(r, http.MethodDelete, "/api/crosshairs/delete-crosshair", map[string]string{"id": res.ID}); w.Code != http.StatusNotFound {
		t.Fatalf("类型不符期望 404，实际=%d", w.Code)
	}

	w := doJSON(r, http.MethodDelete, "/api/sounds/delete-sound", map[string]string{"id": res.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d body=%s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(root, "sounds", "hit.ogg")); !os.IsNotExist(err) {
		t.Fatalf("文件应被删除 err=%v", err)
	}
	row, _ := store.Resource.FindByID(context.Background(), res.ID)
	if row == nil || row.Status != model.StatusDeleted {
		t.Fatalf("资源应被软删除: %+v", row)
	}
	if likeCount(t, store, res.ID) != 0 {
		t.Fatalf("点赞应被清理")
	}
	items, _ := store.Resource.ListAggregated(context.Background(), db.ListFilter{Type: model.ResourceSound})
	if len(items) != 0 {
		t.Fatalf("软删除资源不应出现在列表中")
	}
	if w := doJSON(r, http.MethodDelete, "/api/sounds/delete-sound", map[string]string{"id": res.ID}); w.Code != http.StatusNotFound {
		t.Fatalf("重复删除期望 404，实际=%d", w.Code)
	}
}

// failingDelete 记录 Delete 调用时资源是否已软删除，并返回错误。
type failingDelete struct {
	storage.Storage
	store      *db.DB
	resourceID string
	sawDeleted bool
}

func (f *failingDelete) Delete(ctx context.Context, _ string) error {
	row, _ := f.store.Resource.FindByID(ctx, f.resourceID)
	f.sawDeleted = row != nil && row.Status == model.StatusDeleted
	return errors.New("bucket unavailable")
}

func TestMediaDeleteHandler_文件删除失败仍完成软删除(t *testing.T) {
	store, _ := newTestStore(t)
	admin := seedUser(t, store, "a@example.com", model.RoleAdmin)
	local, _ := storage.NewLocal(t.TempDir())
	res := seedResource(t, store, "a.png", model.ResourceCrosshair, "/crosshairs/a.png")
	if _, err := store.Like.Toggle(context.Background(), admin.ID, res.ID); err != nil {
		t.Fatalf("Toggle 失败: %v", err)
	}
	files := &failingDelete{Storage: local, store: store, resourceID: res.ID}

	r := newRouter(admin)
	r.DELETE("/api/crosshairs/delete-crosshair", MediaDeleteHandler(store, files, media.Kind{Type: model.ResourceCrosshair, Dir: "crosshairs", Ext: ".png"}))

	w := doJSON(r, http.MethodDelete, "/api/crosshairs/delete-crosshair", map[string]string{"id": res.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d body=%s", w.Code, w.Body.String())
	}
	if !files.sawDeleted {
		t.Fatalf("删除文件前资源应已软删除")
	}
	row, _ := store.Resource.FindByID(context.Background(), res.ID)
	if row == nil || row.Status != model.StatusDeleted {
		t.Fatalf("资源应被软删除: %+v", row)
	}
	if likeCount(t, store, res.ID) != 0 {
		t.Fatalf("点赞应被清理")
	}
}

func TestMediaDeleteHandler_普通用户返回403(t *testing.T) {
	store, _ := newTestStore(t)
	u := seedUser(t, store, "u@example.com", model.RoleUser)
	local, _ := storage.NewLocal(t.TempDir())
	res := seedResource(t, store, "a.png", model.ResourceCrosshair, "/crosshairs/a.png")

	r := newRouter(u)
	r.DELETE("/api/crosshairs/delete-crosshair", MediaDeleteHandler(store, local, media.Kind{Type: model.ResourceCrosshair, Dir: "crosshairs", Ext: ".png"}))
	if w := doJSON(r, http.MethodDelete, "/api/crosshairs/delete-crosshair", map[string]string{"id": res.ID}); w.Code != http.StatusForbidden {
		t.Fatalf("期望 403，实际=%d", w.Code)
	}
}
