package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"aimlib/internal/auth"
	"aimlib/internal/config"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
)

func newTestStore(t *testing.T) (*db.DB, config.Config) {
	t.Helper()
	t.Setenv("DATABASE_PATH", ":memory:")
	cfg := config.Load()
	if err := cfg.Sync(context.Background(), nil); err != nil {
		t.Fatalf("cfg.Sync 失败: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	store, err := db.NewStore(cfg, logger)
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, cfg
}

// newRouter 以 actor 身份发起请求；actor 为 nil 表示匿名。
func newRouter(actor *model.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actor != nil {
			auth.Set(c, auth.FromUser(actor))
		}
		c.Next()
	})
	return r
}

func seedUser(t *testing.T, store *db.DB, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Name: email, Email: email, Role: role}
	if err := store.User.Insert(context.Background(), u); err != nil {
		t.Fatalf("写入用户失败: %v", err)
	}
	return u
}

func seedResource(t *testing.T, store *db.DB, name string, typ model.ResourceType, filePath string) *model.Resource {
	t.Helper()
	res := &model.Resource{Name: name, Type: typ, FilePath: filePath, SubmittedBy: model.SystemUserID}
	if err := store.Resource.Insert(context.Background(), res); err != nil {
		t.Fatalf("写入资源失败: %v", err)
	}
	return res
}

func likeCount(t *testing.T, store *db.DB, resourceID string) int64 {
	t.Helper()
	n, err := store.Like.CountByResource(context.Background(), resourceID)
	if err != nil {
		t.Fatalf("CountByResource 失败: %v", err)
	}
	return n
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) ApiResponse[T] {
	t.Helper()
	var resp ApiResponse[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v body=%s", err, w.Body.String())
	}
	return resp
}
