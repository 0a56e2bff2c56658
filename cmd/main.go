package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"aimlib/internal/config"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
	"aimlib/internal/media"
	"aimlib/internal/middleware"
	"aimlib/internal/server"
	"aimlib/internal/storage"
	"aimlib/internal/task"
)

func main() {
	cfg := config.Load()
	logger := server.NewLogger(cfg.LogLevel)
	shouldRunServer, err := handleCLI(cfg, logger, os.Args[1:])
	if err != nil {
		logger.Error("CLI 执行失败", "err", err)
		os.Exit(1)
	}
	if !shouldRunServer {
		return
	}
	gin.SetMode(gin.ReleaseMode)
	store, err := db.NewStore(cfg, logger)
	if err != nil {
		logger.Error("初始化数据库失败", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	// 同步数据库配置到内存
	if err := cfg.Sync(context.Background(), store.AppConfig); err != nil {
		logger.Error("同步配置失败", "err", err)
		os.Exit(1)
	}
	logger.Info("当前项目配置", "port", cfg.Port, "db", cfg.DatabasePath, "mediaRoot", cfg.MediaRoot, "storage", cfg.AppConfig.StorageDriver)
	storageReg, err := storage.SetupRegistry(cfg, logger)
	if err != nil {
		logger.Error("初始化存储失败", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	task.StartDailyMaintenance(ctx, cfg, store, storageReg)

	r := newRouter(cfg, store, storageReg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("服务器启动", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("服务器启动失败", "err", err)
			stop()
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("服务器已退出")
}

func newRouter(cfg config.Config, store *db.DB, storageReg *storage.Registry) *gin.Engine {
	files := storageReg.Active()
	syncer := media.NewSyncer(files, store.Resource, store.Logger)
	kinds := media.Kinds(cfg)
	crosshairs := kinds[model.ResourceCrosshair]
	sounds := kinds[model.ResourceSound]

	r := gin.New()
	r.Use(middleware.CORS(cfg.FrontendOrigin, r))
	r.Use(middleware.RequestLogger(store.Logger))
	r.Use(gin.Recovery())
	r.Use(middleware.AuthOptional(store, cfg))

	api := r.Group("/api")
	{
		api.GET("/resources", server.ListResourcesHandler(store))
		api.GET("/crosshairs/get-crosshairs", server.MediaListHandler(store, syncer, crosshairs))
		api.GET("/sounds/get-sounds", server.MediaListHandler(store, syncer, sounds))
		api.POST("/logout", server.LogoutHandler(store, cfg))

		apiAuth := api.Group("")
		apiAuth.Use(middleware.AuthRequired())
		apiAuth.GET("/me", server.MeHandler(store))
		apiAuth.POST("/refresh", server.RefreshHandler(store, cfg))
		apiAuth.GET("/resources/:id", server.GetResourceHandler(store))
		apiAuth.POST("/likes/like-toggle", server.ToggleLikeHandler(store))
		apiAuth.GET("/likes", server.ListLikesHandler(store))
		apiAuth.POST("/likes", server.AddLikeHandler(store))
		apiAuth.DELETE("/likes", server.RemoveLikeHandler(store))

		apiAdmin := apiAuth.Group("")
		apiAdmin.Use(middleware.AdminRequired())
		apiAdmin.PATCH("/resources/:id", server.UpdateResourceHandler(store))
		apiAdmin.DELETE("/resources/:id", server.DeleteResourceHandler(store))
		apiAdmin.DELETE("/crosshairs/delete-crosshair", server.MediaDeleteHandler(store, files, crosshairs))
		apiAdmin.DELETE("/sounds/delete-sound", server.MediaDeleteHandler(store, files, sounds))
		apiAdmin.GET("/users", server.ListUsersHandler(store))
		apiAdmin.GET("/users/:id", server.GetUserHandler(store))
		apiAdmin.PATCH("/users/:id", server.UpdateUserRoleHandler(store))
		apiAdmin.DELETE("/users/:id", server.DeleteUserHandler(store))

		apiAdmin.GET("/admin/stats", server.AdminDashboardStatsHandler(store))
		apiAdmin.GET("/admin/config", server.AdminGetConfigHandler(store, cfg))
		apiAdmin.POST("/admin/config", server.AdminUpsertConfigHandler(store))
	}

	// 本地驱动直接托管媒体文件，S3 驱动由对象存储自身提供访问
	if files.Platform() == storage.PlatformLocal {
		r.Static("/"+crosshairs.Dir, filepath.Join(cfg.MediaRoot, crosshairs.Dir))
		r.Static("/"+sounds.Dir, filepath.Join(cfg.MediaRoot, sounds.Dir))
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, server.Fail[any]("404", 404))
			return
		}
		c.Status(http.StatusNotFound)
	})
	return r
}
