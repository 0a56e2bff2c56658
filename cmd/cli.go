package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"aimlib/internal/config"
	"aimlib/internal/db"
	"aimlib/internal/db/model"
	"aimlib/internal/media"
	"aimlib/internal/storage"
)

const usage = `用法:
  aimlib [server [run]]              启动服务
  aimlib sync-media                  扫描媒体目录并入库
  aimlib set-role <email> <User|Admin>
  aimlib issue-session <email>       签发会话 token（开发调试用）`

// handleCLI 用于处理仅在 CLI 模式下运行的命令。
func handleCLI(cfg config.Config, logger *slog.Logger, args []string) (bool, error) {
	if len(args) == 0 {
		return true, nil
	}
	switch args[0] {
	case "server":
		return true, parseServerRunArgs(args)
	case "sync-media":
		return false, syncMedia(cfg, logger)
	case "set-role":
		if len(args) != 3 {
			return false, fmt.Errorf("参数错误\n%s", usage)
		}
		return false, setRole(cfg, logger, args[1], args[2])
	case "issue-session":
		if len(args) != 2 {
			return false, fmt.Errorf("参数错误\n%s", usage)
		}
		return false, issueSession(cfg, logger, args[1])
	case "help", "-h", "--help":
		fmt.Println(usage)
		return false, nil
	default:
		return false, fmt.Errorf("未知命令 %q\n%s", args[0], usage)
	}
}

func parseServerRunArgs(args []string) error {
	if len(args) == 1 {
		return nil
	}
	if args[1] != "run" {
		return fmt.Errorf("使用 aimlib server run 启动服务")
	}
	return nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (*db.DB, error) {
	store, err := db.NewStore(*cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := cfg.Sync(context.Background(), store.AppConfig); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func syncMedia(cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(&cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	reg, err := storage.SetupRegistry(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := store.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	syncer := media.NewSyncer(reg.Active(), store.Resource, logger)
	for _, typ := range []model.ResourceType{model.ResourceCrosshair, model.ResourceSound} {
		kind := media.Kinds(cfg)[typ]
		n, err := syncer.Sync(ctx, kind)
		if err != nil {
			return err
		}
		fmt.Printf("%s: 新增 %d 条\n", typ, n)
	}
	return nil
}

func setRole(cfg config.Config, logger *slog.Logger, email, roleStr string) error {
	role, ok := model.ParseRole(roleStr)
	if !ok {
		return fmt.Errorf("角色无效: %s", roleStr)
	}
	store, err := openStore(&cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := store.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	user, err := store.User.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("用户不存在: %s", email)
	}
	if user.ID == model.SystemUserID {
		return fmt.Errorf("系统账户不可修改: %s", email)
	}
	if err := store.User.UpdateRole(ctx, user.ID, role); err != nil {
		return err
	}
	logger.Info("角色已更新", "email", user.Email, "role", role)
	return nil
}

func issueSession(cfg config.Config, logger *slog.Logger, email string) error {
	store, err := openStore(&cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := store.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	user, err := store.User.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("用户不存在: %s", email)
	}
	token, err := store.Session.Issue(ctx, user.ID, cfg.SessionTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, token)
	return nil
}
