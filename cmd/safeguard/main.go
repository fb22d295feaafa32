package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"safeguard/internal/checkin"
	"safeguard/internal/command"
	"safeguard/internal/config"
	"safeguard/internal/guard"
	"safeguard/internal/notify"
	"safeguard/internal/store"
)

// 编译期通过 -ldflags 注入。
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "safeguard",
		Short:         "防失联安全卫士守护进程",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "启动监控扫描与事件回调服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serve.Flags().StringVarP(&configPath, "config", "c", "", "YAML 配置文件路径")

	root.AddCommand(serve)
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "打印版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("safeguard %s (commit %s, built %s)\n", version, commit, date)
		},
	})
	return root
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	history, err := openHistory(&cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	bots, err := cfg.BuildBots()
	if err != nil {
		return err
	}

	sender, err := notify.NewSMTPSender(cfg.SMTP)
	if err != nil {
		log.Printf("[main] SMTP 未配置，邮件通知关闭: %v", err)
		sender = nil
	}
	mailer := notify.NewManager(sender, history, cfg.EmailDomain)

	registry := guard.NewRegistry(filepath.Join(cfg.DataDir, store.UsersFile))
	log.Printf("[main] 已加载 %d 位监控用户", registry.Len())

	ck := checkin.NewSystem(cfg.DataDir)

	engine := guard.NewEngine(registry, bots, mailer, guard.EngineConfig{
		Interval:     time.Duration(cfg.CheckInterval) * time.Second,
		WarnMessage:  cfg.DefaultWarnMessage,
		EmergMessage: cfg.DefaultEmergMessage,
	})
	engine.Start()

	handler := command.NewHandler(&cfg, registry, engine, ck, history, nil)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           command.NewServer(handler, resolveBotFunc(&cfg), nil).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] 事件回调监听 %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Printf("[main] 收到信号 %v，开始退出", sig)
	case err := <-errCh:
		log.Printf("[main] 回调服务异常: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] 回调服务关闭失败: %v", err)
	}
	engine.Stop()
	mailer.Stop()
	if err := registry.Flush(true); err != nil {
		log.Printf("[main] 退出前落盘失败: %v", err)
	}
	log.Println("[main] 已退出")
	return nil
}

// openHistory 按配置打开通知历史存储，未配置 driver 时返回 nil。
func openHistory(cfg *config.Config) (*store.Store, error) {
	switch cfg.History.Driver {
	case "sqlite":
		dsn := cfg.History.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataDir, "history.db")
		}
		return store.OpenSQLite(dsn)
	case "mysql":
		return store.Open(cfg.History.DSN)
	default:
		return nil, nil
	}
}

// resolveBotFunc 单实例部署时把上报方 self_id 直接映射到唯一的
// 机器人配置，多实例时要求 bot id 与 self_id 一致。
func resolveBotFunc(cfg *config.Config) func(string) string {
	if len(cfg.Bots) == 1 {
		id := cfg.Bots[0].ID
		return func(string) string { return id }
	}
	return nil
}
