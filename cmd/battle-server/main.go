package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idle-rpg-server/internal/combat"
	"idle-rpg-server/internal/event"
	"idle-rpg-server/internal/modules/battle/handler"
	"idle-rpg-server/internal/modules/battle/service"
	"idle-rpg-server/internal/modules/battle/tasks"
	"idle-rpg-server/internal/pkg/config"
	"idle-rpg-server/internal/pkg/i18n"
	"idle-rpg-server/internal/pkg/log"
	"idle-rpg-server/internal/pkg/metrics"
	"idle-rpg-server/internal/pkg/notify"
	redisClient "idle-rpg-server/internal/pkg/redis"
	"idle-rpg-server/internal/pkg/response"
	"idle-rpg-server/internal/pkg/validator"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  Idle RPG Battle Server")
	fmt.Println("  Version: 1.0.0")
	fmt.Println("==============================================")
	fmt.Println()

	serverCfg := config.LoadServerConfig()
	battleCfg := config.LoadBattleConfig()
	tuning := config.LoadRewardTuning()

	logLevel := slog.LevelInfo
	if serverCfg.Environment == "development" {
		logLevel = slog.LevelDebug
	}
	log.Init(logLevel, serverCfg.Environment)
	logger := log.GetLogger()

	// NATS：实时推送通道。连接失败时推送静默降级，战斗功能不受影响。
	nc, err := nats.Connect("nats://"+serverCfg.NatsAddr,
		nats.MaxReconnects(10),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		fmt.Printf("[Main] Failed to connect to NATS: %v (push disabled)\n", err)
	} else {
		fmt.Println("[Main] Connected to NATS successfully")
		notify.SetNatsConn(nc)
		defer nc.Close()
	}

	// Postgres：未配置时退化为内存仓储（本地开发）
	var db *sql.DB
	if serverCfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", serverCfg.DatabaseURL)
		if err != nil {
			fmt.Printf("[Main] Failed to open database: %v\n", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			fmt.Printf("[Main] Failed to ping database: %v\n", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		defer db.Close()
		fmt.Println("[Main] Database initialized successfully")
	} else {
		fmt.Println("[Main] DATABASE_URL not set, using in-memory repositories")
	}

	// Redis：连胜/首杀存储。未配置或连接失败时退化为内存实现。
	var rdb *redisClient.Client
	if serverCfg.RedisHost != "" {
		rdb, err = redisClient.NewClient(redisClient.Config{
			Host:     serverCfg.RedisHost,
			Port:     serverCfg.RedisPort,
			Password: serverCfg.RedisPassword,
			DB:       serverCfg.RedisDB,
		})
		if err != nil {
			fmt.Printf("[Main] Failed to connect Redis: %v (falling back to memory)\n", err)
			rdb = nil
		} else {
			defer rdb.Close()
			fmt.Println("[Main] Redis initialized successfully")
		}
	}

	// 核心组件装配
	bus := event.NewBus(battleCfg.BusQueueSize, logger, metrics.DefaultBattleMetrics)
	cooldowns := combat.NewCooldownTracker()
	engine := combat.NewEngine(combat.EngineConfig{
		CritChance:     battleCfg.CritChance,
		CritMultiplier: battleCfg.CritMultiplier,
	}, cooldowns, bus, logger)

	broadcaster := notify.NewNatsBroadcaster()
	container := service.NewServiceContainer(db, rdb, engine, bus, broadcaster,
		tuning, metrics.DefaultBattleMetrics, logger)
	service.RegisterPushSubscribers(bus, broadcaster, logger)

	scheduler := combat.NewScheduler(battleCfg.TickInterval, engine,
		container.SessionService, container.SessionService.HandleTerminal,
		logger, metrics.DefaultBattleMetrics)
	scheduler.Start()

	staleTask := tasks.NewStaleBattleTask(container.SessionService,
		battleCfg.StaleThreshold, battleCfg.SweepSpec, logger)
	if err := staleTask.Start(); err != nil {
		fmt.Printf("[Main] Failed to start stale battle task: %v\n", err)
		os.Exit(1)
	}

	// HTTP 服务
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(i18n.Middleware())

	respWriter := response.NewJSONWriter()
	battleHandler := handler.NewBattleHandler(container, respWriter)
	battleHandler.RegisterRoutes(e.Group("/api/v1"))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		fmt.Printf("[Main] HTTP server listening on %s\n", serverCfg.HTTPAddr)
		if err := e.Start(serverCfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务异常退出", err)
		}
	}()

	// 优雅关闭：停进 → 停调度 → 排空事件总线 → 停 HTTP
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("\n[Main] Shutting down...")

	staleTask.Stop()
	scheduler.Stop()
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("HTTP 关闭失败", err)
	}
	fmt.Println("[Main] Bye")
}
