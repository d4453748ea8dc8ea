package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabberry-rounds/internal/config"
	"collabberry-rounds/internal/database"
	httpapi "collabberry-rounds/internal/http"
	"collabberry-rounds/internal/logger"
	"collabberry-rounds/internal/repository"
	"collabberry-rounds/internal/service"
	"collabberry-rounds/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "collabberry-rounds")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Redis：批处理任务锁。连不上也能跑，锁退化为无（单实例部署可接受）
	var kv store.KV
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("Redis unavailable, scheduler lock disabled", zap.Error(err))
	} else {
		kv = store.NewRedisKV(redisClient)
	}

	// 存储层：DB 优先，不可用时退回内存 repo 支持联测
	var (
		db          *sql.DB
		orgs        repository.OrganizationsRepository
		users       repository.UsersRepository
		rounds      repository.RoundsRepository
		assessments repository.AssessmentsRepository
		comps       repository.CompensationsRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for collabberry-rounds")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		orgs = repository.NewPostgresOrganizationsRepository(db)
		users = repository.NewPostgresUsersRepository(db)
		rounds = repository.NewPostgresRoundsRepository(db)
		assessments = repository.NewPostgresAssessmentsRepository(db)
		comps = repository.NewPostgresCompensationsRepository(db)
	} else {
		orgs = repository.NewMemoryOrganizationsRepo()
		users = repository.NewMemoryUsersRepo()
		memAssessments := repository.NewMemoryAssessmentsRepo()
		assessments = memAssessments
		rounds = repository.NewMemoryRoundsRepo(memAssessments)
		comps = repository.NewMemoryCompensationsRepo()
	}

	// 通知：未配置邮件中继时用 noop
	var notifier service.Notifier = service.NoopNotifier{Logger: log}
	if cfg.Email.Enabled && cfg.Email.BaseURL != "" {
		notifier = service.NewEmailRelayNotifier(cfg.Email, log)
		log.Info("Email relay notifier enabled", zap.String("base_url", cfg.Email.BaseURL))
	}

	// 市场薪资基准数据集（可选）
	var salary *service.SalaryDatasetService
	if cfg.Dataset.Path != "" {
		salary = service.NewSalaryDatasetService(log)
		if err := salary.LoadFromFile(cfg.Dataset.Path); err != nil {
			log.Warn("Failed to load salary dataset", zap.Error(err))
			salary = nil
		}
	}

	roundSvc := service.NewRoundService(orgs, rounds, users, comps, notifier, log)
	assessSvc := service.NewAssessmentService(users, rounds, assessments, log)

	handler := httpapi.NewRoundsHandler(roundSvc, assessSvc, salary, users, log)
	router := httpapi.NewRouter(log)
	router.RegisterRoundsRoutes(handler)

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 批处理任务：建轮 + 结算
	if cfg.Scheduler.Enabled {
		scheduler := service.NewRoundScheduler(orgs, rounds, users, notifier, kv, log,
			cfg.Scheduler.LookaheadDays, cfg.Scheduler.LockTTL)
		completer := service.NewRoundCompleter(orgs, rounds, users, comps, kv, log,
			cfg.Scheduler.LockTTL)
		go scheduler.Run(ctx, cfg.Scheduler.CreateInterval)
		go completer.Run(ctx, cfg.Scheduler.CompleteInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
