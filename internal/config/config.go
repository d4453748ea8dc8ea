package config

import (
	"os"
	"strconv"
	"time"

	"collabberry-rounds/internal/database"
)

// Config collabberry-rounds 服务配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  database.Config
	Redis     struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Email     EmailConfig
	Scheduler SchedulerConfig
	Dataset   DatasetConfig
}

// EmailConfig 邮件中继服务配置（通知发送走 HTTP relay，失败只记日志）
type EmailConfig struct {
	Enabled bool   // 是否启用邮件通知（默认 false，未配置时用 noop）
	BaseURL string // relay 服务地址
	APIKey  string // relay 认证 key
	From    string // 发件人地址
}

// SchedulerConfig 轮次批处理任务配置
type SchedulerConfig struct {
	Enabled          bool          // 是否在本实例运行批处理任务
	CreateInterval   time.Duration // createRounds 轮询间隔
	CompleteInterval time.Duration // completeRounds 轮询间隔
	LookaheadDays    int           // 轮次创建的提前量窗口（天）
	LockTTL          time.Duration // Redis 任务锁 TTL
}

// DatasetConfig 市场薪资基准数据集配置
type DatasetConfig struct {
	Path string // xlsx 文件路径，为空则不加载
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "collabberry")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 邮件中继配置
	cfg.Email.Enabled = getEnv("EMAIL_ENABLED", "false") == "true"
	cfg.Email.BaseURL = getEnv("EMAIL_RELAY_URL", "")
	cfg.Email.APIKey = getEnv("EMAIL_RELAY_API_KEY", "")
	cfg.Email.From = getEnv("EMAIL_FROM", "no-reply@collabberry.xyz")

	// 批处理任务配置（生产环境建议只在一个实例上启用，Redis 锁兜底）
	cfg.Scheduler.Enabled = getEnv("SCHEDULER_ENABLED", "true") == "true"
	cfg.Scheduler.CreateInterval = parseDuration(getEnv("ROUNDS_CREATE_INTERVAL", "1h"), time.Hour)
	cfg.Scheduler.CompleteInterval = parseDuration(getEnv("ROUNDS_COMPLETE_INTERVAL", "1h"), time.Hour)
	cfg.Scheduler.LookaheadDays = parseInt(getEnv("ROUNDS_LOOKAHEAD_DAYS", "7"), 7)
	cfg.Scheduler.LockTTL = parseDuration(getEnv("SCHEDULER_LOCK_TTL", "10m"), 10*time.Minute)

	cfg.Dataset.Path = getEnv("SALARY_DATASET_PATH", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
