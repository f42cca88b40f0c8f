package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	MaxConns int32  `yaml:"max_conns"`
	// 慢查询阈值，毫秒
	SlowQueryMillis int `yaml:"slow_query_ms"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// OtelConfig 链路追踪配置
type OtelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// SuggestionConfig 计划建议服务配置（可选协作方）
type SuggestionConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// OutboxConfig 事件投递参数，零值使用 Dispatcher 默认值
type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

// PlanningConfig 规划引擎参数
type PlanningConfig struct {
	MaxLevel             int           `yaml:"max_level"`
	MonthlyCapacityHours float64       `yaml:"monthly_capacity_hours"`
	CapacityMonths       int           `yaml:"capacity_months"`
	MaxTaskDays          int           `yaml:"max_task_days"`
	CriticalRatio        float64       `yaml:"critical_ratio"`
	MaxCandidates        int           `yaml:"max_candidates"`
	MinMatchScore        float64       `yaml:"min_match_score"`
	DedupTTL             time.Duration `yaml:"dedup_ttl"`
}

// ApplyDefaults 填充未配置的规划参数
func (p *PlanningConfig) ApplyDefaults() {
	if p.MaxLevel <= 0 {
		p.MaxLevel = 3
	}
	if p.MonthlyCapacityHours <= 0 {
		p.MonthlyCapacityHours = 160
	}
	if p.CapacityMonths <= 0 {
		p.CapacityMonths = 3
	}
	if p.MaxTaskDays <= 0 {
		p.MaxTaskDays = 60
	}
	if p.CriticalRatio <= 0 {
		p.CriticalRatio = 0.5
	}
	if p.MaxCandidates <= 0 {
		p.MaxCandidates = 5
	}
	if p.MinMatchScore <= 0 {
		p.MinMatchScore = 40
	}
	if p.DedupTTL <= 0 {
		p.DedupTTL = 24 * time.Hour
	}
}

// CapacityHours 单人在评估窗口内的可用工时（默认 160 * 3 = 480）
func (p PlanningConfig) CapacityHours() float64 {
	return p.MonthlyCapacityHours * float64(p.CapacityMonths)
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideSuggestionFromEnv 从环境变量覆盖计划建议服务地址
func OverrideSuggestionFromEnv(cfg *SuggestionConfig) {
	if url := os.Getenv("PLAN_SUGGESTION_URL"); url != "" {
		cfg.URL = url
	}
	if raw := os.Getenv("PLAN_SUGGESTION_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.Timeout = d
		}
	}
}

// OverrideOtelFromEnv 从环境变量覆盖追踪配置
func OverrideOtelFromEnv(cfg *OtelConfig) {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if enabled := os.Getenv("OTEL_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = b
		}
	}
}
