package config

import (
	"fmt"
	"time"

	"pmplanner/pkg/config"
)

type Config struct {
	DB         config.DBConfig         `yaml:"db"`
	MQ         config.MQConfig         `yaml:"mq"`
	Redis      config.RedisConfig      `yaml:"redis"`
	Server     config.ServerConfig     `yaml:"server"`
	Otel       config.OtelConfig       `yaml:"otel"`
	Suggestion config.SuggestionConfig `yaml:"suggestion"`
	Planning   config.PlanningConfig   `yaml:"planning"`
	Outbox     config.OutboxConfig     `yaml:"outbox"`
	// 启动时执行内嵌的 schema.sql
	MigrateOnStart bool `yaml:"migrate_on_start"`
}

// Load 使用统一配置中心，环境变量优先级最高
func Load(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideSuggestionFromEnv(&cfg.Suggestion)
	config.OverrideOtelFromEnv(&cfg.Otel)

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.Suggestion.Timeout <= 0 {
		c.Suggestion.Timeout = 5 * time.Second
	}
	c.Planning.ApplyDefaults()
}
