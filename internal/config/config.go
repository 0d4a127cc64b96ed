package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 汇总来自环境变量的全部应用配置。
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Compiler  CompilerConfig  `mapstructure:"compiler"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Guard     GuardConfig     `mapstructure:"guard"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// APIConfig 为 HTTP 服务配置。
type APIConfig struct {
	Port            int           `mapstructure:"port"`
	MaxPayloadBytes int64         `mapstructure:"max_payload_bytes"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CompilerConfig 描述 LaTeX 编译沙箱。
type CompilerConfig struct {
	Backend        string        `mapstructure:"backend"`
	Binary         string        `mapstructure:"binary"`
	Args           []string      `mapstructure:"args"`
	WorkRoot       string        `mapstructure:"work_root"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Slots          int           `mapstructure:"slots"`
	QueueWait      time.Duration `mapstructure:"queue_wait"`
	MemoryLimitMB  int           `mapstructure:"memory_limit_mb"`
	CPUSeconds     int           `mapstructure:"cpu_seconds"`
	MaxOutputMB    int           `mapstructure:"max_output_mb"`
	MaxProcesses   int           `mapstructure:"max_processes"`
	IsolateNetwork bool          `mapstructure:"isolate_network"`
	PrlimitPath    string        `mapstructure:"prlimit_path"`
	Docker         DockerConfig  `mapstructure:"docker"`
}

// DockerConfig 为容器编译后端配置。
type DockerConfig struct {
	Binary    string  `mapstructure:"binary"`
	Image     string  `mapstructure:"image"`
	CPUs      float64 `mapstructure:"cpus"`
	PidsLimit int     `mapstructure:"pids_limit"`
	User      string  `mapstructure:"user"`
}

// TemplatesConfig 可指向一个模板目录，用来替换内置模板。
type TemplatesConfig struct {
	Dir string `mapstructure:"dir"`
}

type GuardConfig struct {
	Mode string `mapstructure:"mode"`
}

// RedisConfig 包含 Redis 连接配置。Host 为空时不启用限流。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// AuthConfig 配置调用方令牌校验，公钥路径为空时按客户端 IP 识别调用方。
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Issuer        string `mapstructure:"issuer"`
}

type MetricsConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// 编译后端。
const (
	BackendProcess = "process"
	BackendDocker  = "docker"
)

// Load 仅从环境变量读取配置，未设置的项使用默认值。
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Compiler.WorkRoot == "" {
		cfg.Compiler.WorkRoot = os.TempDir()
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad 调用 Load，失败时 panic。
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.max_payload_bytes", 102400)
	v.SetDefault("api.request_timeout", 8*time.Second)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)

	v.SetDefault("compiler.backend", BackendProcess)
	v.SetDefault("compiler.binary", "pdflatex")
	v.SetDefault("compiler.args", []string{"-no-shell-escape", "-interaction=nonstopmode", "-halt-on-error", "main.tex"})
	v.SetDefault("compiler.work_root", "")
	v.SetDefault("compiler.timeout", 6*time.Second)
	v.SetDefault("compiler.slots", 0)
	v.SetDefault("compiler.queue_wait", time.Second)
	v.SetDefault("compiler.memory_limit_mb", 512)
	v.SetDefault("compiler.cpu_seconds", 10)
	v.SetDefault("compiler.max_output_mb", 20)
	v.SetDefault("compiler.max_processes", 64)
	v.SetDefault("compiler.isolate_network", true)
	v.SetDefault("compiler.prlimit_path", "prlimit")
	v.SetDefault("compiler.docker.binary", "docker")
	v.SetDefault("compiler.docker.image", "texlive/texlive:latest-small")
	v.SetDefault("compiler.docker.cpus", 1.0)
	v.SetDefault("compiler.docker.pids_limit", 64)
	v.SetDefault("compiler.docker.user", "")

	v.SetDefault("templates.dir", "")
	v.SetDefault("guard.mode", "denylist")
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("rate_limit.requests", 10)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("metrics.secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"api.max_payload_bytes":      "API_MAX_PAYLOAD_BYTES",
		"api.request_timeout":        "API_REQUEST_TIMEOUT",
		"api.shutdown_timeout":       "API_SHUTDOWN_TIMEOUT",
		"compiler.backend":           "COMPILER_BACKEND",
		"compiler.binary":            "COMPILER_BINARY",
		"compiler.args":              "COMPILER_ARGS",
		"compiler.work_root":         "COMPILER_WORK_ROOT",
		"compiler.timeout":           "COMPILER_TIMEOUT",
		"compiler.slots":             "COMPILER_SLOTS",
		"compiler.queue_wait":        "COMPILER_QUEUE_WAIT",
		"compiler.memory_limit_mb":   "COMPILER_MEMORY_LIMIT_MB",
		"compiler.cpu_seconds":       "COMPILER_CPU_SECONDS",
		"compiler.max_output_mb":     "COMPILER_MAX_OUTPUT_MB",
		"compiler.max_processes":     "COMPILER_MAX_PROCESSES",
		"compiler.isolate_network":   "COMPILER_ISOLATE_NETWORK",
		"compiler.prlimit_path":      "COMPILER_PRLIMIT_PATH",
		"compiler.docker.binary":     "COMPILER_DOCKER_BINARY",
		"compiler.docker.image":      "COMPILER_DOCKER_IMAGE",
		"compiler.docker.cpus":       "COMPILER_DOCKER_CPUS",
		"compiler.docker.pids_limit": "COMPILER_DOCKER_PIDS_LIMIT",
		"compiler.docker.user":       "COMPILER_DOCKER_USER",
		"templates.dir":              "TEMPLATES_DIR",
		"guard.mode":                 "GUARD_MODE",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"rate_limit.requests":        "RATE_LIMIT_REQUESTS",
		"rate_limit.window":          "RATE_LIMIT_WINDOW",
		"auth.public_key_path":       "AUTH_PUBLIC_KEY_PATH",
		"auth.issuer":                "AUTH_ISSUER",
		"metrics.secret":             "METRICS_SECRET",
		"log.level":                  "LOG_LEVEL",
		"log.format":                 "LOG_FORMAT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.API.MaxPayloadBytes <= 0 {
		return errors.New("api max payload bytes must be positive")
	}
	if cfg.API.RequestTimeout <= 0 {
		return errors.New("api request timeout must be positive")
	}
	switch cfg.Compiler.Backend {
	case BackendProcess:
		if cfg.Compiler.Binary == "" {
			return errors.New("compiler binary is required")
		}
	case BackendDocker:
		if cfg.Compiler.Docker.Image == "" {
			return errors.New("compiler docker image is required")
		}
	default:
		return fmt.Errorf("unknown compiler backend %q", cfg.Compiler.Backend)
	}
	if cfg.Compiler.Timeout <= 0 {
		return errors.New("compiler timeout must be positive")
	}
	if cfg.Compiler.Timeout >= cfg.API.RequestTimeout {
		return fmt.Errorf("compiler timeout %s must be below request timeout %s", cfg.Compiler.Timeout, cfg.API.RequestTimeout)
	}
	if cfg.Compiler.Slots < 0 {
		return errors.New("compiler slots must not be negative")
	}
	if cfg.Compiler.QueueWait < 0 {
		return errors.New("compiler queue wait must not be negative")
	}
	if cfg.Compiler.MaxOutputMB <= 0 {
		return errors.New("compiler max output must be positive")
	}
	switch cfg.Guard.Mode {
	case "denylist", "allowlist":
	default:
		return fmt.Errorf("unknown guard mode %q", cfg.Guard.Mode)
	}
	if cfg.Redis.Host != "" {
		if cfg.Redis.Port <= 0 {
			return errors.New("redis port must be positive")
		}
		if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
			return errors.New("rate limit requests and window must be positive")
		}
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	return nil
}
