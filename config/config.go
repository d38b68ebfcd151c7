package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 POPCUT_SERVER_PORT
const EnvPrefix = "POPCUT"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Upload  UploadConfig  `mapstructure:"upload"`
	GrabCut GrabCutConfig `mapstructure:"grabcut"`
	Storage StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	MaxPixels    int      `mapstructure:"max_pixels"` // 解码后的宽x高上限
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type GrabCutConfig struct {
	Engine         string        `mapstructure:"engine"` // grabcut 或 rect
	Iterations     int           `mapstructure:"iterations"`
	MaxIterations  int           `mapstructure:"max_iterations"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	QueueTimeout   time.Duration `mapstructure:"queue_timeout"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

type StorageConfig struct {
	OutputDir       string        `mapstructure:"output_dir"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

const (
	EngineGrabCut = "grabcut"
	EngineRect    = "rect"
)

// Load 从 YAML 文件加载配置，环境变量优先
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	var errs []error
	if c.GrabCut.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("grabcut.max_concurrent must be positive, got %d", c.GrabCut.MaxConcurrent))
	}
	if c.GrabCut.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("grabcut.max_iterations must be positive, got %d", c.GrabCut.MaxIterations))
	}
	if c.GrabCut.Iterations <= 0 || c.GrabCut.Iterations > c.GrabCut.MaxIterations {
		errs = append(errs, fmt.Errorf("grabcut.iterations must be in [1, %d], got %d", c.GrabCut.MaxIterations, c.GrabCut.Iterations))
	}
	switch c.GrabCut.Engine {
	case EngineGrabCut, EngineRect:
	default:
		errs = append(errs, fmt.Errorf("grabcut.engine must be %q or %q, got %q", EngineGrabCut, EngineRect, c.GrabCut.Engine))
	}
	if c.Upload.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_size must be positive, got %d", c.Upload.MaxSize))
	}
	if c.Upload.MaxPixels <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_pixels must be positive, got %d", c.Upload.MaxPixels))
	}
	if c.Storage.OutputDir == "" {
		errs = append(errs, errors.New("storage.output_dir is required"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.max_pixels", 25_000_000)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg", "image/webp", "image/bmp", "image/gif", "image/tiff"})

	v.SetDefault("grabcut.engine", EngineGrabCut)
	v.SetDefault("grabcut.iterations", 5)
	v.SetDefault("grabcut.max_iterations", 20)
	v.SetDefault("grabcut.max_concurrent", 3)
	v.SetDefault("grabcut.queue_timeout", 30*time.Second)
	v.SetDefault("grabcut.process_timeout", 60*time.Second)

	v.SetDefault("storage.output_dir", "./results")
	v.SetDefault("storage.retention", 24*time.Hour)
	v.SetDefault("storage.cleanup_schedule", "@every 1h")
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			MaxPixels:    25_000_000,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg", "image/webp", "image/bmp", "image/gif", "image/tiff"},
		},
		GrabCut: GrabCutConfig{
			Engine:         EngineGrabCut,
			Iterations:     5,
			MaxIterations:  20,
			MaxConcurrent:  3,
			QueueTimeout:   30 * time.Second,
			ProcessTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			OutputDir:       "./results",
			Retention:       24 * time.Hour,
			CleanupSchedule: "@every 1h",
		},
	}
}

// Default 返回内置默认配置的副本
func Default() *Config {
	return getDefaultConfig()
}
