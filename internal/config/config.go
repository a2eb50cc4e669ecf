package config

import (
	"github.com/odhis101/k3c-platform/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mpesa    MpesaConfig    `mapstructure:"mpesa"`
	Card     CardConfig     `mapstructure:"card"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// AuthConfig JWT 配置
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`   // 签名密钥
	ExpiryHours int    `mapstructure:"expiry_hours"` // 令牌有效期（小时）
}

// MpesaConfig M-Pesa STK 渠道配置
type MpesaConfig struct {
	BaseURL        string `mapstructure:"base_url"`        // Daraja API 地址
	ConsumerKey    string `mapstructure:"consumer_key"`    // OAuth key
	ConsumerSecret string `mapstructure:"consumer_secret"` // OAuth secret
	Shortcode      string `mapstructure:"shortcode"`       // 商户短码
	Passkey        string `mapstructure:"passkey"`         // STK passkey
	CallbackURL    string `mapstructure:"callback_url"`    // 回调地址
}

// CardConfig 银行卡渠道配置
type CardConfig struct {
	BaseURL     string `mapstructure:"base_url"`     // 网关 API 地址
	SecretKey   string `mapstructure:"secret_key"`   // API 密钥，同时用于回调签名校验
	CallbackURL string `mapstructure:"callback_url"` // 支付完成跳转地址
}

// PaymentConfig 支付通用配置
type PaymentConfig struct {
	MinAmount      float64 `mapstructure:"min_amount"`      // 最低捐款金额
	TimeoutSeconds int     `mapstructure:"timeout_seconds"` // 网关 HTTP 超时（秒）
}

type TaskConfig struct {
	Interval           int `mapstructure:"interval"`             // 秒
	VerifyAfterSeconds int `mapstructure:"verify_after_seconds"` // 交易挂起多久后主动查询
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/k3c")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "donations")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("auth.expiry_hours", 72)
	viper.SetDefault("mpesa.base_url", "https://sandbox.safaricom.co.ke")
	viper.SetDefault("card.base_url", "https://api.paystack.co")
	viper.SetDefault("payment.min_amount", 1)
	viper.SetDefault("payment.timeout_seconds", 30)
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("task.verify_after_seconds", 120)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
