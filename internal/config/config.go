package config

import (
	"github.com/blues/pss/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Presale  PresaleConfig  `mapstructure:"presale"`
	Roles    RolesConfig    `mapstructure:"roles"`
	Task     TaskConfig     `mapstructure:"task"`
	Notify   NotifyConfig   `mapstructure:"notify"`
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

// ChainConfig 链与代币配置
type ChainConfig struct {
	ChainId         int64  `mapstructure:"chain_id"`         // 链ID
	RpcUrl          string `mapstructure:"rpc_url"`          // RPC节点URL
	PrivateKey      string `mapstructure:"private_key"`      // 托管账户私钥
	PaymentToken    string `mapstructure:"payment_token"`    // 支付资产（稳定币）合约地址
	AllocationToken string `mapstructure:"allocation_token"` // 分配资产（新代币）合约地址
	Custody         string `mapstructure:"custody"`          // 托管地址（资金归集地址）
}

// RoundConfig 单轮次配置：价格/目标在配置期固定，时间窗口由初始化操作提供
type RoundConfig struct {
	Price            string `mapstructure:"price"`              // 每个完整代币的支付资产数量（wei）
	Target           string `mapstructure:"target"`             // 轮次目标（wei）
	BonusPercent     int    `mapstructure:"bonus_percent"`      // 奖励比例 0-100
	TGEUnlockPercent int    `mapstructure:"tge_unlock_percent"` // TGE解锁比例 0-100
}

// PresaleConfig 预售参数
type PresaleConfig struct {
	Rounds []RoundConfig `mapstructure:"rounds"`

	MinContribution string `mapstructure:"min_contribution"` // 单笔最低（wei）
	MaxContribution string `mapstructure:"max_contribution"` // 单地址累计上限（wei）
	SoftCap         string `mapstructure:"soft_cap"`         // 软顶（wei）
	HardCap         string `mapstructure:"hard_cap"`         // 硬顶（wei），须等于各轮次目标之和
	WhalePercent    int    `mapstructure:"whale_percent"`    // 单笔占轮次目标百分比上限

	HourlyLimit    string `mapstructure:"hourly_limit"`     // 每地址每小时限额（wei）
	HourlyLimitMin string `mapstructure:"hourly_limit_min"` // 限额可调下界
	HourlyLimitMax string `mapstructure:"hourly_limit_max"` // 限额可调上界
	CooldownBlocks uint64 `mapstructure:"cooldown_blocks"`  // 两次贡献的最小区块间隔

	VestingDuration int64 `mapstructure:"vesting_duration"` // 线性释放时长（秒）
	RefundWindow    int64 `mapstructure:"refund_window"`    // 退款窗口（秒）
	TGEMaxLead      int64 `mapstructure:"tge_max_lead"`     // TGE时间距今的最大提前量（秒）

	WithdrawDelay  int64 `mapstructure:"withdraw_delay"`  // 提现时间锁（秒）
	TGEDelay       int64 `mapstructure:"tge_delay"`       // TGE启用时间锁（秒）
	EmergencyDelay int64 `mapstructure:"emergency_delay"` // 紧急提取时间锁（秒）

	DailyWithdrawLimit string `mapstructure:"daily_withdraw_limit"` // 提现熔断日限额（wei）

	Treasury string `mapstructure:"treasury"` // 国库地址
}

// RolesConfig 角色地址表：特权入口的能力查找依据
type RolesConfig struct {
	Admin        []string `mapstructure:"admin"`
	RoundManager []string `mapstructure:"round_manager"`
	EventEnabler []string `mapstructure:"event_enabler"`
	Treasury     []string `mapstructure:"treasury"`
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
}

// NotifyConfig 事件外发配置
type NotifyConfig struct {
	WebhookUrl string `mapstructure:"webhook_url"` // 为空则只记录日志
	PoolSize   int    `mapstructure:"pool_size"`   // 协程池大小
	TimeoutSec int    `mapstructure:"timeout_sec"` // 单次投递超时（秒）
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
	viper.AddConfigPath("/etc/pss")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "presale")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("notify.pool_size", 8)
	viper.SetDefault("notify.timeout_sec", 5)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 预售参数默认值（金额为18位精度 wei 字符串）
	viper.SetDefault("presale.min_contribution", "100000000000000000000")    // 100
	viper.SetDefault("presale.max_contribution", "50000000000000000000000")  // 50,000
	viper.SetDefault("presale.soft_cap", "1000000000000000000000000")        // 1,000,000
	viper.SetDefault("presale.hard_cap", "5000000000000000000000000")        // 5,000,000
	viper.SetDefault("presale.whale_percent", 5)
	viper.SetDefault("presale.hourly_limit", "10000000000000000000000")      // 10,000
	viper.SetDefault("presale.hourly_limit_min", "1000000000000000000000")   // 1,000
	viper.SetDefault("presale.hourly_limit_max", "100000000000000000000000") // 100,000
	viper.SetDefault("presale.cooldown_blocks", 2)
	viper.SetDefault("presale.vesting_duration", 10*30*24*3600)
	viper.SetDefault("presale.refund_window", 30*24*3600)
	viper.SetDefault("presale.tge_max_lead", 365*24*3600)
	viper.SetDefault("presale.withdraw_delay", 2*24*3600)
	viper.SetDefault("presale.tge_delay", 2*24*3600)
	viper.SetDefault("presale.emergency_delay", 7*24*3600)
	viper.SetDefault("presale.daily_withdraw_limit", "500000000000000000000000") // 500,000

	// 默认五轮价格阶梯，各轮目标之和等于硬顶默认值
	viper.SetDefault("presale.rounds", []map[string]interface{}{
		{"price": "40000000000000000", "target": "500000000000000000000000", "bonus_percent": 20, "tge_unlock_percent": 50},  // 500,000
		{"price": "50000000000000000", "target": "750000000000000000000000", "bonus_percent": 15, "tge_unlock_percent": 50},  // 750,000
		{"price": "60000000000000000", "target": "1000000000000000000000000", "bonus_percent": 10, "tge_unlock_percent": 50}, // 1,000,000
		{"price": "70000000000000000", "target": "1250000000000000000000000", "bonus_percent": 5, "tge_unlock_percent": 50},  // 1,250,000
		{"price": "80000000000000000", "target": "1500000000000000000000000", "bonus_percent": 0, "tge_unlock_percent": 50},  // 1,500,000
	})

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
