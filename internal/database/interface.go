package database

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected 数据库尚未连接
var ErrNotConnected = errors.New("数据库未连接")

// Database 数据库接口，抽象不同数据库的操作
// 只保留静态表存储需要的操作
type Database interface {
	// 连接管理
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// 事务管理
	Begin(ctx context.Context) (Transaction, error)

	// 迁移管理
	Migrate(models ...interface{}) error

	// 基础操作
	Create(ctx context.Context, model interface{}) error
	FindAllWithOrder(ctx context.Context, condition interface{}, models interface{}, orderBy string) error
	Count(ctx context.Context, condition interface{}, model interface{}) (int64, error)
}

// Transaction 事务接口
type Transaction interface {
	CreateInBatches(ctx context.Context, models interface{}, batchSize int) error
	// DeleteAll 删除 model 对应表中的全部记录
	DeleteAll(ctx context.Context, model interface{}) error

	// 事务控制
	Commit() error
	Rollback() error
}

// Config 数据库配置
type Config struct {
	Type string `json:"type" mapstructure:"type"` // 数据库类型: sqlite

	// 连接池配置
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`         // 最大打开连接数
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`         // 最大空闲连接数
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`   // 连接最大生存时间
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"` // 连接最大空闲时间

	// Debug 打开后输出SQL日志
	Debug bool `json:"debug" mapstructure:"debug"`

	// SQLite特定配置
	FilePath string `json:"file_path" mapstructure:"file_path"` // SQLite文件路径
}

// DatabaseFactory 数据库工厂接口
type DatabaseFactory interface {
	CreateDatabase(config *Config) (Database, error)
	SupportedTypes() []string
}
