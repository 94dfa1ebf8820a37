package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteDatabase SQLite数据库实现
type SQLiteDatabase struct {
	db     *gorm.DB
	config *Config
}

// SQLiteTransaction SQLite事务实现
type SQLiteTransaction struct {
	tx *gorm.DB
}

// NewSQLiteDatabase 创建SQLite数据库实例
func NewSQLiteDatabase(config *Config) (Database, error) {
	if config.FilePath == "" {
		config.FilePath = "data/vnet.db"
	}

	// 确保目录存在
	dir := filepath.Dir(config.FilePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	return &SQLiteDatabase{
		config: config,
	}, nil
}

// Connect 连接数据库
func (s *SQLiteDatabase) Connect(ctx context.Context) error {
	// 配置GORM日志级别
	logLevel := logger.Silent
	if s.config.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(s.config.FilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("连接SQLite数据库失败: %w", err)
	}

	s.db = db

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层sql.DB失败: %w", err)
	}

	if s.config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(s.config.MaxOpenConns)
	} else {
		sqlDB.SetMaxOpenConns(10)
	}

	if s.config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(s.config.MaxIdleConns)
	} else {
		sqlDB.SetMaxIdleConns(5)
	}

	if s.config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(s.config.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if s.config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(s.config.ConnMaxIdleTime)
	} else {
		sqlDB.SetConnMaxIdleTime(30 * time.Minute)
	}

	return nil
}

// Close 关闭数据库连接
func (s *SQLiteDatabase) Close() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}

// Ping 检查数据库连接
func (s *SQLiteDatabase) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConnected
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Begin 开始事务
func (s *SQLiteDatabase) Begin(ctx context.Context) (Transaction, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &SQLiteTransaction{tx: tx}, nil
}

// Migrate 执行数据库迁移
func (s *SQLiteDatabase) Migrate(models ...interface{}) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return s.db.AutoMigrate(models...)
}

// Create 创建记录
func (s *SQLiteDatabase) Create(ctx context.Context, model interface{}) error {
	if s.db == nil {
		return ErrNotConnected
	}
	return s.db.WithContext(ctx).Create(model).Error
}

// FindAllWithOrder 按条件和排序查询所有记录
func (s *SQLiteDatabase) FindAllWithOrder(ctx context.Context, condition interface{}, models interface{}, orderBy string) error {
	if s.db == nil {
		return ErrNotConnected
	}

	query := s.db.WithContext(ctx)
	if condition != nil {
		query = query.Where(condition)
	}
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	return query.Find(models).Error
}

// Count 统计记录数
func (s *SQLiteDatabase) Count(ctx context.Context, condition interface{}, model interface{}) (int64, error) {
	if s.db == nil {
		return 0, ErrNotConnected
	}

	var count int64
	query := s.db.WithContext(ctx).Model(model)
	if condition != nil {
		query = query.Where(condition)
	}
	err := query.Count(&count).Error
	return count, err
}

// SQLiteTransaction 事务方法实现

// CreateInBatches 在事务中批量创建
func (t *SQLiteTransaction) CreateInBatches(ctx context.Context, models interface{}, batchSize int) error {
	return t.tx.WithContext(ctx).CreateInBatches(models, batchSize).Error
}

// DeleteAll 在事务中清空表
func (t *SQLiteTransaction) DeleteAll(ctx context.Context, model interface{}) error {
	return t.tx.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error
}

// Commit 提交事务
func (t *SQLiteTransaction) Commit() error {
	return t.tx.Commit().Error
}

// Rollback 回滚事务
func (t *SQLiteTransaction) Rollback() error {
	return t.tx.Rollback().Error
}
