package database

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultFactory 默认数据库工厂实现
type DefaultFactory struct {
	drivers map[string]func(*Config) (Database, error)
}

// NewDefaultFactory 创建默认数据库工厂
func NewDefaultFactory() *DefaultFactory {
	factory := &DefaultFactory{
		drivers: make(map[string]func(*Config) (Database, error)),
	}

	// 注册SQLite驱动
	factory.RegisterDriver("sqlite", NewSQLiteDatabase)

	return factory
}

// RegisterDriver 注册数据库驱动
func (f *DefaultFactory) RegisterDriver(dbType string, creator func(*Config) (Database, error)) {
	f.drivers[strings.ToLower(dbType)] = creator
}

// CreateDatabase 创建数据库实例
func (f *DefaultFactory) CreateDatabase(config *Config) (Database, error) {
	dbType := strings.ToLower(config.Type)
	if dbType == "" {
		dbType = "sqlite"
	}
	creator, exists := f.drivers[dbType]
	if !exists {
		return nil, fmt.Errorf("不支持的数据库类型: %s", config.Type)
	}

	return creator(config)
}

// SupportedTypes 返回支持的数据库类型
func (f *DefaultFactory) SupportedTypes() []string {
	types := make([]string, 0, len(f.drivers))
	for dbType := range f.drivers {
		types = append(types, dbType)
	}
	sort.Strings(types)
	return types
}

// 全局工厂实例
var globalFactory = NewDefaultFactory()

// GetFactory 获取全局数据库工厂
func GetFactory() DatabaseFactory {
	return globalFactory
}
