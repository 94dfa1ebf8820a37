package database

import (
	"context"
	"fmt"
	"sync"
)

// Manager 数据库管理器
// 负责按配置创建、连接和关闭数据库实例
type Manager struct {
	config   *Config
	database Database
	factory  DatabaseFactory
	mu       sync.RWMutex
}

// NewManager 创建数据库管理器
func NewManager(config *Config) *Manager {
	if config == nil {
		config = GetDefaultConfig()
	}
	return &Manager{
		config:  config,
		factory: GetFactory(),
	}
}

// Initialize 初始化数据库连接
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.database != nil {
		return nil // 已经初始化
	}

	db, err := m.factory.CreateDatabase(m.config)
	if err != nil {
		return fmt.Errorf("创建数据库失败: %w", err)
	}

	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("检查数据库连接失败: %w", err)
	}

	m.database = db
	return nil
}

// GetDatabase 获取数据库实例，未初始化时返回nil
func (m *Manager) GetDatabase() Database {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.database
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.database == nil {
		return nil
	}

	err := m.database.Close()
	m.database = nil
	return err
}

// Migrate 执行数据库迁移
func (m *Manager) Migrate(models ...interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.database == nil {
		return fmt.Errorf("数据库未初始化")
	}
	return m.database.Migrate(models...)
}

// IsInitialized 检查是否已初始化
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.database != nil
}

// GetDefaultConfig 获取默认数据库配置
func GetDefaultConfig() *Config {
	return &Config{
		Type:     "sqlite",
		FilePath: "data/vnet.db",
	}
}
