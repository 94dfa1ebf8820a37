package dao

import (
	"context"
	"fmt"

	"vnet/internal/database"
)

// defaultBatchSize 批量写入的默认批次大小
const defaultBatchSize = 100

var (
	_ BaseDAO[RouteModel] = (*BaseDAOImpl[RouteModel])(nil)
	_ TransactionalDAO    = (*BaseDAOImpl[ARPModel])(nil)
)

// BaseDAOImpl 基础DAO实现
type BaseDAOImpl[T any] struct {
	db      database.Database
	orderBy string
}

// NewBaseDAO 创建基础DAO实例
// orderBy 为 FindAll 使用的排序子句，为空时按数据库默认顺序
func NewBaseDAO[T any](db database.Database, orderBy string) *BaseDAOImpl[T] {
	return &BaseDAOImpl[T]{
		db:      db,
		orderBy: orderBy,
	}
}

// Create 创建实体
func (dao *BaseDAOImpl[T]) Create(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("entity cannot be nil")
	}
	return dao.db.Create(ctx, entity)
}

// FindAll 查找所有实体
func (dao *BaseDAOImpl[T]) FindAll(ctx context.Context) ([]*T, error) {
	var entities []*T
	if err := dao.db.FindAllWithOrder(ctx, nil, &entities, dao.orderBy); err != nil {
		return nil, err
	}
	return entities, nil
}

// Count 统计记录数
func (dao *BaseDAOImpl[T]) Count(ctx context.Context) (int64, error) {
	var zero T
	return dao.db.Count(ctx, nil, &zero)
}

// ReplaceAll 清空表后写入 entities
func (dao *BaseDAOImpl[T]) ReplaceAll(ctx context.Context, tx database.Transaction, entities []*T) error {
	var zero T
	if err := tx.DeleteAll(ctx, &zero); err != nil {
		return fmt.Errorf("清空数据失败: %w", err)
	}
	if len(entities) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(ctx, entities, defaultBatchSize); err != nil {
		return fmt.Errorf("批量写入失败: %w", err)
	}
	return nil
}

// WithTransaction 执行事务操作
func (dao *BaseDAOImpl[T]) WithTransaction(ctx context.Context, fn func(tx database.Transaction) error) error {
	return WithTransaction(ctx, dao.db, fn)
}

// WithTransaction 在 db 上开启事务执行 fn，fn 返回错误时回滚
func WithTransaction(ctx context.Context, db database.Database, fn func(tx database.Transaction) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
