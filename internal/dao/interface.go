package dao

import (
	"context"

	"vnet/internal/database"
)

// BaseDAO 基础DAO接口，定义通用的数据访问方法
type BaseDAO[T any] interface {
	Create(ctx context.Context, entity *T) error
	FindAll(ctx context.Context) ([]*T, error)
	Count(ctx context.Context) (int64, error)

	// 批量操作（在事务中）
	ReplaceAll(ctx context.Context, tx database.Transaction, entities []*T) error
}

// TransactionalDAO 支持事务的DAO接口
type TransactionalDAO interface {
	WithTransaction(ctx context.Context, fn func(tx database.Transaction) error) error
}
