// Package repository 定义数据访问层接口
package repository

import (
	"context"
)

// TxKey 事务上下文键类型
type TxKey struct{}

// Transactor 事务边界。fn 内通过 ctx 取得同一事务，嵌套调用复用外层事务
type Transactor interface {
	// WithTransaction 读写事务
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// WithSnapshot 只读快照事务（REPEATABLE READ），跨多表聚合时保证读到同一时刻的数据
	WithSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}
