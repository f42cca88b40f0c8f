package repository

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pmplanner/pkg/outbox"
)

//go:embed schema.sql
var schemaSQL string

// Store 聚合各表仓储，同时满足 wbs / schedule / resource 的 Store 接口
type Store struct {
	*ProjectRepository
	*WbsTaskRepository
	*PersonRepository
	*AllocationRepository
}

// NewStore 写操作通过 events 记录 outbox 事件
func NewStore(db *pgxpool.Pool, events *outbox.Repository, logger *zap.Logger) *Store {
	return &Store{
		ProjectRepository:    NewProjectRepository(db, logger),
		WbsTaskRepository:    NewWbsTaskRepository(db, events, logger),
		PersonRepository:     NewPersonRepository(db, logger),
		AllocationRepository: NewAllocationRepository(db, events, logger),
	}
}

// ApplySchema 建表语句均为 IF NOT EXISTS，可重复执行
func ApplySchema(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("Database schema applied")
	return nil
}
