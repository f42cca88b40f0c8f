package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pmplanner/pkg/otel"
	"pmplanner/pkg/trace"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Event 与业务数据同事务写入的待发布事件
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   int64
	RoutingKey    string
	Payload       json.RawMessage
	TraceID       string
	Status        string
	RetryCount    int
	NextRetryAt   *time.Time
	CreatedAt     time.Time
}

type Repository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRepository(db *pgxpool.Pool, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Insert 必须在业务事务中调用；payload 带上当前 trace_id 以便消费方串联
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	var traceID *string
	if id := trace.FromContext(ctx); id != "" {
		traceID = &id
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO outbox_events (aggregate_type, aggregate_id, routing_key, payload, trace_id, status)
        VALUES ($1, $2, $3, $4, $5, 'pending')
    `, aggregateType, aggregateID, routingKey, body, traceID); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// Pending 到达重试时间的待发送事件，按写入顺序
func (r *Repository) Pending(ctx context.Context, limit int) (_ []*Event, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "outbox_events")
	defer func() { otel.End(span, err) }()

	rows, err := r.db.Query(ctx, `
        SELECT id, aggregate_type, aggregate_id, routing_key, payload,
               COALESCE(trace_id, ''), status, retry_count, next_retry_at, created_at
        FROM outbox_events
        WHERE status = 'pending'
          AND (next_retry_at IS NULL OR next_retry_at <= NOW())
        ORDER BY id
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		var e Event
		if err = rows.Scan(
			&e.ID,
			&e.AggregateType,
			&e.AggregateID,
			&e.RoutingKey,
			&e.Payload,
			&e.TraceID,
			&e.Status,
			&e.RetryCount,
			&e.NextRetryAt,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *Repository) MarkSent(ctx context.Context, eventID int64) error {
	if _, err := r.db.Exec(ctx, `
        UPDATE outbox_events SET status = 'sent', updated_at = NOW() WHERE id = $1
    `, eventID); err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}
	return nil
}

// MarkFailed 增加重试次数；达到上限后置为 failed，否则按次数线性退避（5s, 10s, 15s...）
func (r *Repository) MarkFailed(ctx context.Context, eventID int64, maxRetries int) error {
	var status string
	err := r.db.QueryRow(ctx, `
        UPDATE outbox_events
        SET retry_count = retry_count + 1,
            status = CASE WHEN retry_count + 1 >= $2 THEN 'failed' ELSE 'pending' END,
            next_retry_at = CASE WHEN retry_count + 1 >= $2 THEN NULL
                                 ELSE NOW() + (retry_count + 1) * INTERVAL '5 seconds' END,
            updated_at = NOW()
        WHERE id = $1
        RETURNING status
    `, eventID, maxRetries).Scan(&status)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	if status == StatusFailed {
		r.logger.Warn("Outbox event exhausted retries", zap.Int64("event_id", eventID))
	}
	return nil
}

// Replay 把失败事件重置为 pending，由 Dispatcher 重新发送；eventID 为 0 时重置全部失败事件
func (r *Repository) Replay(ctx context.Context, eventID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE outbox_events
        SET status = 'pending', retry_count = 0, next_retry_at = NULL, updated_at = NOW()
        WHERE status = 'failed' AND ($1::bigint = 0 OR id = $1)
    `, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to replay events: %w", err)
	}
	r.logger.Info("Outbox events reset for replay", zap.Int64("event_id", eventID), zap.Int64("count", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}
