package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"pmplanner/contracts/mq"
	"pmplanner/internal/model"
	"pmplanner/pkg/otel"
	"pmplanner/pkg/outbox"
)

type AllocationRepository struct {
	db     *pgxpool.Pool
	events *outbox.Repository
	logger *zap.Logger
}

func NewAllocationRepository(db *pgxpool.Pool, events *outbox.Repository, logger *zap.Logger) *AllocationRepository {
	return &AllocationRepository{
		db:     db,
		events: events,
		logger: logger,
	}
}

// ReplaceSuggestedAllocations 停用任务上旧的 SUGGESTED 分配，写入新的排序结果
func (r *AllocationRepository) ReplaceSuggestedAllocations(ctx context.Context, taskID int64, allocations []model.ResourceAllocation) (_ []model.ResourceAllocation, err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "resource_allocations")
	defer func() { otel.End(span, err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `
        UPDATE resource_allocations SET is_active = FALSE
        WHERE task_id = $1 AND is_active = TRUE AND status = 'SUGGESTED'
    `, taskID); err != nil {
		return nil, err
	}

	query := `
        INSERT INTO resource_allocations (
            allocation_code, project_id, task_id, person_id, role_name, allocation_type,
            confidence_score, allocated_hours, skill_match_score, experience_match_score,
            availability_score, performance_score, overall_match_score,
            hourly_rate, estimated_cost, cost_efficiency_score, recommendation_reason,
            strengths, weaknesses, status, priority, sequence
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
        RETURNING id
    `
	out := make([]model.ResourceAllocation, len(allocations))
	copy(out, allocations)
	for i := range out {
		a := &out[i]
		if err = tx.QueryRow(ctx, query,
			a.AllocationCode,
			a.ProjectID,
			a.TaskID,
			a.PersonID,
			a.RoleName,
			string(a.AllocationType),
			a.ConfidenceScore,
			a.AllocatedHours,
			a.SkillMatchScore,
			a.ExperienceMatchScore,
			a.AvailabilityScore,
			a.PerformanceScore,
			a.OverallMatchScore,
			a.HourlyRate,
			a.EstimatedCost,
			a.CostEfficiencyScore,
			a.RecommendationReason,
			encodeJSON(a.Strengths),
			encodeJSON(a.Weaknesses),
			string(a.Status),
			string(a.Priority),
			a.Sequence,
		).Scan(&a.ID); err != nil {
			r.logger.Error("Failed to insert allocation",
				zap.Int64("task_id", taskID),
				zap.Int64("person_id", a.PersonID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	if len(out) > 0 {
		ids := make([]int64, len(out))
		for i := range out {
			ids[i] = out[i].ID
		}
		if err = r.events.Insert(ctx, tx, "wbs_task", taskID, mq.RoutingAllocationsPersisted, mq.AllocationsPersistedPayload{
			ProjectID:     out[0].ProjectID,
			TaskID:        taskID,
			AllocationIDs: ids,
		}); err != nil {
			r.logger.Error("Failed to record outbox event", zap.Error(err))
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("Allocations persisted", zap.Int64("task_id", taskID), zap.Int("count", len(out)))
	return out, nil
}

// ListActiveAllocations 项目下有效且未被拒绝的分配，用于负载统计
func (r *AllocationRepository) ListActiveAllocations(ctx context.Context, projectID int64) (_ []model.ResourceAllocation, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "resource_allocations")
	defer func() { otel.End(span, err) }()

	rows, err := r.db.Query(ctx, `
        SELECT a.id, a.allocation_code, a.project_id, a.task_id, t.name, a.person_id, a.role_name,
               a.allocation_type, a.allocated_hours, a.overall_match_score, a.hourly_rate::float8,
               a.estimated_cost::float8, a.strengths, a.weaknesses, a.status, a.priority, a.sequence
        FROM resource_allocations a
        JOIN wbs_tasks t ON t.id = a.task_id
        WHERE a.project_id = $1 AND a.is_active = TRUE AND a.status <> 'REJECTED' AND t.is_active = TRUE
        ORDER BY a.task_id, a.sequence
    `, projectID)
	if err != nil {
		r.logger.Error("Failed to list allocations", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := []model.ResourceAllocation{}
	for rows.Next() {
		var (
			a                     model.ResourceAllocation
			allocType, status     string
			priority              string
			strengths, weaknesses []byte
		)
		if err = rows.Scan(
			&a.ID,
			&a.AllocationCode,
			&a.ProjectID,
			&a.TaskID,
			&a.TaskName,
			&a.PersonID,
			&a.RoleName,
			&allocType,
			&a.AllocatedHours,
			&a.OverallMatchScore,
			&a.HourlyRate,
			&a.EstimatedCost,
			&strengths,
			&weaknesses,
			&status,
			&priority,
			&a.Sequence,
		); err != nil {
			r.logger.Error("Failed to scan allocation", zap.Error(err))
			return nil, err
		}
		a.AllocationType = model.AllocationType(allocType)
		a.Status = model.NodeStatus(status)
		a.Priority = model.Priority(priority)
		a.Strengths = decodeStrengths(strengths)
		a.Weaknesses = decodeWeaknesses(weaknesses)
		out = append(out, a)
	}
	return out, rows.Err()
}

func decodeStrengths(raw []byte) []model.Strength {
	out := []model.Strength{}
	gjson.ParseBytes(raw).ForEach(func(_, v gjson.Result) bool {
		out = append(out, model.Strength{Aspect: v.Get("aspect").String(), Description: v.Get("description").String()})
		return true
	})
	return out
}

func decodeWeaknesses(raw []byte) []model.Weakness {
	out := []model.Weakness{}
	gjson.ParseBytes(raw).ForEach(func(_, v gjson.Result) bool {
		out = append(out, model.Weakness{
			Aspect:      v.Get("aspect").String(),
			Description: v.Get("description").String(),
			Impact:      model.Priority(v.Get("impact").String()),
		})
		return true
	})
	return out
}
