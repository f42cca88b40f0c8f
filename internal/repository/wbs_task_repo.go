package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pmplanner/contracts/mq"
	"pmplanner/internal/model"
	"pmplanner/pkg/otel"
	"pmplanner/pkg/outbox"
)

const wbsTaskColumns = `
            id, project_id, parent_id, code, level, sequence, name, description, task_type,
            duration_days, effort_hours, complexity, risk_level,
            dependencies, required_skills, deliverables,
            is_critical_path, confidence_score, status`

type WbsTaskRepository struct {
	db     *pgxpool.Pool
	events *outbox.Repository
	logger *zap.Logger
}

func NewWbsTaskRepository(db *pgxpool.Pool, events *outbox.Repository, logger *zap.Logger) *WbsTaskRepository {
	return &WbsTaskRepository{
		db:     db,
		events: events,
		logger: logger,
	}
}

func (r *WbsTaskRepository) scanTask(row pgx.Row) (*model.WbsNode, error) {
	var (
		n                          model.WbsNode
		complexity, risk, status   string
		deps, skills, deliverables []byte
	)
	if err := row.Scan(
		&n.ID,
		&n.ProjectID,
		&n.ParentID,
		&n.Code,
		&n.Level,
		&n.Sequence,
		&n.Name,
		&n.Description,
		&n.TaskType,
		&n.DurationDays,
		&n.EffortHours,
		&complexity,
		&risk,
		&deps,
		&skills,
		&deliverables,
		&n.IsCriticalPath,
		&n.ConfidenceScore,
		&status,
	); err != nil {
		return nil, err
	}
	n.Complexity = model.ParseComplexity(complexity)
	n.RiskLevel = model.ParseRiskLevel(risk)
	n.Status = model.NodeStatus(status)
	n.Dependencies = decodeDependencies(deps, r.logger, n.ID)
	n.RequiredSkills = decodeSkills(skills, r.logger, n.ID)
	n.Deliverables = decodeDeliverables(deliverables, r.logger, n.ID)
	return &n, nil
}

func (r *WbsTaskRepository) list(ctx context.Context, query string, args ...any) ([]model.WbsNode, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []model.WbsNode{}
	for rows.Next() {
		n, err := r.scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan wbs task", zap.Error(err))
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// ListActiveNodes 项目下未被拒绝的有效任务
func (r *WbsTaskRepository) ListActiveNodes(ctx context.Context, projectID int64) (_ []model.WbsNode, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "wbs_tasks")
	defer func() { otel.End(span, err) }()

	query := `
        SELECT` + wbsTaskColumns + `
        FROM wbs_tasks
        WHERE project_id = $1 AND is_active = TRUE AND status <> 'REJECTED'
        ORDER BY level, code
    `
	nodes, err := r.list(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list wbs tasks", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("Listed active wbs tasks", zap.Int64("project_id", projectID), zap.Int("count", len(nodes)))
	return nodes, nil
}

// FindSimilarCompleted 同类型已完成任务，最新在前
func (r *WbsTaskRepository) FindSimilarCompleted(ctx context.Context, taskType string, limit int) (_ []model.WbsNode, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "wbs_tasks")
	defer func() { otel.End(span, err) }()

	query := `
        SELECT` + wbsTaskColumns + `
        FROM wbs_tasks
        WHERE task_type = $1 AND execution_state = 'COMPLETED'
        ORDER BY updated_at DESC
        LIMIT $2
    `
	return r.list(ctx, query, taskType, limit)
}

// GetTask 不存在时返回 nil, nil
func (r *WbsTaskRepository) GetTask(ctx context.Context, taskID int64) (_ *model.WbsNode, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "wbs_tasks")
	defer func() { otel.End(span, err) }()

	query := `
        SELECT` + wbsTaskColumns + `
        FROM wbs_tasks
        WHERE id = $1 AND is_active = TRUE
    `
	n, err := r.scanTask(r.db.QueryRow(ctx, query, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load wbs task", zap.Int64("task_id", taskID), zap.Error(err))
		return nil, err
	}
	return n, nil
}

// ReplaceSuggestedNodes 在一个事务中停用项目之前的 SUGGESTED 任务并写入新批次。
// 内存 id 被替换为数据库 id，parent_id 与依赖一并重映射
func (r *WbsTaskRepository) ReplaceSuggestedNodes(ctx context.Context, projectID int64, nodes []model.WbsNode) (_ []model.WbsNode, err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "wbs_tasks")
	defer func() { otel.End(span, err) }()

	r.logger.Debug("Persisting wbs batch", zap.Int64("project_id", projectID), zap.Int("count", len(nodes)))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `
        UPDATE wbs_tasks SET is_active = FALSE, updated_at = NOW()
        WHERE project_id = $1 AND is_active = TRUE AND status = 'SUGGESTED'
    `, projectID); err != nil {
		r.logger.Error("Failed to deactivate previous suggestions", zap.Error(err))
		return nil, err
	}

	// 父节点先于子节点写入
	ordered := make([]model.WbsNode, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool { return model.LessByLevelCode(&ordered[i], &ordered[j]) })

	insert := `
        INSERT INTO wbs_tasks (
            project_id, parent_id, code, level, sequence, name, description, task_type,
            duration_days, effort_hours, complexity, risk_level,
            required_skills, deliverables, is_critical_path, confidence_score, status
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        RETURNING id
    `
	idMap := make(map[int64]int64, len(ordered))
	for i := range ordered {
		n := &ordered[i]
		var parentID *int64
		if n.ParentID != nil {
			mapped, ok := idMap[*n.ParentID]
			if !ok {
				return nil, fmt.Errorf("parent %d of %s not in batch", *n.ParentID, n.Code)
			}
			parentID = &mapped
		}
		var newID int64
		if err = tx.QueryRow(ctx, insert,
			projectID,
			parentID,
			n.Code,
			n.Level,
			n.Sequence,
			n.Name,
			n.Description,
			n.TaskType,
			n.DurationDays,
			n.EffortHours,
			string(n.Complexity),
			string(n.RiskLevel),
			encodeJSON(n.RequiredSkills),
			encodeJSON(n.Deliverables),
			n.IsCriticalPath,
			n.ConfidenceScore,
			string(model.StatusSuggested),
		).Scan(&newID); err != nil {
			r.logger.Error("Failed to insert wbs task", zap.String("code", n.Code), zap.Error(err))
			return nil, err
		}
		idMap[n.ID] = newID
		n.ID = newID
		n.ProjectID = projectID
		n.ParentID = parentID
		n.Status = model.StatusSuggested
	}

	// 依赖在全部 id 确定后批量回写
	batch := &pgx.Batch{}
	for i := range ordered {
		n := &ordered[i]
		deps := make([]model.Dependency, 0, len(n.Dependencies))
		for _, d := range n.Dependencies {
			if mapped, ok := idMap[d.TaskID]; ok {
				deps = append(deps, model.Dependency{TaskID: mapped, Type: d.Type})
			}
		}
		n.Dependencies = deps
		if len(deps) > 0 {
			batch.Queue(`UPDATE wbs_tasks SET dependencies = $2 WHERE id = $1`, n.ID, encodeJSON(deps))
		}
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err = br.Exec(); err != nil {
				_ = br.Close()
				r.logger.Error("Failed to write dependencies", zap.Error(err))
				return nil, err
			}
		}
		if err = br.Close(); err != nil {
			return nil, err
		}
	}

	taskIDs := make([]int64, len(ordered))
	for i := range ordered {
		taskIDs[i] = ordered[i].ID
	}
	if err = r.events.Insert(ctx, tx, "project", projectID, mq.RoutingWbsPersisted, mq.WbsPersistedPayload{
		ProjectID: projectID,
		TaskIDs:   taskIDs,
	}); err != nil {
		r.logger.Error("Failed to record outbox event", zap.Error(err))
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return model.CompareCodes(ordered[i].Code, ordered[j].Code) < 0
	})
	r.logger.Info("WBS batch persisted", zap.Int64("project_id", projectID), zap.Int("count", len(ordered)))
	return ordered, nil
}

// UpdateStatus 在行锁下校验状态流转
func (r *WbsTaskRepository) UpdateStatus(ctx context.Context, taskID int64, to model.NodeStatus) (err error) {
	ctx, span := otel.DBSpan(ctx, "update", "wbs_tasks")
	defer func() { otel.End(span, err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		current   string
		projectID int64
	)
	err = tx.QueryRow(ctx, `SELECT status, project_id FROM wbs_tasks WHERE id = $1 FOR UPDATE`, taskID).Scan(&current, &projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %d", model.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return err
	}

	n := model.WbsNode{ID: taskID, Status: model.NodeStatus(current)}
	if err = n.Transition(to); err != nil {
		return err
	}
	// 重复审核不产生新事件
	if current == string(to) {
		return nil
	}
	if _, err = tx.Exec(ctx, `UPDATE wbs_tasks SET status = $2, updated_at = NOW() WHERE id = $1`, taskID, string(to)); err != nil {
		return err
	}
	if err = r.events.Insert(ctx, tx, "wbs_task", taskID, mq.RoutingTaskStatusChanged, mq.TaskStatusChangedPayload{
		TaskID:    taskID,
		ProjectID: projectID,
		From:      current,
		To:        string(to),
	}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return err
	}

	r.logger.Info("WBS task status updated",
		zap.Int64("task_id", taskID),
		zap.String("from", current),
		zap.String("to", string(to)),
	)
	return nil
}
