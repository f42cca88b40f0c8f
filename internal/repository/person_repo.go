package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pmplanner/internal/model"
	"pmplanner/pkg/otel"
)

const performanceWindow = 20

type PersonRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPersonRepository(db *pgxpool.Pool, logger *zap.Logger) *PersonRepository {
	return &PersonRepository{
		db:     db,
		logger: logger,
	}
}

// ListCandidates personIDs 为空时返回项目成员
func (r *PersonRepository) ListCandidates(ctx context.Context, projectID int64, personIDs []int64) (_ []model.Person, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "persons")
	defer func() { otel.End(span, err) }()

	var (
		query string
		args  []any
	)
	if len(personIDs) > 0 {
		query = `
            SELECT id, name, role, tier, skills
            FROM persons
            WHERE id = ANY($1)
            ORDER BY id
        `
		args = []any{personIDs}
	} else {
		query = `
            SELECT p.id, p.name, p.role, p.tier, p.skills
            FROM persons p
            JOIN project_members m ON m.person_id = p.id
            WHERE m.project_id = $1
            ORDER BY p.id
        `
		args = []any{projectID}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list candidates", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	persons := []model.Person{}
	for rows.Next() {
		var (
			p      model.Person
			tier   string
			skills []byte
		)
		if err = rows.Scan(&p.ID, &p.Name, &p.Role, &tier, &skills); err != nil {
			r.logger.Error("Failed to scan person", zap.Error(err))
			return nil, err
		}
		p.Tier = model.ParseTier(tier)
		p.Skills = decodeStrings(skills, r.logger, "skills", p.ID)
		persons = append(persons, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Listed candidates", zap.Int64("project_id", projectID), zap.Int("count", len(persons)))
	return persons, nil
}

// LoadWorkHistory 同类型完成数、进行中任务数和最近 20 个已完成任务
func (r *PersonRepository) LoadWorkHistory(ctx context.Context, personID int64, taskType string) (_ model.WorkHistory, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "task_assignments")
	defer func() { otel.End(span, err) }()

	var h model.WorkHistory
	err = r.db.QueryRow(ctx, `
        SELECT
            COUNT(*) FILTER (WHERE a.state = 'COMPLETED' AND t.task_type = $2),
            COUNT(*) FILTER (WHERE a.state IN ('IN_PROGRESS', 'ACCEPTED'))
        FROM task_assignments a
        LEFT JOIN wbs_tasks t ON t.id = a.task_id
        WHERE a.person_id = $1
    `, personID, taskType).Scan(&h.CompletedSameType, &h.ActiveTasks)
	if err != nil {
		r.logger.Error("Failed to count assignments", zap.Int64("person_id", personID), zap.Error(err))
		return h, err
	}

	rows, err := r.db.Query(ctx, `
        SELECT task_id, planned_end, actual_end
        FROM task_assignments
        WHERE person_id = $1 AND state = 'COMPLETED'
        ORDER BY actual_end DESC NULLS LAST, id DESC
        LIMIT $2
    `, personID, performanceWindow)
	if err != nil {
		return h, err
	}
	defer rows.Close()

	for rows.Next() {
		var c model.CompletedTask
		if err = rows.Scan(&c.TaskID, &c.PlannedEnd, &c.ActualEnd); err != nil {
			return h, err
		}
		h.RecentCompleted = append(h.RecentCompleted, c)
	}
	return h, rows.Err()
}
