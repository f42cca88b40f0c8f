package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pmplanner/internal/model"
	"pmplanner/pkg/otel"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// GetProject 不存在时返回 nil, nil
func (r *ProjectRepository) GetProject(ctx context.Context, projectID int64) (_ *model.Project, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "projects")
	defer func() { otel.End(span, err) }()

	query := `
        SELECT id, code, name, description, project_type, start_date
        FROM projects
        WHERE id = $1
    `
	var (
		p     model.Project
		start *time.Time
	)
	err = r.db.QueryRow(ctx, query, projectID).Scan(
		&p.ID,
		&p.Code,
		&p.Name,
		&p.Description,
		&p.ProjectType,
		&start,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Debug("Project not found", zap.Int64("project_id", projectID))
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load project", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	if start != nil {
		p.StartDate = *start
	}
	return &p, nil
}

// GetTemplateJSON 以 {"id","name","phases"} 形式返回模板原文，解析交给调用方
func (r *ProjectRepository) GetTemplateJSON(ctx context.Context, templateID int64) (_ []byte, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "wbs_templates")
	defer func() { otel.End(span, err) }()

	query := `
        SELECT jsonb_build_object('id', id, 'name', name, 'phases', phases)::text
        FROM wbs_templates
        WHERE id = $1
    `
	var raw string
	err = r.db.QueryRow(ctx, query, templateID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Debug("Template not found", zap.Int64("template_id", templateID))
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load template", zap.Int64("template_id", templateID), zap.Error(err))
		return nil, err
	}
	return []byte(raw), nil
}
