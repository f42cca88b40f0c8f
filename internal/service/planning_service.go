package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pmplanner/internal/model"
	"pmplanner/internal/resource"
	"pmplanner/internal/schedule"
	"pmplanner/internal/wbs"
	"pmplanner/pkg/config"
	"pmplanner/pkg/logger"
)

// Repository 规划服务依赖的数据访问，PostgreSQL 与内存实现都满足
type Repository interface {
	wbs.Store
	schedule.Store
	resource.Store
	GetTemplateJSON(ctx context.Context, templateID int64) ([]byte, error)
	ReplaceSuggestedNodes(ctx context.Context, projectID int64, nodes []model.WbsNode) ([]model.WbsNode, error)
	ReplaceSuggestedAllocations(ctx context.Context, taskID int64, allocations []model.ResourceAllocation) ([]model.ResourceAllocation, error)
	UpdateStatus(ctx context.Context, taskID int64, to model.NodeStatus) error
}

// PlanningService 组合分解、调度和资源分配
type PlanningService struct {
	repo       Repository
	decomposer *wbs.Decomposer
	scheduler  *schedule.Optimizer
	allocator  *resource.Optimizer
	maxLevel   int
	logger     *zap.Logger
}

// NewPlanningService suggester 为 nil 时只使用规则分解
func NewPlanningService(repo Repository, suggester wbs.Suggester, cfg config.PlanningConfig, log *zap.Logger) *PlanningService {
	cfg.ApplyDefaults()
	l := logger.OrNop(log)
	return &PlanningService{
		repo:       repo,
		decomposer: wbs.NewDecomposer(repo, suggester, l),
		scheduler: schedule.NewOptimizer(repo, model.ScheduleConstraints{
			MaxPersonHours: cfg.CapacityHours(),
			MaxTaskDays:    cfg.MaxTaskDays,
			CriticalRatio:  cfg.CriticalRatio,
		}, l),
		allocator: resource.NewOptimizer(repo, model.AllocationConstraints{
			MaxCandidates: cfg.MaxCandidates,
			MinMatchScore: cfg.MinMatchScore,
		}, l),
		maxLevel: cfg.MaxLevel,
		logger:   l,
	}
}

// Decompose 只在内存中分解；模板不存在时与项目不存在一样返回空结果
func (s *PlanningService) Decompose(ctx context.Context, projectID int64, templateID *int64, maxLevel int) ([]model.WbsNode, error) {
	if maxLevel == 0 {
		maxLevel = s.maxLevel
	}

	var tmpl *model.WbsTemplate
	if templateID != nil {
		raw, err := s.repo.GetTemplateJSON(ctx, *templateID)
		if err != nil {
			return nil, fmt.Errorf("load template %d: %w", *templateID, err)
		}
		if raw == nil {
			s.logger.Info("Template not found", zap.Int64("template_id", *templateID))
			return []model.WbsNode{}, nil
		}
		tmpl, err = wbs.ParseTemplate(raw)
		if err != nil {
			return nil, err
		}
	}

	return s.decomposer.Decompose(ctx, projectID, tmpl, maxLevel)
}

// DecomposeAndSave 分解后替换项目中未审核的建议节点
func (s *PlanningService) DecomposeAndSave(ctx context.Context, projectID int64, templateID *int64, maxLevel int) ([]model.WbsNode, error) {
	nodes, err := s.Decompose(ctx, projectID, templateID, maxLevel)
	if err != nil || len(nodes) == 0 {
		return nodes, err
	}
	saved, err := s.repo.ReplaceSuggestedNodes(ctx, projectID, nodes)
	if err != nil {
		return nil, fmt.Errorf("save wbs nodes: %w", err)
	}
	return saved, nil
}

func (s *PlanningService) OptimizeSchedule(ctx context.Context, projectID int64, start *time.Time, constraints *model.ScheduleConstraints) (*model.ScheduleResult, error) {
	return s.scheduler.Optimize(ctx, projectID, start, constraints)
}

func (s *PlanningService) AllocateResources(ctx context.Context, taskID int64, candidateIDs []int64, constraints *model.AllocationConstraints) ([]model.ResourceAllocation, error) {
	return s.allocator.Allocate(ctx, taskID, candidateIDs, constraints)
}

func (s *PlanningService) AllocateAndSave(ctx context.Context, taskID int64, candidateIDs []int64, constraints *model.AllocationConstraints) ([]model.ResourceAllocation, error) {
	allocations, err := s.allocator.Allocate(ctx, taskID, candidateIDs, constraints)
	if err != nil || len(allocations) == 0 {
		return allocations, err
	}
	saved, err := s.repo.ReplaceSuggestedAllocations(ctx, taskID, allocations)
	if err != nil {
		return nil, fmt.Errorf("save allocations: %w", err)
	}
	return saved, nil
}

// ReviewTask 审核结果只能是 ACCEPTED 或 REJECTED
func (s *PlanningService) ReviewTask(ctx context.Context, taskID int64, status model.NodeStatus) error {
	if status != model.StatusAccepted && status != model.StatusRejected {
		return fmt.Errorf("%w: review status %q", model.ErrInvalidStatusTransition, status)
	}
	return s.repo.UpdateStatus(ctx, taskID, status)
}

// ProjectPlan 一次完整规划的结果
type ProjectPlan struct {
	Nodes       []model.WbsNode                      `json:"nodes"`
	Allocations map[int64][]model.ResourceAllocation `json:"allocations"`
	Schedule    *model.ScheduleResult                `json:"schedule"`
}

// PlanProject 分解并保存，为每个叶子任务分配人员，再基于分配结果计算进度
func (s *PlanningService) PlanProject(ctx context.Context, projectID int64, templateID *int64, start *time.Time) (*ProjectPlan, error) {
	nodes, err := s.DecomposeAndSave(ctx, projectID, templateID, 0)
	if err != nil {
		return nil, err
	}
	plan := &ProjectPlan{Nodes: nodes, Allocations: map[int64][]model.ResourceAllocation{}}
	if len(nodes) == 0 {
		plan.Schedule = &model.ScheduleResult{}
		return plan, nil
	}

	parents := make(map[int64]bool, len(nodes))
	for _, n := range nodes {
		if n.ParentID != nil {
			parents[*n.ParentID] = true
		}
	}
	for _, n := range nodes {
		if parents[n.ID] {
			continue
		}
		allocations, err := s.AllocateAndSave(ctx, n.ID, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("allocate task %s: %w", n.Code, err)
		}
		if len(allocations) > 0 {
			plan.Allocations[n.ID] = allocations
		}
	}

	plan.Schedule, err = s.OptimizeSchedule(ctx, projectID, start, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project planned",
		zap.Int64("project_id", projectID),
		zap.Int("nodes", len(nodes)),
		zap.Int("allocated_tasks", len(plan.Allocations)),
		zap.Int("total_days", plan.Schedule.TotalDurationDays),
	)
	return plan, nil
}
