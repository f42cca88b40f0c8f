package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"pmplanner/internal/model"
	"pmplanner/pkg/logger"
	"pmplanner/pkg/metrics"
	"pmplanner/pkg/otel"
)

const (
	maxCandidates = 5
	minMatchScore = 40
)

// Store 资源分配需要的数据访问
type Store interface {
	// GetTask 任务不存在时返回 nil, nil
	GetTask(ctx context.Context, taskID int64) (*model.WbsNode, error)
	// ListCandidates personIDs 为空时返回项目全部候选人
	ListCandidates(ctx context.Context, projectID int64, personIDs []int64) ([]model.Person, error)
	LoadWorkHistory(ctx context.Context, personID int64, taskType string) (model.WorkHistory, error)
}

// Candidate 候选人及其历史快照
type Candidate struct {
	Person  model.Person
	History model.WorkHistory
}

type Optimizer struct {
	store    Store
	defaults model.AllocationConstraints
	logger   *zap.Logger
	newCode  func(taskID int64) string
}

func NewOptimizer(store Store, defaults model.AllocationConstraints, log *zap.Logger) *Optimizer {
	return &Optimizer{
		store:    store,
		defaults: mergeConstraints(model.AllocationConstraints{MaxCandidates: maxCandidates, MinMatchScore: minMatchScore}, &defaults),
		logger:   logger.OrNop(log),
		newCode:  allocationCode,
	}
}

func allocationCode(taskID int64) string {
	return fmt.Sprintf("RA-%d-%s", taskID, strings.ToUpper(uuid.NewString()[:8]))
}

// mergeConstraints 候选数不超过 5，最低匹配度不低于 40
func mergeConstraints(base model.AllocationConstraints, c *model.AllocationConstraints) model.AllocationConstraints {
	if c == nil {
		return base
	}
	if c.MaxCandidates > 0 && c.MaxCandidates < maxCandidates {
		base.MaxCandidates = c.MaxCandidates
	}
	if c.MinMatchScore > minMatchScore {
		base.MinMatchScore = c.MinMatchScore
	}
	if c.MaxHourlyRate > 0 {
		base.MaxHourlyRate = c.MaxHourlyRate
	}
	return base
}

// Allocate 为任务挑选候选人；任务不存在或没有候选人时返回空列表
func (o *Optimizer) Allocate(ctx context.Context, taskID int64, candidateIDs []int64, constraints *model.AllocationConstraints) (allocations []model.ResourceAllocation, err error) {
	ctx, span := otel.EngineSpan(ctx, "allocate", attribute.Int64("task.id", taskID))
	began := time.Now()
	defer func() {
		metrics.ObserveStage("allocate", err, time.Since(began))
		otel.End(span, err)
	}()

	log := logger.WithTrace(ctx, o.logger).With(zap.Int64("task_id", taskID))

	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task %d: %w", taskID, err)
	}
	if task == nil {
		log.Info("Task not found, no allocation")
		return []model.ResourceAllocation{}, nil
	}

	persons, err := o.store.ListCandidates(ctx, task.ProjectID, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(persons) == 0 {
		log.Info("Candidate pool is empty")
		return []model.ResourceAllocation{}, nil
	}

	candidates := make([]Candidate, 0, len(persons))
	for _, p := range persons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := o.store.LoadWorkHistory(ctx, p.ID, task.TaskType)
		if err != nil {
			return nil, fmt.Errorf("load work history for person %d: %w", p.ID, err)
		}
		candidates = append(candidates, Candidate{Person: p, History: h})
	}

	allocations = o.Rank(task, candidates, constraints)
	log.Info("Resources allocated",
		zap.Int("candidates", len(candidates)),
		zap.Int("allocations", len(allocations)),
	)
	return allocations, nil
}

// Rank 纯计算：评分、过滤、排序并标注分配类型
func (o *Optimizer) Rank(task *model.WbsNode, candidates []Candidate, constraints *model.AllocationConstraints) []model.ResourceAllocation {
	limits := mergeConstraints(o.defaults, constraints)

	scored := make([]model.ResourceAllocation, 0, len(candidates))
	for _, c := range candidates {
		a := o.score(task, c)
		if a.OverallMatchScore < limits.MinMatchScore {
			o.logger.Debug("Candidate below match threshold",
				zap.Int64("person_id", c.Person.ID),
				zap.Float64("score", a.OverallMatchScore),
			)
			continue
		}
		if limits.MaxHourlyRate > 0 && a.HourlyRate > limits.MaxHourlyRate {
			continue
		}
		scored = append(scored, a)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].OverallMatchScore != scored[j].OverallMatchScore {
			return scored[i].OverallMatchScore > scored[j].OverallMatchScore
		}
		return scored[i].PersonID < scored[j].PersonID
	})
	if len(scored) > limits.MaxCandidates {
		scored = scored[:limits.MaxCandidates]
	}

	for i := range scored {
		a := &scored[i]
		a.Sequence = i + 1
		switch i {
		case 0:
			a.AllocationType, a.Priority = model.AllocationPrimary, model.PriorityHigh
		case 1:
			a.AllocationType, a.Priority = model.AllocationSecondary, model.PriorityMedium
		default:
			a.AllocationType, a.Priority = model.AllocationBackup, model.PriorityLow
		}
		metrics.IncrementAllocation(string(a.AllocationType))
	}
	return scored
}

func (o *Optimizer) score(task *model.WbsNode, c Candidate) model.ResourceAllocation {
	s := scores{
		skill:        SkillScore(c.Person, task.RequiredSkills),
		experience:   ExperienceScore(c.History.CompletedSameType),
		availability: AvailabilityScore(c.History.ActiveTasks),
		performance:  PerformanceScore(c.History.RecentCompleted),
	}
	s.overall = OverallScore(s.skill, s.experience, s.availability, s.performance)
	rate := HourlyRate(c.Person)

	return model.ResourceAllocation{
		AllocationCode:       o.newCode(task.ID),
		ProjectID:            task.ProjectID,
		TaskID:               task.ID,
		TaskName:             task.Name,
		PersonID:             c.Person.ID,
		RoleName:             c.Person.Role,
		ConfidenceScore:      s.overall,
		AllocatedHours:       task.EffortHours,
		SkillMatchScore:      s.skill,
		ExperienceMatchScore: s.experience,
		AvailabilityScore:    s.availability,
		PerformanceScore:     s.performance,
		OverallMatchScore:    s.overall,
		HourlyRate:           rate,
		EstimatedCost:        EstimatedCost(task.EffortHours, rate),
		CostEfficiencyScore:  CostEfficiency(s.overall, rate),
		RecommendationReason: recommendationReason(s),
		Strengths:            strengthsOf(s),
		Weaknesses:           weaknessesOf(s),
		Status:               model.StatusSuggested,
	}
}
