package schedule

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"pmplanner/internal/model"
	"pmplanner/pkg/logger"
	"pmplanner/pkg/metrics"
	"pmplanner/pkg/otel"
)

const (
	ConflictResourceOverload = "RESOURCE_OVERLOAD"
	ConflictTooManyCritical  = "TOO_MANY_CRITICAL_TASKS"
	ConflictTaskTooLong      = "TASK_TOO_LONG"

	defaultMaxPersonHours = 480 // 160 小时/月 * 3 个月
	defaultMaxTaskDays    = 60
	defaultCriticalRatio  = 0.5
)

// Store 调度需要的数据快照
type Store interface {
	ListActiveNodes(ctx context.Context, projectID int64) ([]model.WbsNode, error)
	ListActiveAllocations(ctx context.Context, projectID int64) ([]model.ResourceAllocation, error)
}

// Optimizer 基于 CPM 的进度优化器，无状态，可并发调用
type Optimizer struct {
	store    Store
	defaults model.ScheduleConstraints
	logger   *zap.Logger
	now      func() time.Time
}

// NewOptimizer defaults 中的零值字段使用内置阈值
func NewOptimizer(store Store, defaults model.ScheduleConstraints, log *zap.Logger) *Optimizer {
	return &Optimizer{
		store:    store,
		defaults: mergeConstraints(defaultConstraints(), &defaults),
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
}

func defaultConstraints() model.ScheduleConstraints {
	return model.ScheduleConstraints{
		MaxPersonHours: defaultMaxPersonHours,
		MaxTaskDays:    defaultMaxTaskDays,
		CriticalRatio:  defaultCriticalRatio,
	}
}

func mergeConstraints(base model.ScheduleConstraints, c *model.ScheduleConstraints) model.ScheduleConstraints {
	if c == nil {
		return base
	}
	if c.MaxPersonHours > 0 {
		base.MaxPersonHours = c.MaxPersonHours
	}
	if c.MaxTaskDays > 0 {
		base.MaxTaskDays = c.MaxTaskDays
	}
	if c.CriticalRatio > 0 {
		base.CriticalRatio = c.CriticalRatio
	}
	return base
}

// Optimize 读取项目快照并计算进度；没有任务时返回空结果而不是错误
func (o *Optimizer) Optimize(ctx context.Context, projectID int64, start *time.Time, constraints *model.ScheduleConstraints) (result *model.ScheduleResult, err error) {
	ctx, span := otel.EngineSpan(ctx, "schedule", attribute.Int64("project.id", projectID))
	began := time.Now()
	defer func() {
		metrics.ObserveStage("schedule", err, time.Since(began))
		otel.End(span, err)
	}()

	log := logger.WithTrace(ctx, o.logger).With(zap.Int64("project_id", projectID))

	nodes, err := o.store.ListActiveNodes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load wbs nodes: %w", err)
	}
	if len(nodes) == 0 {
		log.Info("No active tasks, returning empty schedule")
		return &model.ScheduleResult{}, nil
	}

	allocations, err := o.store.ListActiveAllocations(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}

	result, err = o.Schedule(projectID, nodes, allocations, start, constraints)
	if err != nil {
		log.Error("Failed to compute schedule", zap.Error(err))
		return nil, err
	}

	log.Info("Schedule optimized",
		zap.Int("tasks", result.OptimizationSummary.TotalTasks),
		zap.Int("critical", result.OptimizationSummary.CriticalTasks),
		zap.Int("total_days", result.TotalDurationDays),
		zap.Int("conflicts", result.OptimizationSummary.ConflictsFound),
	)
	return result, nil
}

// Schedule 对给定快照做纯计算
func (o *Optimizer) Schedule(projectID int64, nodes []model.WbsNode, allocations []model.ResourceAllocation, start *time.Time, constraints *model.ScheduleConstraints) (*model.ScheduleResult, error) {
	if len(nodes) == 0 {
		return &model.ScheduleResult{}, nil
	}
	limits := mergeConstraints(o.defaults, constraints)

	cpm, err := ComputeCPM(nodes)
	if err != nil {
		return nil, err
	}
	if cpm.DroppedDependencies > 0 {
		o.logger.Warn("Dropped dependencies outside the batch",
			zap.Int64("project_id", projectID),
			zap.Int("count", cpm.DroppedDependencies),
		)
	}

	startDate := o.startDate(start)
	result := &model.ScheduleResult{
		ProjectID:         projectID,
		StartDate:         startDate.Format(model.DateLayout),
		TotalDurationDays: cpm.TotalDuration,
		EndDate:           startDate.AddDate(0, 0, cpm.TotalDuration).Format(model.DateLayout),
		GanttData:         make([]model.GanttEntry, 0, len(cpm.Sorted)),
		CriticalPath:      []model.CriticalTask{},
	}

	for _, n := range cpm.Sorted {
		t := cpm.Timings[n.ID]
		critical := t.Slack == 0
		result.GanttData = append(result.GanttData, model.GanttEntry{
			ID:             n.ID,
			Name:           n.Name,
			Code:           n.Code,
			Level:          n.Level,
			ParentID:       n.ParentID,
			StartDate:      startDate.AddDate(0, 0, t.ES).Format(model.DateLayout),
			EndDate:        startDate.AddDate(0, 0, t.EF).Format(model.DateLayout),
			DurationDays:   duration(n),
			EarliestStart:  t.ES,
			EarliestFinish: t.EF,
			LatestStart:    t.LS,
			LatestFinish:   t.LF,
			Slack:          t.Slack,
			IsCritical:     critical,
			Progress:       0,
			Assignees:      []string{},
		})
		if critical {
			result.CriticalPath = append(result.CriticalPath, model.CriticalTask{
				ID:           n.ID,
				Code:         n.Code,
				Name:         n.Name,
				DurationDays: duration(n),
				StartDay:     t.ES,
				EndDay:       t.EF,
			})
		}
	}
	result.CriticalPathLength = len(result.CriticalPath)

	result.ResourceLoad = buildResourceLoad(cpm.Sorted, allocations)
	result.Conflicts = detectConflicts(cpm.Sorted, result, limits)
	result.Recommendations = buildRecommendations(cpm.Sorted, result)

	result.OptimizationSummary = model.OptimizationSummary{
		TotalTasks:          len(nodes),
		CriticalTasks:       result.CriticalPathLength,
		ConflictsFound:      len(result.Conflicts),
		ResourceUtilization: utilization(result.ResourceLoad, limits.MaxPersonHours),
	}
	return result, nil
}

func (o *Optimizer) startDate(start *time.Time) time.Time {
	s := o.now()
	if start != nil && !start.IsZero() {
		s = *start
	}
	return time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
}

// buildResourceLoad 按人员汇总分配工时
func buildResourceLoad(nodes []*model.WbsNode, allocations []model.ResourceAllocation) map[int64]*model.PersonLoad {
	names := make(map[int64]string, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Name
	}

	load := make(map[int64]*model.PersonLoad)
	for _, a := range allocations {
		pl, ok := load[a.PersonID]
		if !ok {
			pl = &model.PersonLoad{Tasks: []model.LoadTask{}}
			load[a.PersonID] = pl
		}
		pl.TotalHours += a.AllocatedHours
		pl.TaskCount++
		name := a.TaskName
		if name == "" {
			name = names[a.TaskID]
		}
		pl.Tasks = append(pl.Tasks, model.LoadTask{
			TaskID:         a.TaskID,
			TaskName:       name,
			AllocatedHours: a.AllocatedHours,
			MatchScore:     a.OverallMatchScore,
		})
	}
	return load
}

func sortedPersonIDs(load map[int64]*model.PersonLoad) []int64 {
	ids := make([]int64, 0, len(load))
	for id := range load {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// detectConflicts 三类检查相互独立
func detectConflicts(nodes []*model.WbsNode, result *model.ScheduleResult, limits model.ScheduleConstraints) []model.Conflict {
	conflicts := []model.Conflict{}

	for _, pid := range sortedPersonIDs(result.ResourceLoad) {
		pl := result.ResourceLoad[pid]
		if pl.TotalHours <= limits.MaxPersonHours {
			continue
		}
		personID := pid
		conflicts = append(conflicts, model.Conflict{
			Type:           ConflictResourceOverload,
			Severity:       model.PriorityHigh,
			Description:    fmt.Sprintf("人员 %d 分配工时 %.1f 小时，超过上限 %.0f 小时", pid, pl.TotalHours, limits.MaxPersonHours),
			Recommendation: "将部分任务调整给负载较低的人员，或延长相关任务周期",
			PersonID:       &personID,
			Value:          pl.TotalHours,
		})
	}

	total := len(nodes)
	if total > 0 && float64(result.CriticalPathLength) > limits.CriticalRatio*float64(total) {
		conflicts = append(conflicts, model.Conflict{
			Type:           ConflictTooManyCritical,
			Severity:       model.PriorityMedium,
			Description:    fmt.Sprintf("关键任务 %d 个，占全部 %d 个任务的 %.0f%%", result.CriticalPathLength, total, float64(result.CriticalPathLength)/float64(total)*100),
			Recommendation: "拆分关键任务或增加并行度，降低进度风险",
			Value:          float64(result.CriticalPathLength),
		})
	}

	for _, n := range nodes {
		if duration(n) <= limits.MaxTaskDays {
			continue
		}
		taskID := n.ID
		conflicts = append(conflicts, model.Conflict{
			Type:           ConflictTaskTooLong,
			Severity:       model.PriorityLow,
			Description:    fmt.Sprintf("任务 %s(%s) 工期 %d 天，超过 %d 天", n.Code, n.Name, n.DurationDays, limits.MaxTaskDays),
			Recommendation: "将任务继续分解为更小的工作包",
			TaskID:         &taskID,
			Value:          float64(n.DurationDays),
		})
	}

	for _, c := range conflicts {
		metrics.IncrementConflict(c.Type)
	}
	return conflicts
}

func buildRecommendations(nodes []*model.WbsNode, result *model.ScheduleResult) []model.Recommendation {
	recs := []model.Recommendation{}

	if result.CriticalPathLength > 0 {
		recs = append(recs, model.Recommendation{
			Category:    "CRITICAL_PATH",
			Priority:    model.PriorityHigh,
			Title:       "重点关注关键路径任务",
			Description: fmt.Sprintf("关键路径包含 %d 个任务，任何延误都会推迟项目交付", result.CriticalPathLength),
			Actions: []string{
				"为关键任务分配经验丰富的人员",
				"每日跟踪关键任务进度",
				"提前准备关键任务所需资源",
			},
		})
	}

	if len(result.ResourceLoad) > 0 {
		var sum, peak float64
		for _, pl := range result.ResourceLoad {
			sum += pl.TotalHours
			peak = math.Max(peak, pl.TotalHours)
		}
		avg := sum / float64(len(result.ResourceLoad))
		if avg > 0 && peak > 2*avg {
			recs = append(recs, model.Recommendation{
				Category:    "RESOURCE_BALANCE",
				Priority:    model.PriorityMedium,
				Title:       "平衡人员负载",
				Description: fmt.Sprintf("最高负载 %.1f 小时，超过平均负载 %.1f 小时的两倍", peak, avg),
				Actions: []string{
					"将高负载人员的非关键任务转交他人",
					"评估是否需要补充人员",
				},
			})
		}
	}

	risky := 0
	for _, n := range nodes {
		if n.RiskLevel.Elevated() {
			risky++
		}
	}
	if risky > 0 {
		recs = append(recs, model.Recommendation{
			Category:    "RISK_MANAGEMENT",
			Priority:    model.PriorityHigh,
			Title:       "加强风险管理",
			Description: fmt.Sprintf("共有 %d 个高风险任务", risky),
			Actions: []string{
				"为高风险任务制定应对预案",
				"定期召开风险评审会",
				"预留缓冲时间",
			},
		})
	}
	return recs
}

// utilization 总分配工时 / (人数 * 单人容量)，上限 100
func utilization(load map[int64]*model.PersonLoad, capacity float64) float64 {
	if len(load) == 0 || capacity <= 0 {
		return 0
	}
	var hours float64
	for _, pl := range load {
		hours += pl.TotalHours
	}
	u := hours / (float64(len(load)) * capacity) * 100
	if u > 100 {
		u = 100
	}
	return math.Round(u*100) / 100
}
