package wbs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"pmplanner/internal/model"
	"pmplanner/pkg/logger"
	"pmplanner/pkg/metrics"
	"pmplanner/pkg/otel"
)

const (
	templateConfidence   = 90
	defaultConfidence    = 75
	suggestionConfidence = 85
	ruleConfidence       = 70
	referenceLimit       = 5
)

// Decomposer 把项目分解为 WBS 节点树
type Decomposer struct {
	store     Store
	suggester Suggester
	logger    *zap.Logger
}

// NewDecomposer suggester 可以为 nil，此时只使用规则分解
func NewDecomposer(store Store, suggester Suggester, log *zap.Logger) *Decomposer {
	return &Decomposer{store: store, suggester: suggester, logger: logger.OrNop(log)}
}

// batch 一次分解产生的节点，id 在内存中从 1 递增
type batch struct {
	projectID int64
	nodes     []*model.WbsNode
	children  map[int64][]*model.WbsNode
	nextID    int64
}

func (b *batch) add(n *model.WbsNode) *model.WbsNode {
	b.nextID++
	n.ID = b.nextID
	n.ProjectID = b.projectID
	n.Status = model.StatusSuggested
	b.nodes = append(b.nodes, n)
	if n.ParentID != nil {
		b.children[*n.ParentID] = append(b.children[*n.ParentID], n)
	}
	return n
}

// Decompose 项目不存在时返回空结果；tmpl 为 nil 时使用默认阶段
func (d *Decomposer) Decompose(ctx context.Context, projectID int64, tmpl *model.WbsTemplate, maxLevel int) (nodes []model.WbsNode, err error) {
	if maxLevel < 1 {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidMaxLevel, maxLevel)
	}
	if err := ValidateTemplate(tmpl); err != nil {
		return nil, err
	}

	ctx, span := otel.EngineSpan(ctx, "decompose",
		attribute.Int64("project.id", projectID),
		attribute.Int("wbs.max_level", maxLevel),
	)
	start := time.Now()
	defer func() {
		metrics.ObserveStage("decompose", err, time.Since(start))
		otel.End(span, err)
	}()

	log := logger.WithTrace(ctx, d.logger).With(zap.Int64("project_id", projectID))

	project, err := d.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %d: %w", projectID, err)
	}
	if project == nil {
		log.Info("Project not found, nothing to decompose")
		return []model.WbsNode{}, nil
	}

	b := &batch{projectID: projectID, children: make(map[int64][]*model.WbsNode)}
	roots := d.buildPhases(b, tmpl)
	log.Debug("Level-1 phases created", zap.Int("count", len(roots)), zap.Bool("from_template", hasPhases(tmpl)))

	// 显式工作队列代替递归，每个节点最多一次建议服务调用
	queue := make([]*model.WbsNode, 0, len(roots))
	for _, r := range roots {
		if r.Level < maxLevel {
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := queue[0]
		queue = queue[1:]

		for _, child := range d.expand(ctx, log, b, node) {
			if child.Complexity.Decomposable() && child.Level < maxLevel {
				queue = append(queue, child)
			}
		}
	}

	inferDependencies(b)
	tagCriticalChain(b, roots)

	sort.SliceStable(b.nodes, func(i, j int) bool {
		return model.CompareCodes(b.nodes[i].Code, b.nodes[j].Code) < 0
	})
	nodes = make([]model.WbsNode, 0, len(b.nodes))
	for _, n := range b.nodes {
		if n.RequiredSkills == nil {
			n.RequiredSkills = []model.SkillRequirement{}
		}
		if n.Deliverables == nil {
			n.Deliverables = []model.Deliverable{}
		}
		nodes = append(nodes, *n)
	}

	log.Info("WBS decomposition finished", zap.Int("nodes", len(nodes)))
	return nodes, nil
}

func hasPhases(tmpl *model.WbsTemplate) bool {
	return tmpl != nil && len(tmpl.Phases) > 0
}

func (d *Decomposer) buildPhases(b *batch, tmpl *model.WbsTemplate) []*model.WbsNode {
	var roots []*model.WbsNode
	if hasPhases(tmpl) {
		for i, p := range tmpl.Phases {
			complexity := p.Complexity
			if complexity == "" {
				complexity = model.ComplexityMedium
			}
			risk := p.RiskLevel
			if risk == "" {
				risk = model.RiskMedium
			}
			roots = append(roots, b.add(&model.WbsNode{
				Code:            strconv.Itoa(i + 1),
				Level:           1,
				Sequence:        i + 1,
				Name:            p.Name,
				Description:     p.Description,
				TaskType:        p.TaskType,
				DurationDays:    p.DurationDays,
				EffortHours:     float64(p.DurationDays * hoursPerDay),
				Complexity:      complexity,
				RiskLevel:       risk,
				Deliverables:    p.Deliverables,
				ConfidenceScore: templateConfidence,
			}))
		}
		metrics.AddWbsNodes("template", len(roots))
		return roots
	}

	for i, p := range defaultPhases {
		roots = append(roots, b.add(&model.WbsNode{
			Code:            strconv.Itoa(i + 1),
			Level:           1,
			Sequence:        i + 1,
			Name:            p.name,
			Description:     p.desc,
			TaskType:        p.taskType,
			DurationDays:    p.days,
			EffortHours:     float64(p.days * hoursPerDay),
			Complexity:      p.complexity,
			RiskLevel:       p.risk,
			ConfidenceScore: defaultConfidence,
		}))
	}
	metrics.AddWbsNodes("default", len(roots))
	return roots
}

// expand 为一个节点生成子任务：优先建议服务，失败或为空时走规则
func (d *Decomposer) expand(ctx context.Context, log *zap.Logger, b *batch, parent *model.WbsNode) []*model.WbsNode {
	subtasks, source := d.suggest(ctx, log, parent)
	confidence := float64(suggestionConfidence)
	if source == "rule" {
		confidence = ruleConfidence
	}

	parentID := parent.ID
	children := make([]*model.WbsNode, 0, len(subtasks))
	for i, s := range subtasks {
		days := s.DurationDays
		if days < 0 {
			days = 0
		}
		hours := s.EffortHours
		if hours <= 0 {
			hours = float64(days * hoursPerDay)
		}
		taskType := s.TaskType
		if taskType == "" {
			taskType = parent.TaskType
		}
		children = append(children, b.add(&model.WbsNode{
			Code:            fmt.Sprintf("%s.%d", parent.Code, i+1),
			Level:           parent.Level + 1,
			ParentID:        &parentID,
			Sequence:        i + 1,
			Name:            s.Name,
			Description:     s.Description,
			TaskType:        taskType,
			DurationDays:    days,
			EffortHours:     hours,
			Complexity:      model.ParseComplexity(string(s.Complexity)),
			RiskLevel:       model.ParseRiskLevel(string(s.RiskLevel)),
			RequiredSkills:  s.RequiredSkills,
			Deliverables:    s.Deliverables,
			ConfidenceScore: confidence,
		}))
	}
	metrics.AddWbsNodes(source, len(children))
	return children
}

func (d *Decomposer) suggest(ctx context.Context, log *zap.Logger, parent *model.WbsNode) ([]SubtaskSuggestion, string) {
	if d.suggester == nil {
		return ruleSubtasks(parent), "rule"
	}

	refs, err := d.store.FindSimilarCompleted(ctx, parent.TaskType, referenceLimit)
	if err != nil {
		log.Warn("Failed to load reference tasks", zap.String("task_type", parent.TaskType), zap.Error(err))
		refs = nil
	}
	req := SubtaskRequest{
		Name:         parent.Name,
		Description:  parent.Description,
		TaskType:     parent.TaskType,
		DurationDays: parent.DurationDays,
		References:   make([]ReferenceTask, 0, len(refs)),
	}
	for i, r := range refs {
		if i == referenceLimit {
			break
		}
		req.References = append(req.References, ReferenceTask{
			Name:         r.Name,
			TaskType:     r.TaskType,
			DurationDays: r.DurationDays,
			EffortHours:  r.EffortHours,
		})
	}

	subtasks, err := d.suggester.SuggestSubtasks(ctx, req)
	if err != nil {
		log.Warn("Plan suggestion unavailable, using rule fallback",
			zap.String("node", parent.Code),
			zap.Error(err),
		)
		return ruleSubtasks(parent), "rule"
	}
	if len(subtasks) == 0 {
		log.Debug("Plan suggestion returned nothing, using rule fallback", zap.String("node", parent.Code))
		return ruleSubtasks(parent), "rule"
	}
	return subtasks, "suggestion"
}

// inferDependencies 同一父节点下的兄弟按顺序串成 FS 链
func inferDependencies(b *batch) {
	groups := make(map[string][]*model.WbsNode)
	for _, n := range b.nodes {
		var parent int64
		if n.ParentID != nil {
			parent = *n.ParentID
		}
		key := fmt.Sprintf("%d/%d", parent, n.Level)
		groups[key] = append(groups[key], n)
	}
	for _, siblings := range groups {
		sort.SliceStable(siblings, func(i, j int) bool { return siblings[i].Sequence < siblings[j].Sequence })
		for i, n := range siblings {
			if i == 0 {
				n.Dependencies = []model.Dependency{}
				continue
			}
			n.Dependencies = []model.Dependency{{TaskID: siblings[i-1].ID, Type: model.DependencyFinishToStart}}
		}
	}
}

// tagCriticalChain 叶子工期总和最大的一级阶段及其全部后代标记为关键
func tagCriticalChain(b *batch, roots []*model.WbsNode) {
	var (
		best    *model.WbsNode
		bestSum = -1
	)
	for _, r := range roots {
		if sum := leafDuration(b, r); sum > bestSum {
			best, bestSum = r, sum
		}
	}
	if best == nil {
		return
	}

	stack := []*model.WbsNode{best}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.IsCriticalPath = true
		stack = append(stack, b.children[n.ID]...)
	}
}

func leafDuration(b *batch, n *model.WbsNode) int {
	kids := b.children[n.ID]
	if len(kids) == 0 {
		return n.DurationDays
	}
	total := 0
	for _, k := range kids {
		total += leafDuration(b, k)
	}
	return total
}
