package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"pmplanner/internal/model"
)

const performanceWindow = 20

type taskEntry struct {
	node   model.WbsNode
	state  model.TaskState
	active bool
}

type allocationEntry struct {
	alloc  model.ResourceAllocation
	active bool
}

// Store 内存实现，行为与 PostgreSQL 仓储一致，用于 CLI 和测试
type Store struct {
	mu          sync.RWMutex
	projects    map[int64]model.Project
	templates   map[int64]model.WbsTemplate
	persons     map[int64]model.Person
	members     map[int64][]int64
	tasks       []*taskEntry
	assignments []Assignment
	allocations []*allocationEntry
	nextTaskID  int64
	nextAllocID int64
}

func New(s *Snapshot) *Store {
	st := &Store{
		projects:  make(map[int64]model.Project),
		templates: make(map[int64]model.WbsTemplate),
		persons:   make(map[int64]model.Person),
		members:   make(map[int64][]int64),
	}
	if s == nil {
		return st
	}
	for _, p := range s.Projects {
		st.projects[p.ID] = p
	}
	for _, t := range s.Templates {
		st.templates[t.ID] = t
	}
	for _, p := range s.Persons {
		st.persons[p.ID] = p
	}
	for _, m := range s.Members {
		st.members[m.ProjectID] = append(st.members[m.ProjectID], m.PersonID)
	}
	for _, t := range s.Tasks {
		node := t.WbsNode
		if node.Status == "" {
			node.Status = model.StatusSuggested
		}
		st.tasks = append(st.tasks, &taskEntry{node: node, state: t.ExecutionState, active: true})
		if node.ID > st.nextTaskID {
			st.nextTaskID = node.ID
		}
	}
	st.assignments = append(st.assignments, s.Assignments...)
	for _, a := range s.Allocations {
		st.allocations = append(st.allocations, &allocationEntry{alloc: a, active: true})
		if a.ID > st.nextAllocID {
			st.nextAllocID = a.ID
		}
	}
	return st
}

func (s *Store) GetProject(_ context.Context, projectID int64) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// GetTemplateJSON 与数据库仓储返回同样的 JSON 形式
func (s *Store) GetTemplateJSON(_ context.Context, templateID int64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateID]
	if !ok {
		return nil, nil
	}
	return json.Marshal(t)
}

func (s *Store) FindSimilarCompleted(_ context.Context, taskType string, limit int) ([]model.WbsNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.WbsNode{}
	for i := len(s.tasks) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.tasks[i]
		if e.node.TaskType == taskType && e.state == model.TaskCompleted {
			out = append(out, e.node)
		}
	}
	return out, nil
}

func (s *Store) ListActiveNodes(_ context.Context, projectID int64) ([]model.WbsNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.WbsNode{}
	for _, e := range s.tasks {
		if e.active && e.node.ProjectID == projectID && e.node.Status != model.StatusRejected {
			out = append(out, e.node)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return model.LessByLevelCode(&out[i], &out[j]) })
	return out, nil
}

func (s *Store) ListActiveAllocations(_ context.Context, projectID int64) ([]model.ResourceAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.ResourceAllocation{}
	for _, e := range s.allocations {
		if !e.active || e.alloc.ProjectID != projectID || e.alloc.Status == model.StatusRejected {
			continue
		}
		// 任务已被新分解批次替换时不再计入负载
		if task := s.findTask(e.alloc.TaskID); task != nil {
			a := e.alloc
			a.TaskName = task.node.Name
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) GetTask(_ context.Context, taskID int64) (*model.WbsNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.findTask(taskID); e != nil {
		n := e.node
		return &n, nil
	}
	return nil, nil
}

func (s *Store) findTask(taskID int64) *taskEntry {
	for _, e := range s.tasks {
		if e.active && e.node.ID == taskID {
			return e
		}
	}
	return nil
}

func (s *Store) ListCandidates(_ context.Context, projectID int64, personIDs []int64) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := personIDs
	if len(ids) == 0 {
		ids = s.members[projectID]
	}
	out := []model.Person{}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if p, ok := s.persons[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LoadWorkHistory(_ context.Context, personID int64, taskType string) (model.WorkHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make(map[int64]string, len(s.tasks))
	for _, e := range s.tasks {
		types[e.node.ID] = e.node.TaskType
	}

	var h model.WorkHistory
	var completed []model.CompletedTask
	for _, a := range s.assignments {
		if a.PersonID != personID {
			continue
		}
		switch {
		case a.State == model.TaskCompleted:
			if types[a.TaskID] == taskType {
				h.CompletedSameType++
			}
			completed = append(completed, model.CompletedTask{TaskID: a.TaskID, PlannedEnd: a.PlannedEnd, ActualEnd: a.ActualEnd})
		case a.State.Active():
			h.ActiveTasks++
		}
	}

	// 实际完成时间倒序，缺失的排在最后
	sort.SliceStable(completed, func(i, j int) bool {
		ai, aj := completed[i].ActualEnd, completed[j].ActualEnd
		if ai == nil || aj == nil {
			return ai != nil && aj == nil
		}
		return ai.After(*aj)
	})
	if len(completed) > performanceWindow {
		completed = completed[:performanceWindow]
	}
	h.RecentCompleted = completed
	return h, nil
}

// ReplaceSuggestedNodes 停用旧的 SUGGESTED 任务，新批次分配存储 id
func (s *Store) ReplaceSuggestedNodes(_ context.Context, projectID int64, nodes []model.WbsNode) ([]model.WbsNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.tasks {
		if e.active && e.node.ProjectID == projectID && e.node.Status == model.StatusSuggested {
			e.active = false
		}
	}

	ordered := make([]model.WbsNode, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool { return model.LessByLevelCode(&ordered[i], &ordered[j]) })

	idMap := make(map[int64]int64, len(ordered))
	for i := range ordered {
		s.nextTaskID++
		idMap[ordered[i].ID] = s.nextTaskID
	}
	for i := range ordered {
		n := &ordered[i]
		n.ID = idMap[n.ID]
		n.ProjectID = projectID
		n.Status = model.StatusSuggested
		if n.ParentID != nil {
			mapped, ok := idMap[*n.ParentID]
			if !ok {
				return nil, fmt.Errorf("parent %d of %s not in batch", *n.ParentID, n.Code)
			}
			n.ParentID = &mapped
		}
		deps := make([]model.Dependency, 0, len(n.Dependencies))
		for _, d := range n.Dependencies {
			if mapped, ok := idMap[d.TaskID]; ok {
				deps = append(deps, model.Dependency{TaskID: mapped, Type: d.Type})
			}
		}
		n.Dependencies = deps
	}
	for _, n := range ordered {
		s.tasks = append(s.tasks, &taskEntry{node: n, state: model.TaskPending, active: true})
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return model.CompareCodes(ordered[i].Code, ordered[j].Code) < 0
	})
	return ordered, nil
}

func (s *Store) ReplaceSuggestedAllocations(_ context.Context, taskID int64, allocations []model.ResourceAllocation) ([]model.ResourceAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.allocations {
		if e.active && e.alloc.TaskID == taskID && e.alloc.Status == model.StatusSuggested {
			e.active = false
		}
	}
	out := make([]model.ResourceAllocation, len(allocations))
	copy(out, allocations)
	for i := range out {
		s.nextAllocID++
		out[i].ID = s.nextAllocID
		s.allocations = append(s.allocations, &allocationEntry{alloc: out[i], active: true})
	}
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, taskID int64, to model.NodeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.findTask(taskID)
	if e == nil {
		return fmt.Errorf("%w: %d", model.ErrTaskNotFound, taskID)
	}
	return e.node.Transition(to)
}
