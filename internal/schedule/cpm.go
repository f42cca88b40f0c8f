package schedule

import (
	"fmt"
	"sort"

	"pmplanner/internal/model"
)

// TaskTiming 单个任务的 CPM 时间参数，单位为天，相对项目开始日
type TaskTiming struct {
	ES    int
	EF    int
	LS    int
	LF    int
	Slack int
}

// CpmResult 每次调用重新计算，不持久化
type CpmResult struct {
	// Sorted 按 (level, code) 排序的节点，用于输出
	Sorted []*model.WbsNode
	// TopoOrder 依赖拓扑序，同层按 (level, code) 打破平局
	TopoOrder     []*model.WbsNode
	Timings       map[int64]*TaskTiming
	TotalDuration int
	// DroppedDependencies 指向批次外任务的依赖数量
	DroppedDependencies int
}

// ComputeCPM 拓扑排序后执行正向和反向推算；存在环时返回 ErrDependencyCycle
func ComputeCPM(nodes []model.WbsNode) (*CpmResult, error) {
	index := make(map[int64]*model.WbsNode, len(nodes))
	sorted := make([]*model.WbsNode, 0, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		index[n.ID] = n
		sorted = append(sorted, n)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return model.LessByLevelCode(sorted[i], sorted[j]) })

	preds := make(map[int64][]int64, len(nodes))
	succs := make(map[int64][]int64, len(nodes))
	dropped := 0
	for _, n := range sorted {
		seen := make(map[int64]bool, len(n.Dependencies))
		for _, dep := range n.Dependencies {
			if _, ok := index[dep.TaskID]; !ok {
				dropped++
				continue
			}
			if seen[dep.TaskID] {
				continue
			}
			seen[dep.TaskID] = true
			preds[n.ID] = append(preds[n.ID], dep.TaskID)
			succs[dep.TaskID] = append(succs[dep.TaskID], n.ID)
		}
	}

	order, err := topoSort(sorted, index, preds, succs)
	if err != nil {
		return nil, err
	}

	result := &CpmResult{
		Sorted:              sorted,
		TopoOrder:           order,
		Timings:             make(map[int64]*TaskTiming, len(order)),
		DroppedDependencies: dropped,
	}

	// 正向推算：ES = max(前置 EF)
	for _, n := range order {
		es := 0
		for _, p := range preds[n.ID] {
			if ef := result.Timings[p].EF; ef > es {
				es = ef
			}
		}
		result.Timings[n.ID] = &TaskTiming{ES: es, EF: es + duration(n)}
		if result.Timings[n.ID].EF > result.TotalDuration {
			result.TotalDuration = result.Timings[n.ID].EF
		}
	}

	// 反向推算：LF = min(后继 LS)，没有后继时为总工期
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		t := result.Timings[n.ID]
		lf := result.TotalDuration
		for _, s := range succs[n.ID] {
			if ls := result.Timings[s].LS; ls < lf {
				lf = ls
			}
		}
		t.LF = lf
		t.LS = lf - duration(n)
		t.Slack = t.LS - t.ES
	}

	return result, nil
}

func duration(n *model.WbsNode) int {
	if n.DurationDays < 0 {
		return 0
	}
	return n.DurationDays
}

// topoSort Kahn 算法，就绪集合按 (level, code) 取最小
func topoSort(sorted []*model.WbsNode, index map[int64]*model.WbsNode, preds, succs map[int64][]int64) ([]*model.WbsNode, error) {
	inDegree := make(map[int64]int, len(sorted))
	var ready []*model.WbsNode
	for _, n := range sorted {
		inDegree[n.ID] = len(preds[n.ID])
		if inDegree[n.ID] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]*model.WbsNode, 0, len(sorted))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		added := false
		for _, s := range succs[n.ID] {
			inDegree[s]--
			if inDegree[s] == 0 {
				ready = append(ready, index[s])
				added = true
			}
		}
		if added {
			sort.SliceStable(ready, func(i, j int) bool { return model.LessByLevelCode(ready[i], ready[j]) })
		}
	}

	if len(order) != len(sorted) {
		var stuck []string
		for _, n := range sorted {
			if inDegree[n.ID] > 0 {
				stuck = append(stuck, n.Code)
			}
		}
		return nil, fmt.Errorf("%w: %d of %d tasks sorted, unresolved %v", model.ErrDependencyCycle, len(order), len(sorted), stuck)
	}
	return order, nil
}
