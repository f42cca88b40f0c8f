package model

import (
	"fmt"
	"strconv"
	"strings"
)

type Dependency struct {
	TaskID int64          `json:"taskId" yaml:"taskId"`
	Type   DependencyType `json:"type" yaml:"type"`
}

type SkillRequirement struct {
	Skill string `json:"skill" yaml:"skill"`
	Level string `json:"level" yaml:"level"`
}

type Deliverable struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// WbsNode 工作分解结构中的一个阶段或任务
type WbsNode struct {
	ID              int64              `json:"id" yaml:"id"`
	ProjectID       int64              `json:"projectId" yaml:"projectId"`
	Code            string             `json:"code" yaml:"code"`
	Level           int                `json:"level" yaml:"level"`
	ParentID        *int64             `json:"parentId" yaml:"parentId"`
	Sequence        int                `json:"sequence" yaml:"sequence"`
	Name            string             `json:"name" yaml:"name"`
	Description     string             `json:"description" yaml:"description"`
	TaskType        string             `json:"taskType" yaml:"taskType"`
	DurationDays    int                `json:"durationDays" yaml:"durationDays"`
	EffortHours     float64            `json:"effortHours" yaml:"effortHours"`
	Complexity      Complexity         `json:"complexity" yaml:"complexity"`
	RiskLevel       RiskLevel          `json:"riskLevel" yaml:"riskLevel"`
	Dependencies    []Dependency       `json:"dependencies" yaml:"dependencies"`
	RequiredSkills  []SkillRequirement `json:"requiredSkills" yaml:"requiredSkills"`
	Deliverables    []Deliverable      `json:"deliverables" yaml:"deliverables"`
	IsCriticalPath  bool               `json:"isCriticalPath" yaml:"isCriticalPath"`
	ConfidenceScore float64            `json:"confidenceScore" yaml:"confidenceScore"`
	Status          NodeStatus         `json:"status" yaml:"status"`
}

// Transition 状态只允许 SUGGESTED -> ACCEPTED / REJECTED
func (n *WbsNode) Transition(to NodeStatus) error {
	if n.Status == to {
		return nil
	}
	if n.Status != StatusSuggested || (to != StatusAccepted && to != StatusRejected) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, n.Status, to)
	}
	n.Status = to
	return nil
}

// PredecessorIDs 返回 FS 依赖的前置任务 id
func (n *WbsNode) PredecessorIDs() []int64 {
	ids := make([]int64, 0, len(n.Dependencies))
	for _, d := range n.Dependencies {
		ids = append(ids, d.TaskID)
	}
	return ids
}

// CompareCodes 按段数值比较层级编码，"1.10" 排在 "1.9" 之后
func CompareCodes(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aErr := strconv.Atoi(as[i])
		bi, bErr := strconv.Atoi(bs[i])
		if aErr == nil && bErr == nil {
			if ai != bi {
				if ai < bi {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

// LessByLevelCode 排序规则：层级升序，其次编码升序，最后 id
func LessByLevelCode(a, b *WbsNode) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if c := CompareCodes(a.Code, b.Code); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}
