package wbs

import (
	"context"

	"pmplanner/internal/model"
)

// Store 分解器需要的数据访问
type Store interface {
	// GetProject 项目不存在时返回 nil, nil
	GetProject(ctx context.Context, projectID int64) (*model.Project, error)
	FindSimilarCompleted(ctx context.Context, taskType string, limit int) ([]model.WbsNode, error)
}

// SubtaskRequest 向计划建议服务请求子任务
type SubtaskRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	TaskType     string          `json:"taskType"`
	DurationDays int             `json:"durationDays"`
	References   []ReferenceTask `json:"references"`
}

type ReferenceTask struct {
	Name         string  `json:"name"`
	TaskType     string  `json:"taskType"`
	DurationDays int     `json:"durationDays"`
	EffortHours  float64 `json:"effortHours"`
}

// SubtaskSuggestion 建议服务返回的结构化子任务
type SubtaskSuggestion struct {
	Name           string                   `json:"name"`
	Description    string                   `json:"description"`
	TaskType       string                   `json:"taskType"`
	DurationDays   int                      `json:"durationDays"`
	EffortHours    float64                  `json:"effortHours"`
	Complexity     model.Complexity         `json:"complexity"`
	RiskLevel      model.RiskLevel          `json:"riskLevel"`
	RequiredSkills []model.SkillRequirement `json:"requiredSkills"`
	Deliverables   []model.Deliverable      `json:"deliverables"`
}

// Suggester 可选协作方；返回空列表或错误时使用规则兜底
type Suggester interface {
	SuggestSubtasks(ctx context.Context, req SubtaskRequest) ([]SubtaskSuggestion, error)
}
