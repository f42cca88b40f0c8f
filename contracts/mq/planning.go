package mq

import "pmplanner/internal/model"

// 规划事件路由键
const (
	RoutingDecomposeRequested = "planning.decompose.requested"
	RoutingWbsGenerated       = "planning.wbs.generated"
	RoutingScheduleRequested  = "planning.schedule.requested"
	RoutingScheduleOptimized  = "planning.schedule.optimized"
	RoutingAllocateRequested  = "planning.allocate.requested"
	RoutingResourcesAllocated = "planning.resources.allocated"
	RoutingWbsReviewed        = "planning.wbs.reviewed"

	// 以下事件经 outbox 在数据写入提交后发布
	RoutingWbsPersisted         = "planning.wbs.persisted"
	RoutingAllocationsPersisted = "planning.allocations.persisted"
	RoutingTaskStatusChanged    = "planning.task.status_changed"
)

// DecomposeRequestedPayload 请求分解项目
type DecomposeRequestedPayload struct {
	RequestID  string `json:"request_id"`
	ProjectID  int64  `json:"project_id"`
	TemplateID *int64 `json:"template_id,omitempty"`
	MaxLevel   int    `json:"max_level,omitempty"`
	// 为 true 时写入数据库并返回数据库 id
	Persist bool `json:"persist"`
}

type WbsGeneratedPayload struct {
	RequestID string          `json:"request_id"`
	ProjectID int64           `json:"project_id"`
	Nodes     []model.WbsNode `json:"nodes"`
}

// ScheduleRequestedPayload start_date 为 ISO 日期，空表示今天
type ScheduleRequestedPayload struct {
	RequestID   string                     `json:"request_id"`
	ProjectID   int64                      `json:"project_id"`
	StartDate   string                     `json:"start_date,omitempty"`
	Constraints *model.ScheduleConstraints `json:"constraints,omitempty"`
}

type ScheduleOptimizedPayload struct {
	RequestID string                `json:"request_id"`
	ProjectID int64                 `json:"project_id"`
	Schedule  *model.ScheduleResult `json:"schedule"`
}

type AllocateRequestedPayload struct {
	RequestID          string                       `json:"request_id"`
	TaskID             int64                        `json:"task_id"`
	CandidatePersonIDs []int64                      `json:"candidate_person_ids,omitempty"`
	Constraints        *model.AllocationConstraints `json:"constraints,omitempty"`
	Persist            bool                         `json:"persist"`
}

type ResourcesAllocatedPayload struct {
	RequestID   string                     `json:"request_id"`
	TaskID      int64                      `json:"task_id"`
	Allocations []model.ResourceAllocation `json:"allocations"`
}

// WbsReviewedPayload 外部审核结果，status 为 ACCEPTED 或 REJECTED
type WbsReviewedPayload struct {
	TaskID int64  `json:"task_id"`
	Status string `json:"status"`
}

type WbsPersistedPayload struct {
	ProjectID int64   `json:"project_id"`
	TaskIDs   []int64 `json:"task_ids"`
}

type AllocationsPersistedPayload struct {
	ProjectID     int64   `json:"project_id"`
	TaskID        int64   `json:"task_id"`
	AllocationIDs []int64 `json:"allocation_ids"`
}

type TaskStatusChangedPayload struct {
	TaskID    int64  `json:"task_id"`
	ProjectID int64  `json:"project_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}
