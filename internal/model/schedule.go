package model

import "encoding/json"

// DateLayout 对外统一使用 ISO 日期
const DateLayout = "2006-01-02"

type GanttEntry struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Code           string   `json:"code"`
	Level          int      `json:"level"`
	ParentID       *int64   `json:"parentId"`
	StartDate      string   `json:"startDate"`
	EndDate        string   `json:"endDate"`
	DurationDays   int      `json:"durationDays"`
	EarliestStart  int      `json:"earliestStart"`
	EarliestFinish int      `json:"earliestFinish"`
	LatestStart    int      `json:"latestStart"`
	LatestFinish   int      `json:"latestFinish"`
	Slack          int      `json:"slack"`
	IsCritical     bool     `json:"isCritical"`
	Progress       int      `json:"progress"`
	Assignees      []string `json:"assignees"`
}

type CriticalTask struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	DurationDays int    `json:"durationDays"`
	StartDay     int    `json:"startDay"`
	EndDay       int    `json:"endDay"`
}

type LoadTask struct {
	TaskID         int64   `json:"taskId"`
	TaskName       string  `json:"taskName,omitempty"`
	AllocatedHours float64 `json:"allocatedHours"`
	MatchScore     float64 `json:"matchScore"`
}

type PersonLoad struct {
	TotalHours float64    `json:"totalHours"`
	TaskCount  int        `json:"taskCount"`
	Tasks      []LoadTask `json:"tasks"`
}

type Conflict struct {
	Type           string   `json:"type"`
	Severity       Priority `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	PersonID       *int64   `json:"personId,omitempty"`
	TaskID         *int64   `json:"taskId,omitempty"`
	Value          float64  `json:"value,omitempty"`
}

type Recommendation struct {
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

type OptimizationSummary struct {
	TotalTasks          int     `json:"totalTasks"`
	CriticalTasks       int     `json:"criticalTasks"`
	ConflictsFound      int     `json:"conflictsFound"`
	ResourceUtilization float64 `json:"resourceUtilization"`
}

// ScheduleResult 调度结果；项目不存在或没有任务时为空结果
type ScheduleResult struct {
	ProjectID           int64                 `json:"projectId"`
	StartDate           string                `json:"startDate"`
	TotalDurationDays   int                   `json:"totalDurationDays"`
	EndDate             string                `json:"endDate"`
	GanttData           []GanttEntry          `json:"ganttData"`
	CriticalPath        []CriticalTask        `json:"criticalPath"`
	CriticalPathLength  int                   `json:"criticalPathLength"`
	ResourceLoad        map[int64]*PersonLoad `json:"resourceLoad"`
	Conflicts           []Conflict            `json:"conflicts"`
	Recommendations     []Recommendation      `json:"recommendations"`
	OptimizationSummary OptimizationSummary   `json:"optimizationSummary"`
}

func (r *ScheduleResult) IsEmpty() bool {
	return r == nil || len(r.GanttData) == 0
}

// MarshalJSON 空结果输出 {}
func (r ScheduleResult) MarshalJSON() ([]byte, error) {
	if len(r.GanttData) == 0 {
		return []byte("{}"), nil
	}
	type plain ScheduleResult
	return json.Marshal(plain(r))
}
