package model

// ScheduleConstraints 冲突检测阈值，零值表示使用默认值
type ScheduleConstraints struct {
	MaxPersonHours float64 `json:"maxPersonHours,omitempty" yaml:"maxPersonHours"`
	MaxTaskDays    int     `json:"maxTaskDays,omitempty" yaml:"maxTaskDays"`
	CriticalRatio  float64 `json:"criticalRatio,omitempty" yaml:"criticalRatio"`
}

// AllocationConstraints 候选排序约束，零值表示使用默认值
type AllocationConstraints struct {
	MaxCandidates int     `json:"maxCandidates,omitempty" yaml:"maxCandidates"`
	MinMatchScore float64 `json:"minMatchScore,omitempty" yaml:"minMatchScore"`
	// 0 表示不限制
	MaxHourlyRate float64 `json:"maxHourlyRate,omitempty" yaml:"maxHourlyRate"`
}
