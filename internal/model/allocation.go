package model

type Strength struct {
	Aspect      string `json:"aspect"`
	Description string `json:"description"`
}

type Weakness struct {
	Aspect      string   `json:"aspect"`
	Description string   `json:"description"`
	Impact      Priority `json:"impact"`
}

// ResourceAllocation 候选人与任务的匹配结果
type ResourceAllocation struct {
	ID                   int64          `json:"id,omitempty" yaml:"id"`
	AllocationCode       string         `json:"allocationCode" yaml:"allocationCode"`
	ProjectID            int64          `json:"projectId" yaml:"projectId"`
	TaskID               int64          `json:"taskId" yaml:"taskId"`
	TaskName             string         `json:"taskName,omitempty" yaml:"taskName"`
	PersonID             int64          `json:"personId" yaml:"personId"`
	RoleName             string         `json:"roleName" yaml:"roleName"`
	AllocationType       AllocationType `json:"allocationType" yaml:"allocationType"`
	ConfidenceScore      float64        `json:"confidenceScore" yaml:"confidenceScore"`
	AllocatedHours       float64        `json:"allocatedHours" yaml:"allocatedHours"`
	SkillMatchScore      float64        `json:"skillMatchScore" yaml:"skillMatchScore"`
	ExperienceMatchScore float64        `json:"experienceMatchScore" yaml:"experienceMatchScore"`
	AvailabilityScore    float64        `json:"availabilityScore" yaml:"availabilityScore"`
	PerformanceScore     float64        `json:"performanceScore" yaml:"performanceScore"`
	OverallMatchScore    float64        `json:"overallMatchScore" yaml:"overallMatchScore"`
	HourlyRate           float64        `json:"hourlyRate" yaml:"hourlyRate"`
	EstimatedCost        float64        `json:"estimatedCost" yaml:"estimatedCost"`
	CostEfficiencyScore  float64        `json:"costEfficiencyScore" yaml:"costEfficiencyScore"`
	RecommendationReason string         `json:"recommendationReason" yaml:"recommendationReason"`
	Strengths            []Strength     `json:"strengths" yaml:"-"`
	Weaknesses           []Weakness     `json:"weaknesses" yaml:"-"`
	Status               NodeStatus     `json:"status" yaml:"status"`
	Priority             Priority       `json:"priority" yaml:"priority"`
	Sequence             int            `json:"sequence" yaml:"sequence"`
}
