package model

import "time"

type Project struct {
	ID          int64     `json:"id" yaml:"id"`
	Code        string    `json:"code" yaml:"code"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	ProjectType string    `json:"projectType" yaml:"projectType"`
	StartDate   time.Time `json:"startDate" yaml:"startDate"`
}

// PhaseTemplate 模板中的阶段定义
type PhaseTemplate struct {
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description,omitempty" yaml:"description"`
	TaskType     string        `json:"taskType,omitempty" yaml:"taskType"`
	DurationDays int           `json:"durationDays" yaml:"durationDays"`
	Complexity   Complexity    `json:"complexity,omitempty" yaml:"complexity"`
	RiskLevel    RiskLevel     `json:"riskLevel,omitempty" yaml:"riskLevel"`
	Deliverables []Deliverable `json:"deliverables,omitempty" yaml:"deliverables"`
}

type WbsTemplate struct {
	ID     int64           `json:"id" yaml:"id"`
	Name   string          `json:"name" yaml:"name"`
	Phases []PhaseTemplate `json:"phases" yaml:"phases"`
}
