package model

import "strings"

// Complexity 任务复杂度等级
type Complexity string

const (
	ComplexitySimple   Complexity = "SIMPLE"
	ComplexityMedium   Complexity = "MEDIUM"
	ComplexityComplex  Complexity = "COMPLEX"
	ComplexityCritical Complexity = "CRITICAL"
)

// ParseComplexity 未知取值归为 MEDIUM
func ParseComplexity(s string) Complexity {
	switch c := Complexity(strings.ToUpper(strings.TrimSpace(s))); c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex, ComplexityCritical:
		return c
	default:
		return ComplexityMedium
	}
}

// Decomposable COMPLEX / CRITICAL 节点允许继续分解
func (c Complexity) Decomposable() bool {
	return c == ComplexityComplex || c == ComplexityCritical
}

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// ParseRiskLevel 未知取值归为 MEDIUM
func ParseRiskLevel(s string) RiskLevel {
	switch r := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r
	default:
		return RiskMedium
	}
}

func (r RiskLevel) Elevated() bool {
	return r == RiskHigh || r == RiskCritical
}

// DependencyType 目前只有完成-开始
type DependencyType string

const DependencyFinishToStart DependencyType = "FS"

// NodeStatus SUGGESTED 只能单向转为 ACCEPTED 或 REJECTED
type NodeStatus string

const (
	StatusSuggested NodeStatus = "SUGGESTED"
	StatusAccepted  NodeStatus = "ACCEPTED"
	StatusRejected  NodeStatus = "REJECTED"
)

// ParseNodeStatus 无法识别时返回 false
func ParseNodeStatus(s string) (NodeStatus, bool) {
	switch st := NodeStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusSuggested, StatusAccepted, StatusRejected:
		return st, true
	default:
		return "", false
	}
}

// TaskState 任务执行状态
type TaskState string

const (
	TaskPending    TaskState = "PENDING"
	TaskAccepted   TaskState = "ACCEPTED"
	TaskInProgress TaskState = "IN_PROGRESS"
	TaskCompleted  TaskState = "COMPLETED"
)

// Active IN_PROGRESS / ACCEPTED 计入当前工作量
func (s TaskState) Active() bool {
	return s == TaskInProgress || s == TaskAccepted
}

type AllocationType string

const (
	AllocationPrimary   AllocationType = "PRIMARY"
	AllocationSecondary AllocationType = "SECONDARY"
	AllocationBackup    AllocationType = "BACKUP"
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)
