package model

import (
	"strings"
	"time"
)

// SeniorityTier 职级，决定小时费率
type SeniorityTier string

const (
	TierSenior  SeniorityTier = "SENIOR"
	TierMiddle  SeniorityTier = "MIDDLE"
	TierJunior  SeniorityTier = "JUNIOR"
	TierUnknown SeniorityTier = ""
)

// ParseTier 兼容中英文写法
func ParseTier(s string) SeniorityTier {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SENIOR", "高级", "资深":
		return TierSenior
	case "MIDDLE", "中级":
		return TierMiddle
	case "JUNIOR", "初级":
		return TierJunior
	default:
		return TierUnknown
	}
}

type Person struct {
	ID     int64         `json:"id" yaml:"id"`
	Name   string        `json:"name" yaml:"name"`
	Role   string        `json:"role" yaml:"role"`
	Tier   SeniorityTier `json:"tier,omitempty" yaml:"tier"`
	Skills []string      `json:"skills,omitempty" yaml:"skills"`
}

// CapabilitySet 人员技能集合，键为小写技能名
type CapabilitySet map[string]struct{}

func NewCapabilitySet(skills []string) CapabilitySet {
	set := make(CapabilitySet, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func (c CapabilitySet) Has(skill string) bool {
	_, ok := c[strings.ToLower(strings.TrimSpace(skill))]
	return ok
}

// CompletedTask 已完成任务的计划/实际结束时间
type CompletedTask struct {
	TaskID     int64      `json:"taskId" yaml:"taskId"`
	PlannedEnd *time.Time `json:"plannedEnd,omitempty" yaml:"plannedEnd"`
	ActualEnd  *time.Time `json:"actualEnd,omitempty" yaml:"actualEnd"`
}

// OnTime 两个日期都存在且实际不晚于计划
func (t CompletedTask) OnTime() bool {
	return t.PlannedEnd != nil && t.ActualEnd != nil && !t.ActualEnd.After(*t.PlannedEnd)
}

// WorkHistory 评分所需的人员历史快照
type WorkHistory struct {
	CompletedSameType int
	ActiveTasks       int
	// 最近完成的任务，最新在前
	RecentCompleted []CompletedTask
}
