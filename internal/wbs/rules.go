package wbs

import (
	"fmt"
	"math"
	"strings"

	"pmplanner/internal/model"
)

const hoursPerDay = 8

type defaultPhase struct {
	name       string
	desc       string
	taskType   string
	days       int
	complexity model.Complexity
	risk       model.RiskLevel
}

// 无模板时的四个默认阶段，共 90 天
var defaultPhases = []defaultPhase{
	{"需求分析", "收集并确认项目需求", "REQUIREMENT", 15, model.ComplexityMedium, model.RiskLow},
	{"设计阶段", "系统架构与详细设计", "DESIGN", 20, model.ComplexityComplex, model.RiskMedium},
	{"开发实施", "功能开发与集成", "DEVELOPMENT", 40, model.ComplexityCritical, model.RiskHigh},
	{"测试验收", "系统测试与用户验收", "TESTING", 15, model.ComplexityMedium, model.RiskMedium},
}

type ruleTask struct {
	name       string
	days       int
	hours      float64
	complexity model.Complexity
	risk       model.RiskLevel
	skills     []string
}

var requirementRules = []ruleTask{
	{"需求调研", 5, 40, model.ComplexitySimple, model.RiskLow, []string{"需求调研", "沟通"}},
	{"需求分析", 7, 56, model.ComplexityMedium, model.RiskMedium, []string{"需求分析", "业务建模"}},
	{"需求评审", 3, 24, model.ComplexitySimple, model.RiskLow, []string{"需求评审"}},
}

var designRules = []ruleTask{
	{"概要设计", 7, 7 * hoursPerDay, model.ComplexityMedium, model.RiskMedium, []string{"架构设计"}},
	{"详细设计", 10, 10 * hoursPerDay, model.ComplexityMedium, model.RiskMedium, []string{"系统设计", "数据库设计"}},
	{"设计评审", 3, 3 * hoursPerDay, model.ComplexitySimple, model.RiskLow, []string{"设计评审"}},
}

// ruleSubtasks 按父节点名称选择兜底子任务
func ruleSubtasks(parent *model.WbsNode) []SubtaskSuggestion {
	name := strings.ToLower(parent.Name)
	switch {
	case strings.Contains(name, "requirement") || strings.Contains(name, "需求"):
		return fromRules(requirementRules, parent.TaskType)
	case strings.Contains(name, "design") || strings.Contains(name, "设计"):
		return fromRules(designRules, parent.TaskType)
	default:
		return genericSplit(parent)
	}
}

func fromRules(rules []ruleTask, taskType string) []SubtaskSuggestion {
	out := make([]SubtaskSuggestion, 0, len(rules))
	for _, r := range rules {
		skills := make([]model.SkillRequirement, 0, len(r.skills))
		for _, s := range r.skills {
			skills = append(skills, model.SkillRequirement{Skill: s, Level: "MIDDLE"})
		}
		out = append(out, SubtaskSuggestion{
			Name:           r.name,
			TaskType:       taskType,
			DurationDays:   r.days,
			EffortHours:    r.hours,
			Complexity:     r.complexity,
			RiskLevel:      r.risk,
			RequiredSkills: skills,
		})
	}
	return out
}

// genericSplit 准备 20% / 执行 60% / 验收 20%，执行取余数保证总工期不变
func genericSplit(parent *model.WbsNode) []SubtaskSuggestion {
	total := parent.DurationDays
	prep := int(math.Round(float64(total) * 0.2))
	accept := int(math.Round(float64(total) * 0.2))
	exec := total - prep - accept
	if exec < 0 {
		exec = 0
	}

	execComplexity := model.ComplexityMedium
	if parent.Complexity == model.ComplexityCritical {
		execComplexity = model.ComplexityComplex
	}

	return []SubtaskSuggestion{
		{
			Name:         fmt.Sprintf("%s-准备", parent.Name),
			Description:  "资源、环境与计划准备",
			TaskType:     parent.TaskType,
			DurationDays: prep,
			EffortHours:  float64(prep * hoursPerDay),
			Complexity:   model.ComplexitySimple,
			RiskLevel:    model.RiskLow,
		},
		{
			Name:         fmt.Sprintf("%s-执行", parent.Name),
			Description:  parent.Description,
			TaskType:     parent.TaskType,
			DurationDays: exec,
			EffortHours:  float64(exec * hoursPerDay),
			Complexity:   execComplexity,
			RiskLevel:    parent.RiskLevel,
		},
		{
			Name:         fmt.Sprintf("%s-验收", parent.Name),
			Description:  "成果检查与验收",
			TaskType:     parent.TaskType,
			DurationDays: accept,
			EffortHours:  float64(accept * hoursPerDay),
			Complexity:   model.ComplexitySimple,
			RiskLevel:    model.RiskLow,
		},
	}
}
