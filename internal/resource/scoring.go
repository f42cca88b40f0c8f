package resource

import (
	"strings"

	"github.com/shopspring/decimal"

	"pmplanner/internal/model"
)

const (
	weightSkill        = 0.4
	weightExperience   = 0.2
	weightAvailability = 0.2
	weightPerformance  = 0.2

	performanceWindow = 20
)

// SkillScore 无技能要求时为 70；否则基础 50，每命中一项 +15，上限 100。
// 先查人员技能集合，未命中时退回到角色名子串匹配
func SkillScore(p model.Person, required []model.SkillRequirement) float64 {
	if len(required) == 0 {
		return 70
	}
	caps := model.NewCapabilitySet(p.Skills)
	score := 50.0
	for _, req := range required {
		if caps.Has(req.Skill) || roleMatches(p.Role, req.Skill) {
			score += 15
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// roleMatches 大小写不敏感，任一方向包含即视为命中
func roleMatches(role, skill string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	skill = strings.ToLower(strings.TrimSpace(skill))
	if role == "" || skill == "" {
		return false
	}
	return strings.Contains(role, skill) || strings.Contains(skill, role)
}

// ExperienceScore 按同类型已完成任务数分档
func ExperienceScore(completedSameType int) float64 {
	switch {
	case completedSameType >= 10:
		return 95
	case completedSameType >= 3:
		return 80
	case completedSameType >= 1:
		return 60
	default:
		return 40
	}
}

// AvailabilityScore 每个进行中任务占用 20，最多 100
func AvailabilityScore(activeTasks int) float64 {
	if activeTasks < 0 {
		activeTasks = 0
	}
	workload := 20 * activeTasks
	if workload > 100 {
		workload = 100
	}
	return float64(100 - workload)
}

// PerformanceScore 最近 20 个已完成任务的准时率；无历史时为 70
func PerformanceScore(recent []model.CompletedTask) float64 {
	if len(recent) == 0 {
		return 70
	}
	if len(recent) > performanceWindow {
		recent = recent[:performanceWindow]
	}
	onTime := 0
	for _, t := range recent {
		if t.OnTime() {
			onTime++
		}
	}
	return float64(onTime) / float64(len(recent)) * 100
}

// OverallScore 四个维度的固定加权
func OverallScore(skill, experience, availability, performance float64) float64 {
	return weightSkill*skill + weightExperience*experience + weightAvailability*availability + weightPerformance*performance
}

// HourlyRate 优先使用职级枚举，未设置时按角色名兜底
func HourlyRate(p model.Person) float64 {
	tier := p.Tier
	if tier == model.TierUnknown {
		tier = tierFromRole(p.Role)
	}
	switch tier {
	case model.TierSenior:
		return 200
	case model.TierMiddle:
		return 150
	case model.TierJunior:
		return 100
	default:
		return 120
	}
}

func tierFromRole(role string) model.SeniorityTier {
	r := strings.ToLower(role)
	switch {
	case strings.Contains(r, "senior") || strings.Contains(r, "高级") || strings.Contains(r, "资深"):
		return model.TierSenior
	case strings.Contains(r, "middle") || strings.Contains(r, "中级"):
		return model.TierMiddle
	case strings.Contains(r, "junior") || strings.Contains(r, "初级"):
		return model.TierJunior
	default:
		return model.TierUnknown
	}
}

// EstimatedCost 工时 * 费率，保留两位小数
func EstimatedCost(hours, rate float64) float64 {
	return decimal.NewFromFloat(hours).Mul(decimal.NewFromFloat(rate)).Round(2).InexactFloat64()
}

// CostEfficiency min(100, match / (rate/100))；费率为 0 时等于匹配度
func CostEfficiency(match, rate float64) float64 {
	if rate == 0 {
		return match
	}
	eff := decimal.NewFromFloat(match).Div(decimal.NewFromFloat(rate).Div(decimal.NewFromInt(100)))
	if eff.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	return eff.Round(2).InexactFloat64()
}

type scores struct {
	skill        float64
	experience   float64
	availability float64
	performance  float64
	overall      float64
}

func recommendationReason(s scores) string {
	var parts []string
	switch {
	case s.skill >= 80:
		parts = append(parts, "技能高度匹配")
	case s.skill >= 60:
		parts = append(parts, "技能基本匹配")
	}
	if s.experience >= 80 {
		parts = append(parts, "同类任务经验丰富")
	}
	switch {
	case s.availability >= 80:
		parts = append(parts, "当前工作量较低，可及时投入")
	case s.availability < 40:
		parts = append(parts, "当前工作量较高，需关注排期")
	}
	if s.performance >= 80 {
		parts = append(parts, "历史交付准时率高")
	}
	if len(parts) == 0 {
		return "综合评估后可作为候选人员"
	}
	return strings.Join(parts, "；")
}

func strengthsOf(s scores) []model.Strength {
	out := []model.Strength{}
	if s.skill >= 80 {
		out = append(out, model.Strength{Aspect: "SKILL", Description: "技能与任务要求高度匹配"})
	}
	if s.performance >= 80 {
		out = append(out, model.Strength{Aspect: "PERFORMANCE", Description: "历史任务按期完成率高"})
	}
	return out
}

func weaknessesOf(s scores) []model.Weakness {
	out := []model.Weakness{}
	if s.skill < 60 {
		out = append(out, model.Weakness{Aspect: "SKILL", Description: "技能匹配度不足", Impact: model.PriorityHigh})
	}
	if s.availability < 40 {
		out = append(out, model.Weakness{Aspect: "AVAILABILITY", Description: "当前任务较多，投入时间有限", Impact: model.PriorityHigh})
	}
	return out
}
