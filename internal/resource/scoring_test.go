package resource

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pmplanner/internal/model"
)

func TestSkillScore(t *testing.T) {
	p := model.Person{Role: "Senior Backend Engineer", Skills: []string{"Go", "PostgreSQL"}}

	assert.Equal(t, 70.0, SkillScore(p, nil))
	assert.Equal(t, 80.0, SkillScore(p, []model.SkillRequirement{{Skill: "go"}, {Skill: "postgresql"}}))
	// 集合未命中时按角色名匹配
	assert.Equal(t, 65.0, SkillScore(p, []model.SkillRequirement{{Skill: "backend"}, {Skill: "figma"}}))
	assert.Equal(t, 50.0, SkillScore(model.Person{}, []model.SkillRequirement{{Skill: "go"}}))

	many := []model.SkillRequirement{{Skill: "go"}, {Skill: "postgresql"}, {Skill: "engineer"}, {Skill: "senior"}, {Skill: "backend"}}
	assert.Equal(t, 100.0, SkillScore(p, many))
}

func TestExperienceScore(t *testing.T) {
	cases := map[int]float64{0: 40, 1: 60, 2: 60, 3: 80, 9: 80, 10: 95, 42: 95}
	for n, want := range cases {
		assert.Equal(t, want, ExperienceScore(n), "completed=%d", n)
	}
}

func TestAvailabilityScore_Monotonic(t *testing.T) {
	assert.Equal(t, 100.0, AvailabilityScore(0))
	assert.Equal(t, 60.0, AvailabilityScore(2))
	assert.Equal(t, 0.0, AvailabilityScore(7))

	prev := AvailabilityScore(0)
	for n := 1; n <= 10; n++ {
		cur := AvailabilityScore(n)
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func history(onTime, late int) []model.CompletedTask {
	planned := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	early := planned.AddDate(0, 0, -1)
	after := planned.AddDate(0, 0, 2)
	var out []model.CompletedTask
	for i := 0; i < onTime; i++ {
		out = append(out, model.CompletedTask{PlannedEnd: &planned, ActualEnd: &early})
	}
	for i := 0; i < late; i++ {
		out = append(out, model.CompletedTask{PlannedEnd: &planned, ActualEnd: &after})
	}
	return out
}

func TestPerformanceScore(t *testing.T) {
	assert.Equal(t, 70.0, PerformanceScore(nil))
	assert.Equal(t, 75.0, PerformanceScore(history(3, 1)))
	// 只看最近 20 个
	assert.Equal(t, 100.0, PerformanceScore(append(history(20, 0), history(0, 10)...)))

	// 准时数增加不会降低得分
	prev := PerformanceScore(history(0, 10))
	for k := 1; k <= 10; k++ {
		cur := PerformanceScore(history(k, 10-k))
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestOverallScore_AffineCombination(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		s, e, a, p := rng.Float64()*100, rng.Float64()*100, rng.Float64()*100, rng.Float64()*100
		assert.InDelta(t, 0.4*s+0.2*e+0.2*a+0.2*p, OverallScore(s, e, a, p), 1e-9)
	}
}

func TestHourlyRate(t *testing.T) {
	assert.Equal(t, 200.0, HourlyRate(model.Person{Tier: model.TierSenior, Role: "junior dev"}))
	assert.Equal(t, 200.0, HourlyRate(model.Person{Role: "资深架构师"}))
	assert.Equal(t, 150.0, HourlyRate(model.Person{Role: "中级测试"}))
	assert.Equal(t, 100.0, HourlyRate(model.Person{Role: "Junior Developer"}))
	assert.Equal(t, 120.0, HourlyRate(model.Person{Role: "产品经理"}))
}

func TestCostHelpers(t *testing.T) {
	assert.Equal(t, 24000.0, EstimatedCost(120, 200))
	assert.Equal(t, 40.5, CostEfficiency(81, 200))
	assert.Equal(t, 100.0, CostEfficiency(90, 50))
	assert.Equal(t, 66.0, CostEfficiency(66, 0))
}

func TestRecommendationText(t *testing.T) {
	strong := scores{skill: 85, experience: 80, availability: 90, performance: 85}
	assert.Equal(t, "技能高度匹配；同类任务经验丰富；当前工作量较低，可及时投入；历史交付准时率高", recommendationReason(strong))
	assert.Len(t, strengthsOf(strong), 2)
	assert.Empty(t, weaknessesOf(strong))

	weak := scores{skill: 50, experience: 40, availability: 20, performance: 70}
	assert.Equal(t, "当前工作量较高，需关注排期", recommendationReason(weak))
	ws := weaknessesOf(weak)
	assert.Len(t, ws, 2)
	for _, w := range ws {
		assert.Equal(t, model.PriorityHigh, w.Impact)
	}

	plain := scores{skill: 55, experience: 60, availability: 60, performance: 70}
	assert.Equal(t, "综合评估后可作为候选人员", recommendationReason(plain))
}
