package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pmplanner/internal/model"
)

func TestDecodeDependencies(t *testing.T) {
	log := zap.NewNop()

	deps := decodeDependencies([]byte(`[{"taskId":3,"type":"FS"},{"taskId":4},7,"x"]`), log, 1)
	assert.Equal(t, []model.Dependency{
		{TaskID: 3, Type: model.DependencyFinishToStart},
		{TaskID: 4, Type: model.DependencyFinishToStart},
		{TaskID: 7, Type: model.DependencyFinishToStart},
	}, deps)

	// 格式错误视为没有依赖
	assert.Empty(t, decodeDependencies([]byte(`[{"taskId":`), log, 1))
	assert.Empty(t, decodeDependencies([]byte(`{"taskId":1}`), log, 1))
	assert.NotNil(t, decodeDependencies(nil, log, 1))
}

func TestDecodeSkills(t *testing.T) {
	log := zap.NewNop()

	skills := decodeSkills([]byte(`["Go",{"skill":"SQL","level":"SENIOR"},{"level":"x"},""]`), log, 1)
	assert.Equal(t, []model.SkillRequirement{
		{Skill: "Go"},
		{Skill: "SQL", Level: "SENIOR"},
	}, skills)
	assert.Empty(t, decodeSkills([]byte(`not json`), log, 1))
}

func TestDecodeDeliverablesAndStrings(t *testing.T) {
	log := zap.NewNop()

	d := decodeDeliverables([]byte(`[{"name":"设计文档","type":"DOCUMENT"},{"type":"CODE"}]`), log, 1)
	assert.Equal(t, []model.Deliverable{{Name: "设计文档", Type: "DOCUMENT"}}, d)

	assert.Equal(t, []string{"go", "redis"}, decodeStrings([]byte(`[" go ","redis",""]`), log, "skills", 1))
	assert.Empty(t, decodeStrings([]byte(`[`), log, "skills", 1))
}

func TestEncodeJSON(t *testing.T) {
	var none []model.Dependency
	assert.Equal(t, "[]", string(encodeJSON(none)))
	assert.JSONEq(t, `[{"taskId":2,"type":"FS"}]`, string(encodeJSON([]model.Dependency{{TaskID: 2, Type: "FS"}})))
}

func TestDecodeAllocationNotes(t *testing.T) {
	s := decodeStrengths([]byte(`[{"aspect":"SKILL","description":"匹配"}]`))
	assert.Equal(t, "SKILL", s[0].Aspect)

	w := decodeWeaknesses([]byte(`[{"aspect":"AVAILABILITY","description":"忙","impact":"HIGH"}]`))
	assert.Equal(t, model.PriorityHigh, w[0].Impact)
	assert.Empty(t, decodeWeaknesses(nil))
}
