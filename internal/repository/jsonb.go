package repository

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"pmplanner/internal/model"
)

// jsonb 列容错解码：格式错误时记为空列表，不影响其余数据

func decodeDependencies(raw []byte, log *zap.Logger, taskID int64) []model.Dependency {
	out := []model.Dependency{}
	if !validArray(raw, log, "dependencies", taskID) {
		return out
	}
	gjson.ParseBytes(raw).ForEach(func(_, v gjson.Result) bool {
		id := v.Get("taskId")
		if !id.Exists() {
			// 兼容直接存 id 的旧格式
			id = v
		}
		if id.Type != gjson.Number {
			return true
		}
		depType := model.DependencyType(v.Get("type").String())
		if depType == "" {
			depType = model.DependencyFinishToStart
		}
		out = append(out, model.Dependency{TaskID: id.Int(), Type: depType})
		return true
	})
	return out
}

func decodeSkills(raw []byte, log *zap.Logger, taskID int64) []model.SkillRequirement {
	out := []model.SkillRequirement{}
	if !validArray(raw, log, "required_skills", taskID) {
		return out
	}
	gjson.ParseBytes(raw).ForEach(func(_, v gjson.Result) bool {
		switch {
		case v.Type == gjson.String && v.String() != "":
			out = append(out, model.SkillRequirement{Skill: v.String()})
		case v.IsObject() && v.Get("skill").String() != "":
			out = append(out, model.SkillRequirement{Skill: v.Get("skill").String(), Level: v.Get("level").String()})
		}
		return true
	})
	return out
}

func decodeDeliverables(raw []byte, log *zap.Logger, taskID int64) []model.Deliverable {
	out := []model.Deliverable{}
	if !validArray(raw, log, "deliverables", taskID) {
		return out
	}
	gjson.ParseBytes(raw).ForEach(func(_, v gjson.Result) bool {
		if name := v.Get("name").String(); name != "" {
			out = append(out, model.Deliverable{Name: name, Type: v.Get("type").String()})
		}
		return true
	})
	return out
}

// decodeStrings 人员技能等字符串数组
func decodeStrings(raw []byte, log *zap.Logger, column string, id int64) []string {
	out := []string{}
	if !validArray(raw, log, column, id) {
		return out
	}
	gjson.ParseBytes(raw).ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func validArray(raw []byte, log *zap.Logger, column string, id int64) bool {
	if len(raw) == 0 {
		return false
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsArray() {
		log.Warn("Malformed jsonb column, treating as empty",
			zap.String("column", column),
			zap.Int64("id", id),
		)
		return false
	}
	return true
}

// encodeJSON 写入 jsonb，nil 切片写成 []
func encodeJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return []byte("[]")
	}
	return data
}
