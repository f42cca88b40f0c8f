package wbs

import (
	"encoding/json"
	"fmt"
	"strings"

	"pmplanner/internal/model"
)

// ParseTemplate 解析模板 JSON，解码失败直接返回错误
func ParseTemplate(data []byte) (*model.WbsTemplate, error) {
	var tmpl model.WbsTemplate
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidTemplate, err)
	}
	if err := ValidateTemplate(&tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// ValidateTemplate 阶段必须有名称，工期不能为负
func ValidateTemplate(tmpl *model.WbsTemplate) error {
	if tmpl == nil {
		return nil
	}
	for i, p := range tmpl.Phases {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: phase %d has no name", model.ErrInvalidTemplate, i+1)
		}
		if p.DurationDays < 0 {
			return fmt.Errorf("%w: phase %q has negative duration", model.ErrInvalidTemplate, p.Name)
		}
	}
	return nil
}
