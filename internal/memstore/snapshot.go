package memstore

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pmplanner/internal/model"
)

// Snapshot 离线运行使用的数据快照（YAML）
type Snapshot struct {
	Projects    []model.Project            `yaml:"projects"`
	Templates   []model.WbsTemplate        `yaml:"templates"`
	Persons     []model.Person             `yaml:"persons"`
	Members     []Membership               `yaml:"members"`
	Tasks       []TaskRecord               `yaml:"tasks"`
	Assignments []Assignment               `yaml:"assignments"`
	Allocations []model.ResourceAllocation `yaml:"allocations"`
}

type Membership struct {
	ProjectID int64 `yaml:"projectId"`
	PersonID  int64 `yaml:"personId"`
}

// TaskRecord WBS 节点加上执行状态
type TaskRecord struct {
	model.WbsNode  `yaml:",inline"`
	ExecutionState model.TaskState `yaml:"executionState"`
}

// Assignment 人员在任务上的执行记录
type Assignment struct {
	TaskID     int64           `yaml:"taskId"`
	PersonID   int64           `yaml:"personId"`
	State      model.TaskState `yaml:"state"`
	PlannedEnd *time.Time      `yaml:"plannedEnd"`
	ActualEnd  *time.Time      `yaml:"actualEnd"`
}

func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshot(f)
}
