package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pmplanner/internal/memstore"
	"pmplanner/internal/model"
	"pmplanner/internal/service"
	"pmplanner/pkg/config"
	"pmplanner/pkg/logger"
)

// 离线命令共享的参数
type offlineFlags struct {
	input    string
	maxLevel int
	verbose  bool
}

func (f *offlineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "YAML snapshot of projects, persons and tasks")
	cmd.Flags().IntVar(&f.maxLevel, "max-level", 0, "Maximum WBS depth (0 = configured default)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log engine progress to stderr")
	_ = cmd.MarkFlagRequired("input")
}

// newOfflineService 从快照构建内存存储上的规划服务
func (f *offlineFlags) newOfflineService() (*service.PlanningService, error) {
	snap, err := memstore.LoadSnapshot(f.input)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	log := logger.OrNop(nil)
	if f.verbose {
		log = logger.NewLogger()
	}
	cfg := config.PlanningConfig{MaxLevel: f.maxLevel}
	return service.NewPlanningService(memstore.New(snap), newSuggester(flagSuggestionURL, flagSuggestionTimeout, log), cfg, log), nil
}

func parseStart(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --start %q, want YYYY-MM-DD", raw)
	}
	return &t, nil
}

func optionalID(cmd *cobra.Command, name string, v int64) *int64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func decomposeCmd() *cobra.Command {
	var (
		f          offlineFlags
		projectID  int64
		templateID int64
	)
	cmd := &cobra.Command{
		Use:   "decompose",
		Short: "Decompose a project into WBS nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := f.newOfflineService()
			if err != nil {
				return err
			}
			nodes, err := svc.Decompose(context.Background(), projectID, optionalID(cmd, "template", templateID), f.maxLevel)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), nodes)
		},
	}
	f.register(cmd)
	cmd.Flags().Int64Var(&projectID, "project", 0, "Project id")
	cmd.Flags().Int64Var(&templateID, "template", 0, "WBS template id")
	return cmd
}

func scheduleCmd() *cobra.Command {
	var (
		f           offlineFlags
		projectID   int64
		start       string
		constraints model.ScheduleConstraints
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Compute the critical path schedule of a project's active tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseStart(start)
			if err != nil {
				return err
			}
			svc, err := f.newOfflineService()
			if err != nil {
				return err
			}
			result, err := svc.OptimizeSchedule(context.Background(), projectID, startDate, &constraints)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	f.register(cmd)
	cmd.Flags().Int64Var(&projectID, "project", 0, "Project id")
	cmd.Flags().StringVar(&start, "start", "", "Project start date YYYY-MM-DD (default today)")
	cmd.Flags().Float64Var(&constraints.MaxPersonHours, "max-person-hours", 0, "Per-person load ceiling in hours")
	cmd.Flags().IntVar(&constraints.MaxTaskDays, "max-task-days", 0, "Longest acceptable task duration")
	cmd.Flags().Float64Var(&constraints.CriticalRatio, "critical-ratio", 0, "Critical task share that triggers a conflict")
	return cmd
}

func allocateCmd() *cobra.Command {
	var (
		f           offlineFlags
		taskID      int64
		candidates  []int64
		constraints model.AllocationConstraints
	)
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Rank candidate people for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := f.newOfflineService()
			if err != nil {
				return err
			}
			allocations, err := svc.AllocateResources(context.Background(), taskID, candidates, &constraints)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), allocations)
		},
	}
	f.register(cmd)
	cmd.Flags().Int64Var(&taskID, "task", 0, "Task id")
	cmd.Flags().Int64SliceVar(&candidates, "candidates", nil, "Candidate person ids (default: project members)")
	cmd.Flags().IntVar(&constraints.MaxCandidates, "max-candidates", 0, "Maximum number of recommendations")
	cmd.Flags().Float64Var(&constraints.MinMatchScore, "min-score", 0, "Minimum overall match score")
	cmd.Flags().Float64Var(&constraints.MaxHourlyRate, "max-hourly-rate", 0, "Skip people above this hourly rate")
	return cmd
}

func planCmd() *cobra.Command {
	var (
		f          offlineFlags
		projectID  int64
		templateID int64
		start      string
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Decompose, allocate every leaf task and schedule in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseStart(start)
			if err != nil {
				return err
			}
			svc, err := f.newOfflineService()
			if err != nil {
				return err
			}
			plan, err := svc.PlanProject(context.Background(), projectID, optionalID(cmd, "template", templateID), startDate)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), plan)
		},
	}
	f.register(cmd)
	cmd.Flags().Int64Var(&projectID, "project", 0, "Project id")
	cmd.Flags().Int64Var(&templateID, "template", 0, "WBS template id")
	cmd.Flags().StringVar(&start, "start", "", "Project start date YYYY-MM-DD (default today)")
	return cmd
}
