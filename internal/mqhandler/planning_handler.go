package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pmplanner/contracts/mq"
	"pmplanner/internal/model"
	"pmplanner/internal/service"
	"pmplanner/pkg/logger"
	"pmplanner/pkg/util"
)

// Publisher 结果事件发布
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// PlanningHandler 处理规划请求事件，结果以事件形式发布
type PlanningHandler struct {
	svc       *service.PlanningService
	publisher Publisher
	deduper   *util.Deduper
	logger    *zap.Logger
}

func NewPlanningHandler(svc *service.PlanningService, publisher Publisher, deduper *util.Deduper, log *zap.Logger) *PlanningHandler {
	return &PlanningHandler{
		svc:       svc,
		publisher: publisher,
		deduper:   deduper,
		logger:    logger.OrNop(log),
	}
}

// once 同一 request_id 只执行一次，失败时释放去重键让重投可以再处理
func (h *PlanningHandler) once(ctx context.Context, name, requestID string, fn func() error) error {
	if !h.deduper.AcquireOnce(ctx, name, requestID) {
		return nil
	}
	if err := fn(); err != nil {
		h.deduper.Release(ctx, name, requestID)
		return err
	}
	return nil
}

// HandleDecomposeRequested 分解项目并发布 planning.wbs.generated
func (h *PlanningHandler) HandleDecomposeRequested(ctx context.Context, raw json.RawMessage) error {
	var p mq.DecomposeRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal decompose payload", zap.Error(err))
		return err
	}

	h.logger.Info("Processing decompose request",
		zap.String("request_id", p.RequestID),
		zap.Int64("project_id", p.ProjectID),
		zap.Bool("persist", p.Persist),
	)

	return h.once(ctx, "decompose", p.RequestID, func() error {
		decompose := h.svc.Decompose
		if p.Persist {
			decompose = h.svc.DecomposeAndSave
		}
		nodes, err := decompose(ctx, p.ProjectID, p.TemplateID, p.MaxLevel)
		if err != nil {
			h.logger.Error("Failed to decompose project", zap.Int64("project_id", p.ProjectID), zap.Error(err))
			return err
		}

		return h.publisher.Publish(ctx, mq.RoutingWbsGenerated, mq.WbsGeneratedPayload{
			RequestID: p.RequestID,
			ProjectID: p.ProjectID,
			Nodes:     nodes,
		})
	})
}

// HandleScheduleRequested 计算关键路径并发布 planning.schedule.optimized
func (h *PlanningHandler) HandleScheduleRequested(ctx context.Context, raw json.RawMessage) error {
	var p mq.ScheduleRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal schedule payload", zap.Error(err))
		return err
	}

	var start *time.Time
	if p.StartDate != "" {
		t, err := time.Parse(model.DateLayout, p.StartDate)
		if err != nil {
			h.logger.Warn("Invalid schedule start date",
				zap.String("request_id", p.RequestID),
				zap.String("start_date", p.StartDate),
			)
			return fmt.Errorf("parse start date: %w", err)
		}
		start = &t
	}

	return h.once(ctx, "schedule", p.RequestID, func() error {
		result, err := h.svc.OptimizeSchedule(ctx, p.ProjectID, start, p.Constraints)
		if err != nil {
			h.logger.Error("Failed to optimize schedule", zap.Int64("project_id", p.ProjectID), zap.Error(err))
			return err
		}

		return h.publisher.Publish(ctx, mq.RoutingScheduleOptimized, mq.ScheduleOptimizedPayload{
			RequestID: p.RequestID,
			ProjectID: p.ProjectID,
			Schedule:  result,
		})
	})
}

// HandleAllocateRequested 为任务推荐人员并发布 planning.resources.allocated
func (h *PlanningHandler) HandleAllocateRequested(ctx context.Context, raw json.RawMessage) error {
	var p mq.AllocateRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal allocate payload", zap.Error(err))
		return err
	}

	return h.once(ctx, "allocate", p.RequestID, func() error {
		allocate := h.svc.AllocateResources
		if p.Persist {
			allocate = h.svc.AllocateAndSave
		}
		allocations, err := allocate(ctx, p.TaskID, p.CandidatePersonIDs, p.Constraints)
		if err != nil {
			h.logger.Error("Failed to allocate resources", zap.Int64("task_id", p.TaskID), zap.Error(err))
			return err
		}

		h.logger.Info("Resources allocated",
			zap.String("request_id", p.RequestID),
			zap.Int64("task_id", p.TaskID),
			zap.Int("count", len(allocations)),
		)
		return h.publisher.Publish(ctx, mq.RoutingResourcesAllocated, mq.ResourcesAllocatedPayload{
			RequestID:   p.RequestID,
			TaskID:      p.TaskID,
			Allocations: allocations,
		})
	})
}

// HandleWbsReviewed 应用外部审核结果；重复的同一状态是幂等的
func (h *PlanningHandler) HandleWbsReviewed(ctx context.Context, raw json.RawMessage) error {
	var p mq.WbsReviewedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal review payload", zap.Error(err))
		return err
	}

	status, ok := model.ParseNodeStatus(p.Status)
	if !ok {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidStatusTransition, p.Status)
	}
	if err := h.svc.ReviewTask(ctx, p.TaskID, status); err != nil {
		h.logger.Warn("Failed to apply review",
			zap.Int64("task_id", p.TaskID),
			zap.String("status", p.Status),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("Task reviewed", zap.Int64("task_id", p.TaskID), zap.String("status", string(status)))
	return nil
}
