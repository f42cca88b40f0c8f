package suggestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pmplanner/internal/wbs"
	"pmplanner/pkg/circuitbreaker"
	"pmplanner/pkg/logger"
	"pmplanner/pkg/metrics"
	"pmplanner/pkg/trace"
)

// Client 计划建议服务客户端，实现 wbs.Suggester
type Client struct {
	baseURL    string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

type decomposeResponse struct {
	Subtasks []wbs.SubtaskSuggestion `json:"subtasks"`
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	l := logger.OrNop(log)

	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,                // 连续失败3次后打开
		SuccessThreshold:    2,                // 半开状态下成功2次后关闭
		Timeout:             30 * time.Second, // 打开状态持续30秒
		HalfOpenMaxRequests: 2,
		OnStateChange: func(from, to circuitbreaker.State) {
			l.Warn("Plan suggestion circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cb:         circuitbreaker.New(cbConfig),
		logger:     l,
	}
}

// SuggestSubtasks 调用 /decompose；204 或空列表表示没有建议
func (c *Client) SuggestSubtasks(ctx context.Context, req wbs.SubtaskRequest) ([]wbs.SubtaskSuggestion, error) {
	var subtasks []wbs.SubtaskSuggestion

	err := c.cb.Execute(func() error {
		start := time.Now()
		body, err := json.Marshal(req)
		if err != nil {
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/decompose", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		// 传播 trace_id
		if traceID := trace.FromContext(ctx); traceID != "" {
			httpReq.Header.Set(trace.HeaderName(), traceID)
		}

		resp, err := c.httpClient.Do(httpReq)
		latency := time.Since(start)
		if err != nil {
			metrics.RecordSuggestionLatency("error", latency)
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNoContent:
			metrics.RecordSuggestionLatency("empty", latency)
			return nil
		case resp.StatusCode >= 500:
			metrics.RecordSuggestionLatency("5xx", latency)
			return fmt.Errorf("plan suggestion service 5xx: %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			metrics.RecordSuggestionLatency(strconv.Itoa(resp.StatusCode), latency)
			return fmt.Errorf("plan suggestion service error: %d", resp.StatusCode)
		}

		metrics.RecordSuggestionLatency("success", latency)
		var out decomposeResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode plan suggestion: %w", err)
		}
		subtasks = out.Subtasks
		return nil
	})
	if err != nil {
		logger.WithTrace(ctx, c.logger).Debug("Plan suggestion call failed",
			zap.String("node", req.Name),
			zap.Error(err),
		)
		return nil, err
	}
	return subtasks, nil
}

// State 熔断器当前状态，用于 readyz
func (c *Client) State() circuitbreaker.State {
	return c.cb.State()
}
