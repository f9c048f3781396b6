package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger 依赖可达性检查
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// LLMProbe 模型可达性探测
type LLMProbe interface {
	HealthCheck(ctx context.Context) bool
}

// HealthDeps 健康检查依赖；Vector 与 LLM 可选，不可用时只标记降级
type HealthDeps struct {
	Postgres Pinger
	Redis    Pinger
	Vector   Pinger
	LLM      LLMProbe
	Version  string
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	deps    HealthDeps
	timeout time.Duration
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(deps HealthDeps) *HealthHandler {
	return &HealthHandler{deps: deps, timeout: 5 * time.Second}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.deps.Version})
}

// Live 存活检查接口
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// LLM 模型可达性
// @Summary 模型健康检查
// @Tags System
// @Produce json
// @Router /health/llm [get]
func (h *HealthHandler) LLM(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	check := h.probeLLM(ctx)
	if check.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, check)
		return
	}
	c.JSON(http.StatusOK, check)
}

// Ready 就绪检查：Postgres 与 Redis 必需，向量库与模型只影响降级标记
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks := map[string]*readinessCheck{
		"postgres": ping(ctx, h.deps.Postgres, "error"),
		"redis":    ping(ctx, h.deps.Redis, "error"),
		"milvus":   ping(ctx, h.deps.Vector, "degraded"),
		"llm":      h.probeLLM(ctx),
	}
	if h.deps.Vector == nil {
		checks["milvus"] = &readinessCheck{Status: "disabled"}
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if checks["postgres"].Status != "ok" || checks["redis"].Status != "ok" {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	if checks["milvus"].Status == "degraded" || checks["llm"].Status != "ok" {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) probeLLM(ctx context.Context) *readinessCheck {
	if h.deps.LLM == nil {
		return &readinessCheck{Status: "missing"}
	}
	start := time.Now()
	ok := h.deps.LLM.HealthCheck(ctx)
	check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if !ok {
		check.Status = "degraded"
		check.Error = "model unreachable"
	}
	return check
}

func ping(ctx context.Context, p Pinger, failStatus string) *readinessCheck {
	if p == nil {
		return &readinessCheck{Status: "missing", Error: "client not configured"}
	}
	start := time.Now()
	err := p.HealthCheck(ctx)
	check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = failStatus
		check.Error = err.Error()
	}
	return check
}
