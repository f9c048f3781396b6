package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"finsaathi-ai-api/internal/application/knowledge"
	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/interfaces/http/dto"
	"finsaathi-ai-api/internal/interfaces/http/middleware"
)

// KnowledgeService 知识库写入
type KnowledgeService interface {
	SubmitIndex(ctx context.Context, job knowledge.Job) (*knowledge.Submission, error)
	Delete(ctx context.Context, space entity.KnowledgeSpace, ownerID, sourceID string) (int, error)
}

// KnowledgeHandler 知识库入库与删除
type KnowledgeHandler struct {
	svc KnowledgeService
}

// NewKnowledgeHandler 创建知识库处理器
func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// Index 提交入库，异步时返回 202
// @Summary 知识入库
// @Tags Knowledge
// @Accept json
// @Produce json
// @Param body body dto.IndexKnowledgeRequest true "入库内容"
// @Success 202 {object} dto.Response[dto.IndexKnowledgeResponse]
// @Router /v1/knowledge/index [post]
func (h *KnowledgeHandler) Index(c *gin.Context) {
	var req dto.IndexKnowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}
	space := entity.KnowledgeSpace(req.Space)
	if !canWrite(c, space) {
		dto.Forbidden(c, "space is not writable by caller")
		return
	}

	sub, err := h.svc.SubmitIndex(c.Request.Context(), req.ToJob(middleware.GetOwnerID(c)))
	if err != nil {
		respondError(c, err, "failed to index knowledge")
		return
	}

	resp := &dto.IndexKnowledgeResponse{JobID: sub.JobID, Queued: sub.Queued, Chunks: sub.Chunks, Indexed: sub.Indexed}
	if sub.Queued {
		dto.Accepted(c, resp)
		return
	}
	dto.Success(c, resp)
}

// Delete 删除某来源的全部片段
// @Summary 删除知识来源
// @Tags Knowledge
// @Produce json
// @Param space path string true "知识空间"
// @Param sid path string true "来源 ID"
// @Success 200 {object} dto.Response[dto.DeleteKnowledgeResponse]
// @Router /v1/knowledge/{space}/sources/{sid} [delete]
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	space := entity.KnowledgeSpace(c.Param("space"))
	if !space.Valid() {
		dto.BadRequest(c, "unknown knowledge space")
		return
	}
	if !canWrite(c, space) {
		dto.Forbidden(c, "space is not writable by caller")
		return
	}

	sourceID := c.Param("sid")
	n, err := h.svc.Delete(c.Request.Context(), space, middleware.GetOwnerID(c), sourceID)
	if err != nil {
		respondError(c, err, "failed to delete knowledge")
		return
	}
	dto.Success(c, &dto.DeleteKnowledgeResponse{SourceID: sourceID, Deleted: n})
}

// canWrite 人格空间只允许顾问写入
func canWrite(c *gin.Context, space entity.KnowledgeSpace) bool {
	if space == entity.SpaceAdvisorPersona {
		return middleware.GetRole(c) == middleware.RoleAdvisor
	}
	return true
}
