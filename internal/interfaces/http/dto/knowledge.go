package dto

import (
	"finsaathi-ai-api/internal/application/knowledge"
	"finsaathi-ai-api/internal/domain/entity"
)

// IndexKnowledgeRequest 知识入库请求
type IndexKnowledgeRequest struct {
	Space      string `json:"space" binding:"required,oneof=user_docs advisor_persona"`
	SourceID   string `json:"source_id" binding:"required,max=128"`
	Text       string `json:"text" binding:"required"`
	Class      string `json:"class,omitempty" binding:"omitempty,oneof=document advisor_note past_answer"`
	Category   string `json:"category,omitempty" binding:"omitempty,max=64"`
	SubjectRef string `json:"subject_ref,omitempty" binding:"omitempty,max=128"`
}

// ToJob 请求转任务，owner 来自调用方身份
func (r *IndexKnowledgeRequest) ToJob(ownerID string) knowledge.Job {
	return knowledge.Job{
		Space:      entity.KnowledgeSpace(r.Space),
		OwnerID:    ownerID,
		SourceID:   r.SourceID,
		Text:       r.Text,
		Class:      entity.ContentClass(r.Class),
		Category:   r.Category,
		SubjectRef: r.SubjectRef,
	}
}

// IndexKnowledgeResponse 入库结果
type IndexKnowledgeResponse struct {
	JobID   string `json:"job_id"`
	Queued  bool   `json:"queued"`
	Chunks  int    `json:"chunks"`
	Indexed bool   `json:"indexed"`
}

// DeleteKnowledgeResponse 删除结果
type DeleteKnowledgeResponse struct {
	SourceID string `json:"source_id"`
	Deleted  int    `json:"deleted"`
}
