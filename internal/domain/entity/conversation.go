// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/lib/pq"
)

// Role 对话角色枚举
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Surface 对话入口
type Surface string

const (
	// SurfaceAssistant 终端用户助手
	SurfaceAssistant Surface = "assistant"
	// SurfaceCopilot 顾问 co-pilot
	SurfaceCopilot Surface = "copilot"
	// SurfaceClone 顾问人格克隆
	SurfaceClone Surface = "clone"
)

// Valid 是否为已知入口
func (s Surface) Valid() bool {
	switch s {
	case SurfaceAssistant, SurfaceCopilot, SurfaceClone:
		return true
	default:
		return false
	}
}

// ChatThread 对话线程（由外部创建，这里只读取与更新标题）
type ChatThread struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID   string    `json:"owner_id" gorm:"type:varchar(64);index;not null"`
	Surface   Surface   `json:"surface" gorm:"type:varchar(16);not null"`
	Title     string    `json:"title" gorm:"type:varchar(128);not null;default:''"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ChatThread) TableName() string {
	return "chat_threads"
}

// ChatTurn 对话轮次，只追加不修改
type ChatTurn struct {
	ID        string         `json:"id" gorm:"type:uuid;primaryKey"`
	ThreadID  string         `json:"thread_id" gorm:"type:uuid;index;not null"`
	Role      Role           `json:"role" gorm:"type:varchar(16);not null"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	ToolsUsed pq.StringArray `json:"tools_used,omitempty" gorm:"type:text[]"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}

// NewChatTurn 创建对话轮次
func NewChatTurn(threadID string, role Role, content string, toolsUsed []string) *ChatTurn {
	return &ChatTurn{
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		ToolsUsed: pq.StringArray(toolsUsed),
		CreatedAt: time.Now(),
	}
}
