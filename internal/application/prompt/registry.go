// Package prompt 管理内嵌的提示词模板
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptTitleV1   PromptID = "title_v1"
	PromptHealthV1  PromptID = "health_v1"
	PromptEnrichV1  PromptID = "enrich_v1"
	PromptToneV1    PromptID = "tone_v1"
	PromptGuardV1   PromptID = "guard_v1"
	PromptCohortV1  PromptID = "cohort_v1"
	PromptAssistV1  PromptID = "assistant_v1"
	PromptCopilotV1 PromptID = "copilot_v1"
	PromptTransV1   PromptID = "translate_v1"
)

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
	texts map[PromptID]string
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
		texts: make(map[PromptID]string),
	}
}

var defaultRegistry = NewRegistry()

// Default 进程级共享的注册表
func Default() *Registry {
	return defaultRegistry
}

// ChatTemplate 返回 system+user 两段式模板，仅用于成对的模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	if userPath == "" {
		return nil, fmt.Errorf("prompt %s is a text block, not a chat template", id)
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

// Text 返回单段静态文本块（系统提示片段）
func (r *Registry) Text(id PromptID) (string, error) {
	if r == nil {
		return "", fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if s, ok := r.texts[id]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	systemPath, _, err := resolvePromptFiles(id)
	if err != nil {
		return "", err
	}
	s, err := readEmbeddedText(systemPath)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.texts[id] = s
	r.mu.Unlock()
	return s, nil
}

// MustText 模板随二进制内嵌，缺失属于构建错误
func (r *Registry) MustText(id PromptID) string {
	s, err := r.Text(id)
	if err != nil {
		panic(err)
	}
	return s
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptTitleV1:
		return "templates/title_v1.system.txt", "templates/title_v1.user.txt", nil
	case PromptHealthV1:
		return "templates/health_v1.system.txt", "templates/health_v1.user.txt", nil
	case PromptEnrichV1:
		return "templates/enrich_v1.txt", "", nil
	case PromptToneV1:
		return "templates/tone_v1.txt", "", nil
	case PromptGuardV1:
		return "templates/guard_v1.txt", "", nil
	case PromptCohortV1:
		return "templates/cohort_v1.txt", "", nil
	case PromptAssistV1:
		return "templates/assistant_v1.txt", "", nil
	case PromptCopilotV1:
		return "templates/copilot_v1.txt", "", nil
	case PromptTransV1:
		return "templates/translate_v1.system.txt", "templates/translate_v1.user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
