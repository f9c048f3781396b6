package retrieval

import (
	"strings"

	"finsaathi-ai-api/internal/domain/entity"
)

// Window 切分窗口（按 rune 计）
type Window struct {
	Size    int
	Overlap int
}

// DefaultWindows 各内容类别的默认窗口
func DefaultWindows() map[entity.ContentClass]Window {
	return map[entity.ContentClass]Window{
		entity.ContentClassDocument:    {Size: 500, Overlap: 50},
		entity.ContentClassAdvisorNote: {Size: 800, Overlap: 100},
		entity.ContentClassPastAnswer:  {Size: 800, Overlap: 100},
	}
}

// Chunker 按内容类别切分文本
type Chunker struct {
	windows  map[entity.ContentClass]Window
	minRunes int
}

// NewChunker windows 为空时使用默认值
func NewChunker(windows map[entity.ContentClass]Window, minRunes int) *Chunker {
	merged := DefaultWindows()
	for class, w := range windows {
		if w.Size > 0 {
			merged[class] = w
		}
	}
	if minRunes < 0 {
		minRunes = 0
	}
	return &Chunker{windows: merged, minRunes: minRunes}
}

// WindowFor 返回类别对应窗口，未知类别按 document
func (c *Chunker) WindowFor(class entity.ContentClass) Window {
	if w, ok := c.windows[class]; ok {
		return w
	}
	return c.windows[entity.ContentClassDocument]
}

// Split 切分并过滤过短片段；只有一个片段时不过滤。
func (c *Chunker) Split(class entity.ContentClass, text string) []string {
	w := c.WindowFor(class)
	chunks := splitByRunes(text, w.Size, w.Overlap)
	if len(chunks) <= 1 || c.minRunes == 0 {
		return chunks
	}
	out := chunks[:0]
	for _, chunk := range chunks {
		if len([]rune(chunk)) < c.minRunes {
			continue
		}
		out = append(out, chunk)
	}
	return out
}

func splitByRunes(s string, maxRunes int, overlapRunes int) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	if maxRunes <= 0 {
		return []string{raw}
	}
	if overlapRunes < 0 {
		overlapRunes = 0
	}
	runes := []rune(raw)
	if len(runes) <= maxRunes {
		return []string{raw}
	}
	step := maxRunes - overlapRunes
	if step <= 0 {
		step = maxRunes
	}

	out := make([]string, 0, (len(runes)/step)+1)
	for start := 0; start < len(runes); start += step {
		end := start + maxRunes
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end >= len(runes) {
			break
		}
	}
	return out
}
