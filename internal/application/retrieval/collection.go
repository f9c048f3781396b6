package retrieval

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"finsaathi-ai-api/internal/domain/entity"
)

const defaultMaxOwnerRunes = 40

// CollectionName 由空间与 ownerID 推导集合名。
// 清洗后的 owner 只保留 [a-z0-9_] 并截断；末尾追加原始 ownerID 的哈希，
// 清洗结果相同的两个 owner 仍落在不同集合。
func CollectionName(space entity.KnowledgeSpace, ownerID string, maxOwnerRunes int) string {
	if maxOwnerRunes <= 0 {
		maxOwnerRunes = defaultMaxOwnerRunes
	}
	owner := sanitizeIdentifier(ownerID)
	if r := []rune(owner); len(r) > maxOwnerRunes {
		owner = strings.Trim(string(r[:maxOwnerRunes]), "_")
	}
	if owner == "" {
		owner = "x"
	}
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(ownerID))
	return string(space) + "_" + owner + "_" + sum[:8]
}

func sanitizeIdentifier(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if ok {
			sb.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			sb.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(sb.String(), "_")
}
