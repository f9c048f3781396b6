package multilingual

import (
	"context"
	"errors"
)

var errEmptyTranslation = errors.New("multilingual: empty translation")

// NoopTranslator 原样返回，用于关闭翻译或测试
type NoopTranslator struct{}

func (NoopTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// FallbackTranslator 主提供方失败时尝试备用提供方
type FallbackTranslator struct {
	Primary   Translator
	Secondary Translator
}

func (f FallbackTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	if f.Primary == nil && f.Secondary == nil {
		return "", errors.New("multilingual: no translator configured")
	}
	if f.Primary != nil {
		out, err := f.Primary.Translate(ctx, text, src, tgt)
		if err == nil || f.Secondary == nil || ctx.Err() != nil {
			return out, err
		}
	}
	return f.Secondary.Translate(ctx, text, src, tgt)
}
