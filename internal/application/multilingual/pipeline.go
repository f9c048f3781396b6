package multilingual

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"finsaathi-ai-api/pkg/logger"
	"finsaathi-ai-api/pkg/metrics"
)

const (
	defaultCacheTTL  = 24 * time.Hour
	defaultTimeout   = 10 * time.Second
	cacheKeyPrefix   = "translate:"
	cacheCallTimeout = 500 * time.Millisecond
)

// Translator 翻译提供方，失败时返回 error
type Translator interface {
	Translate(ctx context.Context, text, srcLang, tgtLang string) (string, error)
}

// Cache 外部翻译缓存；出错按未命中处理
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Config 翻译管线参数
type Config struct {
	WorkingLanguage string
	CacheTTL        time.Duration
	Timeout         time.Duration
}

// Pipeline 检测 + 双向翻译；任何失败都原样返回文本
type Pipeline struct {
	detector   *Detector
	translator Translator
	cache      Cache
	working    string
	ttl        time.Duration
	timeout    time.Duration
	group      singleflight.Group
}

func NewPipeline(translator Translator, cache Cache, cfg Config) *Pipeline {
	working := normalizeLang(cfg.WorkingLanguage, DefaultWorkingLanguage)
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Pipeline{
		detector:   NewDetector(working),
		translator: translator,
		cache:      cache,
		working:    working,
		ttl:        ttl,
		timeout:    timeout,
	}
}

// WorkingLanguage 工作语言代码
func (p *Pipeline) WorkingLanguage() string {
	return p.working
}

// Detect 见 Detector.Detect
func (p *Pipeline) Detect(text string) string {
	return p.detector.Detect(text)
}

// DetectWithHint 只有检测回落到默认语言时才采用调用方提示
func (p *Pipeline) DetectWithHint(text, hint string) string {
	lang, defaulted := p.detector.DetectWithFallback(text)
	if defaulted {
		if h := normalizeLang(hint, ""); h != "" {
			return h
		}
	}
	return lang
}

// ToWorkingLanguage 源语言 -> 工作语言
func (p *Pipeline) ToWorkingLanguage(ctx context.Context, text, srcLang string) string {
	return p.Translate(ctx, text, srcLang, p.working)
}

// FromWorkingLanguage 工作语言 -> 目标语言
func (p *Pipeline) FromWorkingLanguage(ctx context.Context, text, tgtLang string) string {
	return p.Translate(ctx, text, p.working, tgtLang)
}

// Translate 任意两种语言之间翻译；两端都不是工作语言时经工作语言中转。
// 任一跳失败返回原文。
func (p *Pipeline) Translate(ctx context.Context, text, srcLang, tgtLang string) string {
	src := normalizeLang(srcLang, p.working)
	tgt := normalizeLang(tgtLang, p.working)
	if src == tgt || strings.TrimSpace(text) == "" {
		return text
	}

	if src != p.working && tgt != p.working {
		mid, ok := p.hop(ctx, text, src, p.working)
		if !ok {
			return text
		}
		out, ok := p.hop(ctx, mid, p.working, tgt)
		if !ok {
			return text
		}
		return out
	}

	out, _ := p.hop(ctx, text, src, tgt)
	return out
}

// hop 单跳翻译：缓存 -> 提供方（同键合并）-> 写缓存
func (p *Pipeline) hop(ctx context.Context, text, src, tgt string) (string, bool) {
	key := CacheKey(src, tgt, text)

	if v, ok := p.cacheGet(ctx, key); ok {
		metrics.TranslationTotal.WithLabelValues("hit").Inc()
		return v, true
	}
	if p.translator == nil {
		metrics.TranslationTotal.WithLabelValues("passthrough").Inc()
		return text, false
	}

	// 合并后的调用不继承首个调用方的取消，只受 p.timeout 约束；
	// 每个调用方各自在取消时离开
	ch := p.group.DoChan(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		// 合并期间可能已有结果写入
		if cached, ok := p.cacheGet(flightCtx, key); ok {
			return cached, nil
		}
		callCtx, cancel := context.WithTimeout(flightCtx, p.timeout)
		defer cancel()

		out, err := p.translator.Translate(callCtx, text, src, tgt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", errEmptyTranslation
		}
		p.cacheSet(flightCtx, key, out)
		return out, nil
	})

	var v any
	var err error
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		metrics.TranslationTotal.WithLabelValues("passthrough").Inc()
		logger.Warn(ctx, "translation failed, passing text through",
			"src", src,
			"tgt", tgt,
			"text_len", len(text),
			"error", err.Error(),
		)
		return text, false
	}
	metrics.TranslationTotal.WithLabelValues("miss").Inc()
	return v.(string), true
}

func (p *Pipeline) cacheGet(ctx context.Context, key string) (string, bool) {
	if p.cache == nil {
		return "", false
	}
	cctx, cancel := context.WithTimeout(ctx, cacheCallTimeout)
	defer cancel()
	v, ok, err := p.cache.Get(cctx, key)
	if err != nil {
		logger.Warn(ctx, "translation cache get failed", "error", err.Error())
		return "", false
	}
	return v, ok
}

func (p *Pipeline) cacheSet(ctx context.Context, key, value string) {
	if p.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheCallTimeout)
	defer cancel()
	if err := p.cache.Set(cctx, key, value, p.ttl); err != nil {
		logger.Warn(ctx, "translation cache set failed", "error", err.Error())
	}
}

// CacheKey 内容寻址的缓存键，不包含原文
func CacheKey(src, tgt, text string) string {
	h := sha256.New()
	h.Write([]byte(src))
	h.Write([]byte{0})
	h.Write([]byte(tgt))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
