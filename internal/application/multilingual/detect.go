// Package multilingual 负责语言检测以及与工作语言之间的双向翻译。
package multilingual

import (
	"strings"
	"unicode"
)

// DefaultWorkingLanguage 模型推理使用的语言
const DefaultWorkingLanguage = "en"

// scriptLang 文字区段到语言代码，顺序决定计数相同时的优先级
var scriptLang = []struct {
	table *unicode.RangeTable
	lang  string
}{
	{unicode.Devanagari, "hi"},
	{unicode.Bengali, "bn"},
	{unicode.Tamil, "ta"},
	{unicode.Telugu, "te"},
	{unicode.Kannada, "kn"},
	{unicode.Malayalam, "ml"},
	{unicode.Gujarati, "gu"},
	{unicode.Gurmukhi, "pa"},
	{unicode.Oriya, "or"},
	{unicode.Arabic, "ur"},
}

// hinglishKeywords 罗马字转写印地语的高频词
var hinglishKeywords = map[string]struct{}{
	"kya": {}, "hai": {}, "hain": {}, "mera": {}, "meri": {}, "mere": {}, "mujhe": {},
	"kaise": {}, "kitna": {}, "kitne": {}, "kitni": {}, "nahi": {}, "nahin": {},
	"paisa": {}, "paise": {}, "bachat": {}, "kharcha": {}, "kharch": {}, "karna": {},
	"karo": {}, "chahiye": {}, "batao": {}, "bataiye": {}, "kab": {}, "kyun": {},
	"aur": {}, "lekin": {}, "abhi": {}, "mahina": {}, "mahine": {}, "hum": {},
	"aap": {}, "apna": {}, "apne": {}, "tha": {}, "thi": {}, "hoga": {}, "sakta": {},
	"sakte": {}, "wala": {}, "wali": {}, "yeh": {}, "woh": {},
}

const minHinglishHits = 2

// SupportedLanguages 可检测的语言代码（含工作语言）
func SupportedLanguages(working string) []string {
	out := []string{normalizeLang(working, DefaultWorkingLanguage)}
	for _, s := range scriptLang {
		out = append(out, s.lang)
	}
	return out
}

// Detector 同步、确定性的语言检测，不访问外部服务
type Detector struct {
	working string
}

func NewDetector(working string) *Detector {
	return &Detector{working: normalizeLang(working, DefaultWorkingLanguage)}
}

// Detect 先按文字区段计数，再用转写关键词，最后回落到工作语言
func (d *Detector) Detect(text string) string {
	lang, _ := d.DetectWithFallback(text)
	return lang
}

// DetectWithFallback 额外返回是否回落到了默认语言
func (d *Detector) DetectWithFallback(text string) (lang string, defaulted bool) {
	if lang := detectScript(text); lang != "" {
		return lang, false
	}
	if isHinglish(text) {
		return "hi", false
	}
	return d.working, true
}

func detectScript(text string) string {
	counts := make([]int, len(scriptLang))
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) {
			continue
		}
		for i, s := range scriptLang {
			if unicode.Is(s.table, r) {
				counts[i]++
				break
			}
		}
	}
	best, bestCount := -1, 0
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = i, c
		}
	}
	if best < 0 {
		return ""
	}
	return scriptLang[best].lang
}

func isHinglish(text string) bool {
	hits := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if _, ok := hinglishKeywords[tok]; ok {
			hits[tok] = struct{}{}
			if len(hits) >= minHinglishHits {
				return true
			}
		}
	}
	return false
}

// normalizeLang 小写并只保留主标签：hi-IN -> hi
func normalizeLang(lang, def string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	if l == "" {
		return def
	}
	return l
}
