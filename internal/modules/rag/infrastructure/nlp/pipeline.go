package nlp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

const (
	LangEnglish = "en"
	LangRussian = "ru"
)

// profile 单语言的词表与规则参数
type profile struct {
	lang           string
	modals         []string
	roles          map[string]bool
	determiners    map[string]bool
	adverbs        map[string]bool
	purposeMarkers []string
	functionalKeys []string
	nonFuncKeys    []string
	constraintKeys []string
}

// DetectLanguage 基于 whatlanggo 的文档级语言检测。
// 仅支持英文与俄文两条流水线，识别失败或低置信时退回 fallback。
func DetectLanguage(text, fallback string) string {
	if fallback != LangRussian {
		fallback = LangEnglish
	}
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	info := whatlanggo.Detect(text)
	switch info.Lang {
	case whatlanggo.Rus:
		return LangRussian
	case whatlanggo.Eng:
		return LangEnglish
	}
	// 其他语言按脚本兜底：西里尔文走俄文流水线
	if info.Script == unicode.Cyrillic {
		return LangRussian
	}
	if info.Script == unicode.Latin {
		return LangEnglish
	}
	return fallback
}

func profileFor(lang string) *profile {
	if lang == LangRussian {
		return russianProfile
	}
	return englishProfile
}

// SplitSentences 按结句标点切句，标点后必须跟空白，避免切断小数与缩写编号
func SplitSentences(text string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r == '.' || r == '!' || r == '?' || r == '…' {
			if i >= len(text) {
				break
			}
			next, _ := utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(next) {
				if s := strings.TrimSpace(text[start:i]); s != "" {
					out = append(out, s)
				}
				start = i
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// token 保留原文形态，匹配时用小写
type token struct {
	text  string
	lower string
}

func tokenize(s string) []token {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
	})
	toks := make([]token, 0, len(fields))
	for _, f := range fields {
		toks = append(toks, token{text: f, lower: strings.ToLower(f)})
	}
	return toks
}

func containsAnyKey(lower string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
