package nlp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/infrastructure/chunking"
	"ReqGraph/pkg/zlog"
)

// RequirementCandidate 一条候选需求及其 AAOR 分解。
// Actor/Action/Object/Result 为尽力而为，缺失时为空串。
// SourceChunk 为候选所在片段的下标，未知时为 -1。
type RequirementCandidate struct {
	Description string
	Type        string
	Actor       string
	Action      string
	Object      string
	Result      string
	SourceChunk int
}

type EntityCandidate struct {
	Name string
	Type string
}

type Extraction struct {
	Language     string
	Requirements []RequirementCandidate
	Entities     []EntityCandidate
}

// Extractor 规则式需求抽取器，支持英文与俄文两条流水线
type Extractor struct {
	DefaultLanguage string
}

func NewExtractor(defaultLanguage string) *Extractor {
	return &Extractor{DefaultLanguage: defaultLanguage}
}

// Extract 遍历片段抽取需求候选，命名实体在整篇文本上统一识别。
// header 片段只更新当前章节类型，不产出需求；
// list_item 整条作为候选；paragraph 先切句再按情态词筛选。
func (e *Extractor) Extract(text string, pieces []chunking.Piece) *Extraction {
	lang := DetectLanguage(text, e.DefaultLanguage)
	p := profileFor(lang)

	out := &Extraction{Language: lang}
	section := ""

	for pi, piece := range pieces {
		switch piece.Type {
		case graph.ChunkTypeHeader:
			section = headerSection(strings.ToLower(piece.Text), p)
		case graph.ChunkTypeListItem:
			candidate := stripListMarker(piece.Text)
			if hasModal(candidate, p) || section != "" {
				out.Requirements = append(out.Requirements, e.buildCandidate(candidate, section, pi, p))
			}
		default:
			for _, sentence := range SplitSentences(piece.Text) {
				if hasModal(sentence, p) {
					out.Requirements = append(out.Requirements, e.buildCandidate(sentence, section, pi, p))
				}
			}
		}
	}
	out.Entities = extractEntities(text)
	return out
}

func (e *Extractor) buildCandidate(sentence, section string, sourceChunk int, p *profile) RequirementCandidate {
	cand := RequirementCandidate{
		Description: strings.TrimSpace(sentence),
		Type:        classify(strings.ToLower(sentence), section, p),
		SourceChunk: sourceChunk,
	}
	actor, action, object, result, ok := decompose(sentence, p)
	if !ok {
		zlog.Debug("requirement decomposition incomplete",
			zap.String("sentence", truncate(sentence, 120)))
	}
	cand.Actor, cand.Action, cand.Object, cand.Result = actor, action, object, result
	return cand
}

// headerSection 标题命中关键词时设置章节类型，未命中则清空
func headerSection(headerLower string, p *profile) string {
	switch {
	case containsAnyKey(headerLower, p.nonFuncKeys):
		return graph.ReqTypeNonFunctional
	case containsAnyKey(headerLower, p.constraintKeys):
		return graph.ReqTypeConstraint
	case containsAnyKey(headerLower, p.functionalKeys):
		return graph.ReqTypeFunctional
	default:
		return ""
	}
}

func classify(sentenceLower, section string, p *profile) string {
	if section != "" {
		return section
	}
	switch {
	case containsAnyKey(sentenceLower, p.nonFuncKeys):
		return graph.ReqTypeNonFunctional
	case containsAnyKey(sentenceLower, p.constraintKeys):
		return graph.ReqTypeConstraint
	default:
		return graph.ReqTypeFunctional
	}
}

func hasModal(sentence string, p *profile) bool {
	_, _, found := findModal(tokenize(sentence), p)
	return found
}

// findModal 返回最先命中的情态词组的起始 token 下标与词组长度
func findModal(toks []token, p *profile) (idx, width int, found bool) {
	for i := range toks {
		for _, modal := range p.modals {
			words := strings.Fields(modal)
			if matchPhrase(toks, i, words) {
				return i, len(words), true
			}
		}
	}
	return 0, 0, false
}

func matchPhrase(toks []token, at int, words []string) bool {
	if at+len(words) > len(toks) {
		return false
	}
	for j, w := range words {
		if toks[at+j].lower != w {
			return false
		}
	}
	return true
}

// decompose 对候选句做 AAOR 分解。
// Actor 取情态词前的角色词或最近名词，Action 取情态词后首个实词，
// Object 取 Action 之后到边界介词为止的名词短语，
// Result 取目的标记之后到句末的子串。
func decompose(sentence string, p *profile) (actor, action, object, result string, ok bool) {
	toks := tokenize(sentence)
	mi, mw, found := findModal(toks, p)
	if !found {
		return "", "", "", "", false
	}

	// Actor：从情态词向前找角色词，找不到则取最近的非限定词
	for i := mi - 1; i >= 0; i-- {
		if p.roles[toks[i].lower] {
			actor = toks[i].text
			break
		}
	}
	if actor == "" {
		for i := mi - 1; i >= 0; i-- {
			if !p.determiners[toks[i].lower] {
				actor = toks[i].text
				break
			}
		}
	}

	// Action：跳过副词与系词后的首个实词
	ai := -1
	for i := mi + mw; i < len(toks); i++ {
		if p.adverbs[toks[i].lower] || p.determiners[toks[i].lower] {
			continue
		}
		action = toks[i].text
		ai = i
		break
	}

	// Object：Action 之后的名词短语，遇到边界介词或目的标记截断
	if ai >= 0 {
		var parts []string
		for i := ai + 1; i < len(toks) && len(parts) < 4; i++ {
			if boundaryWords[toks[i].lower] || isPurposeHead(toks, i, p) {
				break
			}
			if p.determiners[toks[i].lower] {
				continue
			}
			parts = append(parts, toks[i].text)
		}
		object = strings.Join(parts, " ")
	}

	// Result：Action 之后最先出现的目的标记，取其后到句末
	if ai >= 0 {
		lower := strings.ToLower(sentence)
		actionPos := strings.Index(lower, toks[ai].lower)
		if actionPos >= 0 {
			tail := lower[actionPos:]
			best := -1
			bestLen := 0
			for _, marker := range p.purposeMarkers {
				idx := strings.Index(tail, marker)
				// 标记前必须是空白，避免命中 "into" 之类的词内子串
				if idx > 0 && tail[idx-1] == ' ' {
					if best < 0 || idx < best {
						best = idx
						bestLen = len(marker)
					}
				}
			}
			if best >= 0 {
				result = strings.TrimSpace(sentence[actionPos+best+bestLen:])
				result = strings.TrimRight(result, ".!?…")
			}
		}
	}

	ok = actor != "" && action != ""
	return actor, action, object, result, ok
}

var boundaryWords = map[string]bool{
	"before": true, "after": true, "when": true, "while": true,
	"during": true, "within": true, "into": true, "from": true,
	"by": true, "at": true, "on": true, "in": true, "with": true,
	"without": true, "via": true, "and": true, "or": true,
	"до": true, "после": true, "когда": true, "при": true,
	"в": true, "на": true, "с": true, "без": true, "через": true,
	"к": true, "по": true, "и": true, "или": true,
}

func isPurposeHead(toks []token, at int, p *profile) bool {
	for _, marker := range p.purposeMarkers {
		words := strings.Fields(strings.TrimSpace(marker))
		if matchPhrase(toks, at, words) {
			return true
		}
	}
	return false
}

func stripListMarker(s string) string {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimLeft(trimmed, "-*•")
	trimmed = strings.TrimSpace(trimmed)
	// 去掉 "1." / "2)" 之类的编号前缀
	if i := strings.IndexFunc(trimmed, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ')'
	}); i > 0 && unicode.IsSpace(rune(trimmed[i])) {
		trimmed = strings.TrimSpace(trimmed[i:])
	}
	return trimmed
}

// extractEntities 轻量命名实体识别：全大写缩写词与句中大写词序列。
// 不做去重，同名实体可多次出现。
func extractEntities(text string) []EntityCandidate {
	var out []EntityCandidate
	for _, sentence := range SplitSentences(text) {
		toks := tokenize(sentence)
		i := 0
		for i < len(toks) {
			t := toks[i]
			if isAcronym(t.text) {
				out = append(out, EntityCandidate{Name: t.text, Type: "acronym"})
				i++
				continue
			}
			// 句首大写是正常书写，不算实体
			if i > 0 && isCapitalized(t.text) {
				j := i
				for j < len(toks) && isCapitalized(toks[j].text) && !isAcronym(toks[j].text) {
					j++
				}
				name := make([]string, 0, j-i)
				for k := i; k < j; k++ {
					name = append(name, toks[k].text)
				}
				out = append(out, EntityCandidate{Name: strings.Join(name, " "), Type: "term"})
				i = j
				continue
			}
			i++
		}
	}
	return out
}

func isAcronym(s string) bool {
	if utf8.RuneCountInString(s) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func isCapitalized(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	if !unicode.IsUpper(r) {
		return false
	}
	rest := s[utf8.RuneLen(r):]
	for _, rr := range rest {
		if unicode.IsLetter(rr) && unicode.IsUpper(rr) {
			return false
		}
	}
	return rest != ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
