package knowledge

import (
	"sort"
	"strings"
	"unicode"
)

// EvidenceSpan 答案证据片段，偏移为块文本内的rune位置
type EvidenceSpan struct {
	ChunkID string  `json:"chunk_id"`
	Page    int     `json:"page"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Text    string  `json:"text"`
	Overlap float64 `json:"overlap"`
}

// EvidenceHighlighter 本地词面重合证据标注器
// 只依赖答案与检索块之间的词面重合，不信任生成器自带的引用
type EvidenceHighlighter struct {
	minOverlap float64
	maxSpans   int
}

// NewEvidenceHighlighter 创建证据标注器
func NewEvidenceHighlighter() *EvidenceHighlighter {
	return &EvidenceHighlighter{
		minOverlap: 0.3,
		maxSpans:   10,
	}
}

// Highlight 在检索块中定位支撑答案的句子片段
// 结果按重合度降序，同分按（页码，块序号）升序
func (h *EvidenceHighlighter) Highlight(answer string, matches []SearchMatch) []EvidenceSpan {
	answerTokens := tokenSet(answer)
	if len(answerTokens) == 0 {
		return []EvidenceSpan{}
	}

	spans := make([]EvidenceSpan, 0)
	for _, match := range matches {
		for _, sentence := range splitSentences(match.Text) {
			tokens := tokenSet(sentence.text)
			if len(tokens) == 0 {
				continue
			}
			shared := 0
			for token := range tokens {
				if _, ok := answerTokens[token]; ok {
					shared++
				}
			}
			overlap := float64(shared) / float64(len(tokens))
			if overlap < h.minOverlap {
				continue
			}
			spans = append(spans, EvidenceSpan{
				ChunkID: match.ChunkID,
				Page:    match.Page,
				Start:   sentence.start,
				End:     sentence.end,
				Text:    sentence.text,
				Overlap: overlap,
			})
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Overlap != spans[j].Overlap {
			return spans[i].Overlap > spans[j].Overlap
		}
		if spans[i].Page != spans[j].Page {
			return spans[i].Page < spans[j].Page
		}
		return spans[i].Start < spans[j].Start
	})

	if len(spans) > h.maxSpans {
		spans = spans[:h.maxSpans]
	}
	return spans
}

// EvidenceChunkIDs 返回证据涉及的块ID，去重并保持顺序
func EvidenceChunkIDs(spans []EvidenceSpan) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(spans))
	for _, span := range spans {
		if seen[span.ChunkID] {
			continue
		}
		seen[span.ChunkID] = true
		ids = append(ids, span.ChunkID)
	}
	return ids
}

type sentenceSpan struct {
	text  string
	start int
	end   int
}

// splitSentences 按句号、问号、感叹号、分号切句，偏移以rune计
func splitSentences(text string) []sentenceSpan {
	runes := []rune(text)
	sentences := make([]sentenceSpan, 0)
	start := 0
	for i := 0; i <= len(runes); i++ {
		atEnd := i == len(runes)
		if !atEnd {
			switch runes[i] {
			case '.', '?', '!', ';', '\n':
			default:
				continue
			}
		}
		raw := string(runes[start:i])
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			leading := len([]rune(raw)) - len([]rune(strings.TrimLeftFunc(raw, unicode.IsSpace)))
			sentences = append(sentences, sentenceSpan{
				text:  trimmed,
				start: start + leading,
				end:   start + leading + len([]rune(trimmed)),
			})
		}
		start = i + 1
	}
	return sentences
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "not": true,
	"this": true, "that": true, "with": true, "shall": true, "from": true,
	"any": true, "all": true, "may": true, "will": true, "has": true,
	"have": true, "been": true, "its": true, "such": true, "upon": true,
}

// tokenSet 提取有意义的小写词元，过滤短词与常见虚词
func tokenSet(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) < 3 || stopWords[word] {
			continue
		}
		tokens[word] = true
	}
	return tokens
}
