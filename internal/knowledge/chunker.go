package knowledge

import (
	"fmt"
	"unicode"
)

// Chunk 表示文档内一个可寻址的文本块。
// ID格式为 FP::pPAGE::cIDX，页码与块序号均从0开始，
// 反馈事件以该ID引用证据块，相同输入必须产出相同ID
type Chunk struct {
	ID    string
	Page  int
	Index int
	Text  string
	Start int // 基于rune的页内起始偏移
	End   int // 基于rune的页内结束偏移（不含）
}

// ChunkID 组合稳定块ID
func ChunkID(fingerprint string, page, index int) string {
	return fmt.Sprintf("%s::p%d::c%d", fingerprint, page, index)
}

// Chunker 文本分块器，按固定窗口加重叠切分每页文本
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}
}

// Split 将按页组织的文档文本切分为块序列。
// 切分是确定性的：相同输入永远产出相同的边界与ID。
// 不足一个窗口的非空页产出恰好一个块
func (c *Chunker) Split(fingerprint string, pages []string) []Chunk {
	var chunks []Chunk

	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = c.chunkSize
	}

	for pageIdx, page := range pages {
		runes := []rune(page)
		index := 0

		for start := 0; start < len(runes); start += step {
			end := start + c.chunkSize
			if end > len(runes) {
				end = len(runes)
			}

			// 去掉窗口首尾空白并同步修正偏移，保持Text与[Start,End)一致
			s, e := trimWindow(runes, start, end)
			if s < e {
				chunks = append(chunks, Chunk{
					ID:    ChunkID(fingerprint, pageIdx, index),
					Page:  pageIdx,
					Index: index,
					Text:  string(runes[s:e]),
					Start: s,
					End:   e,
				})
				index++
			}

			if end == len(runes) {
				break
			}
		}
	}

	return chunks
}

func trimWindow(runes []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return start, end
}
