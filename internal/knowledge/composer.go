package knowledge

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/legalhub/backend-go/internal/errors"
)

// ComposeMode 答案生成模式
type ComposeMode string

const (
	ModeQA        ComposeMode = "qa"
	ModeSummarize ComposeMode = "summarize"
	ModeSimplify  ComposeMode = "simplify"
	ModeCompare   ComposeMode = "compare"
	ModeHighlight ComposeMode = "highlight"
)

// NoContextAnswer 检索结果为空时的兜底回答
const NoContextAnswer = "Not stated in the document."

// ComposedAnswer 生成结果
type ComposedAnswer struct {
	Answer     string        `json:"answer"`
	Confidence float64       `json:"confidence"`
	Sources    []SearchMatch `json:"sources"`
}

// CompareSection 对比模式下单个文档的检索结果
type CompareSection struct {
	Fingerprint string
	Filename    string
	Matches     []SearchMatch
}

// AnswerComposer 基于检索上下文组装提示词并调用生成器
type AnswerComposer struct {
	generator Generator
}

// NewAnswerComposer 创建答案组装器
func NewAnswerComposer(generator Generator) *AnswerComposer {
	return &AnswerComposer{generator: generator}
}

// ComposeQA 问答模式：回答只能来自上下文，并引用块ID
func (c *AnswerComposer) ComposeQA(ctx context.Context, question string, matches []SearchMatch) (*ComposedAnswer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.NewInvalidInputError("question", "question is required")
	}
	if len(matches) == 0 {
		return c.noContextAnswer(), nil
	}

	var prompt strings.Builder
	prompt.WriteString("You are a legal document assistant. Answer the question using ONLY the context below.\n")
	prompt.WriteString("If the context does not contain the answer, reply exactly: \"Not stated in the document.\"\n")
	prompt.WriteString("Cite the chunk ids of the passages you relied on in square brackets.\n\n")
	prompt.WriteString("Context:\n")
	writeContext(&prompt, matches)
	prompt.WriteString(fmt.Sprintf("\nQuestion: %s\nAnswer:", question))

	return c.generate(ctx, prompt.String(), matches)
}

// ComposeSummary 摘要模式：不带问题，覆盖全文抽样上下文
func (c *AnswerComposer) ComposeSummary(ctx context.Context, matches []SearchMatch) (*ComposedAnswer, error) {
	if len(matches) == 0 {
		return c.noContextAnswer(), nil
	}

	var prompt strings.Builder
	prompt.WriteString("You are a legal document assistant. Write a concise summary of the document based ONLY on the excerpts below.\n")
	prompt.WriteString("Cover the key parties, obligations, terms and conditions.\n\n")
	prompt.WriteString("Excerpts:\n")
	writeContext(&prompt, matches)
	prompt.WriteString("\nSummary:")

	return c.generate(ctx, prompt.String(), matches)
}

// ComposeSimplified 白话模式：摘要基础上要求通俗语言
func (c *AnswerComposer) ComposeSimplified(ctx context.Context, matches []SearchMatch) (*ComposedAnswer, error) {
	if len(matches) == 0 {
		return c.noContextAnswer(), nil
	}

	var prompt strings.Builder
	prompt.WriteString("You are a legal document assistant. Explain the document excerpts below in plain, everyday language\n")
	prompt.WriteString("that a person without legal training can understand. Avoid legal jargon; where a legal term is\n")
	prompt.WriteString("unavoidable, explain it in one short sentence.\n\n")
	prompt.WriteString("Excerpts:\n")
	writeContext(&prompt, matches)
	prompt.WriteString("\nPlain-language explanation:")

	return c.generate(ctx, prompt.String(), matches)
}

// ComposeComparison 对比模式：各文档独立检索，逐文档分节呈现，绝不合并集合
func (c *AnswerComposer) ComposeComparison(ctx context.Context, clauseQuery string, sections []CompareSection) (*ComposedAnswer, error) {
	if len(sections) < 2 {
		return nil, apperrors.NewInvalidInputError("file_hashes", "comparison requires at least two documents")
	}

	allEmpty := true
	for _, section := range sections {
		if len(section.Matches) > 0 {
			allEmpty = false
			break
		}
	}
	if allEmpty {
		return c.noContextAnswer(), nil
	}

	var prompt strings.Builder
	prompt.WriteString("You are a legal document assistant. Compare how the documents below treat the clause in question.\n")
	prompt.WriteString("Present the comparison side by side, one section per document, then note the material differences.\n")
	prompt.WriteString("Use ONLY the excerpts provided. If a document's excerpts do not address the clause, say so for that document.\n\n")
	prompt.WriteString(fmt.Sprintf("Clause in question: %s\n", clauseQuery))

	sources := make([]SearchMatch, 0)
	for i, section := range sections {
		name := section.Filename
		if name == "" {
			name = section.Fingerprint
		}
		prompt.WriteString(fmt.Sprintf("\n--- Document %d: %s ---\n", i+1, name))
		if len(section.Matches) == 0 {
			prompt.WriteString("(no relevant excerpts retrieved)\n")
			continue
		}
		writeContext(&prompt, section.Matches)
		sources = append(sources, section.Matches...)
	}
	prompt.WriteString("\nComparison:")

	return c.generate(ctx, prompt.String(), sources)
}

func (c *AnswerComposer) generate(ctx context.Context, prompt string, sources []SearchMatch) (*ComposedAnswer, error) {
	if !c.generator.Ready() {
		return nil, apperrors.NewGenerationError("generator is not available", nil)
	}
	answer, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, apperrors.NewGenerationError("failed to generate answer", err)
	}
	return &ComposedAnswer{
		Answer:     strings.TrimSpace(answer),
		Confidence: confidenceFor(answer),
		Sources:    sources,
	}, nil
}

func (c *AnswerComposer) noContextAnswer() *ComposedAnswer {
	return &ComposedAnswer{
		Answer:     NoContextAnswer,
		Confidence: confidenceFor(NoContextAnswer),
		Sources:    []SearchMatch{},
	}
}

func writeContext(builder *strings.Builder, matches []SearchMatch) {
	for _, match := range matches {
		builder.WriteString(fmt.Sprintf("[%s] (page %d)\n%s\n\n", match.ChunkID, match.Page+1, match.Text))
	}
}

// confidenceFor 置信度启发式：回答承认内容缺失时降级
func confidenceFor(answer string) float64 {
	lowered := strings.ToLower(answer)
	if strings.Contains(lowered, "not stated") || strings.Contains(lowered, "does not contain") {
		return 0.5
	}
	return 0.95
}
