package services

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/knowledge"
	"github.com/legalhub/backend-go/internal/models"
)

// bagEmbedder 确定性词袋嵌入，服务层端到端测试用
type bagEmbedder struct{ dims int }

func (e *bagEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,;:!?\"'()")))
		vec[h.Sum32()%uint32(e.dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *bagEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, _ := e.Embed(ctx, text)
		out[i] = vec
	}
	return out, nil
}

func (e *bagEmbedder) Dimensions() int { return e.dims }

func (e *bagEmbedder) Ready() bool { return true }

// cannedGenerator 固定回答的生成器
type cannedGenerator struct{ answer string }

func (g *cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.answer, nil
}

func (g *cannedGenerator) Ready() bool { return true }

type answerFixture struct {
	service   *AnswerService
	documents *memDocumentRepo
	answers   *memAnswerRepo
}

func newAnswerFixture(t *testing.T, generator knowledge.Generator, docs map[string][]string) *answerFixture {
	t.Helper()
	ctx := context.Background()
	embedder := &bagEmbedder{dims: 64}
	store := knowledge.NewMemoryVectorStore()
	indexer := knowledge.NewEmbeddingIndexer(embedder, store, "docs")
	chunker := knowledge.NewChunker(200, 20)

	documents := newMemDocumentRepo()
	for fingerprint, pages := range docs {
		chunks := chunker.Split(fingerprint, pages)
		require.NoError(t, indexer.IndexDocument(ctx, fingerprint, chunks))
		require.NoError(t, documents.Create(ctx, &models.Document{
			Fingerprint: fingerprint,
			OwnerID:     "user-1",
			Filename:    fingerprint + ".pdf",
			Status:      models.DocumentStatusReady,
			PageCount:   len(pages),
			ChunkCount:  len(chunks),
		}))
	}

	answers := newMemAnswerRepo()
	service := NewAnswerService(
		knowledge.NewRetriever(embedder, store, "docs", 5),
		knowledge.NewAnswerComposer(generator),
		knowledge.NewEvidenceHighlighter(),
		documents,
		answers,
	)
	return &answerFixture{service: service, documents: documents, answers: answers}
}

func leasePages() []string {
	return []string{
		"Rent is due on the first of each month. Late fees apply after a five day grace period.",
		"Termination of this lease requires sixty days written notice delivered to the landlord.",
		"Pets are not permitted without the prior written consent of the landlord.",
	}
}

func TestAnswerQuestion_TopSourceComesFromTheRightPage(t *testing.T) {
	fixture := newAnswerFixture(t,
		&cannedGenerator{answer: "Sixty days written notice is required. [fp::p1::c0]"},
		map[string][]string{"fp": leasePages()})

	resp, err := fixture.service.AnswerQuestion(context.Background(), "user-1", QARequest{
		FileHash: "fp",
		Question: "How much written notice is required for termination of the lease?",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Sources)

	// 答案在第2页，最相关块的页码索引应为1
	assert.Equal(t, 1, resp.Sources[0].Page)
	assert.Equal(t, "fp::p1::c0", resp.Sources[0].ChunkID)
	assert.Equal(t, 0.95, resp.Confidence)
}

func TestAnswerQuestion_RecordsHistoryForRegisteredUser(t *testing.T) {
	fixture := newAnswerFixture(t,
		&cannedGenerator{answer: "Rent is due on the first."},
		map[string][]string{"fp": leasePages()})

	_, err := fixture.service.AnswerQuestion(context.Background(), "user-1", QARequest{
		FileHash: "fp",
		Question: "When is rent due?",
	})
	require.NoError(t, err)

	records, err := fixture.service.History(context.Background(), "user-1", "fp", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(knowledge.ModeQA), records[0].Mode)
	assert.Equal(t, "When is rent due?", records[0].Question)
}

func TestAnswerQuestion_GuestLeavesNoHistory(t *testing.T) {
	fixture := newAnswerFixture(t,
		&cannedGenerator{answer: "Rent is due on the first."},
		map[string][]string{"guest_fp": leasePages()})

	_, err := fixture.service.AnswerQuestion(context.Background(), "", QARequest{
		FileHash: "guest_fp",
		Question: "When is rent due?",
	})
	require.NoError(t, err)
	assert.Empty(t, fixture.answers.records)
}

func TestAnswerQuestion_UnknownDocumentIsNotFound(t *testing.T) {
	fixture := newAnswerFixture(t, &cannedGenerator{answer: "x"}, nil)

	_, err := fixture.service.AnswerQuestion(context.Background(), "user-1", QARequest{
		FileHash: "missing",
		Question: "anything?",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceNotFound))
}

func TestSummarize_UsesSamplingWithoutQuestion(t *testing.T) {
	fixture := newAnswerFixture(t,
		&cannedGenerator{answer: "A residential lease covering rent, termination and pets."},
		map[string][]string{"fp": leasePages()})

	resp, err := fixture.service.Summarize(context.Background(), "user-1", SummarizeRequest{FileHash: "fp"})
	require.NoError(t, err)
	assert.Equal(t, string(knowledge.ModeSummarize), resp.Mode)
	require.NotEmpty(t, resp.Sources)
	// 抽样来源按文档顺序排列
	for i := 1; i < len(resp.Sources); i++ {
		prev, cur := resp.Sources[i-1], resp.Sources[i]
		assert.True(t, prev.Page < cur.Page || (prev.Page == cur.Page && prev.Index < cur.Index))
	}
}

func TestCompare_RetrievesPerDocument(t *testing.T) {
	fixture := newAnswerFixture(t,
		&cannedGenerator{answer: "Lease A requires sixty days, lease B requires thirty days."},
		map[string][]string{
			"fp1": leasePages(),
			"fp2": {"Termination of this agreement requires thirty days notice in writing."},
		})

	resp, err := fixture.service.Compare(context.Background(), "user-1", CompareRequest{
		FileHashes:  []string{"fp1", "fp2"},
		ClauseQuery: "termination notice period",
	})
	require.NoError(t, err)

	var fromFirst, fromSecond bool
	for _, source := range resp.Sources {
		if strings.HasPrefix(source.ChunkID, "fp1::") {
			fromFirst = true
		}
		if strings.HasPrefix(source.ChunkID, "fp2::") {
			fromSecond = true
		}
	}
	assert.True(t, fromFirst)
	assert.True(t, fromSecond)
}

func TestHighlight_EvidencePointsIntoRetrievedChunk(t *testing.T) {
	fixture := newAnswerFixture(t,
		&cannedGenerator{answer: "Termination of this lease requires sixty days written notice."},
		map[string][]string{"fp": leasePages()})

	resp, err := fixture.service.Highlight(context.Background(), "user-1", QARequest{
		FileHash: "fp",
		Question: "How much notice is required for termination?",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Evidence)
	assert.Contains(t, resp.ChunkIDs, resp.Evidence[0].ChunkID)
	assert.True(t, strings.HasPrefix(resp.Evidence[0].ChunkID, "fp::"))
}
