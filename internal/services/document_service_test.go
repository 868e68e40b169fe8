package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legalhub/backend-go/internal/config"
	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/knowledge"
	"github.com/legalhub/backend-go/internal/models"
)

func newDocumentFixture(t *testing.T) (*DocumentService, *memDocumentRepo, knowledge.VectorStore) {
	t.Helper()
	embedder := &bagEmbedder{dims: 64}
	store := knowledge.NewMemoryVectorStore()
	documents := newMemDocumentRepo()
	service := NewDocumentService(
		documents,
		knowledge.NewFileParserManager(),
		knowledge.NewChunker(200, 20),
		knowledge.NewEmbeddingIndexer(embedder, store, "docs"),
		nil,
		nil,
		config.FileUploadConfig{
			MaxSize:      1 << 20,
			AllowedTypes: []string{".pdf", ".docx", ".txt", ".md"},
		},
	)
	return service, documents, store
}

// waitForStatus 摄取在后台进行，轮询等待终态
func waitForStatus(t *testing.T, service *DocumentService, fingerprint, want string) *DocumentInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := service.GetStatus(context.Background(), fingerprint)
		require.NoError(t, err)
		if info.Status == want {
			return info
		}
		if info.Status == models.DocumentStatusFailed && want != models.DocumentStatusFailed {
			t.Fatalf("ingestion failed: %s", info.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("document %s never reached status %s", fingerprint, want)
	return nil
}

func TestUpload_IngestsTextDocument(t *testing.T) {
	service, _, _ := newDocumentFixture(t)
	content := []byte("Rent is due on the first of each month. Termination requires sixty days notice.")

	result, err := service.Upload(context.Background(), "user-1", "lease.txt", content, false)
	require.NoError(t, err)
	assert.Equal(t, knowledge.Fingerprint(content), result.Fingerprint)
	assert.Equal(t, models.DocumentStatusPending, result.Status)
	assert.False(t, result.Duplicate)

	info := waitForStatus(t, service, result.Fingerprint, models.DocumentStatusReady)
	assert.Equal(t, 1, info.PageCount)
	assert.Equal(t, 1, info.ChunkCount)
}

func TestUpload_GuestFingerprintIsPrefixed(t *testing.T) {
	service, _, _ := newDocumentFixture(t)
	content := []byte("Guest uploaded text.")

	result, err := service.Upload(context.Background(), "", "note.txt", content, true)
	require.NoError(t, err)
	assert.Equal(t, models.GuestPrefix+knowledge.Fingerprint(content), result.Fingerprint)

	waitForStatus(t, service, result.Fingerprint, models.DocumentStatusReady)
}

func TestUpload_RejectsEmptyOversizedAndUnknownFiles(t *testing.T) {
	service, _, _ := newDocumentFixture(t)
	ctx := context.Background()

	_, err := service.Upload(ctx, "user-1", "empty.txt", nil, false)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

	_, err = service.Upload(ctx, "user-1", "big.txt", make([]byte, (1<<20)+1), false)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeFileTooLarge))

	_, err = service.Upload(ctx, "user-1", "binary.exe", []byte("x"), false)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidFileFormat))
}

func TestUpload_DuplicateReusesExistingRecord(t *testing.T) {
	service, _, _ := newDocumentFixture(t)
	content := []byte("Same bytes, same fingerprint, one index.")

	first, err := service.Upload(context.Background(), "user-1", "a.txt", content, false)
	require.NoError(t, err)
	waitForStatus(t, service, first.Fingerprint, models.DocumentStatusReady)

	second, err := service.Upload(context.Background(), "user-1", "b.txt", content, false)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	// 复用已有记录，保留原文件名
	assert.Equal(t, "a.txt", second.Filename)
	assert.Equal(t, models.DocumentStatusReady, second.Status)
}

func TestUpload_FailedDocumentCanBeReingested(t *testing.T) {
	service, documents, _ := newDocumentFixture(t)
	content := []byte("Second chance for this document.")
	fingerprint := knowledge.Fingerprint(content)

	require.NoError(t, documents.Create(context.Background(), &models.Document{
		Fingerprint: fingerprint,
		OwnerID:     "user-1",
		Filename:    "retry.txt",
		Status:      models.DocumentStatusFailed,
		Error:       "parse failed",
	}))

	result, err := service.Upload(context.Background(), "user-1", "retry.txt", content, false)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)

	info := waitForStatus(t, service, fingerprint, models.DocumentStatusReady)
	assert.Empty(t, info.Error)
}

func TestDelete_RemovesRecordAndVectorCollection(t *testing.T) {
	service, _, store := newDocumentFixture(t)
	content := []byte("To be deleted shortly.")

	result, err := service.Upload(context.Background(), "user-1", "gone.txt", content, false)
	require.NoError(t, err)
	waitForStatus(t, service, result.Fingerprint, models.DocumentStatusReady)

	collection := knowledge.CollectionName("docs", result.Fingerprint)
	exists, err := store.HasCollection(context.Background(), collection)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, service.Delete(context.Background(), "user-1", result.Fingerprint))

	exists, err = store.HasCollection(context.Background(), collection)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = service.GetStatus(context.Background(), result.Fingerprint)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceNotFound))
}

func TestDelete_RejectsForeignOwner(t *testing.T) {
	service, _, _ := newDocumentFixture(t)
	content := []byte("Owned by user-1 only.")

	result, err := service.Upload(context.Background(), "user-1", "mine.txt", content, false)
	require.NoError(t, err)
	waitForStatus(t, service, result.Fingerprint, models.DocumentStatusReady)

	err = service.Delete(context.Background(), "user-2", result.Fingerprint)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceNotFound))

	_, err = service.GetStatus(context.Background(), result.Fingerprint)
	assert.NoError(t, err)
}

func TestList_ExcludesGuestDocuments(t *testing.T) {
	service, _, _ := newDocumentFixture(t)

	owned, err := service.Upload(context.Background(), "user-1", "owned.txt", []byte("owned document"), false)
	require.NoError(t, err)
	guest, err := service.Upload(context.Background(), "user-1", "guest.txt", []byte("guest document"), true)
	require.NoError(t, err)
	waitForStatus(t, service, owned.Fingerprint, models.DocumentStatusReady)
	waitForStatus(t, service, guest.Fingerprint, models.DocumentStatusReady)

	infos, err := service.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, owned.Fingerprint, infos[0].Fingerprint)
}

// raceDocumentRepo 模拟并发首传输掉竞争的一方：查重时记录尚不可见，落库时唯一键冲突
type raceDocumentRepo struct {
	*memDocumentRepo
	missed bool
}

func (r *raceDocumentRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Document, error) {
	if !r.missed {
		r.missed = true
		return nil, apperrors.NewNotFoundError("document")
	}
	return r.memDocumentRepo.GetByFingerprint(ctx, fingerprint)
}

func TestUpload_LostCreateRaceIsTreatedAsDuplicate(t *testing.T) {
	embedder := &bagEmbedder{dims: 64}
	store := knowledge.NewMemoryVectorStore()
	documents := &raceDocumentRepo{memDocumentRepo: newMemDocumentRepo()}
	service := NewDocumentService(
		documents,
		knowledge.NewFileParserManager(),
		knowledge.NewChunker(200, 20),
		knowledge.NewEmbeddingIndexer(embedder, store, "docs"),
		nil,
		nil,
		config.FileUploadConfig{MaxSize: 1 << 20, AllowedTypes: []string{".txt"}},
	)

	content := []byte("Simultaneous first upload of the same file.")
	fingerprint := knowledge.Fingerprint(content)
	require.NoError(t, documents.memDocumentRepo.Create(context.Background(), &models.Document{
		Fingerprint: fingerprint,
		OwnerID:     "user-2",
		Filename:    "winner.txt",
		Status:      models.DocumentStatusPending,
	}))

	result, err := service.Upload(context.Background(), "user-1", "loser.txt", content, false)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, fingerprint, result.Fingerprint)
	assert.Equal(t, "winner.txt", result.Filename)
}
