package services

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/legalhub/backend-go/internal/errors"
	"github.com/legalhub/backend-go/internal/models"
	"gorm.io/gorm"
)

// 内存仓库实现，服务层测试共用

type memDocumentRepo struct {
	mu   sync.RWMutex
	docs map[string]models.Document
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{docs: make(map[string]models.Document)}
}

func (r *memDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// 指纹为主键，与数据库唯一约束一致
	if _, ok := r.docs[doc.Fingerprint]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.docs[doc.Fingerprint] = *doc
	return nil
}

func (r *memDocumentRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[fingerprint]
	if !ok {
		return nil, apperrors.NewNotFoundError("document")
	}
	out := doc
	return &out, nil
}

func (r *memDocumentRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Document
	for _, doc := range r.docs {
		d := doc
		if d.OwnerID == ownerID && !d.IsGuest() {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out, nil
}

func (r *memDocumentRepo) Update(ctx context.Context, fingerprint string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[fingerprint]
	if !ok {
		return apperrors.NewNotFoundError("document")
	}
	for key, value := range updates {
		switch key {
		case "status":
			doc.Status = value.(string)
		case "error":
			doc.Error = value.(string)
		case "page_count":
			doc.PageCount = value.(int)
		case "chunk_count":
			doc.ChunkCount = value.(int)
		}
	}
	r.docs[fingerprint] = doc
	return nil
}

func (r *memDocumentRepo) Delete(ctx context.Context, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, fingerprint)
	return nil
}

type memAnswerRepo struct {
	mu      sync.RWMutex
	records []models.AnswerRecord
}

func newMemAnswerRepo() *memAnswerRepo {
	return &memAnswerRepo{}
}

func (r *memAnswerRepo) Create(ctx context.Context, record *models.AnswerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = uint(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

func (r *memAnswerRepo) ListByUser(ctx context.Context, userID, fingerprint string, limit int) ([]models.AnswerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.AnswerRecord
	for _, record := range r.records {
		if record.UserID != userID {
			continue
		}
		if fingerprint != "" && record.Fingerprint != fingerprint {
			continue
		}
		out = append(out, record)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memFeedbackRepo struct {
	mu     sync.RWMutex
	events []models.FeedbackEvent
}

func newMemFeedbackRepo() *memFeedbackRepo {
	return &memFeedbackRepo{}
}

func (r *memFeedbackRepo) Create(ctx context.Context, event *models.FeedbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uint(len(r.events) + 1)
	r.events = append(r.events, *event)
	return nil
}

func (r *memFeedbackRepo) ListTrainable(ctx context.Context, userID string) ([]models.FeedbackEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.FeedbackEvent
	for _, event := range r.events {
		if event.UserID == userID && !event.Confidential && event.CorrectedOutput != "" {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *memFeedbackRepo) CountNonConfidential(ctx context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, event := range r.events {
		if event.UserID == userID && !event.Confidential {
			count++
		}
	}
	return count, nil
}

func (r *memFeedbackRepo) all() []models.FeedbackEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.FeedbackEvent, len(r.events))
	copy(out, r.events)
	return out
}

type memRetrainStateRepo struct {
	mu     sync.RWMutex
	states map[string]models.RetrainState

	// onSave 在写入前执行，用于在测试里拉宽读改写窗口
	onSave func()
}

func newMemRetrainStateRepo() *memRetrainStateRepo {
	return &memRetrainStateRepo{states: make(map[string]models.RetrainState)}
}

func (r *memRetrainStateRepo) Get(ctx context.Context, userID string) (*models.RetrainState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.states[userID]
	if !ok {
		return &models.RetrainState{
			UserID: userID,
			State:  models.RetrainStateAccumulating,
		}, nil
	}
	out := state
	return &out, nil
}

func (r *memRetrainStateRepo) Save(ctx context.Context, state *models.RetrainState) error {
	if r.onSave != nil {
		r.onSave()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.UserID] = *state
	return nil
}

// fakeDispatcher 统计分发次数，不执行任务
type fakeDispatcher struct {
	mu    sync.Mutex
	users []string
}

func (d *fakeDispatcher) Dispatch(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, userID)
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}
