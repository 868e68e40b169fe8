package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Database   string
	VectorSize int
	Distance   string
	UseTLS     bool
	Timeout    time.Duration
}

type milvusVectorStore struct {
	milvusClient client.Client
	vectorSize   int
	distance     entity.MetricType
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		vectorSize:   opts.VectorSize,
		distance:     formatMilvusDistance(opts.Distance),
	}, nil
}

func formatMilvusDistance(value string) entity.MetricType {
	switch strings.ToUpper(value) {
	case "DOT", "IP", "INNER_PRODUCT":
		return entity.IP
	case "L2", "EUCLIDEAN":
		return entity.L2
	default:
		return entity.COSINE
	}
}

// EnsureCollection 确保集合存在，重复调用安全
func (s *milvusVectorStore) EnsureCollection(ctx context.Context, collection string, dims int) error {
	if dims <= 0 {
		dims = s.vectorSize
	}

	hasCollection, err := s.milvusClient.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: collection,
		Description:    "legal document chunk vectors",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{
					"max_length": "160",
				},
			},
			{
				Name:     "page",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dims),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	var index entity.Index
	index, err = entity.NewIndexHNSW(s.distance, 8, 64)
	if err != nil {
		// HNSW不可用时回退IVF_FLAT
		index, err = entity.NewIndexIvfFlat(s.distance, 128)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := s.milvusClient.CreateIndex(ctx, collection, "vector", index, false); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	// 搜索前集合必须加载
	if err := s.milvusClient.LoadCollection(ctx, collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

// Upsert 按块ID覆盖写入，重复索引不会产生重复向量
func (s *milvusVectorStore) Upsert(ctx context.Context, collection string, chunks []VectorChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	// 集合维度由建表时的嵌入器决定，批内向量只需彼此一致
	dim, err := embeddingDim(chunks)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(chunks))
	pages := make([]int64, 0, len(chunks))
	indexes := make([]int64, 0, len(chunks))
	contents := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))

	for _, chunk := range chunks {
		ids = append(ids, chunk.ID)
		pages = append(pages, int64(chunk.Page))
		indexes = append(indexes, int64(chunk.Index))
		contents = append(contents, chunk.Text)
		vectors = append(vectors, chunk.Embedding)
	}

	_, err = s.milvusClient.Upsert(ctx, collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnInt64("page", pages),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector("vector", dim, vectors),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, collection, false); err != nil {
		return fmt.Errorf("milvus flush failed: %w", err)
	}

	return nil
}

func (s *milvusVectorStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]SearchMatch, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if topK <= 0 {
		topK = 10
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		collection,
		[]string{},
		"",
		[]string{"page", "chunk_index", "content"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"vector",
		s.distance,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []SearchMatch{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}

	matches := make([]SearchMatch, 0, result.ResultCount)
	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}

	var pages, indexes []int64
	var contents []string
	for _, field := range result.Fields {
		switch field.Name() {
		case "page":
			if col, ok := field.(*entity.ColumnInt64); ok {
				pages = col.Data()
			}
		case "chunk_index":
			if col, ok := field.(*entity.ColumnInt64); ok {
				indexes = col.Data()
			}
		case "content":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				contents = col.Data()
			}
		}
	}

	for i := 0; i < result.ResultCount; i++ {
		match := SearchMatch{}
		if i < len(ids) {
			match.ChunkID = ids[i]
		}
		if i < len(pages) {
			match.Page = int(pages[i])
		}
		if i < len(indexes) {
			match.Index = int(indexes[i])
		}
		if i < len(contents) {
			match.Text = contents[i]
		}
		if i < len(result.Scores) {
			match.Score = similarityScore(s.distance, result.Scores[i])
		}
		matches = append(matches, match)
	}

	// Milvus不保证同分顺序，这里统一排序约定
	sortMatches(matches)
	return matches, nil
}

// ListChunks 按文档顺序返回集合内全部块
func (s *milvusVectorStore) ListChunks(ctx context.Context, collection string) ([]SearchMatch, error) {
	resultSet, err := s.milvusClient.Query(
		ctx,
		collection,
		[]string{},
		"page >= 0",
		[]string{"id", "page", "chunk_index", "content"},
	)
	if err != nil {
		return nil, fmt.Errorf("milvus query failed: %w", err)
	}

	var ids, contents []string
	var pages, indexes []int64
	for _, column := range resultSet {
		switch column.Name() {
		case "id":
			if col, ok := column.(*entity.ColumnVarChar); ok {
				ids = col.Data()
			}
		case "page":
			if col, ok := column.(*entity.ColumnInt64); ok {
				pages = col.Data()
			}
		case "chunk_index":
			if col, ok := column.(*entity.ColumnInt64); ok {
				indexes = col.Data()
			}
		case "content":
			if col, ok := column.(*entity.ColumnVarChar); ok {
				contents = col.Data()
			}
		}
	}

	matches := make([]SearchMatch, 0, len(ids))
	for i := range ids {
		match := SearchMatch{ChunkID: ids[i]}
		if i < len(pages) {
			match.Page = int(pages[i])
		}
		if i < len(indexes) {
			match.Index = int(indexes[i])
		}
		if i < len(contents) {
			match.Text = contents[i]
		}
		matches = append(matches, match)
	}

	sortMatchesByOrder(matches)
	return matches, nil
}

func (s *milvusVectorStore) DropCollection(ctx context.Context, collection string) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !hasCollection {
		return nil
	}
	if err := s.milvusClient.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("milvus drop collection failed: %w", err)
	}
	return nil
}

func (s *milvusVectorStore) HasCollection(ctx context.Context, collection string) (bool, error) {
	return s.milvusClient.HasCollection(ctx, collection)
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

// similarityScore 统一换算为越大越相关的分数。
// L2返回的是距离，越小越近，直接降序排列会颠倒相关性
func similarityScore(metric entity.MetricType, raw float32) float64 {
	if metric == entity.L2 {
		return 1 / (1 + float64(raw))
	}
	return float64(raw)
}

// embeddingDim 校验批内向量维度一致并返回该维度
func embeddingDim(chunks []VectorChunk) (int, error) {
	dim := len(chunks[0].Embedding)
	if dim == 0 {
		return 0, fmt.Errorf("chunk %s has an empty embedding", chunks[0].ID)
	}
	for _, chunk := range chunks[1:] {
		if len(chunk.Embedding) != dim {
			return 0, fmt.Errorf("chunk %s embedding size %d, batch uses %d", chunk.ID, len(chunk.Embedding), dim)
		}
	}
	return dim, nil
}

// sortMatchesByOrder 按文档顺序（页码、块序号）排序
func sortMatchesByOrder(matches []SearchMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Page == matches[j].Page {
			return matches[i].Index < matches[j].Index
		}
		return matches[i].Page < matches[j].Page
	})
}
