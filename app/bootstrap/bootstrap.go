package bootstrap

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/legalhub/backend-go/internal/config"
	"github.com/legalhub/backend-go/internal/database"
	"github.com/legalhub/backend-go/internal/kafka"
	"github.com/legalhub/backend-go/internal/knowledge"
	"github.com/legalhub/backend-go/internal/logger"
	"github.com/legalhub/backend-go/internal/repository"
	"github.com/legalhub/backend-go/internal/services"
	"github.com/legalhub/backend-go/internal/storage"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	DocumentService *services.DocumentService
	AnswerService   *services.AnswerService
	FeedbackService *services.FeedbackService
	RetrainService  *services.RetrainService
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger, database connections and other shared
// infrastructure components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	app := &App{}

	// Initialize database.
	db, err := database.InitDB()
	if err != nil {
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		return database.CloseDB()
	})

	// Initialize Redis (optional). Failure shouldn't block the app.
	if cfg.Redis.Enabled {
		if _, err := database.InitRedis(); err != nil {
			logger.Warn("Failed to initialize Redis", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return database.CloseRedis()
			})
		}
	}

	// Object storage (minio or local disk).
	objectStorage, err := storage.NewObjectStorage(cfg.Knowledge.Storage)
	if err != nil {
		logger.Warn("Failed to initialize object storage", zap.Error(err))
		objectStorage = nil
	}

	// Vector store provider switch.
	var vectorStore knowledge.VectorStore
	if cfg.Knowledge.VectorStore.Provider == "milvus" {
		milvusCfg := cfg.Knowledge.VectorStore.Milvus
		vectorStore, err = knowledge.NewMilvusVectorStore(knowledge.MilvusOptions{
			Address:    milvusCfg.Address,
			Username:   milvusCfg.Username,
			Password:   milvusCfg.Password,
			Database:   milvusCfg.Database,
			VectorSize: milvusCfg.VectorSize,
			Distance:   milvusCfg.Distance,
			UseTLS:     milvusCfg.TLS,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Milvus vector store initialized", zap.String("address", milvusCfg.Address))
	} else {
		vectorStore = knowledge.NewMemoryVectorStore()
		logger.Info("In-memory vector store initialized")
	}

	// Embedder and generator.
	var embedder knowledge.Embedder
	var generator knowledge.Generator
	if cfg.AI.OpenAIAPIKey != "" {
		embedder = knowledge.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.EmbeddingModel)
		generator = knowledge.NewOpenAIGenerator(cfg.AI.OpenAIAPIKey, cfg.AI.ChatModel, cfg.AI.MaxTokens, cfg.AI.Temperature)
	} else {
		logger.Warn("OpenAI API key not configured, AI services will not be available")
		embedder = &knowledge.NoopEmbedder{}
		generator = &knowledge.NoopGenerator{}
	}

	// Repositories.
	documents := repository.NewDocumentRepository(db)
	answers := repository.NewAnswerRepository(db)
	feedback := repository.NewFeedbackRepository(db)
	retrainState := repository.NewRetrainStateRepository(db)

	// Knowledge pipeline.
	collectionPrefix := cfg.Knowledge.VectorStore.Milvus.CollectionPrefix
	chunker := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	parserManager := knowledge.NewFileParserManager()
	indexer := knowledge.NewEmbeddingIndexer(embedder, vectorStore, collectionPrefix)
	retriever := knowledge.NewRetriever(embedder, vectorStore, collectionPrefix, cfg.Knowledge.DefaultTopK)
	composer := knowledge.NewAnswerComposer(generator)
	highlighter := knowledge.NewEvidenceHighlighter()

	chunkCache, err := services.NewRedisChunkStore()
	if err != nil {
		logger.Warn("Failed to initialize chunk cache", zap.Error(err))
	}

	// Kafka producer (optional).
	var producer kafka.Producer = kafka.NoopProducer{}
	if cfg.Kafka.Enabled {
		kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		} else {
			producer = kafkaProducer
			app.cleanupTasks = append(app.cleanupTasks, producer.Close)
		}
	}

	// Services.
	app.DocumentService = services.NewDocumentService(
		documents, parserManager, chunker, indexer, chunkCache, objectStorage, cfg.FileUpload)
	app.AnswerService = services.NewAnswerService(
		retriever, composer, highlighter, documents, answers)
	app.RetrainService = services.NewRetrainService(
		feedback, retrainState, objectStorage, producer, chunkCache)
	app.FeedbackService = services.NewFeedbackService(
		feedback, retrainState, app.RetrainService, cfg.Retrain.Threshold)

	logger.Info("🚀 Application initialized",
		zap.String("env", cfg.Server.Env),
		zap.String("vector_store", cfg.Knowledge.VectorStore.Provider))

	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
