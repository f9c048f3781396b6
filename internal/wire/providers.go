// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"os"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"finsaathi-ai-api/internal/application/chat"
	"finsaathi-ai-api/internal/application/knowledge"
	"finsaathi-ai-api/internal/application/llmgateway"
	"finsaathi-ai-api/internal/application/multilingual"
	"finsaathi-ai-api/internal/application/persona"
	"finsaathi-ai-api/internal/application/prompt"
	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/application/tools"
	"finsaathi-ai-api/internal/config"
	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/repository"
	infraembedding "finsaathi-ai-api/internal/infrastructure/embedding"
	"finsaathi-ai-api/internal/infrastructure/llm"
	"finsaathi-ai-api/internal/infrastructure/messaging"
	"finsaathi-ai-api/internal/infrastructure/persistence/milvus"
	"finsaathi-ai-api/internal/infrastructure/persistence/postgres"
	"finsaathi-ai-api/internal/infrastructure/persistence/redis"
	"finsaathi-ai-api/internal/infrastructure/translation"
	"finsaathi-ai-api/internal/interfaces/http/handler"
	"finsaathi-ai-api/internal/interfaces/http/router"
	"finsaathi-ai-api/pkg/logger"
)

// Worker 索引任务消费者
type Worker struct {
	Consumer *messaging.Consumer
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(ctx, &cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	return messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

// ProvideMilvusClientOptional Milvus 不可达时不阻塞启动
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector features disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideEmbedderOptional Embedder 不可用时禁用向量检索/索引
func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) (einoembedding.Embedder, error) {
	embedder, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector features disabled", "error", err.Error())
		return nil, nil
	}
	return embedder, nil
}

// ProvideVectorStore 任一依赖缺失时返回 nil 接口
func ProvideVectorStore(cfg *config.Config, client *milvus.Client, embedder einoembedding.Embedder) retrieval.VectorStore {
	if client == nil || embedder == nil {
		return nil
	}
	return milvus.NewVectorStore(client, embedder, cfg.Embedding.Dimension)
}

func ProvideRetrievalEngine(cfg *config.Config, store retrieval.VectorStore) *retrieval.Engine {
	return retrieval.NewEngine(store, retrieval.EngineConfig{
		DefaultTopK:   cfg.Retrieval.DefaultTopK,
		Timeout:       cfg.Retrieval.QueryTimeout,
		MaxOwnerRunes: cfg.Retrieval.MaxOwnerNameRunes,
	})
}

func ProvideRetrievalIndexer(cfg *config.Config, store retrieval.VectorStore) *retrieval.Indexer {
	return retrieval.NewIndexer(store, retrieval.IndexerConfig{
		Windows:       chunkWindows(cfg.Retrieval.Classes),
		MinChunkRunes: cfg.Retrieval.MinChunkRunes,
		Timeout:       cfg.Retrieval.IndexTimeout,
		MaxOwnerRunes: cfg.Retrieval.MaxOwnerNameRunes,
	})
}

// chunkWindows 配置覆盖默认窗口
func chunkWindows(classes map[string]config.ChunkClassConfig) map[entity.ContentClass]retrieval.Window {
	windows := retrieval.DefaultWindows()
	for name, c := range classes {
		if c.Window <= 0 {
			continue
		}
		windows[entity.ContentClass(name)] = retrieval.Window{Size: c.Window, Overlap: c.Overlap}
	}
	return windows
}

// ProvidePromptRegistry 内置提示模板
func ProvidePromptRegistry() *prompt.Registry {
	return prompt.Default()
}

func ProvideGateway(cfg *config.Config, factory *llm.EinoFactory, prompts *prompt.Registry) *llmgateway.Gateway {
	return llmgateway.New(factory, prompts, llmgateway.Config{
		Provider:        factory.DefaultProvider(),
		ChatTemperature: float32(cfg.LLM.ChatTemperature),
		ToolTemperature: float32(cfg.LLM.ToolTemperature),
		ChatTimeout:     cfg.LLM.ChatTimeout,
		ToolTimeout:     cfg.LLM.ToolTimeout,
		TitleTimeout:    cfg.LLM.TitleTimeout,
		HealthTimeout:   cfg.LLM.HealthTimeout,
		TitleMaxRunes:   cfg.LLM.TitleMaxRunes,
	})
}

func ProvideTranslator(cfg *config.Config, factory *llm.EinoFactory, prompts *prompt.Registry) (multilingual.Translator, error) {
	return translation.NewTranslator(&cfg.Translation, factory, prompts, factory.DefaultProvider())
}

func ProvidePipeline(cfg *config.Config, translator multilingual.Translator, cache *redis.TranslationCache) *multilingual.Pipeline {
	return multilingual.NewPipeline(translator, cache, multilingual.Config{
		WorkingLanguage: cfg.Translation.WorkingLanguage,
		CacheTTL:        cfg.Translation.CacheTTL,
		Timeout:         cfg.Translation.Timeout,
	})
}

func ProvideDispatcher(cfg *config.Config, facts *postgres.FactRepository, refs *postgres.ReferenceRepository, docs *retrieval.Engine, cohort *persona.CohortAggregator) *tools.Dispatcher {
	return tools.NewDispatcher(facts, refs, docs, cohort, tools.Config{
		CallTimeout: cfg.Chat.ToolTimeout,
		MaxCalls:    cfg.Chat.MaxToolCalls,
	})
}

func ProvidePersonaBuilder(cfg *config.Config, prompts *prompt.Registry) *persona.Builder {
	return persona.NewBuilder(prompts, cfg.Chat.MaxFewShotExamples)
}

// OrchestratorDeps 编排器依赖
type OrchestratorDeps struct {
	Gateway    *llmgateway.Gateway
	Pipeline   *multilingual.Pipeline
	Dispatcher *tools.Dispatcher
	Engine     *retrieval.Engine
	Cohort     *persona.CohortAggregator
	Builder    *persona.Builder
	Chats      *postgres.ChatRepository
	Facts      *postgres.FactRepository
	Cohorts    *postgres.CohortRepository
}

func ProvideOrchestrator(cfg *config.Config, deps OrchestratorDeps) *chat.Orchestrator {
	return chat.NewOrchestrator(chat.Deps{
		Gateway:    deps.Gateway,
		Translator: deps.Pipeline,
		Executor:   deps.Dispatcher,
		Examples:   deps.Engine,
		Cohort:     deps.Cohort,
		Builder:    deps.Builder,
		Chats:      deps.Chats,
		Facts:      deps.Facts,
		Cohorts:    deps.Cohorts,
	}, chat.Config{
		HistoryTurns:   cfg.Chat.HistoryTurns,
		MaxFewShot:     cfg.Chat.MaxFewShotExamples,
		PersistTimeout: cfg.Chat.PersistTimeout,
		FactTimeout:    cfg.Chat.FactTimeout,
	})
}

// ProvideKnowledgeService 网关侧：入库走队列，删除同步
func ProvideKnowledgeService(indexer *retrieval.Indexer, producer *messaging.Producer) *knowledge.Service {
	return knowledge.NewService(indexer, producer)
}

// ProvideHealthHandler 未配置的依赖保持 nil 接口
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, rdb *redis.Client, mv *milvus.Client, gateway *llmgateway.Gateway) *handler.HealthHandler {
	deps := handler.HealthDeps{
		Postgres: pg,
		Redis:    rdb,
		LLM:      gateway,
		Version:  cfg.App.Version,
	}
	if mv != nil {
		deps.Vector = mv
	}
	return handler.NewHealthHandler(deps)
}

func ProvideRouter(cfg *config.Config, handlers router.Handlers, limiter *redis.RateLimiter) *router.Router {
	return router.New(cfg, handlers, limiter)
}

// ProvideIndexConsumer 索引 worker：同步执行，失败交给流重试
func ProvideIndexConsumer(cfg *config.Config, rdb *redis.Client, indexer *retrieval.Indexer) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(rdb.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamKnowledge,
		Group:         messaging.ConsumerGroupIndexer,
		ConsumerName:  consumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	messaging.RegisterKnowledgeHandlers(consumer, knowledge.NewService(indexer, nil))
	return consumer
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

var (
	_ repository.ChatRepository      = (*postgres.ChatRepository)(nil)
	_ repository.FactRepository      = (*postgres.FactRepository)(nil)
	_ repository.ReferenceRepository = (*postgres.ReferenceRepository)(nil)
	_ repository.CohortRepository    = (*postgres.CohortRepository)(nil)
	_ repository.Transactor          = (*postgres.TxManager)(nil)
	_ retrieval.VectorStore          = (*milvus.VectorStore)(nil)
)
