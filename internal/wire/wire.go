//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"finsaathi-ai-api/internal/application/chat"
	"finsaathi-ai-api/internal/application/knowledge"
	"finsaathi-ai-api/internal/application/persona"
	"finsaathi-ai-api/internal/config"
	"finsaathi-ai-api/internal/domain/repository"
	"finsaathi-ai-api/internal/infrastructure/llm"
	"finsaathi-ai-api/internal/infrastructure/persistence/postgres"
	"finsaathi-ai-api/internal/infrastructure/persistence/redis"
	"finsaathi-ai-api/internal/interfaces/http/handler"
	"finsaathi-ai-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		VectorSet,
		ChatSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化索引 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		ProvideRedisClient,
		VectorSet,
		ProvideIndexConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// RepoSet PostgreSQL 提供者集合
var RepoSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewChatRepository,
	postgres.NewFactRepository,
	postgres.NewReferenceRepository,
	postgres.NewCohortRepository,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewTranslationCache,
	redis.NewRateLimiter,
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// VectorSet 可选向量存储（Milvus 或 Embedder 不可用时检索/索引降级）
var VectorSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideEmbedderOptional,
	ProvideVectorStore,
	ProvideRetrievalEngine,
	ProvideRetrievalIndexer,
)

// ChatSet 对话编排
var ChatSet = wire.NewSet(
	ProvidePromptRegistry,
	llm.NewEinoFactory,
	ProvideGateway,
	ProvideTranslator,
	ProvidePipeline,
	persona.NewCohortAggregator,
	wire.Bind(new(repository.CohortRepository), new(*postgres.CohortRepository)),
	ProvideDispatcher,
	ProvidePersonaBuilder,
	wire.Struct(new(OrchestratorDeps), "*"),
	ProvideOrchestrator,
	ProvideKnowledgeService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewChatHandler,
	wire.Bind(new(handler.TurnHandler), new(*chat.Orchestrator)),
	wire.Bind(new(handler.ThreadCreator), new(*postgres.ChatRepository)),
	handler.NewKnowledgeHandler,
	wire.Bind(new(handler.KnowledgeService), new(*knowledge.Service)),
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)
