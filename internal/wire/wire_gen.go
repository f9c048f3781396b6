// 注入器按 wire.go 中的 provider 集合手工维护，与 wire 生成的结构一致。
// 修改集合后执行 go generate 重新生成，或同步修改本文件；wire_test 校验两边一致。

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"

	"finsaathi-ai-api/internal/application/persona"
	"finsaathi-ai-api/internal/config"
	"finsaathi-ai-api/internal/infrastructure/llm"
	"finsaathi-ai-api/internal/infrastructure/persistence/postgres"
	"finsaathi-ai-api/internal/infrastructure/persistence/redis"
	"finsaathi-ai-api/internal/interfaces/http/handler"
	"finsaathi-ai-api/internal/interfaces/http/router"
)

// Injectors from wire.go:

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	client, cleanup, err := ProvidePostgresClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	redisClient, cleanup2, err := ProvideRedisClient(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	milvusClient, cleanup3, err := ProvideMilvusClientOptional(ctx, cfg)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	registry := ProvidePromptRegistry()
	einoFactory := llm.NewEinoFactory(cfg)
	gateway := ProvideGateway(cfg, einoFactory, registry)
	healthHandler := ProvideHealthHandler(cfg, client, redisClient, milvusClient, gateway)
	translator, err := ProvideTranslator(cfg, einoFactory, registry)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	translationCache := redis.NewTranslationCache(redisClient)
	pipeline := ProvidePipeline(cfg, translator, translationCache)
	factRepository := postgres.NewFactRepository(client)
	referenceRepository := postgres.NewReferenceRepository(client)
	embedder, err := ProvideEmbedderOptional(ctx, cfg)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	vectorStore := ProvideVectorStore(cfg, milvusClient, embedder)
	engine := ProvideRetrievalEngine(cfg, vectorStore)
	txManager := postgres.NewTxManager(client)
	cohortRepository := postgres.NewCohortRepository(client, factRepository, txManager)
	cohortAggregator := persona.NewCohortAggregator(cohortRepository)
	dispatcher := ProvideDispatcher(cfg, factRepository, referenceRepository, engine, cohortAggregator)
	builder := ProvidePersonaBuilder(cfg, registry)
	chatRepository := postgres.NewChatRepository(client, txManager)
	orchestratorDeps := OrchestratorDeps{
		Gateway:    gateway,
		Pipeline:   pipeline,
		Dispatcher: dispatcher,
		Engine:     engine,
		Cohort:     cohortAggregator,
		Builder:    builder,
		Chats:      chatRepository,
		Facts:      factRepository,
		Cohorts:    cohortRepository,
	}
	orchestrator := ProvideOrchestrator(cfg, orchestratorDeps)
	chatHandler := handler.NewChatHandler(orchestrator, chatRepository)
	indexer := ProvideRetrievalIndexer(cfg, vectorStore)
	producer := ProvideMessagingProducer(redisClient, cfg)
	service := ProvideKnowledgeService(indexer, producer)
	knowledgeHandler := handler.NewKnowledgeHandler(service)
	handlers := router.Handlers{
		Health:    healthHandler,
		Chat:      chatHandler,
		Knowledge: knowledgeHandler,
	}
	rateLimiter := redis.NewRateLimiter(redisClient)
	routerRouter := ProvideRouter(cfg, handlers, rateLimiter)
	return routerRouter, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}

// InitializeWorker 初始化索引 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	client, cleanup, err := ProvideRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	milvusClient, cleanup2, err := ProvideMilvusClientOptional(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	embedder, err := ProvideEmbedderOptional(ctx, cfg)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	vectorStore := ProvideVectorStore(cfg, milvusClient, embedder)
	indexer := ProvideRetrievalIndexer(cfg, vectorStore)
	consumer := ProvideIndexConsumer(cfg, client, indexer)
	worker := &Worker{
		Consumer: consumer,
	}
	return worker, func() {
		cleanup2()
		cleanup()
	}, nil
}
