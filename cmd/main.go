package main

import (
  "context"
  "fmt"
  "os"

  "github.com/joho/godotenv"

  "github.com/atelierhq/atelier-backend/internal/actions"
  "github.com/atelierhq/atelier-backend/internal/config"
  "github.com/atelierhq/atelier-backend/internal/dataset"
  "github.com/atelierhq/atelier-backend/internal/db"
  "github.com/atelierhq/atelier-backend/internal/handlers"
  "github.com/atelierhq/atelier-backend/internal/jobs"
  "github.com/atelierhq/atelier-backend/internal/logger"
  "github.com/atelierhq/atelier-backend/internal/pipeline"
  "github.com/atelierhq/atelier-backend/internal/realtime"
  "github.com/atelierhq/atelier-backend/internal/realtime/bus"
  "github.com/atelierhq/atelier-backend/internal/repos"
  "github.com/atelierhq/atelier-backend/internal/server"
  "github.com/atelierhq/atelier-backend/internal/services"
  "github.com/atelierhq/atelier-backend/internal/sourcedata"
  "github.com/atelierhq/atelier-backend/internal/utils"
)

func main() {
  _ = godotenv.Load()

  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  cfg := config.Load(log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  chatRepo := repos.NewChatRepo(thePG, log)
  userMessageRepo := repos.NewUserMessageRepo(thePG, log)
  aiMessageRepo := repos.NewAiMessageRepo(thePG, log)
  aiMessageMetaRepo := repos.NewAiMessageMetaRepo(thePG, log)
  artifactRepo := repos.NewArtifactRepo(thePG, log)
  artifactTriggerRepo := repos.NewArtifactTriggerRepo(thePG, log)
  proposedActionRepo := repos.NewProposedActionRepo(thePG, log)
  pipelineJobRepo := repos.NewPipelineJobRepo(thePG, log)
  dataSourceCacheRepo := repos.NewDataSourceCacheRepo(thePG, log)
  aiRequestUsageRepo := repos.NewAiRequestUsageRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := realtime.NewSSEHub(log)
  sseBus, err := bus.NewRedisBus(log)
  if err != nil {
    log.Error("Could not init redis SSE bus", "error", err)
    os.Exit(1)
  }
  if err := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
    log.Error("Could not start SSE forwarder", "error", err)
    os.Exit(1)
  }

  // Services
  log.Info("Setting up Services from main...")
  openaiClient, err := services.NewOpenAIClient(log)
  if err != nil {
    log.Error("Could not init OpenAIClient", "error", err)
    os.Exit(1)
  }
  usageTracker := services.NewUsageTracker(aiRequestUsageRepo, cfg, log)
  contextBuilder := services.NewContextBuilder(userMessageRepo, aiMessageRepo, cfg)
  notifier := services.NewSSENotifier(sseBus, log)
  webSearchFetcher := services.NewWebSearchFetcher(openaiClient, usageTracker, cfg, log)
  resolver := sourcedata.NewResolver(dataSourceCacheRepo, webSearchFetcher, log)
  retryService := services.NewRetryService(thePG, userMessageRepo, aiMessageRepo, aiMessageMetaRepo, proposedActionRepo, pipelineJobRepo, log)
  actionCatalog := actions.NewCatalog(actions.Defaults{
    Timezone:    cfg.DefaultTimezone,
    MorningHour: cfg.DefaultMorningHour,
  })
  datasetCodec := dataset.NewCodec(log)

  // Pipeline
  orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
    DB:  thePG,
    Cfg: cfg,
    Log: log,

    Client:   openaiClient,
    Usage:    usageTracker,
    Context:  contextBuilder,
    Resolver: resolver,
    Catalog:  actionCatalog,
    Codec:    datasetCodec,

    Chats:           chatRepo,
    UserMessages:    userMessageRepo,
    AiMessages:      aiMessageRepo,
    Metas:           aiMessageMetaRepo,
    ProposedActions: proposedActionRepo,
    Artifacts:       artifactRepo,

    ReplyNotifier:    notifier,
    ArtifactNotifier: notifier,
    RunStatus:        notifier,
    ActionsNotifier:  notifier,
    TitleNotifier:    notifier,
  })
  worker := jobs.NewWorker(log, pipelineJobRepo, userMessageRepo, orchestrator)
  worker.Start(context.Background())

  // Handlers
  log.Info("Setting up handlers from main...")
  sseHandler := handlers.NewSSEHandler(sseHub)
  triggerHandler := handlers.NewTriggerHandler(artifactTriggerRepo, userMessageRepo, pipelineJobRepo, log)
  userMessageHandler := handlers.NewUserMessageHandler(retryService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    SSEHandler:         sseHandler,
    TriggerHandler:     triggerHandler,
    UserMessageHandler: userMessageHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
