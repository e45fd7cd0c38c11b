/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"doc-assistant/config"
	"doc-assistant/database"
	"doc-assistant/handler"
	"doc-assistant/service"
	"doc-assistant/types"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the document assistant server",
	Long:  `Starts the HTTP server serving document Q&A, search, upload and travel planning endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}

		vectorDB, err := buildVectorStore(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open vector store")
		}

		chatAI, err := buildAIService(cfg, cfg.ChatModel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build chat backend")
		}

		embedder := service.NewOpenAIEmbedder(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		documentService := service.NewDocumentService(types.DocumentServiceConfig{
			MaxChunkSize: cfg.RAG.ChunkSize,
			OverlapSize:  cfg.RAG.ChunkOverlap,
		})
		fileService := service.NewFileService(cfg.UploadDir, vectorDB, documentService, embedder)

		chatStore := database.NewMemoryChatStore()
		ragService := service.NewRAGService(chatAI, embedder, vectorDB, chatStore, cfg.RAG.TopK)
		wsService := service.NewWebSocketService(ragService)

		plannerAI, err := buildAIService(cfg, cfg.PlannerModel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build planner backend")
		}
		reviewerAI, err := buildAIService(cfg, cfg.PlannerModel)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build reviewer backend")
		}
		searchService := service.NewSearchService(cfg.Search.APIKey, cfg.Search.EngineID, cfg.Search.MaxResults)
		plannerService, err := service.NewPlannerService(plannerAI, reviewerAI, searchService)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build planner service")
		}

		corsHandler := handler.NewCorsHandler()
		chatHandler := handler.NewChatHandler(ragService)
		planHandler := handler.NewPlanHandler(plannerService)
		uploadHandler := handler.NewUploadHandler(fileService, cfg.MaxUploadSize)
		searchHandler := handler.NewSearchHandler(ragService)
		documentHandler := handler.NewDocumentHandler(cfg.UploadDir)

		router := gin.Default()
		router.Use(corsHandler.CorsMiddleware)

		router.GET("/healthz", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		apiV1 := router.Group("/api/v1")
		{
			apiV1.POST("/chat", chatHandler.HandleChat)
			apiV1.POST("/plan", planHandler.HandlePlan)
			apiV1.POST("/upload", uploadHandler.UploadDocumentHandler)
			apiV1.GET("/documents/search", searchHandler.HandleSearch)
			apiV1.GET("/documents", documentHandler.ServeDocument)
			apiV1.GET("/ws", gin.WrapF(wsService.HandleChat))
		}

		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	},
}

func buildVectorStore(cfg *config.Config) (database.VectorStore, error) {
	switch cfg.VectorStore.Backend {
	case "", "chromem":
		return database.NewChromemStore(cfg.VectorStore.Path, cfg.VectorStore.Collection)
	case "weaviate":
		return database.NewWeaviateStore(cfg.VectorStore.Weaviate)
	default:
		return nil, fmt.Errorf("unknown vector store backend: %s", cfg.VectorStore.Backend)
	}
}

func buildAIService(cfg *config.Config, model string) (service.AIService, error) {
	switch cfg.AIBackend {
	case "", "openai":
		return service.NewOpenAIService(cfg.AIEndpoint, cfg.OpenAIAPIKey, model, cfg.Temperature), nil
	case "gemini":
		return service.NewGeminiService(cfg.GeminiAPIKey, model)
	default:
		return nil, fmt.Errorf("unknown ai backend: %s", cfg.AIBackend)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
}
