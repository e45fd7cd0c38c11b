/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"doc-assistant/config"
	"doc-assistant/service"
	"doc-assistant/types"
)

var ingestTags []string

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index a document or a directory of documents",
	Long: `Extracts, chunks, embeds and indexes the given file. When given a
directory, every supported file (.pdf, .txt, .md) in it is indexed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}

		vectorDB, err := buildVectorStore(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open vector store")
		}

		embedder := service.NewOpenAIEmbedder(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		documentService := service.NewDocumentService(types.DocumentServiceConfig{
			MaxChunkSize: cfg.RAG.ChunkSize,
			OverlapSize:  cfg.RAG.ChunkOverlap,
		})
		fileService := service.NewFileService(cfg.UploadDir, vectorDB, documentService, embedder)

		ctx := context.Background()
		root := args[0]
		info, err := os.Stat(root)
		if err != nil {
			log.Fatal().Err(err).Str("path", root).Msg("cannot read path")
		}

		var paths []string
		if info.IsDir() {
			entries, err := os.ReadDir(root)
			if err != nil {
				log.Fatal().Err(err).Str("path", root).Msg("cannot read directory")
			}
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				ext := strings.ToLower(filepath.Ext(entry.Name()))
				if ext == ".pdf" || ext == ".txt" || ext == ".md" || ext == ".markdown" {
					paths = append(paths, filepath.Join(root, entry.Name()))
				}
			}
			if len(paths) == 0 {
				log.Fatal().Str("path", root).Msg("no supported documents found")
			}
		} else {
			paths = []string{root}
		}

		failed := 0
		for _, path := range paths {
			result, err := fileService.IngestFile(ctx, path, ingestTags)
			if err != nil {
				failed++
				if errors.Is(err, service.ErrNoReadableText) {
					log.Error().Str("file", path).Msg("no readable text")
				} else {
					log.Error().Err(err).Str("file", path).Msg("failed to index")
				}
				continue
			}
			for _, warning := range result.Warnings {
				log.Warn().Str("file", path).Msg(warning)
			}
			log.Info().
				Str("file", path).
				Int("chunks", result.Chunks).
				Int("pages", result.TotalPages).
				Msg("indexed")
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringSliceVar(&ingestTags, "tags", nil, "tags to attach to indexed chunks")
}
