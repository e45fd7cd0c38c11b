/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"doc-assistant/config"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all indexed documents",
	Long:  `Drops the vector store collection so the index can be rebuilt from scratch.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}

		vectorDB, err := buildVectorStore(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open vector store")
		}

		if err := vectorDB.Reset(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to reset vector store")
		}
		log.Info().Msg("vector store reset")
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
