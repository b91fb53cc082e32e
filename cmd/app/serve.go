package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
	"FinCast/pkg/config"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API, Kafka consumer and training workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithEnv(cfgPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.Run(context.Background())
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "config/config.yaml", "config file path")

	return serve
}
