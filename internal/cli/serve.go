// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Serves the conversation store and chat controller over HTTP.

package cli

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API for a browser front end",
		Long: `Serve the chat API over HTTP.

Conversations, model selection and settings are exposed as JSON endpoints
under /api, with store changes pushed on /api/events. Generation settings
are reloaded when the config file changes.`,
		Example: `  ollama-chat serve
  ollama-chat serve --addr 0.0.0.0:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, logToStderr)
			if err != nil {
				return err
			}
			defer a.Close()

			if strings.ToLower(a.cfg.Log.Level) != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			server.Version = Version

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.New(server.Config{
				Addr:           addr,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				RateLimit:      a.cfg.Server.RateLimit,
				RateBurst:      a.cfg.Server.RateBurst,
			}, a.store, a.ctrl,
				server.WithLogger(a.logger.Named("server")),
				server.WithPinger(a.client),
				server.WithSettings(a.cfg.Settings()),
			)

			if _, err := a.ctrl.DiscoverModels(ctx); err != nil {
				a.logger.Warn("model discovery failed", zap.Error(err))
			}

			if _, statErr := os.Stat(a.cfgPath); statErr == nil {
				go watchSettings(cmd, a, srv)
			}

			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// watchSettings pushes generation settings from the config file into the
// running server on every save.
func watchSettings(cmd *cobra.Command, a *app, srv *server.Server) {
	err := config.Watch(cmd.Context(), a.cfgPath,
		func(c *config.Config) {
			if err := srv.SetSettings(c.Settings()); err != nil {
				a.logger.Warn("reloaded settings rejected", zap.Error(err))
				return
			}
			a.logger.Info("settings reloaded", zap.String("path", a.cfgPath))
		},
		func(err error) {
			a.logger.Warn("config reload failed", zap.Error(err))
		},
	)
	if err != nil && cmd.Context().Err() == nil {
		a.logger.Warn("config watch stopped", zap.Error(err))
	}
}
