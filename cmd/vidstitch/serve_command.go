package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"vidstitch/internal/api"
	"vidstitch/internal/inbox"
	"vidstitch/internal/logging"
	"vidstitch/internal/session"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and inbox watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr := strings.TrimSpace(bind); addr != "" {
				cfg.Paths.APIBind = addr
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess, logger, err := ctx.newSession(session.NopObserver{})
			if err != nil {
				return err
			}
			defer sess.Close()

			if dir := strings.TrimSpace(cfg.Paths.InboxDir); dir != "" {
				watcher, err := inbox.New(dir, sess, logger)
				if err != nil {
					return err
				}
				go func() {
					if err := watcher.Run(runCtx); err != nil && runCtx.Err() == nil {
						logger.Error("inbox watcher stopped", logging.Error(err))
					}
				}()
			}

			handler := api.NewHandler(sess, uploadDir(cfg), logger)
			server := api.NewServer(cfg.Paths.APIBind, handler, logger)
			return server.Run(runCtx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address for the API (overrides config)")
	return cmd
}
