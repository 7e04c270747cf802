package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entrhq/authcache/pkg/logging"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo shop",
		Long: `Serve the demo shop: the JSON API, the API docs page and the single-page
front-end the suites run against. Stops on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger("demoshop")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}
			defer logger.Close()

			shop, err := newShop(cfg, logger)
			if err != nil {
				return err
			}
			st := newStyles(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", st.title.Render("Demo shop"), st.muted.Render("listening on "+cfg.Server.Addr))
			return shop.ListenAndServe(cmd.Context(), cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :3000)")
	a.bind(cmd, "addr", "server.addr")
	return cmd
}
