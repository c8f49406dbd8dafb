package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/focuswatch/internal/cache"
	"github.com/andresmejia3/focuswatch/internal/focus"
	"github.com/andresmejia3/focuswatch/internal/log"
	"github.com/andresmejia3/focuswatch/internal/server"
)

var (
	servePort   string
	serveEngine focus.Config
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Serve live scoring sessions, focus reports and the room websocket stream",
	Annotations: map[string]string{annotationDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe(cmd.Context(), serveEngine)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (default: $PORT or 8080)")
	bindEngineFlags(serveCmd.Flags(), &serveEngine)
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, cfg focus.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	port := servePort
	if port == "" {
		port = env.Port
	}

	c := cache.New(ctx, cache.Options{
		Address:  env.RedisAddress,
		Password: env.RedisPassword,
		DB:       env.RedisDB,
		TTL:      env.CacheTTL,
	})
	defer c.Close()

	srv := server.New(DB, c, server.Options{Engine: cfg, ReportInterval: env.ReportInterval})

	log.Info(log.Fields{
		"port":            port,
		"report_interval": env.ReportInterval.String(),
		"cache_ttl":       env.CacheTTL.String(),
	}, "starting focus API")

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(":" + port) }()
	fmt.Fprintf(os.Stderr, "🌐 Focus API: http://localhost:%s/api (websocket: /ws/rooms/:room)\n", port)

	select {
	case err := <-errc:
		log.Error(log.Fields{"port": port, "error": err}, "focus API stopped")
		return err
	case <-ctx.Done():
	}

	fmt.Fprintln(os.Stderr, "\n🛑 Shutting down...")
	// The signal context is already cancelled, give in-flight requests their own deadline
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
