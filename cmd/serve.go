package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/relay"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	srvPort      int
	srvHost      string
	srvStaticDir string
	srvPreload   string
	srvProvider  string
	srvModel     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API and chat relay",
	Example: `  csvdash serve
  csvdash serve --port 8080 --static-dir ./dist --preload sales.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			c.Port = srvPort
		}
		if cmd.Flags().Changed("static-dir") {
			c.StaticDir = srvStaticDir
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st := newStore(c)
		if srvPreload != "" {
			loaded, err := loadFile(ctx, c, srvPreload, inputOptions{})
			if err != nil {
				return fmt.Errorf("preload: %w", err)
			}
			st = loaded
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Loaded %s (%d rows)\n", srvPreload, len(st.Processed().Rows))
		}

		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: srvProvider})
		if err != nil {
			return err
		}
		if warn := missingKeyWarning(c, provider); warn != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), warn)
		}
		rl := relay.New(rt, relay.Options{
			Model:       selectModel(c, srvModel),
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
			DefaultContext: func() string {
				if p := st.Processed(); p != nil {
					return p.Summary.Context()
				}
				return ""
			},
			Logger: logger,
		})

		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := server.New(st, rl, server.Config{StaticDir: c.StaticDir, MaxUploadMB: c.MaxUploadMB}, logger)
		addr := net.JoinHostPort(srvHost, fmt.Sprint(c.Port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Server running on http://%s\n", ln.Addr())
		logger.Info("server started", "addr", ln.Addr().String(), "provider", provider, "static_dir", c.StaticDir)
		return serveUntil(ctx, srv.HTTPServer(addr), ln)
	},
}

// serveUntil serves on ln until ctx is done, then shuts down gracefully.
func serveUntil(ctx context.Context, hs *http.Server, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down server")
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&srvPort, "port", 3000, "port to listen on (overrides config/PORT)")
	serveCmd.Flags().StringVar(&srvHost, "host", "", "interface to bind (all interfaces if empty)")
	serveCmd.Flags().StringVar(&srvStaticDir, "static-dir", "", "directory with the built dashboard (overrides config)")
	serveCmd.Flags().StringVar(&srvPreload, "preload", "", "load this file into the store at startup")
	serveCmd.Flags().StringVar(&srvProvider, "provider", "", "chat provider: groq | openai | ollama (overrides config)")
	serveCmd.Flags().StringVar(&srvModel, "model", "", "chat model (overrides config)")
}
