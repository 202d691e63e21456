package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/archivist/internal/api"
	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/mirror"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// shutdown signal.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve and mirror commands.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive over HTTP",
		Long: `Serve the archive's read operations as a JSON API.

Routes:
  GET /v1/users/:handle/timeline
  GET /v1/conversations/:id
  GET /v1/posts/:id
  GET /v1/users/:handle
  GET /v1/users/id/:id
  GET /v1/search?q=&limit=
  GET /v1/stats
  GET /metrics
  GET /healthz

Example:
  archivist serve --listen 127.0.0.1:8081 --origin https://origin.example.com`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			listen := opts.Config.Listen
			if cmd.Flags().Changed("listen") {
				listen = opts.Listen
			}

			m := metrics.New()
			a, err := openApp(opts.RootOptions, m)
			if err != nil {
				return err
			}
			defer a.Close()

			gin.SetMode(gin.ReleaseMode)
			router := api.NewRouter(a.engine, api.WithMetrics(m), api.WithLogger(a.logger))
			return serveHTTP(cmd, listen, router, a.logger)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

// NewMirrorCommand creates the mirror command.
func NewMirrorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mirror <dir>",
		Short: "Serve a dataset directory as an origin",
		Long: `Serve users.yaml and posts.yaml from dir using the origin's URL scheme.

Point another archive's --origin at the mirror to rebuild it from an
export.

Example:
  archivist mirror ./export --listen 127.0.0.1:8080`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load dataset", err)
			}
			idx := dataset.NewIndex(ds)
			users, posts := idx.Len()
			opts.Logger.Info("dataset loaded", "dir", args[0], "users", users, "posts", posts)

			gin.SetMode(gin.ReleaseMode)
			router := mirror.NewRouter(idx, mirror.WithMetrics(metrics.New()))
			return serveHTTP(cmd, opts.Listen, router, opts.Logger)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "127.0.0.1:8080", "listen address")

	return cmd
}

// serveHTTP runs handler on addr until the command's context is canceled
// or the process receives SIGINT or SIGTERM.
func serveHTTP(cmd *cobra.Command, addr string, handler http.Handler, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	logger.Info("listening", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", ln.Addr())

	select {
	case err := <-errc:
		return WrapExitError(ExitFailure, "server error", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", err)
	}
	return nil
}
