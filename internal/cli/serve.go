package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		addr        string
		sessionDB   string
		secretKey   string
		authMode    string
		contextPath string
		name        string
		siteURL     string
		sessionTTL  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site over HTTP",
		Example: strings.TrimSpace(`
# Serve on localhost with in-memory sessions
cms serve --addr 127.0.0.1:8080

# Mount under /cms, persist sessions, allow picking a user at /login
cms serve --context-path /cms --session-db sessions.db --auth dev
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := web.NewServer(ctx, web.ServerConfig{
				Addr:        listenAddr,
				SiteDir:     app.SiteDir,
				DBPath:      app.DBPath,
				SessionDB:   sessionDB,
				SecretKey:   secretKey,
				AuthMode:    authMode,
				ContextPath: contextPath,
				SessionTTL:  sessionTTL,
				Platform:    model.Platform{Name: name, URL: siteURL, Version: Version},
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer srv.Close()

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}
			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + strings.TrimRight(strings.TrimSpace(contextPath), "/") + "/"

			hints := []string{"open " + url}
			if strings.EqualFold(strings.TrimSpace(authMode), "dev") {
				hints = append(hints, "sign in at "+strings.TrimSuffix(url, "/")+"/login")
			}
			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      actualAddr,
					"url":       url,
					"site":      app.SiteDir,
					"db":        app.DBPath,
					"auth":      authMode,
					"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
				},
				"_hints": hints,
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "cms running at %s\n", url)

			go srv.SweepSessions(ctx, time.Minute)

			hs := &http.Server{
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() { errCh <- hs.Serve(ln) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return writeErr(cmd, err)
			case <-ctx.Done():
			}
			glog.Info("cms: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOr("CMS_ADDR", "127.0.0.1:8080"), "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&sessionDB, "session-db", envOr("CMS_SESSION_DB", ""), "bbolt file for sessions (default: in memory)")
	cmd.Flags().StringVar(&secretKey, "secret-key", envOr("CMS_SECRET_KEY", ""), "Cookie signing key file (default: <site>/.cms/secret.key)")
	cmd.Flags().StringVar(&authMode, "auth", envOr("CMS_AUTH", "none"), "Auth mode (none|dev)")
	cmd.Flags().StringVar(&contextPath, "context-path", envOr("CMS_CONTEXT_PATH", ""), "URL prefix the site is served under")
	cmd.Flags().StringVar(&name, "name", envOr("CMS_NAME", "CMS"), "Platform name exposed as ${platform.name}")
	cmd.Flags().StringVar(&siteURL, "url", envOr("CMS_URL", ""), "Public URL exposed as ${platform.url}")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", 30*time.Minute, "Idle time before a session expires")
	return cmd
}
