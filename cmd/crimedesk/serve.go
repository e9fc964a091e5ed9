package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/crimedesk/internal/config"
	"github.com/gabrielmiguelok/crimedesk/internal/metrics"
	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/internal/web"
	"github.com/gabrielmiguelok/crimedesk/pkg/audit"
	"github.com/gabrielmiguelok/crimedesk/pkg/health"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/protocol"
	"github.com/gabrielmiguelok/crimedesk/pkg/retry"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
	"github.com/gabrielmiguelok/crimedesk/pkg/shutdown"
	"github.com/gabrielmiguelok/crimedesk/pkg/uploads"
)

const (
	maxLiveSessions = 10000
	liveIdleTimeout = 30 * time.Minute
)

func newServeCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "Listen address")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.Bool("log-json", false, "Log as JSON")
	f.String("data-file", "", "Path of the data snapshot")
	f.String("audit-log", "", "Append audit events to this file")
	f.String("codec", "", "Default live codec (json or msgpack)")
	f.Float64("rate-limit", 0, "Requests per second per client, 0 disables")
	f.Bool("secure-cookies", false, "Mark cookies Secure (behind TLS)")
	f.Int("login-attempts", 0, "Failed logins allowed per client per 15 minutes, 0 disables")
	return cmd
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := []logging.LoggerOption{logging.WithLevel(level), logging.WithOutput(os.Stderr)}
	if cfg.LogJSON {
		opts = append(opts, logging.WithJSON())
	}
	return logging.NewSlogLogger(opts...), nil
}

func newAttachmentStore(ctx context.Context, cfg config.Uploads) (uploads.Store, error) {
	if cfg.Backend == "s3" {
		return uploads.NewS3Store(ctx, uploads.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
		})
	}
	return uploads.NewLocalStore(cfg.Dir)
}

// waitForBucket retries the first bucket check so the server can start
// alongside its object store.
func waitForBucket(ctx context.Context, files *uploads.S3Store, log logging.Logger) error {
	err := retry.Do(ctx, &retry.Config{
		MaxRetries:   6,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn("attachment bucket not ready",
				logging.String("bucket", files.Bucket()),
				logging.Int("attempt", attempt),
				logging.Duration("retry_in", delay),
				logging.Err(err),
			)
		},
	}, files.Ping)
	if err != nil {
		return fmt.Errorf("attachment bucket %s: %w", files.Bucket(), err)
	}
	return nil
}

// seedAdmin creates the configured administrator on first start.
func seedAdmin(ctx context.Context, st *store.Store, admin config.Admin, log logging.Logger) error {
	if admin.Username == "" || admin.Password == "" {
		return nil
	}
	hash, err := security.HashPassword(admin.Password)
	if err != nil {
		return err
	}
	created, err := st.EnsureUser(ctx, admin.Username, hash, true)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info("admin account created", logging.String("username", admin.Username))
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logging.SetDefault(log)

	st, err := store.Open(cfg.DataFile)
	if err != nil {
		return err
	}
	if err := seedAdmin(ctx, st, cfg.Admin, log); err != nil {
		st.Close()
		return err
	}

	files, err := newAttachmentStore(ctx, cfg.Uploads)
	if err != nil {
		st.Close()
		return fmt.Errorf("attachment store: %w", err)
	}
	uploader := uploads.NewUploader(&uploads.UploadConfig{
		AllowedExt:  uploads.DefaultUploadConfig().AllowedExt,
		MaxFileSize: cfg.Uploads.MaxSize,
	}, files)

	var auditLog audit.Logger = audit.NopLogger{}
	if cfg.AuditLog != "" {
		fl, err := audit.NewFileLogger(cfg.AuditLog)
		if err != nil {
			st.Close()
			return fmt.Errorf("audit log: %w", err)
		}
		auditLog = fl
	}

	codec, err := protocol.Lookup(cfg.Codec)
	if err != nil {
		st.Close()
		return err
	}

	checker := health.NewChecker(version)
	switch files := files.(type) {
	case *uploads.LocalStore:
		checker.Add("uploads", health.DirWritableCheck(files.Dir()), time.Second)
	case *uploads.S3Store:
		if err := waitForBucket(ctx, files, log); err != nil {
			st.Close()
			return err
		}
		checker.AddCritical("uploads", files.Ping, 3*time.Second)
	}

	srv := web.New(web.Options{
		Store:           st,
		Uploader:        uploader,
		Audit:           auditLog,
		Metrics:         metrics.New(),
		Health:          checker,
		Logger:          log,
		CSRFSecret:      []byte(cfg.CSRFSecret),
		SecureCookies:   cfg.SecureCookies,
		SessionTTL:      cfg.SessionTTL,
		RateLimit:       int(cfg.RateLimit),
		PageSize:        cfg.PageSize,
		MaxLiveSessions: maxLiveSessions,
		LiveConnsPerIP:  cfg.LiveConnsPerIP,
		LoginAttempts:   cfg.LoginAttempts,
		AllowedOrigins:  cfg.AllowedOrigins,
		Codec:           codec,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := shutdown.NewHandler(shutdown.Config{Timeout: 30 * time.Second, Log: log})
	stop.RegisterFunc("http", shutdown.PriorityHTTP, httpServer.Shutdown)
	stop.RegisterFunc("live", shutdown.PriorityLive, srv.Router().Shutdown)
	stop.Register(shutdown.Closer("drafts", shutdown.PriorityStorage, srv))
	stop.Register(shutdown.Closer("store", shutdown.PriorityStorage, st))
	stop.Register(shutdown.Closer("audit", shutdown.PriorityLast, auditLog))

	go reapIdle(stop.Done(), srv, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("crimedesk listening",
			logging.String("addr", cfg.Addr),
			logging.String("data_file", cfg.DataFile),
			logging.String("uploads", cfg.Uploads.Backend),
			logging.String("codec", codec.Name()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err, ok := <-errCh; ok && err != nil {
			log.Error("server failed", logging.Err(err))
			cancel()
		}
	}()

	if err := stop.Wait(waitCtx); err != nil {
		return err
	}
	log.Info("crimedesk stopped")
	return nil
}

func reapIdle(done <-chan struct{}, srv *web.Server, log logging.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if n := srv.Prune(liveIdleTimeout); n > 0 {
				log.Debug("reaped idle live sessions", logging.Int("count", n))
			}
		}
	}
}
