package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/askdb/internal/audit"
	auditminio "github.com/koustreak/askdb/internal/audit/minio"
	"github.com/koustreak/askdb/internal/config"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/nl2sql"
	"github.com/koustreak/askdb/internal/query"
	"github.com/koustreak/askdb/internal/server"
	"github.com/koustreak/askdb/internal/session"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	fs := cmd.Flags()
	fs.String("addr", ":5000", "listen address")
	fs.String("allowed-origin", "", "the single browser origin allowed by CORS")
	_ = a.v.BindPFlag("server.addr", fs.Lookup("addr"))
	_ = a.v.BindPFlag("server.allowed_origin", fs.Lookup("allowed-origin"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	gen, err := nl2sql.NewGenerator(ctx, a.cfg.Generator())
	if err != nil {
		return err
	}

	recorder, err := newRecorder(ctx, a.cfg.Audit)
	if err != nil {
		return err
	}

	sessions := session.NewManager(session.Options{
		DefaultDriver:  database.Dialect(a.cfg.Database.DefaultDriver),
		ConnectTimeout: a.cfg.Database.ConnectTimeout,
		Logger:         a.log,
	})

	srv := server.New(a.cfg.Server, server.Dependencies{
		Sessions:          sessions,
		Translator:        nl2sql.NewTranslator(gen, a.cfg.Database.IntrospectTimeout),
		Executor:          &query.Executor{QueryTimeout: a.cfg.Database.QueryTimeout},
		Recorder:          recorder,
		Logger:            a.log,
		IntrospectTimeout: a.cfg.Database.IntrospectTimeout,
	})

	a.log.InfoWith("starting askdb", map[string]interface{}{
		"addr":     a.cfg.Server.Addr,
		"provider": gen.Provider(),
		"model":    gen.Model(),
		"history":  a.cfg.Audit.Enabled,
	})
	return srv.Run(ctx)
}

func newRecorder(ctx context.Context, cfg config.AuditConfig) (audit.Recorder, error) {
	switch {
	case !cfg.Enabled:
		return audit.Nop{}, nil
	case cfg.Endpoint == "":
		return audit.NewMemory(cfg.MemoryCapacity), nil
	default:
		return auditminio.New(ctx, auditminio.Config{
			Endpoint:         cfg.Endpoint,
			AccessKey:        cfg.AccessKey,
			SecretKey:        cfg.SecretKey,
			UseSSL:           cfg.UseSSL,
			Region:           cfg.Region,
			Bucket:           cfg.Bucket,
			Prefix:           cfg.Prefix,
			AutoCreateBucket: cfg.AutoCreateBucket,
		})
	}
}
