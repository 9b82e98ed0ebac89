package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/koustreak/askdb/internal/config"
	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/session"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	log        *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "askdb",
		Short:         "Ask a database questions in plain language",
		Long:          `askdb introspects a live MySQL or PostgreSQL schema, has a language model turn a question into one SELECT, and runs it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "json", "log format: json or console")
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))

	root.AddCommand(newServeCmd(a), newSchemaCmd(a), newAskCmd(a))
	return root
}

func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "askdb",
		Output:  logOut,
	})
	logger.SetGlobal(a.log)
	return nil
}

// connectFlags are the one-shot connection settings used by schema and ask.
type connectFlags struct {
	driver   string
	host     string
	port     int
	user     string
	password string
	database string
}

func (f *connectFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.driver, "driver", "", "mysql or postgres (default from database.default_driver)")
	fs.StringVar(&f.host, "host", "127.0.0.1", "database host")
	fs.IntVar(&f.port, "port", 0, "database port (default 3306 or 5432)")
	fs.StringVarP(&f.user, "user", "u", "", "database user")
	fs.StringVarP(&f.password, "password", "p", "", "database password (or ASKDB_DB_PASSWORD)")
	fs.StringVarP(&f.database, "database", "d", "", "database name")
}

// open connects through a session manager so the CLI takes the same path as
// the server's /connect.
func (a *app) open(ctx context.Context, f *connectFlags) (*session.Manager, *session.Handle, error) {
	password := f.password
	if password == "" {
		password = os.Getenv(config.EnvPrefix + "_DB_PASSWORD")
	}

	m := session.NewManager(session.Options{
		DefaultDriver:  database.Dialect(a.cfg.Database.DefaultDriver),
		ConnectTimeout: a.cfg.Database.ConnectTimeout,
		Logger:         a.log,
	})
	h, err := m.Connect(ctx, database.ConnectConfig{
		Driver:   database.Dialect(f.driver),
		Host:     f.host,
		Port:     f.port,
		User:     f.user,
		Password: password,
		Database: f.database,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, h, nil
}
