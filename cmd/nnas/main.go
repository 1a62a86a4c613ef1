package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/nnas/internal/config"
	"github.com/jmerrifield20/nnas/pkg/client"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by every subcommand: the loaded config and the
// logger built from it.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "nnas",
		Short: "Nintendo Network account server client",
		Long: `nnas queries a Nintendo Network account server over mutual TLS.

It presents a console client certificate and device headers, then asks the
server whether account ids exist, fetches the EULA, or maps account ids to
principal ids.

Settings come from a YAML file (--config, ./nnas.yaml or ./configs/nnas.yaml),
NNAS_* environment variables and flags, with flags taking precedence:

  nnas exists --endpoint https://account.nintendo.net/v1/api \
      --cert-path ctr-common-1.crt --key-path ctr-common-1.key \
      --rules account-server --insecure-skip-verify testuser`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./nnas.yaml)")
	pf.String("endpoint", "", "account server API base URL")
	pf.String("cert-path", "", "client certificate (PEM or DER)")
	pf.String("key-path", "", "client private key (PEM or DER)")
	pf.String("ca-path", "", "PEM bundle used to verify the server")
	pf.Bool("insecure-skip-verify", false, "do not verify the server certificate")
	pf.Duration("timeout", 0, "per-request timeout (default 10s)")
	pf.String("rules", "", "response rules: default or account-server")
	pf.String("log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newExistsCmd(a))
	root.AddCommand(newEULACmd(a))
	root.AddCommand(newPIDCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// newClient builds a client from the loaded config. reg may be nil.
func (a *app) newClient(reg prometheus.Registerer) (*client.Client, error) {
	if err := a.cfg.ValidateForClient(); err != nil {
		return nil, err
	}
	opts, err := a.cfg.ClientOptions(a.logger, reg)
	if err != nil {
		return nil, err
	}
	return client.New(a.cfg.Endpoint, a.cfg.CertPath, a.cfg.KeyPath, a.cfg.Device.Profile(), opts...)
}

// ── version ──────────────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nnas version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nnas %s\n", version)
		},
	}
}
