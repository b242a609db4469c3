// Команда subsctl выполняет служебные задачи: миграции схемы,
// рассылку уведомлений об истечении подписок и создание учетных записей.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Dhoini/subscription-commerce/config"
	"github.com/Dhoini/subscription-commerce/internal/app"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/spf13/cobra"
)

// Version заполняется при сборке через -ldflags
var Version = "dev"

// env общие зависимости команд
type env struct {
	out io.Writer
	log *logger.Logger
	cfg func() (*config.Config, error)
	app func(ctx context.Context, cfg *config.Config) (*app.App, error)
}

func defaultEnv() *env {
	e := &env{out: os.Stdout, cfg: config.Load}
	e.app = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		return app.New(ctx, cfg, e.log)
	}
	return e
}

func newRootCmd(e *env) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "subsctl",
		Short:         "Maintenance tasks for the subscription commerce service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if e.log == nil {
				e.log = logger.New(logger.ParseLevel(logLevel))
			}
			e.out = cmd.OutOrStdout()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd(e))
	rootCmd.AddCommand(notifyCmd(e))
	rootCmd.AddCommand(provisionCmd(e))
	return rootCmd
}

func main() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
