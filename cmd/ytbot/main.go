// Command ytbot runs the Telegram downloader bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Myudi422/youtube-telegram-downloader/core/app"
	"github.com/Myudi422/youtube-telegram-downloader/core/buildinfo"
	corecmd "github.com/Myudi422/youtube-telegram-downloader/core/cmd"
	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"
	coredatabase "github.com/Myudi422/youtube-telegram-downloader/core/database"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	runOpts := func() corecmd.Options {
		return corecmd.Options{
			ConfigPath:        configPath,
			DefaultConfigPath: defaultConfigPath,
			Bootstrap: func(ctx context.Context, cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
				return app.New(ctx, cfg)
			},
		}
	}

	root := &cobra.Command{
		Use:           "ytbot",
		Short:         "Telegram bot that downloads links as audio or video",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(*cobra.Command, []string) error {
			return corecmd.Run(runOpts())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (env CONFIG_PATH)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bot until interrupted",
			RunE: func(*cobra.Command, []string) error {
				return corecmd.Run(runOpts())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply session store migrations and exit",
			RunE: func(*cobra.Command, []string) error {
				cfg, err := coreconfig.Load(corecmd.ResolveConfigPath(runOpts()))
				if err != nil {
					return err
				}
				if cfg.Sessions.Backend != coreconfig.SessionsPostgres {
					return fmt.Errorf("migrate: sessions backend is %q, nothing to migrate", cfg.Sessions.Backend)
				}
				return coredatabase.RunMigrations(cfg.Database)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				cmd.Println(buildinfo.String())
			},
		},
	)
	return root
}
