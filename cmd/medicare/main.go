// medicare 命令行客户端：登录、管理药品、标记服药并查看依从性。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/spf13/cobra"

	"MediCare/pkg/apiclient"
	"MediCare/pkg/logger"
	"MediCare/utils"
)

// cliConfig 命令行配置，全部来自环境变量
type cliConfig struct {
	APIURL    string        `env:"MEDICARE_API_URL" envDefault:"http://localhost:8888"`
	TokenFile string        `env:"MEDICARE_TOKEN_FILE"`
	Timezone  string        `env:"MEDICARE_TIMEZONE"`
	Timeout   time.Duration `env:"MEDICARE_TIMEOUT" envDefault:"30s"`
}

type app struct {
	cfg      cliConfig
	logLevel string
	client   *apiclient.Client
	store    *sessionStore
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "medicare",
		Short:         "Medication adherence tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitConsole(a.logLevel)
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfg.APIURL, "api", "", "API base URL (overrides MEDICARE_API_URL)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		a.signupCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.medsCmd(),
		a.takeCmd(),
		a.logsCmd(),
		a.statusCmd(),
		a.calendarCmd(),
		a.proofURLCmd(),
	)
	return cmd
}

func (a *app) init() error {
	override := a.cfg.APIURL

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if override != "" {
		cfg.APIURL = override
	}
	if cfg.TokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.TokenFile = filepath.Join(home, ".medicare", "session.json")
	}
	a.cfg = cfg
	a.store = &sessionStore{path: cfg.TokenFile}

	client, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout,
		OnSession: func(s apiclient.Session) {
			if err := a.store.Save(s); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not save session: %v\n", err)
			}
		},
	})
	if err != nil {
		return err
	}

	s, err := a.store.Load()
	if err != nil {
		return err
	}
	client.SetSession(s)
	a.client = client
	return nil
}

// location 优先 MEDICARE_TIMEZONE，其次账号时区
func (a *app) location() *time.Location {
	return utils.LoadLocation(a.cfg.Timezone, a.client.Session().Timezone)
}
