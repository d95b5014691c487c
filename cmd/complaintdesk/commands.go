package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"complaintdesk/config"
	"complaintdesk/core/appbootstrap"
	"complaintdesk/core/directory"
	"complaintdesk/core/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cli carries state shared by every subcommand of one invocation.
type cli struct {
	configPath string
	envFile    string
	cfg        *config.AppConfig
	logger     *utils.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "complaintdesk",
		Short:         "Role-based complaint desk for an academic institution",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a YAML config file (environment only when empty)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.peopleCmd(),
		c.complaintsCmd(),
		c.backupCmd(),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = utils.NewLoggerWithOptions(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	return nil
}

func (c *cli) runtime(ctx context.Context) (*appbootstrap.Runtime, error) {
	return appbootstrap.Compose(ctx, c.cfg, c.logger)
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the notification dispatcher and snapshot scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			rt, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.Server().Run(ctx)
		},
	}
}

// actor resolves the --as flag against the directory.
func actor(people *directory.Directory, id string) (directory.Person, error) {
	if id == "" {
		return directory.Person{}, errors.New("--as is required")
	}
	p, ok := people.Lookup(id)
	if !ok {
		return directory.Person{}, fmt.Errorf("unknown person %q", id)
	}
	return p, nil
}
