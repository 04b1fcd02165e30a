package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goclaw/willing/config"
	"github.com/goclaw/willing/pkg/version"
)

type rootOptions struct {
	configPath string
	envFile    string
	overrides  overrideFlags
}

type overrideFlags struct {
	port     int
	logLevel string
	storage  string
	debug    bool
}

func (o overrideFlags) toMap() map[string]interface{} {
	m := make(map[string]interface{})
	if o.port != 0 {
		m["server.port"] = o.port
	}
	if o.logLevel != "" {
		m["log.level"] = o.logLevel
	}
	if o.storage != "" {
		m["storage.type"] = o.storage
	}
	if o.debug {
		m["app.debug"] = true
	}
	return m
}

func (o *rootOptions) load() (*config.Config, *config.Loader, error) {
	loader := config.NewLoader(config.WithEnvFile(o.envFile))
	cfg, err := loader.Load(o.configPath, o.overrides.toMap())
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "willingd",
		Short:         "Reply willingness daemon for chat agents",
		Long:          "willingd decides, per conversation, whether a chat agent should answer an incoming message.",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to configuration file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment (empty to skip)")
	flags.IntVar(&opts.overrides.port, "port", 0, "override server port")
	flags.StringVar(&opts.overrides.logLevel, "log-level", "", "override log level")
	flags.StringVar(&opts.overrides.storage, "storage", "", "override storage backend (memory, badger, redis)")
	flags.BoolVar(&opts.overrides.debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newCheckConfigCmd(opts))
	root.AddCommand(newSimulateCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}

func newCheckConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return err
		},
	}
}
