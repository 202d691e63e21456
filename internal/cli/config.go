package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/archivist/internal/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the --config file and flag
overrides have been applied.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(opts, cmd.OutOrStdout()).Success(newConfigView(opts.Config))
		},
	}
}

// configView is the printable form of config.Config, keyed like the
// configuration file.
type configView struct {
	Database string `json:"database"`
	Origin   struct {
		URL           string `json:"url"`
		Timeout       string `json:"timeout"`
		RetryCooldown string `json:"retry_cooldown"`
	} `json:"origin"`
	Cache struct {
		Users int64 `json:"users"`
	} `json:"cache"`
	Listen string `json:"listen"`
	Log    struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"log"`
	Seed struct {
		Concurrency int `json:"concurrency"`
	} `json:"seed"`
	Resolver struct {
		MaxSteps int `json:"max_steps"`
	} `json:"resolver"`
}

func newConfigView(c config.Config) configView {
	var v configView
	v.Database = c.Database
	v.Origin.URL = c.Origin.URL
	v.Origin.Timeout = c.Origin.Timeout.String()
	v.Origin.RetryCooldown = c.Origin.RetryCooldown.String()
	v.Cache.Users = c.Cache.Users
	v.Listen = c.Listen
	v.Log.Level = c.Log.Level
	v.Log.Format = c.Log.Format
	v.Seed.Concurrency = c.Seed.Concurrency
	v.Resolver.MaxSteps = c.Resolver.MaxSteps
	return v
}

// String renders the view as a CUE file that Load accepts.
func (v configView) String() string {
	return fmt.Sprintf(`database: %q
origin: {
	url:            %q
	timeout:        %q
	retry_cooldown: %q
}
cache: users: %d
listen: %q
log: {
	level:  %q
	format: %q
}
seed: concurrency: %d
resolver: max_steps: %d`,
		v.Database,
		v.Origin.URL, v.Origin.Timeout, v.Origin.RetryCooldown,
		v.Cache.Users,
		v.Listen,
		v.Log.Level, v.Log.Format,
		v.Seed.Concurrency,
		v.Resolver.MaxSteps)
}
