// internal/config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultAdminPassword ships for local development only. Deployments are
// expected to override it; main logs a warning when it is unchanged.
const DefaultAdminPassword = "thaasbai2024"

// Config carries every runtime knob. Each flag is also bound to the
// matching environment variable (PORT, MAX_CONNECTIONS_PER_IP, ...).
type Config struct {
	Bind                string
	Port                int
	MaxConnectionsPerIP int
	ConnectionRateLimit int
	AdminPassword       string
	Verbose             bool
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		Bind:                "0.0.0.0",
		Port:                5002,
		MaxConnectionsPerIP: 10,
		ConnectionRateLimit: 5,
		AdminPassword:       DefaultAdminPassword,
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.MaxConnectionsPerIP < 1 {
		return fmt.Errorf("max-connections-per-ip must be at least 1, got %d", c.MaxConnectionsPerIP)
	}
	if c.ConnectionRateLimit < 1 {
		return fmt.Errorf("connection-rate-limit must be at least 1, got %d", c.ConnectionRateLimit)
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("admin-password must not be empty")
	}
	return nil
}

// Addr renders the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// NewCommand builds the root cobra command, binding flags to environment
// variables through viper.
func NewCommand(cfg *Config, run func(*Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "thaasbai",
		Short:         "Realtime coordination server for Dhiha Ei and Digu.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: PORT)")
	fs.IntVar(&cfg.MaxConnectionsPerIP, "max-connections-per-ip", cfg.MaxConnectionsPerIP,
		"max concurrent connections from a single IP (env: MAX_CONNECTIONS_PER_IP)")
	fs.IntVar(&cfg.ConnectionRateLimit, "connection-rate-limit", cfg.ConnectionRateLimit,
		"max new connections per IP per second (env: CONNECTION_RATE_LIMIT)")
	fs.StringVar(&cfg.AdminPassword, "admin-password", cfg.AdminPassword,
		"shared secret for the admin surface (env: ADMIN_PASSWORD)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "debug-level logging (env: VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}
