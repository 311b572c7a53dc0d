// Package cli provides the command-line interface for semgate. The CLI
// is a client of a running gateway: it authenticates, issues HTTP
// requests, and displays real responses.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/semgate-labs/semgate/internal/config"
)

// Exit codes for scripting.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAuth       = 2
	ExitEngine     = 3
	ExitInternal   = 4
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	configPath string
	endpoint   string
	apiKey     string
	jsonOutput bool
	quiet      bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the CLI.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "semgate: %v\n", err)
		return ExitInternal
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semgate",
		Short: "semgate - semantic analytics gateway client",
		Long: `semgate is the client for a running semgate gateway.

It submits semantic queries, validates raw SQL, and inspects gateway
health from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.semgate/config.yaml)")
	cmd.PersistentFlags().StringVar(&c.endpoint, "endpoint", "http://localhost:8080", "gateway endpoint")
	cmd.PersistentFlags().StringVar(&c.apiKey, "key", "", "API key (or SEMGATE_KEY env var)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")

	cmd.AddCommand(c.newQueryCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if c.apiKey == "" {
		c.apiKey = os.Getenv("SEMGATE_KEY")
	}
	return nil
}

func (c *CLI) client() *GatewayClient {
	return NewGatewayClient(c.endpoint, c.apiKey)
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}
