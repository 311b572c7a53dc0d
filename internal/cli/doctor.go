package cli

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check gateway connectivity and adapter health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.client()

			health, err := client.Health(cmd.Context())
			if err != nil {
				c.errorf("Gateway unreachable at %s: %v\n", c.endpoint, err)
				return err
			}
			c.printf("Gateway: %s (version %s)\n", health["status"], health["version"])

			ready, err := client.Ready(cmd.Context())
			if err != nil {
				c.errorf("Readiness check failed: %v\n", err)
				return err
			}

			if c.jsonOutput {
				return c.outputJSON(ready)
			}

			c.printf("Readiness: %s\n", ready.Status)
			for source, state := range ready.Sources {
				c.printf("  %s: %s\n", source, state)
			}
			if len(ready.Sources) == 0 {
				c.println("  (no adapters constructed yet)")
			}
			return nil
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.jsonOutput {
				return c.outputJSON(map[string]string{
					"version": Version,
					"commit":  GitCommit,
					"built":   BuildDate,
				})
			}
			c.printf("semgate %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}
