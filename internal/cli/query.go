package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semgate-labs/semgate/pkg/models"
)

func (c *CLI) newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query commands",
		Long:  `Submit semantic queries and raw SQL to the gateway.`,
	}

	cmd.AddCommand(c.newQueryExecCmd())
	cmd.AddCommand(c.newQueryRawCmd())
	cmd.AddCommand(c.newQueryValidateCmd())

	return cmd
}

func (c *CLI) newQueryExecCmd() *cobra.Command {
	var (
		dataset    string
		dimensions []string
		metrics    []string
		limit      int
		noCache    bool
		file       string
	)

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Execute a semantic query",
		Long: `Execute a semantic query against a dataset.

The request is either assembled from flags or read as JSON from a file.

Example:
  semgate query exec --dataset sales --dimensions city --metrics Revenue --limit 100
  semgate query exec --file query.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &models.QueryRequest{}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, req); err != nil {
					return fmt.Errorf("invalid query file: %w", err)
				}
			}
			if dataset != "" {
				req.Dataset = dataset
			}
			if len(dimensions) > 0 {
				req.Dimensions = dimensions
			}
			if len(metrics) > 0 {
				req.Metrics = metrics
			}
			if limit > 0 {
				req.Limit = limit
			}
			if noCache {
				req.NoCache = true
			}
			return c.runQueryExec(cmd, req)
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset id")
	cmd.Flags().StringSliceVar(&dimensions, "dimensions", nil, "dimensions to group by")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "metrics to aggregate")
	cmd.Flags().IntVar(&limit, "limit", 0, "row limit")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the result cache")
	cmd.Flags().StringVar(&file, "file", "", "read the full request from a JSON file")

	return cmd
}

func (c *CLI) runQueryExec(cmd *cobra.Command, req *models.QueryRequest) error {
	resp, err := c.client().Query(cmd.Context(), req)
	if err != nil {
		c.errorf("Query failed: %v\n", err)
		return err
	}
	return c.renderResponse(resp)
}

func (c *CLI) newQueryRawCmd() *cobra.Command {
	var dataset string

	cmd := &cobra.Command{
		Use:   "raw <SQL>",
		Short: "Execute raw SQL through the gateway",
		Long: `Execute engine-native SQL against a dataset's source.

The gateway validates the statement and injects the tenant predicate
before execution.

Example:
  semgate query raw --dataset sales "SELECT city, SUM(amount) FROM orders GROUP BY city"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.client().RawQuery(cmd.Context(), &models.RawQueryRequest{
				Dataset: dataset,
				SQL:     args[0],
			})
			if err != nil {
				c.errorf("Query failed: %v\n", err)
				return err
			}
			return c.renderResponse(resp)
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset id")
	cmd.MarkFlagRequired("dataset")

	return cmd
}

func (c *CLI) newQueryValidateCmd() *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "validate <SQL>",
		Short: "Validate a SQL statement without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().Validate(cmd.Context(), args[0], engine); err != nil {
				c.errorf("Invalid: %v\n", err)
				return err
			}
			c.println("Valid.")
			return nil
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "postgres", "dialect to validate against")

	return cmd
}

func (c *CLI) renderResponse(resp *models.QueryResponse) error {
	if c.jsonOutput {
		return c.outputJSON(resp)
	}

	result := resp.Result
	if result == nil {
		c.println("No result.")
		return nil
	}

	names := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		names[i] = col.Name
	}
	c.println(strings.Join(names, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(names))
		for i, n := range names {
			cells[i] = fmt.Sprintf("%v", row[n])
		}
		c.println(strings.Join(cells, "\t"))
	}

	c.printf("\n%d rows (%s, cache_hit=%v, rls_applied=%v)\n",
		result.RowCount, resp.Duration, result.CacheHit, resp.RLSApplied)
	return nil
}
