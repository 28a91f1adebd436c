package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunTriggerCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, total, err := client.ListRuns(cmd.Context(), Page{Page: page, PageSize: pageSize})
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(&r)
			}

			out.Print(runHeaders, rows, map[string]any{"data": runs, "total": total})
			if len(runs) < total {
				out.Success(fmt.Sprintf("Showing %d of %d runs", len(runs), total))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "Page size (max 100)")

	return cmd
}

func newRunTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var product string
	var params string
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "trigger PROCEDURE_ID",
		Short: "Trigger a procedure run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stepParams, err := parseStepParams(params)
			if err != nil {
				return err
			}

			run, err := client.TriggerRun(cmd.Context(), TriggerRequest{
				ProcedureID: args[0],
				Product:     product,
				StepParams:  stepParams,
			})
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Run triggered: %s", run.ID))

			if wait {
				if run, err = client.WaitRun(cmd.Context(), run.ID, interval); err != nil {
					return err
				}
			}

			out.Print(runHeaders, [][]string{runRow(run)}, run)
			if wait {
				out.Text(run.Log)
				if run.Status == "FAILED" {
					return fmt.Errorf("run %s failed", run.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "Product ID (required)")
	cmd.Flags().StringVar(&params, "params", "{}", `Step params as JSON, e.g. '{"step1":{"version":"1.0.0"}}'`)
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish and print its log")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval for --wait")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show run details and log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Print(runHeaders, [][]string{runRow(run)}, run)
			out.Text(run.Log)
			return nil
		},
	}
}

var runHeaders = []string{"ID", "PROCEDURE", "PRODUCT", "STATUS", "TRIGGER", "BY", "CREATED"}

func runRow(r *RunRecord) []string {
	return []string{
		r.ID,
		inputString(r.Input, "procedureId"),
		inputString(r.Input, "product"),
		r.Status,
		r.TriggerType,
		r.TriggerBy,
		r.CreatedAt,
	}
}

func inputString(input map[string]any, key string) string {
	switch v := input[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// parseStepParams разбирает JSON вида {"stepId": {"param": value}}.
func parseStepParams(raw string) (map[string]map[string]any, error) {
	params := make(map[string]map[string]any)
	if raw == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("invalid --params: %w", err)
	}
	return params, nil
}
