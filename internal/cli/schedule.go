package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleToggleCmd(clientFn, outputFn, "enable", true),
		newScheduleToggleCmd(clientFn, outputFn, "disable", false),
	)

	return cmd
}

var scheduleHeaders = []string{"ID", "NAME", "CRON", "ENABLED", "PROCEDURE", "PRODUCT", "NEXT_RUN"}

func scheduleRow(s *Schedule) []string {
	return []string{
		s.ID,
		s.Name,
		s.CronExpression,
		strconv.FormatBool(s.IsEnabled),
		inputString(s.Input, "procedureId"),
		inputString(s.Input, "product"),
		s.NextRunAt,
	}
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, total, err := client.ListSchedules(cmd.Context(), Page{Page: page, PageSize: pageSize})
			if err != nil {
				return err
			}

			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = scheduleRow(&s)
			}

			out.Print(scheduleHeaders, rows, map[string]any{"data": schedules, "total": total})
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "Page size (max 100)")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show SCHEDULE_ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.GetSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, [][]string{scheduleRow(s)}, s)
			return nil
		},
	}
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		name        string
		description string
		cronExpr    string
		product     string
		params      string
		disabled    bool
	)

	cmd := &cobra.Command{
		Use:   "create PROCEDURE_ID",
		Short: "Create a schedule for a procedure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stepParams, err := parseStepParams(params)
			if err != nil {
				return err
			}

			enabled := !disabled
			s, err := client.CreateSchedule(cmd.Context(), CreateScheduleRequest{
				TriggerRequest: TriggerRequest{
					ProcedureID: args[0],
					Product:     product,
					StepParams:  stepParams,
				},
				Name:           name,
				Description:    description,
				CronExpression: cronExpr,
				IsEnabled:      &enabled,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", s.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(s)}, s)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Schedule description")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression, e.g. '0 3 * * *' (required)")
	cmd.Flags().StringVar(&product, "product", "", "Product ID (required)")
	cmd.Flags().StringVar(&params, "params", "{}", "Step params as JSON")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule disabled")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("cron")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		name        string
		description string
		cronExpr    string
		input       string
	)

	cmd := &cobra.Command{
		Use:   "update SCHEDULE_ID",
		Short: "Update a schedule",
		Long:  "Update a schedule. Only the given flags are changed; --input is merged into the stored input.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateScheduleRequest{ID: args[0]}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if cmd.Flags().Changed("cron") {
				req.CronExpression = &cronExpr
			}
			if cmd.Flags().Changed("input") {
				if err := json.Unmarshal([]byte(input), &req.Input); err != nil {
					return fmt.Errorf("invalid --input: %w", err)
				}
			}

			s, err := client.UpdateSchedule(cmd.Context(), req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule updated: %s", s.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(s)}, s)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "New cron expression")
	cmd.Flags().StringVar(&input, "input", "", `Input fields to merge as JSON, e.g. '{"product":"p2"}'`)

	return cmd
}

func newScheduleToggleCmd(clientFn func() *Client, outputFn func() *Output, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SCHEDULE_ID",
		Short: fmt.Sprintf("%s a schedule", strings.ToUpper(use[:1])+use[1:]),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.UpdateSchedule(cmd.Context(), UpdateScheduleRequest{
				ID:        args[0],
				IsEnabled: &enabled,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule %sd: %s", use, s.ID))
			return nil
		},
	}
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete SCHEDULE_ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteSchedule(cmd.Context(), args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}
