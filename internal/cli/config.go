package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewConfigCmd создаёт группу команд для просмотра бизнес-конфигурации.
func NewConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Browse business configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "products",
			Short: "List products",
			RunE: func(cmd *cobra.Command, args []string) error {
				products, err := clientFn().ListProducts(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, len(products))
				for i, p := range products {
					rows[i] = []string{p.ID, p.Name}
				}

				outputFn().Print([]string{"ID", "NAME"}, rows, products)
				return nil
			},
		},
		&cobra.Command{
			Use:   "procedures PRODUCT",
			Short: "List procedures available for a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				procedures, err := clientFn().ListProcedures(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				rows := make([][]string, len(procedures))
				for i, p := range procedures {
					ids := make([]string, len(p.Steps))
					for j, s := range p.Steps {
						ids[j] = s.ID
					}
					rows[i] = []string{p.ID, p.Name, strconv.Itoa(len(p.Steps)), strings.Join(ids, ",")}
				}

				outputFn().Print([]string{"ID", "NAME", "STEPS", "STEP_IDS"}, rows, procedures)
				return nil
			},
		},
	)

	return cmd
}
