// Integrator CLI — инструмент командной строки для запуска procedures,
// просмотра runs, управления schedules и бизнес-конфигурацией через HTTP API.
//
// Использование:
//
//	integrator [--api-url URL] [--user NAME] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	run       Управление runs
//	schedule  Управление schedules
//	config    Просмотр бизнес-конфигурации
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shaiso/Integrator/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	_ = godotenv.Load()

	var apiURL string
	var user string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "integrator",
		Short:         "Integrator CLI — release procedure automation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("INTEGRATOR_API_URL", "http://localhost:3000"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&user, "user", os.Getenv("USER"), "User name sent as X-User")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, user) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewConfigCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
