package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scriptctl",
	Short: "Command-line client for the scriptd job service",
}

var serverAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "scriptd base URL")
	submitCmd.Flags().BoolP("blocking", "b", false, "Wait for the script to finish")
	listCmd.Flags().String("status", "", "Only list scripts with this status")
	listCmd.Flags().String("order", "", "Start time order: asc or desc")
	rootCmd.AddCommand(submitCmd, listCmd, getCmd, stopCmd, rmCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var submitCmd = &cobra.Command{
	Use:   "submit [file|-]",
	Short: "Submit a script",
	Example: `
# Run a script file and wait for the result
scriptctl submit --blocking hello.sh

# Read the script from stdin
echo 'echo hi' | scriptctl submit -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			code []byte
			err  error
		)
		if len(args) == 0 || args[0] == "-" {
			code, err = io.ReadAll(os.Stdin)
		} else {
			code, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}

		blocking, _ := cmd.Flags().GetBool("blocking")
		body, err := submitScript(code, blocking)
		if err != nil {
			return err
		}
		printJSON(body)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scripts",
	Example: `
# Newest running scripts first
scriptctl list --status executing --order desc`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		order, _ := cmd.Flags().GetString("order")
		body, err := listScripts(status, order)
		if err != nil {
			return err
		}
		printJSON(body)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [scriptID]",
	Short: "Show one script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := getScript(args[0])
		if err != nil {
			return err
		}
		printJSON(body)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [scriptID]",
	Short: "Stop a queued or running script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := stopScript(args[0])
		if err != nil {
			return err
		}
		printJSON(body)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm [scriptID]",
	Short: "Remove a script record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := removeScript(args[0])
		if err != nil {
			return err
		}
		printJSON(body)
		return nil
	},
}
