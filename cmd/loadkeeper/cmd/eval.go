package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/solatis/loadkeeper"
)

var (
	trueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	falseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var parseCmd = &cobra.Command{
	Use:   "parse <condition>",
	Short: "Parse a condition string and print its canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expr, err := loadkeeper.Parse(args[0])
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render(err.Error()))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), expr.String())
		return nil
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <condition>",
	Short: "Evaluate a condition string against a game installation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		state, err := newState(cfg)
		if err != nil {
			return err
		}

		expr, err := loadkeeper.Parse(args[0])
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render(err.Error()))
			return err
		}

		result, err := expr.Eval(state)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render(err.Error()))
			return err
		}

		if result {
			fmt.Fprintln(cmd.OutOrStdout(), trueStyle.Render("true"))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), falseStyle.Render("false"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(evalCmd)
}
