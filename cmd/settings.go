package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or reset the scoring settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the committed scoring settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		current := rt.settings.Current()
		pretty, err := json.MarshalIndent(current, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))

		for _, w := range rt.settings.Validate(current).Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default scoring settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			prompt := promptui.Prompt{
				Label:     "Reset scoring settings to defaults",
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				if errors.Is(err, promptui.ErrAbort) {
					fmt.Println("Reset cancelled.")
					return nil
				}
				return err
			}
		}

		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		defaults, err := rt.settings.Reset(cmd.Context())
		if err != nil {
			return fmt.Errorf("settings reset in memory only: %w", err)
		}
		fmt.Printf("Settings reset: %s\n", weightsSummary(defaults))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsResetCmd)

	settingsResetCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}
