package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/instinct/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle Claude Code hook events",
}

var hookToolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Handle PostToolUse hook (record an observation)",
	Run: func(cmd *cobra.Command, args []string) {
		hooks.Handle("tool", os.Stdin)
	},
}

var hookSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Handle PreToolUse hook (surface matching instincts)",
	Run: func(cmd *cobra.Command, args []string) {
		hooks.Handle("suggest", os.Stdin)
	},
}

var hookSkillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Handle Skill tool PostToolUse hook (record skill usage)",
	Run: func(cmd *cobra.Command, args []string) {
		hooks.Handle("skill", os.Stdin)
	},
}

var hookStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Handle SessionStart hook (reset the session cache)",
	Run: func(cmd *cobra.Command, args []string) {
		hooks.Handle("start", os.Stdin)
	},
}

var hookEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Handle SessionEnd hook (discard the session cache)",
	Run: func(cmd *cobra.Command, args []string) {
		hooks.Handle("end", os.Stdin)
	},
}

func init() {
	hookCmd.AddCommand(hookToolCmd)
	hookCmd.AddCommand(hookSuggestCmd)
	hookCmd.AddCommand(hookSkillCmd)
	hookCmd.AddCommand(hookStartCmd)
	hookCmd.AddCommand(hookEndCmd)
}
