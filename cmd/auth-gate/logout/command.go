package logout

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/auth-gate/internal/business"
	"github.com/openkcm/auth-gate/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"logout",
		"Sign out and clear the local session",
		"Logout clears the cached tokens and the ephemeral sign-in state, then opens the provider's logout page in the browser.",
		buildInfo,
		cmdutils.RunAsCommand,
		business.Logout,
	)
}
