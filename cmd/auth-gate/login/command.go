package login

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openkcm/auth-gate/internal/business"
	"github.com/openkcm/auth-gate/internal/cmdutils"
	"github.com/openkcm/auth-gate/internal/config"
	"github.com/openkcm/auth-gate/internal/flow"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"login",
		"Sign in against the identity provider",
		"Login opens the provider's hosted sign-in page in the browser, waits for the authorization callback and exchanges it for tokens.",
		buildInfo,
		cmdutils.RunAsCommand,
		run,
	)
}

func run(ctx context.Context, cfg *config.Config) error {
	snapshot, err := business.Login(ctx, cfg)
	if err != nil {
		return err
	}

	printSnapshot(snapshot)

	if snapshot.State == flow.StateError {
		return fmt.Errorf("sign-in finished in the %s state", snapshot.State)
	}

	return nil
}

func printSnapshot(s flow.Snapshot) {
	if s.User != nil {
		_, _ = fmt.Fprintf(os.Stdout, "Signed in as %s (%s)\n", s.User.Username, s.User.Email)
	}

	_, _ = fmt.Fprintf(os.Stdout, "Account status: %s\n", s.State)
}
