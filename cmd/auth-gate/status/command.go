package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/openkcm/auth-gate/internal/business"
	"github.com/openkcm/auth-gate/internal/cmdutils"
	"github.com/openkcm/auth-gate/internal/config"
	"github.com/openkcm/auth-gate/internal/flow"
)

var (
	output string
	retry  bool
)

func Cmd(buildInfo string) *cobra.Command {
	cmd := cmdutils.CobraCommand(
		"status",
		"Show the current sign-in state",
		"Status reports the cached session and the account status behind it. It never starts a new sign-in.",
		buildInfo,
		cmdutils.RunAsJob,
		run,
	)

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&retry, "retry", false, "re-run the account status check against the cached tokens")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	snapshot, err := business.Status(ctx, cfg, retry)
	if err != nil {
		return err
	}

	return render(os.Stdout, snapshot)
}

func render(w io.Writer, s flow.Snapshot) error {
	switch output {
	case "text":
		if s.User != nil {
			_, _ = fmt.Fprintf(w, "User:   %s (%s)\n", s.User.Username, s.User.Email)
		}

		_, _ = fmt.Fprintf(w, "Status: %s\n", s.State)

		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(s)
	case "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshalling the snapshot: %w", err)
		}

		_, err = w.Write(data)

		return err
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}
