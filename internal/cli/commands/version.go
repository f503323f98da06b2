package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/pkg/adapter"
)

// NewVersionCommand creates the version command. Besides the version it
// lists the target types and model providers compiled into the binary.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version, targets and model providers",
		Long: `Display the tablescribe version together with the database targets
(target.type) and model providers (model.provider) this build supports.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "tablescribe v%s\n", version)
			_, _ = fmt.Fprintf(out, "targets:   %s\n", strings.Join(adapter.ListAdapters(), ", "))
			_, _ = fmt.Fprintf(out, "providers: %s\n", strings.Join(llm.ListProviders(), ", "))
		},
	}
}
