package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bero-pm/internal/app"
)

type inspectOptions struct {
	Dir string
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the pinned versions recorded in the lock file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "Project directory")
	_ = viper.BindPFlag("dir", cmd.Flags().Lookup("dir"))
	return cmd
}

func runInspect(cmd *cobra.Command, opts inspectOptions) error {
	service := newAppService()
	result, err := service.Inspect(app.InspectRequest{
		Dir: resolveString(cmd, opts.Dir, "dir", "dir"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d entries\n", result.LockPath, len(result.Entries))
	for _, entry := range result.Entries {
		fmt.Printf("- %s -> %s (%d dependencies)\n", entry.Key, entry.Version, entry.Dependencies)
	}
	return nil
}
