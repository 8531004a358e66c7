package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bero-pm/internal/app"
)

type resolveOptions struct {
	Dir        string
	Production bool
	Registry   string
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve dependencies and write the lock file without installing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "Project directory")
	cmd.Flags().BoolVar(&opts.Production, "production", false, "Skip devDependencies during resolution")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "Registry base URL")

	_ = viper.BindPFlag("dir", cmd.Flags().Lookup("dir"))
	_ = viper.BindPFlag("production", cmd.Flags().Lookup("production"))
	_ = viper.BindPFlag("registry", cmd.Flags().Lookup("registry"))

	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, opts resolveOptions) error {
	service := newAppService()
	result, err := service.Resolve(ctx, app.ResolveRequest{
		Dir:        resolveString(cmd, opts.Dir, "dir", "dir"),
		Production: resolveBool(cmd, opts.Production, "production", "production"),
		Registry:   resolveString(cmd, opts.Registry, "registry", "registry"),
	})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(result.Plan.TopLevel))
	for name := range result.Plan.TopLevel {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("top-level:")
	for _, name := range names {
		fmt.Printf("- %s@%s\n", name, result.Plan.TopLevel[name].Version)
	}
	if len(result.Plan.Unsatisfied) > 0 {
		fmt.Println("nested:")
		for _, entry := range result.Plan.Unsatisfied {
			fmt.Printf("- %s@%s under %s\n", entry.Name, entry.Version, entry.ParentPath)
		}
	}
	fmt.Printf("lock written: %s\n", result.LockPath)
	return nil
}
