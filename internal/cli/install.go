package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bero-pm/internal/app"
)

type installOptions struct {
	Dir         string
	SaveDev     bool
	Dev         bool
	Production  bool
	Registry    string
	Concurrency int
}

func newInstallCommand() *cobra.Command {
	opts := installOptions{}
	cmd := &cobra.Command{
		Use:     "install [packages...]",
		Aliases: []string{"i"},
		Short:   "Resolve dependencies and install them into node_modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "Project directory")
	cmd.Flags().BoolVar(&opts.SaveDev, "save-dev", false, "Record added packages under devDependencies")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Alias for --save-dev")
	cmd.Flags().BoolVar(&opts.Production, "production", false, "Skip devDependencies during resolution")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "Registry base URL")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel download limit")

	_ = viper.BindPFlag("dir", cmd.Flags().Lookup("dir"))
	_ = viper.BindPFlag("production", cmd.Flags().Lookup("production"))
	_ = viper.BindPFlag("registry", cmd.Flags().Lookup("registry"))
	_ = viper.BindPFlag("concurrency", cmd.Flags().Lookup("concurrency"))

	return cmd
}

func runInstall(ctx context.Context, cmd *cobra.Command, opts installOptions, args []string) error {
	service := newAppService()
	result, err := service.Install(ctx, app.InstallRequest{
		Dir:         resolveString(cmd, opts.Dir, "dir", "dir"),
		Packages:    args,
		SaveDev:     opts.SaveDev || opts.Dev,
		Production:  resolveBool(cmd, opts.Production, "production", "production"),
		Registry:    resolveString(cmd, opts.Registry, "registry", "registry"),
		Concurrency: resolveInt(cmd, opts.Concurrency, "concurrency", "concurrency"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("installed: %d top-level, %d nested\n", result.TopLevel, result.Nested)
	return nil
}
