// Package main provides the epack binary entry point. Epack packages a
// desktop application project into a directory of ready-to-install
// resources: the app.asar archive, unpacked files, extra resources,
// icons and a desktop entry.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/epack/epack/app"
	"github.com/epack/epack/internal/env"
	"github.com/epack/epack/pack"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "epack",
		Short:         "Package desktop application resources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(packCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("epack version %s\n", version)
		},
	})
	return cmd
}

func packCmd() *cobra.Command {
	var (
		configPath string
		outputDir  string
		platform   string
		arch       string
		verbose    bool

		additionalFiles  []string
		additionalUnpack []string
		additionalExtra  []string
	)

	cmd := &cobra.Command{
		Use:   "pack [project-dir]",
		Short: "Pack a project into an output directory",
		Long: `Pack reads package.json (plus its build key, electron-builder.yml or an
explicit --config file) from the project directory, selects the files the
configured rules keep and writes the output directory: app.asar, files
unpacked beside it, extra resources, generated icons and a desktop entry.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			dir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolve project dir: %w", err)
			}

			target, err := targetEnvironment(platform, arch)
			if err != nil {
				return err
			}

			manifestPath := filepath.Join(dir, "package.json")
			var a *app.App
			if configPath != "" {
				a, err = app.LoadWithConfig(manifestPath, configPath)
			} else {
				a, err = app.Load(manifestPath)
			}
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			opts := []pack.Option{
				pack.WithLogger(logger),
				pack.WithEnvironment(target),
				pack.WithAdditionalFiles(additionalFiles...),
				pack.WithAdditionalUnpack(additionalUnpack...),
				pack.WithAdditionalExtraResources(additionalExtra...),
			}
			if outputDir != "" {
				opts = append(opts, pack.WithOutputDir(outputDir))
			}

			result, err := pack.New(a, opts...).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Packed %d files (%d unpacked, %d extra) into %s\n",
				result.Packed, result.Unpacked, result.Extras, result.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Separate configuration file (.json, .yml or .toml)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides the configured one)")
	cmd.Flags().StringVar(&platform, "platform", env.Host().Platform.Node(), "Target platform (linux, win32, darwin)")
	cmd.Flags().StringVar(&arch, "arch", env.Host().Arch.Node(), "Target architecture (x64, ia32, arm64, arm)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().StringArrayVar(&additionalFiles, "additional-files", nil, "Extra file selection rules, applied after the configured ones")
	cmd.Flags().StringArrayVar(&additionalUnpack, "additional-asar-unpack", nil, "Extra asar-unpack rules")
	cmd.Flags().StringArrayVar(&additionalExtra, "additional-extra-resources", nil, "Extra resource rules")
	return cmd
}

func targetEnvironment(platform, arch string) (env.Environment, error) {
	p, err := env.ParsePlatform(platform)
	if err != nil {
		return env.Environment{}, err
	}
	a, err := env.ParseArch(arch)
	if err != nil {
		return env.Environment{}, err
	}
	return env.Environment{Platform: p, Arch: a}, nil
}
