package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/bmgrep/configs"
	"github.com/Aman-CERP/bmgrep/internal/config"
	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
	"github.com/Aman-CERP/bmgrep/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage bmgrep configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/bmgrep/config.yaml)
  3. Project config (.bmgrep.yaml in the working directory)
  4. Environment variables (BMGREP_*)
  5. Command-line flags`,
		Example: `  # Create user config from template
  bmgrep config init

  # Create .bmgrep.yaml in the current directory
  bmgrep config init --project

  # Show effective configuration
  bmgrep config show

  # Undo the last 'config init --force'
  bmgrep config restore`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

// configTarget returns the user config path, or the project config in the
// working directory when project is set.
func configTarget(project bool) (string, error) {
	if !project {
		return config.GetUserConfigPath(), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(wd, config.ProjectConfigName), nil
}

func newConfigInitCmd() *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from the template",
		Long: `Create a configuration file from the built-in template.

The user configuration is created at ~/.config/bmgrep/config.yaml
(or $XDG_CONFIG_HOME/bmgrep/config.yaml). With --project, .bmgrep.yaml is
created in the working directory instead.

--force overwrites an existing file after backing it up; 'config restore'
brings the backup back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force, project)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (a backup is kept)")
	cmd.Flags().BoolVar(&project, "project", false, "Create .bmgrep.yaml in the working directory")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force, project bool) error {
	out := output.New(cmd.OutOrStdout())

	path, err := configTarget(project)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Newline()
			out.Status("💡", "Use --force to overwrite (a backup is kept)")
			return nil
		}

		backupPath, err := config.BackupFile(path)
		if err != nil {
			return serrors.ConfigError("failed to backup config", err)
		}
		out.Statusf("💾", "Backup: %s", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Status("", "Run 'bmgrep config show' to see the effective settings")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging defaults, the user config, the
project config and BMGREP_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configTarget(project)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Print the project config path")

	return cmd
}

func newConfigRestoreCmd() *cobra.Command {
	var project, list bool

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore a configuration backup",
		Long: `Restore a backup made by 'config init --force'.

Without an argument the newest backup is restored. The current file is
itself backed up first, so a restore can be undone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigRestore(cmd, args, project, list)
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Restore .bmgrep.yaml in the working directory")
	cmd.Flags().BoolVar(&list, "list", false, "List available backups, newest first")

	return cmd
}

func runConfigRestore(cmd *cobra.Command, args []string, project, list bool) error {
	out := output.New(cmd.OutOrStdout())

	path, err := configTarget(project)
	if err != nil {
		return err
	}
	backups, err := config.ListBackups(path)
	if err != nil {
		return err
	}

	if list {
		for _, b := range backups {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), b)
		}
		return nil
	}

	var backup string
	switch {
	case len(args) == 1:
		backup = args[0]
	case len(backups) > 0:
		backup = backups[0]
	default:
		return serrors.New(serrors.ErrCodeConfigNotFound, "no configuration backups found for "+path, nil).
			WithSuggestion("backups are created by 'bmgrep config init --force'")
	}

	if err := config.RestoreFile(path, backup); err != nil {
		return serrors.ConfigError("failed to restore config", err)
	}

	out.Success("Configuration restored")
	out.Statusf("📁", "Location: %s", path)
	out.Statusf("💾", "From: %s", backup)
	return nil
}
