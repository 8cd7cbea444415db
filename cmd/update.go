package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/smazurov/hwcodec/internal/logging"
	"github.com/smazurov/hwcodec/internal/systemd"
	"github.com/smazurov/hwcodec/internal/updater"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var (
		checkOnly   bool
		prerelease  bool
		repository  string
		restartUnit string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update hwcodec to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			up, err := updater.New(updater.Options{Repository: repository, Prerelease: prerelease})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if checkOnly {
				info, checkErr := up.Check(ctx)
				if checkErr != nil {
					return checkErr
				}
				printUpdateInfo(out, info)
				return nil
			}

			info, err := up.Apply(ctx)
			if errors.Is(err, updater.ErrUpToDate) {
				fmt.Fprintf(out, "hwcodec %s is up to date\n", info.CurrentVersion)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Updated hwcodec %s -> %s\n", info.CurrentVersion, info.LatestVersion)

			if restartUnit == "" {
				return nil
			}
			mgr, err := systemd.NewManager(ctx)
			if err != nil {
				return err
			}
			defer mgr.Close()

			logging.GetLogger("updater").Info("Restarting unit", "unit", restartUnit)
			if err := mgr.RestartService(ctx, restartUnit); err != nil {
				return fmt.Errorf("failed to restart %s: %w", restartUnit, err)
			}
			state, err := mgr.GetServiceStatus(ctx, restartUnit)
			if err == nil {
				fmt.Fprintf(out, "%s is %s\n", restartUnit, state)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update is available")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().StringVar(&repository, "repo", updater.DefaultRepository, "GitHub repository (owner/name)")
	cmd.Flags().StringVar(&restartUnit, "restart-unit", "", "systemd user unit to restart after updating")
	return cmd
}

func printUpdateInfo(w io.Writer, info *updater.Info) {
	fmt.Fprintf(w, "Current: %s\n", info.CurrentVersion)
	fmt.Fprintf(w, "Latest:  %s", info.LatestVersion)
	if !info.PublishedAt.IsZero() {
		fmt.Fprintf(w, " (%s)", info.PublishedAt.Format("2006-01-02"))
	}
	fmt.Fprintln(w)
	if info.UpdateAvailable {
		fmt.Fprintf(w, "Update available: %s\n", info.ReleaseURL)
	} else {
		fmt.Fprintln(w, "Up to date")
	}
}
