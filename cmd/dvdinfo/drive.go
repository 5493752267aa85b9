package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/go-dvdinfo/internal/catalog"
	"github.com/s0up4200/go-dvdinfo/internal/disc"
	"github.com/s0up4200/go-dvdinfo/internal/report"
)

func (a *app) device(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if a.cfg.Device.Path != "" {
		return a.cfg.Device.Path
	}
	return disc.DefaultDevice
}

func newEjectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "eject [device]",
		Short: "Eject the medium from an optical drive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := a.device(args)
			if err := disc.Eject(device); err != nil {
				return fmt.Errorf("eject %s: %w", device, err)
			}
			a.logger.Info("medium ejected", "device", device)
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [device]",
		Short: "Print the tray and medium status of an optical drive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := a.device(args)
			status, err := disc.CheckDriveStatus(device)
			if err != nil {
				return fmt.Errorf("drive status %s: %w", device, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", device, status)
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [device]",
		Short: "Print a title summary whenever a DVD is inserted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := a.device(args)
			interval := time.Duration(a.cfg.Device.PollIntervalSeconds) * time.Second
			monitor := disc.NewMediaMonitor(device, a.logger)
			a.logger.Info("watching for media", "device", device)

			return monitor.Watch(cmd.Context(), func(ev disc.MediaEvent) error {
				return a.summarizeInserted(cmd, ev.Device, interval)
			})
		},
	}
}

func (a *app) summarizeInserted(cmd *cobra.Command, device string, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	status, err := disc.WaitForDisc(ctx, device, interval)
	if err != nil {
		if cmd.Context().Err() != nil {
			return err
		}
		a.logger.Warn("drive not ready", "device", device, "status", status.String(), "error", err)
		return nil
	}

	err = a.withCatalog(device, func(_ *disc.Session, r *catalog.Reader) error {
		d, err := report.Collect(r, device)
		if err != nil {
			return err
		}
		opts := a.reportOptions()
		opts.SummaryOnly = true
		fmt.Fprintln(cmd.OutOrStdout(), report.Render(d, opts))
		return nil
	})
	if err != nil {
		a.logger.Warn("could not read inserted disc", "device", device, "error", err)
	}
	return nil
}
