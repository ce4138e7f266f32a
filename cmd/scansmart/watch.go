package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/acquire"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/scan"
)

var (
	watchDebounce    time.Duration
	watchInitialScan bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Extract text from every image that lands in the gallery directory",
	Long: "Watches the gallery directory and picks each new image as it appears.\n" +
		"A newer image supersedes an extraction still in progress.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
		var shown string
		unsubscribe := a.Session.Subscribe(func(st scan.State) {
			if st.Notice != "" {
				fmt.Fprintln(errOut, st.Notice)
			}
			if st.Extracting() || st.RunID == "" || st.RunID == shown {
				return
			}
			shown = st.RunID
			if st.Status == constants.StatusFailed {
				fmt.Fprintln(errOut, st.Text)
				return
			}
			fmt.Fprintln(out, st.Text)
		})
		defer unsubscribe()

		events, errs, err := a.Gallery.Watch(ctx, acquire.WatchConfig{
			InitialScan: watchInitialScan,
			Debounce:    watchDebounce,
		}, a.Logger)
		if err != nil {
			return err
		}
		a.Logger.Info("watching gallery", "dir", a.Config.Acquire.GalleryDir)

		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				a.Logger.Warn("gallery watch error", "error", err)
			case sel, ok := <-events:
				if !ok {
					return nil
				}
				fmt.Fprintf(errOut, "%s: %s\n", sel, constants.ExtractingMessage)
				if _, err := a.Session.PickImage(ctx, sel); err != nil && !errors.Is(err, common.ErrPermissionDenied) {
					a.Logger.Warn("could not pick image", "selection", sel, "error", err)
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "wait for writes to settle before picking a file")
	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", false, "also pick images already in the gallery")
	rootCmd.AddCommand(watchCmd)
}
