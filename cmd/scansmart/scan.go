package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/scansmart/constants"
	"github.com/joseph-ayodele/scansmart/internal/acquire"
	"github.com/joseph-ayodele/scansmart/internal/app"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/scan"
)

var exportAfterScan bool

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Take a photo and print its text",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, func(ctx context.Context, a *app.App) (acquire.CaptureResult, error) {
			return a.Session.TakePhoto(ctx)
		})
	},
}

var pickCmd = &cobra.Command{
	Use:   "pick <image>",
	Short: "Pick an image from the gallery directory and print its text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, func(ctx context.Context, a *app.App) (acquire.CaptureResult, error) {
			return a.Session.PickImage(ctx, args[0])
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <image>",
	Short: "Pick an image, extract its text and export it as a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exportAfterScan = true
		return pickCmd.RunE(cmd, args)
	},
}

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "List images available to pick",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(context.Background())
		names, err := a.Gallery.List()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{cameraCmd, pickCmd} {
		c.Flags().BoolVarP(&exportAfterScan, "export", "e", false, "export the recognized text")
	}
	rootCmd.AddCommand(cameraCmd, pickCmd, exportCmd, galleryCmd)
}

type acquireFunc func(ctx context.Context, a *app.App) (acquire.CaptureResult, error)

func runScan(cmd *cobra.Command, acquireImage acquireFunc) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	out := cmd.OutOrStdout()
	unsubscribe := a.Session.Subscribe(func(st scan.State) {
		if st.Notice != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), st.Notice)
		}
	})
	defer unsubscribe()

	res, err := acquireImage(ctx, a)
	if errors.Is(err, common.ErrPermissionDenied) {
		return nil
	}
	if err != nil {
		return err
	}
	if res.Cancelled() {
		fmt.Fprintln(cmd.ErrOrStderr(), "cancelled")
		return nil
	}
	fmt.Fprintln(cmd.ErrOrStderr(), constants.ExtractingMessage)
	if err := a.Session.Wait(ctx); err != nil {
		return err
	}

	st := a.Session.State()
	fmt.Fprintln(out, st.Text)
	if !exportAfterScan || st.Status != constants.StatusSucceeded {
		return nil
	}
	artifact, err := a.Session.Export(ctx)
	if err != nil {
		if artifact.Path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "rendered %s but could not share it\n", artifact.Path)
		}
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %s (%s, %d bytes)\n", artifact.Path, artifact.Descriptor.MIMEType, artifact.Size)
	return nil
}
