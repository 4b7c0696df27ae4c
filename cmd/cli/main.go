// Package main provides the vinpix CLI. Uses Cobra for command parsing —
// the standard Go CLI framework (kubectl, docker, hugo).
//
// Run with: go run ./cmd/cli search 1FTFW1ET5DFC10312
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vinpix/vinpix/internal/bus"
	"github.com/vinpix/vinpix/internal/config"
	"github.com/vinpix/vinpix/internal/imaging"
	"github.com/vinpix/vinpix/internal/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vinpix",
		Short: "Salvage auction VIN lookup and image download tools",
	}

	root.AddCommand(searchCmd())
	root.AddCommand(downloadCmd())
	root.AddCommand(scrapeCmd())
	root.AddCommand(panoCmd())
	return root
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <vin>",
		Short: "Resolve a VIN to a salvage listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, vehicles *service.VehicleService) error {
				rec, err := vehicles.Search(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("source:  %s\n", rec.Source)
				fmt.Printf("lot:     %s\n", rec.LotNumber)
				fmt.Printf("listing: %s\n", rec.ListingURL)
				for _, extra := range rec.ExtraListingURLs {
					fmt.Printf("extra:   %s\n", extra)
				}
				return nil
			})
		},
	}
}

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <vin>",
		Short: "Resolve a VIN and download every listing image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, vehicles *service.VehicleService) error {
				return vehicles.Download(ctx, args[0])
			})
		},
	}
}

func scrapeCmd() *cobra.Command {
	var doDownload bool

	cmd := &cobra.Command{
		Use:   "scrape <listing-url> <html-file>",
		Short: "Extract a listing from a saved page, optionally downloading its images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading page: %w", err)
			}
			return withService(func(ctx context.Context, vehicles *service.VehicleService) error {
				rec, err := vehicles.Scrape(ctx, args[0], string(page))
				if err != nil {
					return err
				}
				fmt.Printf("source:  %s\n", rec.Source)
				fmt.Printf("images:  %s\n", rec.ImageSource)
				fmt.Printf("lot:     %s\n", rec.LotNumber)
				if !doDownload {
					return nil
				}
				return vehicles.DownloadListing(ctx, rec)
			})
		},
	}

	cmd.Flags().BoolVar(&doDownload, "download", false, "Download the listing's images after scraping")
	return cmd
}

func panoCmd() *cobra.Command {
	var outDir string
	var faceSize int

	cmd := &cobra.Command{
		Use:   "pano <equirectangular-image>",
		Short: "Convert an equirectangular panorama into six cube faces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPano(args[0], outDir, faceSize)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory for the face images")
	cmd.Flags().IntVar(&faceSize, "size", 1024, "Face edge length in pixels")
	return cmd
}

// withService loads config, wires the pipeline, and runs fn with a
// signal-cancellable context. Feedback messages print to stdout as they
// arrive so long downloads show progress.
func withService(fn func(ctx context.Context, vehicles *service.VehicleService) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("VINPIX_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Always use development logging for the CLI.
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	feedback := bus.New()
	vehicles, _, cleanup, err := service.Build(cfg, feedback, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	msgs, cancelSub := feedback.Subscribe()
	defer cancelSub()
	go func() {
		for msg := range msgs {
			for _, v := range msg.Values {
				if v.Action == bus.ActionFeedbackMessage {
					fmt.Printf("[%s] %s\n", v.DisplayAs, v.Message)
				}
			}
		}
	}()

	// Ctrl+C cancels the operation gracefully.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("cancelling...")
		cancel()
	}()

	return fn(ctx, vehicles)
}

// runPano converts a local panorama file without touching the network.
func runPano(inPath, outDir string, faceSize int) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("reading panorama: %w", err)
	}
	pano, _, err := imaging.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding panorama: %w", err)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	converter := imaging.NewConverter(faceSize, logger)
	set, err := converter.Convert(ctx, pano, nil)
	if err != nil {
		return fmt.Errorf("converting panorama: %w", err)
	}

	for _, face := range imaging.Faces {
		out, err := imaging.EncodeJPEG(set.Faces[face])
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, face.String()+".jpg")
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("wrote %s (%dx%d)\n", path, faceSize, faceSize)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
