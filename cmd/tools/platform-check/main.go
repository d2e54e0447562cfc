// Package main implements the platform-check CLI tool for verifying
// connectivity and credentials against the geospatial platform.
//
// Usage:
//
//	go run ./cmd/tools/platform-check \
//	  --base-url=https://geo.fieldline.io \
//	  --api-key=<key> \
//	  --start=2022-07-01 --end=2022-07-31
//
// Environment variables (used as defaults when flags are not set):
//
//	PLATFORM_BASE_URL - platform endpoint
//	PLATFORM_API_KEY  - static bearer key
//
// The tool issues a single scene search over the canonical survey rectangle
// and prints what the archive matched. It exercises auth, routing, and
// response decoding without starting a survey run.
//
// Exit codes: 2 invalid parameters, 3 empty archive window, 4 platform
// failure, 1 anything else.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fieldline/internal/external"
	"fieldline/internal/types"
)

func main() {
	defaults := types.DefaultRunParams()

	baseURL := flag.String("base-url", envOr("PLATFORM_BASE_URL", "https://geo.fieldline.io"), "platform endpoint (or PLATFORM_BASE_URL env)")
	apiKey := flag.String("api-key", os.Getenv("PLATFORM_API_KEY"), "static bearer key (or PLATFORM_API_KEY env); empty means anonymous")
	collection := flag.String("collection", defaults.Collection, "imagery collection to search")
	cloud := flag.Float64("cloud", defaults.CloudCeiling, "maximum scene cloud cover percent")
	start := flag.String("start", defaults.Window.Start.Format(time.DateOnly), "window start date (YYYY-MM-DD, inclusive)")
	end := flag.String("end", defaults.Window.End.Format(time.DateOnly), "window end date (YYYY-MM-DD, exclusive)")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	startT, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		logger.Error("invalid start date", "start", *start, "error", err)
		os.Exit(2)
	}
	endT, err := time.Parse(time.DateOnly, *end)
	if err != nil {
		logger.Error("invalid end date", "end", *end, "error", err)
		os.Exit(2)
	}
	window := types.TimeWindow{Start: startT, End: endT}
	if err := window.Validate(); err != nil {
		logger.Error("invalid window", "error", err)
		os.Exit(2)
	}

	tokens := external.AnonymousTokenSource()
	if *apiKey != "" {
		tokens = external.NewAPIKeyTokenSource(*apiKey)
	}

	client := external.NewPlatformClient(
		&http.Client{Timeout: *timeout},
		external.PlatformClientConfig{
			BaseURL:   *baseURL,
			Tokens:    tokens,
			UserAgent: "fieldline-platform-check/1.0",
			Logger:    logger,
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	aoi := types.DefaultAOI()
	logger.Info("searching scenes",
		"base_url", *baseURL,
		"collection", *collection,
		"window", fmt.Sprintf("%s to %s", *start, *end),
		"cloud_ceiling", *cloud,
		"authenticated", *apiKey != "",
	)

	scenes, err := client.SearchScenes(ctx, *collection, aoi, window, *cloud)
	if err != nil {
		logger.Error("scene search failed", "error", err)
		os.Exit(exitCode(err))
	}

	fmt.Printf("Platform reachable: %s\n", *baseURL)
	fmt.Printf("Collection handle:  %s\n", scenes.CollectionID)
	fmt.Printf("Scenes matched:     %d\n", len(scenes.Scenes))

	if scenes.Empty() {
		fmt.Println("\nNo scenes in the window. Widen the dates or raise --cloud before running the pipeline.")
		os.Exit(3)
	}

	// First few scenes as a sanity check on metadata decoding.
	shown := len(scenes.Scenes)
	if shown > 5 {
		shown = 5
	}
	fmt.Println()
	for _, s := range scenes.Scenes[:shown] {
		fmt.Printf("  %s  %s  cloud %.1f%%\n", s.AcquiredAt.Format(time.DateOnly), s.ID, s.CloudCover)
	}
	if len(scenes.Scenes) > shown {
		fmt.Printf("  ... and %d more\n", len(scenes.Scenes)-shown)
	}

	fmt.Println("\nPlatform check passed.")
}

// envOr returns the environment value when set, the fallback otherwise.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// exitCode maps a search failure to the process exit code.
func exitCode(err error) int {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return 1
	}
	code := string(appErr.Code)
	switch {
	case strings.HasPrefix(code, "validation_"):
		return 2
	case strings.HasPrefix(code, "remote_"):
		return 4
	default:
		return 1
	}
}
