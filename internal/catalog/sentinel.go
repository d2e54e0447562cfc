// Package catalog implements the advisory Sentinel-2 archive probe.
//
// Before a run reaches the platform, the probe lists the public Sentinel-2
// level-2A buckets on AWS to report which acquisition dates exist for the
// survey tile inside the run window. The platform performs its own archive
// search; the probe only gives operators an early, independent signal when a
// window is likely to come back empty.
//
// Archive key format: tiles/{zone}/{band}/{square}/{year}/{month}/{day}/{seq}/...
// where zone/band/square are the parts of the MGRS tile reference (31UFU ->
// 31/U/FU) and month and day are written without zero padding.
//
// The probe supports mirror failover: if the primary bucket cannot be listed,
// it iterates through configured mirrors until one succeeds. Probe failures
// never abort a run.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fieldline/internal/types"
)

// S3ListClient abstracts the S3 ListObjectsV2 operation for testability.
type S3ListClient interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// mgrsPattern matches an MGRS tile reference: a 1-2 digit UTM zone, a
// latitude band letter, and a two-letter grid square. The letters I and O are
// not used in the MGRS alphabet.
var mgrsPattern = regexp.MustCompile(`^(\d{1,2})([C-HJ-NP-X])([A-HJ-NP-Z]{2})$`)

// tileKeyPattern matches archive key prefixes of the form
// tiles/{zone}/{band}/{square}/{year}/{month}/{day}/ with unpadded month and
// day components.
var tileKeyPattern = regexp.MustCompile(`^tiles/(\d{1,2})/([C-HJ-NP-X])/([A-HJ-NP-Z]{2})/(\d{4})/(\d{1,2})/(\d{1,2})/`)

// MGRSTile is a parsed military-grid tile reference, e.g. 31UFU for the
// Flevoland polder.
type MGRSTile struct {
	Zone   int    // UTM zone, 1-60
	Band   string // latitude band letter
	Square string // two-letter grid square
}

// ParseMGRS parses a tile reference like "31UFU". Lowercase input is
// accepted.
func ParseMGRS(ref string) (MGRSTile, error) {
	matches := mgrsPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(ref)))
	if matches == nil {
		return MGRSTile{}, types.NewAppError(types.ErrCodeValidationParameter,
			fmt.Sprintf("invalid MGRS tile reference %q", ref), nil)
	}

	zone, err := strconv.Atoi(matches[1])
	if err != nil || zone < 1 || zone > 60 {
		return MGRSTile{}, types.NewAppError(types.ErrCodeValidationParameter,
			fmt.Sprintf("MGRS zone %s outside valid range [1, 60]", matches[1]), nil)
	}

	return MGRSTile{Zone: zone, Band: matches[2], Square: matches[3]}, nil
}

// String returns the compact tile reference, e.g. 31UFU.
func (t MGRSTile) String() string {
	return fmt.Sprintf("%d%s%s", t.Zone, t.Band, t.Square)
}

// Summary reports the acquisition dates found for one tile across a window.
type Summary struct {
	Tile   string           `json:"tile"`
	Mirror string           `json:"mirror"` // bucket that answered
	Window types.TimeWindow `json:"window"`
	Dates  []time.Time      `json:"dates"`
}

// Empty reports whether no acquisition dates were found in the window.
func (s *Summary) Empty() bool {
	return len(s.Dates) == 0
}

// Probe checks the public Sentinel-2 archive for scene availability.
type Probe struct {
	client  S3ListClient
	mirrors []string // ordered list of bucket names to try (failover)
	logger  *slog.Logger
}

// NewProbe creates an archive probe with mirror failover. mirrors is the
// ordered bucket list from CatalogConfig.Mirrors.
func NewProbe(client S3ListClient, mirrors []string, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		client:  client,
		mirrors: mirrors,
		logger:  logger,
	}
}

// Check lists the archive for the tile's acquisition dates inside the window.
// Mirrors are tried sequentially; the first bucket that answers wins. An
// error is returned only when the tile reference is invalid or every mirror
// fails.
func (p *Probe) Check(ctx context.Context, tileRef string, window types.TimeWindow) (*Summary, error) {
	tile, err := ParseMGRS(tileRef)
	if err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for _, bucket := range p.mirrors {
		dates, err := p.checkBucket(ctx, bucket, tile, window)
		if err != nil {
			p.logger.WarnContext(ctx, "archive mirror unavailable",
				"bucket", bucket,
				"tile", tile.String(),
				"error", err,
			)
			lastErr = err
			continue
		}

		p.logger.InfoContext(ctx, "archive probe complete",
			"bucket", bucket,
			"tile", tile.String(),
			"dates_available", len(dates),
		)
		return &Summary{
			Tile:   tile.String(),
			Mirror: bucket,
			Window: window,
			Dates:  dates,
		}, nil
	}

	if lastErr != nil {
		return nil, types.NewAppError(types.ErrCodeCatalogUnavailable,
			fmt.Sprintf("all archive mirrors failed for tile %s: %v", tile.String(), lastErr), lastErr)
	}

	// No mirrors configured.
	return nil, types.NewAppError(types.ErrCodeCatalogUnavailable,
		"no archive mirrors configured", nil)
}

// checkBucket lists one bucket for the tile's day prefixes across the window.
// A date counts as available when at least one sequence directory exists
// under its prefix.
func (p *Probe) checkBucket(ctx context.Context, bucket string, tile MGRSTile, window types.TimeWindow) ([]time.Time, error) {
	prefixes := tilePrefixesForWindow(tile, window)

	seen := make(map[time.Time]struct{})
	var dates []time.Time

	for _, prefix := range prefixes {
		input := &s3.ListObjectsV2Input{
			Bucket:    aws.String(bucket),
			Prefix:    aws.String(prefix),
			Delimiter: aws.String("/"),
		}

		output, err := p.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("listing %s/%s: %w", bucket, prefix, err)
		}

		// Each sequence directory under the day prefix comes back as a
		// common prefix; one is enough to mark the date available.
		for _, cp := range output.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			date, ok := ParseTileKey(*cp.Prefix)
			if !ok {
				continue
			}
			if _, exists := seen[date]; !exists {
				seen[date] = struct{}{}
				dates = append(dates, date)
			}
		}

		// Also check direct object keys in case delimiter listing returns objects.
		for _, obj := range output.Contents {
			if obj.Key == nil {
				continue
			}
			date, ok := ParseTileKey(*obj.Key)
			if !ok {
				continue
			}
			if _, exists := seen[date]; !exists {
				seen[date] = struct{}{}
				dates = append(dates, date)
			}
		}
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	return dates, nil
}

// tilePrefixesForWindow generates one day prefix per day of the half-open
// window [Start, End). Month and day are written unpadded, matching the
// archive layout.
func tilePrefixesForWindow(tile MGRSTile, window types.TimeWindow) []string {
	start := window.Start.UTC().Truncate(24 * time.Hour)

	var prefixes []string
	for d := start; d.Before(window.End); d = d.Add(24 * time.Hour) {
		prefixes = append(prefixes, fmt.Sprintf("tiles/%d/%s/%s/%d/%d/%d/",
			tile.Zone, tile.Band, tile.Square, d.Year(), int(d.Month()), d.Day()))
	}

	return prefixes
}

// ParseTileKey extracts the acquisition date from an archive key or prefix.
// Returns the date at UTC midnight and true if the key matches the tile
// layout.
func ParseTileKey(key string) (time.Time, bool) {
	matches := tileKeyPattern.FindStringSubmatch(key)
	if matches == nil {
		return time.Time{}, false
	}

	date, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", matches[4], matches[5], matches[6]))
	if err != nil {
		return time.Time{}, false
	}

	return date.UTC(), true
}
