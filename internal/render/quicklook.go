package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"fieldline/internal/external"
	"fieldline/internal/types"
)

// Quicklook renders a true-color preview of the composite clipped to the
// survey rectangle, downscaled to at most maxWidth pixels across, and
// returned as PNG bytes.
//
// The platform renders the styled thumbnail server side; only the finished
// image is downloaded, then re-encoded locally. Platform and fetch errors
// keep their own codes; local decode and encode failures are classified as
// quicklook failures.
func (r *Renderer) Quicklook(ctx context.Context, in MapInput, maxWidth int) ([]byte, error) {
	if in.Composite == nil {
		return nil, types.NewAppError(types.ErrCodeRenderQuicklook,
			"quicklook requires a composite", nil)
	}
	if r.fetcher == nil {
		return nil, types.NewAppError(types.ErrCodeRenderQuicklook,
			"no fetcher configured for quicklook download", nil)
	}
	if maxWidth <= 0 {
		return nil, types.NewAppError(types.ErrCodeRenderQuicklook,
			fmt.Sprintf("quicklook width must be positive, got %d", maxWidth), nil)
	}

	url, err := r.tiles.Thumbnail(ctx, in.Composite.AssetID,
		external.StretchParams(in.Vis.TrueColor), in.Params.AOI, maxWidth)
	if err != nil {
		return nil, fmt.Errorf("requesting thumbnail: %w", err)
	}

	raw, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("downloading thumbnail: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeRenderQuicklook,
			"decoding thumbnail image", err)
	}

	// The platform may ignore the requested width; enforce the ceiling
	// locally, preserving aspect ratio.
	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, types.NewAppError(types.ErrCodeRenderQuicklook,
			"encoding quicklook PNG", err)
	}

	r.logger.InfoContext(ctx, "quicklook rendered",
		"run_id", in.RunID,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"png_bytes", buf.Len(),
	)

	return buf.Bytes(), nil
}
