package types

// Sentinel-2 surface reflectance band names used by the pipeline.
const (
	BandBlue  = "B2"
	BandGreen = "B3"
	BandRed   = "B4"
	BandNIR   = "B8"

	// NDVIBand is the name given to the derived vegetation index band when
	// it is appended to the composite.
	NDVIBand = "NDVI"
)

// QA60 bitmask layout. Bit 10 flags opaque clouds, bit 11 flags cirrus; a
// pixel is usable only when both are clear.
const (
	QABandName   = "QA60"
	QACloudBit   = 10
	QACirrusBit  = 11
	QACloudMask  = 1 << QACloudBit
	QACirrusMask = 1 << QACirrusBit
)

// DefaultBands returns the reflectance bands kept in the composite, in
// platform order.
func DefaultBands() []string {
	return []string{BandBlue, BandGreen, BandRed, BandNIR}
}

// ClassLabel is the binary land-cover class assigned to pixels and training
// polygons.
type ClassLabel int

const (
	ClassNonField ClassLabel = 0
	ClassField    ClassLabel = 1
)

// Valid reports whether the label is one of the two defined classes.
func (c ClassLabel) Valid() bool {
	return c == ClassNonField || c == ClassField
}

// String returns the human-readable class name.
func (c ClassLabel) String() string {
	switch c {
	case ClassField:
		return "field"
	case ClassNonField:
		return "non_field"
	default:
		return "unknown"
	}
}

// NormalizedDifference computes (a − b) / (a + b), the per-pixel formula the
// platform applies when deriving the vegetation index from NIR and red
// reflectance. Returns 0 when the denominator is 0, matching the platform's
// masked-pixel convention.
func NormalizedDifference(a, b float64) float64 {
	sum := a + b
	if sum == 0 {
		return 0
	}
	return (a - b) / sum
}

// CloudObscured reports whether a QA60 sample flags the pixel as cloud or
// cirrus. Pixels for which this returns true are masked out of every scene
// before compositing.
func CloudObscured(qa uint16) bool {
	return qa&(QACloudMask|QACirrusMask) != 0
}

// BinarizeEdgeStrength collapses a continuous edge-strength value into the
// integer domain required by vectorization: strictly greater than the
// threshold becomes 1, everything else 0. Applying it to its own output is a
// no-op for any threshold below 1.
func BinarizeEdgeStrength(strength float64, threshold int) int {
	if strength > float64(threshold) {
		return 1
	}
	return 0
}
