package types

import (
	"math"
	"testing"
)

// TestNormalizedDifference verifies the vegetation index formula against the
// reference value: NIR=0.5, RED=0.2 yields 0.3/0.7.
func TestNormalizedDifference(t *testing.T) {
	got := NormalizedDifference(0.5, 0.2)
	want := 0.4286
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("NormalizedDifference(0.5, 0.2) = %v, want %v (±1e-4)", got, want)
	}
}

// TestNormalizedDifferenceTable covers the formula across the value range.
func TestNormalizedDifferenceTable(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{name: "dense vegetation", a: 0.8, b: 0.1, want: 0.7 / 0.9},
		{name: "bare soil", a: 0.3, b: 0.25, want: 0.05 / 0.55},
		{name: "equal reflectance", a: 0.4, b: 0.4, want: 0},
		{name: "water negative", a: 0.1, b: 0.3, want: -0.5},
		{name: "zero denominator", a: 0, b: 0, want: 0},
		{name: "full positive", a: 1, b: 0, want: 1},
		{name: "full negative", a: 0, b: 1, want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizedDifference(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizedDifference(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestCloudObscured verifies the QA60 bit semantics: bit 10 flags cloud,
// bit 11 flags cirrus, any other bit is ignored.
func TestCloudObscured(t *testing.T) {
	tests := []struct {
		name string
		qa   uint16
		want bool
	}{
		{name: "clear", qa: 0, want: false},
		{name: "cloud bit set", qa: 1 << 10, want: true},
		{name: "cirrus bit set", qa: 1 << 11, want: true},
		{name: "both bits set", qa: 1<<10 | 1<<11, want: true},
		{name: "unrelated low bits", qa: 0x03FF, want: false},
		{name: "unrelated high bits", qa: 1<<12 | 1<<15, want: false},
		{name: "cloud plus noise", qa: 1<<10 | 0x0007, want: true},
		{name: "all bits set", qa: 0xFFFF, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CloudObscured(tt.qa)
			if got != tt.want {
				t.Errorf("CloudObscured(%#04x) = %v, want %v", tt.qa, got, tt.want)
			}
		})
	}
}

// TestQAMaskConstants pins the bit positions against the QA60 layout.
func TestQAMaskConstants(t *testing.T) {
	if QACloudMask != 1024 {
		t.Errorf("QACloudMask = %d, want 1024", QACloudMask)
	}
	if QACirrusMask != 2048 {
		t.Errorf("QACirrusMask = %d, want 2048", QACirrusMask)
	}
}

// TestBinarizeEdgeStrength verifies the strictly-greater-than cutoff and the
// {0,1} output domain.
func TestBinarizeEdgeStrength(t *testing.T) {
	tests := []struct {
		name      string
		strength  float64
		threshold int
		want      int
	}{
		{name: "zero at zero threshold", strength: 0, threshold: 0, want: 0},
		{name: "epsilon above zero", strength: 0.0001, threshold: 0, want: 1},
		{name: "strong edge", strength: 0.95, threshold: 0, want: 1},
		{name: "negative strength", strength: -0.5, threshold: 0, want: 0},
		{name: "at threshold one", strength: 1, threshold: 1, want: 0},
		{name: "above threshold one", strength: 1.5, threshold: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BinarizeEdgeStrength(tt.strength, tt.threshold)
			if got != tt.want {
				t.Errorf("BinarizeEdgeStrength(%v, %d) = %d, want %d", tt.strength, tt.threshold, got, tt.want)
			}
		})
	}
}

// TestBinarizeEdgeStrengthIdempotent verifies that re-binarizing an already
// binarized value at threshold 0 changes nothing.
func TestBinarizeEdgeStrengthIdempotent(t *testing.T) {
	inputs := []float64{-1, 0, 0.3, 0.7, 1, 42}
	for _, in := range inputs {
		once := BinarizeEdgeStrength(in, 0)
		twice := BinarizeEdgeStrength(float64(once), 0)
		if once != twice {
			t.Errorf("binarize(binarize(%v)) = %d, want %d", in, twice, once)
		}
		if once != 0 && once != 1 {
			t.Errorf("binarize(%v) = %d, want 0 or 1", in, once)
		}
	}
}

// TestClassLabel verifies the binary label domain and its names.
func TestClassLabel(t *testing.T) {
	if ClassNonField != 0 || ClassField != 1 {
		t.Fatalf("class values = %d/%d, want 0/1", ClassNonField, ClassField)
	}
	if !ClassField.Valid() || !ClassNonField.Valid() {
		t.Error("defined classes should be valid")
	}
	if ClassLabel(2).Valid() {
		t.Error("label 2 should be invalid")
	}
	if ClassLabel(-1).Valid() {
		t.Error("label -1 should be invalid")
	}
	if ClassField.String() != "field" {
		t.Errorf("ClassField.String() = %q, want field", ClassField.String())
	}
	if ClassNonField.String() != "non_field" {
		t.Errorf("ClassNonField.String() = %q, want non_field", ClassNonField.String())
	}
	if ClassLabel(7).String() != "unknown" {
		t.Errorf("ClassLabel(7).String() = %q, want unknown", ClassLabel(7).String())
	}
}

// TestDefaultBandsReturnsCopy verifies callers cannot mutate the canonical
// band list.
func TestDefaultBandsReturnsCopy(t *testing.T) {
	a := DefaultBands()
	a[0] = "mutated"
	b := DefaultBands()
	if b[0] != "B2" {
		t.Errorf("DefaultBands() shares state between calls: %v", b)
	}
}
