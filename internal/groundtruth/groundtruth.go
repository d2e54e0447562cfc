// Package groundtruth holds the labeled polygons the classifier is trained
// on. The built-in set is four hand-digitized Flevoland parcels, two per
// class; callers may substitute their own FeatureCollection as long as it
// passes the same label checks. A set is defined once and never modified by
// the pipeline.
package groundtruth

import (
	"fmt"
	"math"

	"github.com/venicegeo/geojson-go/geojson"

	"fieldline/internal/types"
)

// Set is an immutable collection of labeled training polygons. Every feature
// is a Polygon carrying an integer class label under the set's class
// property.
type Set struct {
	classProperty string
	fc            *geojson.FeatureCollection
}

// Default returns the built-in training set: four polygons inside the
// default survey rectangle. Two arable parcels are labeled field; a patch of
// Markermeer open water and a built-up block of Lelystad are labeled
// non-field.
func Default() *Set {
	features := []*geojson.Feature{
		newLabeledPolygon("parcel-swifterbant", "arable parcel near Swifterbant", types.ClassField, [][][]float64{{
			{5.552, 52.535}, {5.571, 52.535}, {5.571, 52.543}, {5.552, 52.543}, {5.552, 52.535},
		}}),
		newLabeledPolygon("parcel-larserweg", "arable parcel along the Larserweg", types.ClassField, [][][]float64{{
			{5.502, 52.432}, {5.521, 52.432}, {5.521, 52.441}, {5.502, 52.441}, {5.502, 52.432},
		}}),
		newLabeledPolygon("markermeer", "open water in the Markermeer", types.ClassNonField, [][][]float64{{
			{5.305, 52.505}, {5.322, 52.505}, {5.322, 52.514}, {5.305, 52.514}, {5.305, 52.505},
		}}),
		newLabeledPolygon("lelystad", "built-up block in Lelystad", types.ClassNonField, [][][]float64{{
			{5.458, 52.505}, {5.474, 52.505}, {5.474, 52.513}, {5.458, 52.513}, {5.458, 52.505},
		}}),
	}

	return &Set{
		classProperty: types.DefaultClassProperty,
		fc:            geojson.NewFeatureCollection(features),
	}
}

func newLabeledPolygon(id, name string, label types.ClassLabel, rings [][][]float64) *geojson.Feature {
	return geojson.NewFeature(geojson.NewPolygon(rings), id, map[string]interface{}{
		types.DefaultClassProperty: int(label),
		"name":                     name,
	})
}

// FromGeoJSON parses a caller-supplied FeatureCollection and validates it as
// a training set: polygon geometries only, every feature labeled 0 or 1
// under classProperty, and at least one polygon of each class. An empty
// classProperty falls back to the default.
func FromGeoJSON(data []byte, classProperty string) (*Set, error) {
	if classProperty == "" {
		classProperty = types.DefaultClassProperty
	}

	fc, err := geojson.FeatureCollectionFromBytes(data)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationGeometry,
			"ground truth is not a valid GeoJSON FeatureCollection",
			err,
		)
	}

	s := &Set{classProperty: classProperty, fc: fc}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) validate() error {
	if len(s.fc.Features) == 0 {
		return types.NewAppError(
			types.ErrCodeValidationGeometry,
			"ground truth contains no features",
			nil,
		)
	}

	counts := make(map[types.ClassLabel]int, 2)
	for i, f := range s.fc.Features {
		if _, ok := f.Geometry.(*geojson.Polygon); !ok {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationGeometry,
				fmt.Sprintf("ground truth feature %d is not a polygon", i),
				nil,
				map[string]any{"feature_index": i},
			)
		}

		label, err := s.labelOf(f, i)
		if err != nil {
			return err
		}
		counts[label]++
	}

	for _, required := range []types.ClassLabel{types.ClassNonField, types.ClassField} {
		if counts[required] == 0 {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationClassLabel,
				fmt.Sprintf("ground truth has no polygons labeled %s; both classes are required", required),
				nil,
				map[string]any{"class_property": s.classProperty, "missing_class": int(required)},
			)
		}
	}

	return nil
}

// labelOf extracts the class label of feature i. Label 0 is a valid class,
// so a missing property is distinguished from a zero value.
func (s *Set) labelOf(f *geojson.Feature, i int) (types.ClassLabel, error) {
	raw, ok := f.Properties[s.classProperty]
	if !ok {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeValidationClassLabel,
			fmt.Sprintf("ground truth feature %d has no %q property", i, s.classProperty),
			nil,
			map[string]any{"feature_index": i, "class_property": s.classProperty},
		)
	}

	var label types.ClassLabel
	switch v := raw.(type) {
	case int:
		label = types.ClassLabel(v)
	case float64:
		// JSON numbers decode as float64; fractional labels are invalid.
		if v != math.Trunc(v) {
			return 0, invalidLabelError(i, s.classProperty, raw)
		}
		label = types.ClassLabel(int(v))
	default:
		return 0, invalidLabelError(i, s.classProperty, raw)
	}

	if !label.Valid() {
		return 0, invalidLabelError(i, s.classProperty, raw)
	}
	return label, nil
}

func invalidLabelError(i int, classProperty string, raw interface{}) *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationClassLabel,
		fmt.Sprintf("ground truth feature %d has label %v; class labels must be 0 or 1", i, raw),
		nil,
		map[string]any{"feature_index": i, "class_property": classProperty},
	)
}

// Len returns the number of training polygons.
func (s *Set) Len() int {
	return len(s.fc.Features)
}

// ClassProperty returns the property name carrying the class label.
func (s *Set) ClassProperty() string {
	return s.classProperty
}

// Features returns the labeled features in definition order.
func (s *Set) Features() []*geojson.Feature {
	return s.fc.Features
}

// CountByClass returns the number of polygons per class label.
func (s *Set) CountByClass() map[types.ClassLabel]int {
	counts := make(map[types.ClassLabel]int, 2)
	for i, f := range s.fc.Features {
		if label, err := s.labelOf(f, i); err == nil {
			counts[label]++
		}
	}
	return counts
}

// Bytes serializes the set as a GeoJSON FeatureCollection for the sampling
// request.
func (s *Set) Bytes() ([]byte, error) {
	data, err := geojson.Write(s.fc)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize ground truth",
			err,
		)
	}
	return data, nil
}
