// Package clinical defines the structured signals derived from a fragment:
// extracted clinical entities and the intent vector.
package clinical

// Category classifies an extracted entity. The set is open: categories the
// extraction backend reports that are not listed here are kept verbatim.
type Category string

const (
	CategoryMedicationName Category = "MEDICATION_NAME"
	CategoryDosage         Category = "DOSAGE"
	CategoryFrequency      Category = "FREQUENCY"
	CategoryRouteOrMode    Category = "ROUTE_OR_MODE"
	CategoryDuration       Category = "DURATION"
	CategoryCondition      Category = "CONDITION"
	CategoryProcedure      Category = "PROCEDURE"
	CategoryTest           Category = "TEST"
	CategoryAnatomy        Category = "ANATOMY"
)

// Entity is one typed span extracted from fragment text.
type Entity struct {
	Text       string   `json:"text"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// HasCategory reports whether any entity belongs to one of the categories.
func HasCategory(entities []Entity, categories ...Category) bool {
	for i := range entities {
		for _, c := range categories {
			if entities[i].Category == c {
				return true
			}
		}
	}
	return false
}

// Filter returns the entities of the given category, preserving order.
func Filter(entities []Entity, category Category) []Entity {
	var out []Entity
	for i := range entities {
		if entities[i].Category == category {
			out = append(out, entities[i])
		}
	}
	return out
}

// Texts returns the surface text of each entity.
func Texts(entities []Entity) []string {
	out := make([]string, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].Text)
	}
	return out
}

// MeanConfidence returns the average extraction confidence, or 0 for an
// empty slice.
func MeanConfidence(entities []Entity) float64 {
	if len(entities) == 0 {
		return 0
	}
	var sum float64
	for i := range entities {
		sum += entities[i].Confidence
	}
	return sum / float64(len(entities))
}

// Clone returns an independent copy so concurrent consumers never share
// the backing array.
func Clone(entities []Entity) []Entity {
	if entities == nil {
		return nil
	}
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}
