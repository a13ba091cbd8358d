package expert

// Availability is an expert's current availability status.
type Availability string

const (
	Available Availability = "available"
	Busy      Availability = "busy"
	Offline   Availability = "offline"
)

// Profile describes a human specialist. Profiles are maintained by an
// external registry and read-only to the pipeline.
type Profile struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Specialties    []string     `json:"specialties"`
	Status         Availability `json:"status"`
	Rating         float64      `json:"rating"`          // 0 to 5
	ResolutionRate float64      `json:"resolution_rate"` // 0 to 1
	Embedding      []float32    `json:"-"`
}

// HasSpecialty reports whether the expert covers the given category.
func (p Profile) HasSpecialty(category string) bool {
	for _, s := range p.Specialties {
		if s == category {
			return true
		}
	}
	return false
}

// MatchResult is the scored selection of an expert, with the full score
// breakdown for auditability.
type MatchResult struct {
	Expert            Profile `json:"expert"`
	SpecialtyScore    float64 `json:"specialty_score"`
	AvailabilityScore float64 `json:"availability_score"`
	PerformanceScore  float64 `json:"performance_score"`
	SemanticScore     float64 `json:"semantic_score"`
	FinalScore        float64 `json:"final_score"`
}
