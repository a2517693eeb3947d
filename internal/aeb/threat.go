package aeb

// ObjectThreat is the threat assessment of a single detected object.
type ObjectThreat struct {
	ObjectID     int         `json:"object_id"`
	Class        ObjectClass `json:"type"`
	Distance     float64     `json:"distance_m"`
	ClosingSpeed float64     `json:"closing_speed_mps"`
	TTC          TTC         `json:"ttc"`
	InPath       bool        `json:"in_path"`
	Level        ThreatLevel `json:"level"`
}

// ThreatMetrics summarises the threat picture for one evaluation.
//
// MinTTC covers in-path objects only and is what the decision engine acts on.
// MinTTCAll covers every detected object and is reported for awareness.
type ThreatMetrics struct {
	Objects   []ObjectThreat `json:"objects"`
	MinTTC    TTC            `json:"min_ttc"`
	MinTTCAll TTC            `json:"min_ttc_all"`
	Level     ThreatLevel    `json:"level"`
	// Critical is the object that sets Level: the most severe, then the
	// soonest. Nil when no in-path object was detected.
	Critical   *ObjectThreat `json:"critical,omitempty"`
	WorstClass ObjectClass   `json:"worst_class,omitempty"`
}

// EmptyThreat is the metrics value for a scene with nothing detected.
func EmptyThreat() ThreatMetrics {
	return ThreatMetrics{MinTTC: NoCollision, MinTTCAll: NoCollision, Level: ThreatNone}
}
