package series

// Point is one entry in the observed price series.
type Point struct {
	Time  int64   // milliseconds since epoch
	Price float64 // quote-currency units; > 0 for real observations

	// Placeholder marks an explicit "no observation" slot used for
	// fixed-cadence gap filling. A placeholder's Price carries no meaning
	// and must never be read as a real zero price.
	Placeholder bool
}

// BoundingMode selects how the buffer is trimmed. The two policies are
// mutually exclusive; config validation rejects setting both.
type BoundingMode int

const (
	// BoundByWindow drops points older than the configured wall-clock window.
	BoundByWindow BoundingMode = iota
	// BoundByCount keeps only the most recent N points.
	BoundByCount
)
