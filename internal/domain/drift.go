package domain

// DriftMethod identifies one comparison strategy in the fixed cascade.
type DriftMethod string

const (
	DriftMethodAuto      DriftMethod = "auto"
	DriftMethodEmbedding DriftMethod = "embedding"
	DriftMethodPHash     DriftMethod = "phash"
	DriftMethodSSIM      DriftMethod = "ssim"
	DriftMethodNone      DriftMethod = "none"
)

// CascadeOrder is the fixed preference order for the automatic cascade.
var CascadeOrder = []DriftMethod{DriftMethodEmbedding, DriftMethodPHash, DriftMethodSSIM}

func (m DriftMethod) Valid() bool {
	switch m {
	case DriftMethodAuto, DriftMethodEmbedding, DriftMethodPHash, DriftMethodSSIM:
		return true
	}
	return false
}

// DriftScore is the normalized divergence between an artifact and the fixed
// reference. Value is meaningful only when Defined; 0 = identical,
// 1 = maximum divergence. Breached uses strict inequality against the
// configured threshold.
type DriftScore struct {
	Defined     bool
	Value       float64
	Method      DriftMethod
	Breached    bool
	ReferenceID string
}

// ValuePtr returns the score as a nullable pointer for persistence and
// JSON payloads; nil when undefined.
func (s DriftScore) ValuePtr() *float64 {
	if !s.Defined {
		return nil
	}
	v := s.Value
	return &v
}
