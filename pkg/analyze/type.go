package analyze

type AnalyzeType string

const (
	AnalyzeTypeLatency AnalyzeType = "latency"
	AnalyzeTypeBurst   AnalyzeType = "burst"
)

func (a AnalyzeType) Valid() bool {
	switch a {
	case AnalyzeTypeLatency, AnalyzeTypeBurst:
		return true
	}
	return false
}
