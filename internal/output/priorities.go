package output

// MarkerKindPriority defines the ordering priority for marker kinds.
// Lower numbers sort first; hazards always lead.
var MarkerKindPriority = map[string]int{
	"hazard":     1,
	"contract":   2,
	"dependency": 3,
	"deprecated": 4,
	"unstable":   5,
}

// GetMarkerKindPriority returns the priority for a marker kind. Unknown
// kinds sort last.
func GetMarkerKindPriority(kind string) int {
	if priority, ok := MarkerKindPriority[kind]; ok {
		return priority
	}
	return len(MarkerKindPriority) + 1
}
