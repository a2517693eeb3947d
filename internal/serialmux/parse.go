package serialmux

import (
	"encoding/json"
	"strings"
)

// Line kinds emitted by the perception unit.
const (
	LineFrame   = "frame"
	LineStatus  = "status"
	LineUnknown = "unknown"
)

// ClassifyLine returns the kind of one line from the perception unit. Frame
// envelopes carry an "objects" array; any other JSON object is a status or
// command acknowledgement.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return LineUnknown
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		return LineUnknown
	}
	if _, ok := probe["objects"]; ok {
		return LineFrame
	}
	return LineStatus
}
