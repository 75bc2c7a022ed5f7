package cli

import (
	"encoding/json"
	"io"
	"time"
)

// emitNDJSON writes one event per line for --json consumers.
func emitNDJSON(w io.Writer, level, event string, data interface{}) {
	out := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"event": event,
		"data":  data,
	}
	_ = json.NewEncoder(w).Encode(out)
}
