package observability

import (
	"net/http"
	"strconv"
	"strings"
)

// ServerTiming renders one Server-Timing metric. Non-positive durations and
// empty descriptions are left out; an empty string means nothing to report.
func ServerTiming(name string, durMs float64, desc string) string {
	if durMs <= 0 && desc == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(name)
	if durMs > 0 {
		b.WriteString(";dur=")
		b.WriteString(strconv.FormatFloat(durMs, 'f', 2, 64))
	}
	if desc != "" {
		b.WriteString(";desc=")
		b.WriteString(strconv.Quote(desc))
	}
	return b.String()
}

func AppendServerTiming(w http.ResponseWriter, name string, durMs float64, desc string) {
	if v := ServerTiming(name, durMs, desc); v != "" {
		w.Header().Add("Server-Timing", v)
	}
}
