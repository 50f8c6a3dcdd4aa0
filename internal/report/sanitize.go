package report

import (
	"path"
	"strings"

	"ozzus/pm-tracker/internal/lib/sanitize"
)

// FileName builds the suggested report name,
// e.g. EXEC_PM-100_GL(Perez)_A1(Ana)_A2(Luis).pdf.
func FileName(source, pmNumber, reviewer, tech1, tech2 string) string {
	base := strings.TrimSpace(source)
	if base != "" {
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	if base == "" {
		base = strings.TrimSpace(pmNumber)
	}
	if base == "" {
		base = "PM"
	}

	var b strings.Builder
	b.WriteString("EXEC_")
	b.WriteString(sanitize.FileName(base))
	b.WriteString("_GL(" + sanitize.FileName(strings.TrimSpace(reviewer)) + ")")
	b.WriteString("_A1(" + sanitize.FileName(strings.TrimSpace(tech1)) + ")")
	if a2 := sanitize.FileName(strings.TrimSpace(tech2)); a2 != "" {
		b.WriteString("_A2(" + a2 + ")")
	}
	b.WriteString(".pdf")
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
