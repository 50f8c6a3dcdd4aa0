package report

import (
	"fmt"
	"strings"
	"time"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/lib/sanitize"
)

type rgb struct{ r, g, b int }

var (
	colorText    = rgb{33, 33, 33}
	colorMuted   = rgb{97, 97, 97}
	colorPending = rgb{158, 158, 158}
	colorPassed  = rgb{46, 125, 50}
	colorFailed  = rgb{198, 40, 40}
	colorFlagged = rgb{239, 108, 0}
	colorPanel   = rgb{240, 240, 240}
	colorMissing = rgb{255, 235, 238}
)

const (
	fontFamily  = "Helvetica"
	taskPadding = 6.0
	taskGap     = 8.0
	sectionGap  = 10.0
	summaryBox  = 40.0
)

// measurer is the part of the PDF writer needed to wrap text. *fpdf.Fpdf
// satisfies it.
type measurer interface {
	SetFont(family, style string, size float64)
	SplitText(txt string, w float64) []string
}

type blockKind int

const (
	blockText blockKind = iota
	blockSummary
	blockTask
	blockPhotoRow
)

type line struct {
	text  string
	size  float64
	style string
	color rgb
}

func lineHeight(size float64) float64 { return size + 4 }

type block struct {
	kind   blockKind
	lines  []line
	height float64
	border rgb
	task   int
	// photos are indices into the flattened photo list
	photos []int
	first  bool
}

// taskView is one checklist task paired with its result.
type taskView struct {
	task   domain.ChecklistTask
	result domain.TaskResult
}

func taskViews(tpl domain.Template, results []domain.TaskResult) []taskView {
	byID := make(map[string]domain.TaskResult, len(results))
	for _, r := range results {
		byID[r.TaskID] = r
	}
	views := make([]taskView, 0, len(tpl.Tasks))
	for _, t := range tpl.Tasks {
		r, ok := byID[t.ID]
		if !ok {
			r = domain.NewTaskResult(t.ID)
		}
		views = append(views, taskView{task: t, result: r})
	}
	return views
}

func statusIcon(r domain.TaskResult) string {
	switch {
	case r.Flagged:
		return "[!]"
	case r.Status == domain.StatusPassed:
		return "[OK]"
	case r.Status == domain.StatusFailed:
		return "[X]"
	}
	return "[ ]"
}

func borderColor(r domain.TaskResult) rgb {
	switch {
	case r.Flagged:
		return colorFlagged
	case r.Status == domain.StatusPassed:
		return colorPassed
	case r.Status == domain.StatusFailed:
		return colorFailed
	}
	return colorPending
}

func statusLabel(s domain.TaskStatus) string {
	switch s {
	case domain.StatusPassed:
		return "PASSED"
	case domain.StatusFailed:
		return "FAILED"
	}
	return "PENDING"
}

func wrap(m measurer, text string, size float64, style string, width float64, color rgb) []line {
	text = strings.TrimSpace(sanitize.Text(text))
	if text == "" {
		return nil
	}
	m.SetFont(fontFamily, style, size)
	var out []line
	for _, para := range strings.Split(text, "\n") {
		parts := m.SplitText(para, width)
		if len(parts) == 0 {
			parts = []string{""}
		}
		for _, p := range parts {
			out = append(out, line{text: p, size: size, style: style, color: color})
		}
	}
	return out
}

func textBlock(lines []line, gap float64) block {
	return block{kind: blockText, lines: lines, height: gap + linesHeight(lines)}
}

type planInput struct {
	exec     domain.Execution
	tpl      domain.Template
	views    []taskView
	location *time.Location
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02 15:04")
}

func headerBlock(m measurer, g Geometry, in planInput) block {
	w := g.ContentWidth()
	var lines []line
	add := func(text string, size float64, style string, color rgb) {
		lines = append(lines, wrap(m, text, size, style, w, color)...)
	}

	add("Preventive maintenance execution report", 16, "B", colorText)

	pm := strings.TrimSpace(in.tpl.PMNumber)
	if name := strings.TrimSpace(in.tpl.Name); name != "" {
		if pm != "" {
			pm += " - "
		}
		pm += name
	}
	add("PM: "+pm, 12, "B", colorText)
	if in.tpl.AssetCode != "" || in.tpl.Location != "" {
		add(fmt.Sprintf("Asset: %s   Location: %s", orDash(in.tpl.AssetCode), orDash(in.tpl.Location)), 10, "", colorMuted)
	}

	techs := in.exec.Team.Technician1
	if t2 := strings.TrimSpace(in.exec.Team.Technician2); t2 != "" {
		techs += ", " + t2
	}
	add("Technicians: "+orDash(techs), 10, "", colorText)
	add("Reviewer (GL): "+orDash(in.exec.Team.Reviewer), 10, "", colorText)
	add(fmt.Sprintf("Start: %s   End: %s",
		formatTime(in.exec.StartedAt, in.location), formatTime(in.exec.FinishedAt, in.location)), 10, "", colorText)
	add(fmt.Sprintf("Duration (min): %d", in.exec.DurationMinutes()), 10, "", colorText)

	return textBlock(lines, sectionGap)
}

// summaryBlock holds one line per tally box: passed, failed, flagged.
func summaryBlock(t domain.Tally) block {
	box := func(label string, n int, c rgb) line {
		return line{text: fmt.Sprintf("%s %d/%d", label, n, t.Total), size: 11, style: "B", color: c}
	}
	return block{
		kind: blockSummary,
		lines: []line{
			box("PASSED", t.Passed, colorPassed),
			box("FAILED", t.Failed, colorFailed),
			box("FLAGGED", t.Flagged, colorFlagged),
		},
		height: summaryBox + sectionGap,
	}
}

// taskBlock wraps one task into a block that always fits on a single page.
// Free text that would overflow the page is cut and ends with a truncation
// note.
func taskBlock(m measurer, g Geometry, idx int, v taskView) block {
	w := g.ContentWidth() - 2*taskPadding
	r := v.result

	title := fmt.Sprintf("[%d] %s %s [%s]", v.task.Sequence, statusIcon(r), v.task.Title, statusLabel(r.Status))
	if r.Flagged {
		title += " NEEDS REVIEW"
	}
	head := wrap(m, title, 11, "B", w, colorText)

	var body []line
	if v.task.KeyPoints != "" {
		body = append(body, wrap(m, "Key points: "+v.task.KeyPoints, 9, "", w, colorMuted)...)
	}
	if v.task.Rationale != "" {
		body = append(body, wrap(m, "Rationale: "+v.task.Rationale, 9, "", w, colorMuted)...)
	}
	if r.HasMeasurement() {
		body = append(body, wrap(m, "Measurement: "+strings.TrimSpace(r.Measurement), 9, "", w, colorText)...)
	}
	if r.HasComment() {
		body = append(body, wrap(m, "Comment: "+strings.TrimSpace(r.Comment), 9, "", w, colorText)...)
	}

	var tail []line
	if n := len(r.Photos); n > 0 {
		tail = append(tail, wrap(m, fmt.Sprintf("Photos: %d", n), 9, "", w, colorMuted)...)
	}
	if r.Flagged {
		tail = append(tail, wrap(m, "FLAG: needs review by GL / maintenance", 9, "B", w, colorFlagged)...)
	}

	room := g.Height - 2*g.Margin - 2*taskPadding - taskGap - linesHeight(head) - linesHeight(tail)
	body = fitLines(body, room)

	lines := append(append(head, body...), tail...)
	return block{
		kind:   blockTask,
		lines:  lines,
		height: 2*taskPadding + linesHeight(lines) + taskGap,
		border: borderColor(r),
		task:   idx,
	}
}

var truncatedLine = line{text: "(truncated)", size: 9, style: "I", color: colorMuted}

// fitLines keeps the leading lines that fit in room. When some are dropped
// the last kept slot holds truncatedLine instead.
func fitLines(lines []line, room float64) []line {
	if linesHeight(lines) <= room {
		return lines
	}
	room -= lineHeight(truncatedLine.size)
	n := 0
	for used := 0.0; n < len(lines); n++ {
		used += lineHeight(lines[n].size)
		if used > room {
			break
		}
	}
	return append(lines[:n:n], truncatedLine)
}

func linesHeight(lines []line) float64 {
	h := 0.0
	for _, l := range lines {
		h += lineHeight(l.size)
	}
	return h
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// photoRef addresses one photo of one task in the flattened fetch list.
type photoRef struct {
	task int
	ref  string
}

// buildBlocks produces every block of the report in drawing order together
// with the flattened list of photos to fetch.
func buildBlocks(m measurer, g Geometry, in planInput) ([]block, []photoRef) {
	blocks := []block{
		headerBlock(m, g, in),
		summaryBlock(viewTally(in.views)),
		textBlock(wrap(m, "Task detail", 12, "B", g.ContentWidth(), colorText), 4),
	}

	var refs []photoRef
	perRow := g.PerRow()
	for i, v := range in.views {
		blocks = append(blocks, taskBlock(m, g, i, v))

		photos := v.result.Photos
		for start := 0; start < len(photos); start += perRow {
			end := min(start+perRow, len(photos))
			row := block{kind: blockPhotoRow, height: PhotoRowHeight + 4, task: i, first: start == 0}
			for _, p := range photos[start:end] {
				row.photos = append(row.photos, len(refs))
				refs = append(refs, photoRef{task: i, ref: p})
			}
			blocks = append(blocks, row)
		}
	}
	return blocks, refs
}

func viewTally(views []taskView) domain.Tally {
	results := make([]domain.TaskResult, len(views))
	for i, v := range views {
		results[i] = v.result
	}
	return domain.TallyResults(results)
}

func heights(blocks []block) []float64 {
	out := make([]float64, len(blocks))
	for i, b := range blocks {
		out[i] = b.height
	}
	return out
}
