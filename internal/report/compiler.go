// Package report renders a finished PM execution into a paginated PDF with
// status coloured task blocks and photo thumbnails.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-pdf/fpdf"
	"golang.org/x/sync/errgroup"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/lib/logger/sl"
	"ozzus/pm-tracker/internal/lib/sanitize"
	"ozzus/pm-tracker/internal/photo"
)

type PhotoFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

type Options struct {
	// Concurrency bounds parallel photo downloads.
	Concurrency  int
	FetchTimeout time.Duration
	// Location is used to print timestamps; UTC when nil.
	Location *time.Location
}

type Compiler struct {
	log      *slog.Logger
	fetcher  PhotoFetcher
	opts     Options
	compress bool
}

func NewCompiler(log *slog.Logger, fetcher PhotoFetcher, opts Options) *Compiler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Compiler{log: log, fetcher: fetcher, opts: opts, compress: true}
}

type Input struct {
	Execution domain.Execution
	Template  domain.Template
	// SourceName is the uploaded PM file name the report is named after.
	SourceName string
}

type Report struct {
	Data          []byte
	FileName      string
	Pages         int
	Tally         domain.Tally
	MissingPhotos int
}

type fetched struct {
	data   []byte
	format photo.Format
	err    error
}

// Compile renders in. Photo failures never abort the report: each one is
// drawn as an inline note in place of its thumbnail.
func (c *Compiler) Compile(ctx context.Context, in Input) (*Report, error) {
	const op = "report.Compile"
	log := c.log.With(
		slog.String("op", op),
		slog.String("execution_id", in.Execution.ID),
	)

	if len(in.Template.Tasks) == 0 {
		return nil, domain.NewValidationError("template %s has no tasks", in.Template.ID)
	}

	pdf := c.newDocument(in)
	w, h := pdf.GetPageSize()
	geom := Geometry{Width: w, Height: h, Margin: Margin}

	views := taskViews(in.Template, in.Execution.Results)
	blocks, refs := buildBlocks(pdf, geom, planInput{
		exec:     in.Execution,
		tpl:      in.Template,
		views:    views,
		location: c.opts.Location,
	})
	placements, _ := geom.Layout(heights(blocks))

	r := &renderer{pdf: pdf, geom: geom, photos: make([]fetched, len(refs)), refs: refs}
	pdf.AddPage()
	page := 1
	for i, b := range blocks {
		if b.kind == blockTask {
			c.fetchPhotos(ctx, refs, b.task, r.photos)
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "fetch photos")
			}
		}
		for page < placements[i].Page {
			pdf.AddPage()
			page++
		}
		r.draw(b, placements[i].Y)
	}

	if err := pdf.Error(); err != nil {
		return nil, errors.Wrap(err, "render pdf")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "write pdf")
	}

	for i, p := range r.photos {
		if p.err != nil {
			log.Warn("photo rendered as unavailable", slog.String("ref", refs[i].ref), sl.Err(p.err))
		}
	}

	team := in.Execution.Team
	rep := &Report{
		Data:          buf.Bytes(),
		FileName:      FileName(in.SourceName, in.Template.PMNumber, team.Reviewer, team.Technician1, team.Technician2),
		Pages:         page,
		Tally:         viewTally(views),
		MissingPhotos: r.missing,
	}

	log.Info("report compiled",
		slog.String("file", rep.FileName),
		slog.Int("pages", rep.Pages),
		slog.Int("photos", len(refs)),
		slog.Int("missing_photos", rep.MissingPhotos),
	)
	return rep, nil
}

func (c *Compiler) newDocument(in Input) *fpdf.Fpdf {
	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetMargins(Margin, Margin, Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(c.compress)
	pdf.SetCatalogSort(true)
	if !in.Execution.FinishedAt.IsZero() {
		pdf.SetCreationDate(in.Execution.FinishedAt)
	}
	pdf.SetTitle(sanitize.Text("PM execution "+in.Template.PMNumber), false)
	pdf.SetCreator("pm-tracker", false)
	pdf.AliasNbPages("")
	pdf.SetFont(fontFamily, "", 10)

	footer := sanitize.Text(fmt.Sprintf("%s %s", in.Template.PMNumber, in.Template.Name))
	pdf.SetFooterFunc(func() {
		_, h := pdf.GetPageSize()
		pdf.SetFont(fontFamily, "", 8)
		setText(pdf, colorMuted)
		pdf.Text(Margin, h-20, fmt.Sprintf("%s   Page %d of {nb}", footer, pdf.PageNo()))
	})
	return pdf
}

// fetchPhotos downloads the photos of one task into out, at most
// Concurrency at a time. Failures are stored per photo, never returned.
func (c *Compiler) fetchPhotos(ctx context.Context, refs []photoRef, task int, out []fetched) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, ref := range refs {
		if ref.task != task {
			continue
		}
		if c.fetcher == nil {
			out[i] = fetched{err: errors.New("no photo fetcher configured")}
			continue
		}
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, c.opts.FetchTimeout)
			defer cancel()

			data, err := c.fetcher.Fetch(fctx, ref.ref)
			if err != nil {
				out[i] = fetched{err: err}
				return nil
			}
			format, err := photo.Detect(data)
			if err != nil {
				out[i] = fetched{err: err}
				return nil
			}
			out[i] = fetched{data: data, format: format}
			return nil
		})
	}
	_ = g.Wait()
}

type renderer struct {
	pdf     *fpdf.Fpdf
	geom    Geometry
	photos  []fetched
	refs    []photoRef
	missing int
}

func setText(pdf *fpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
func setDraw(pdf *fpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }
func setFill(pdf *fpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }

func (r *renderer) draw(b block, y float64) {
	m := r.geom.Margin
	switch b.kind {
	case blockText:
		r.lines(m, y, b.lines)

	case blockSummary:
		r.summary(b, y)

	case blockTask:
		setDraw(r.pdf, b.border)
		r.pdf.SetLineWidth(1.5)
		r.pdf.Rect(m, y, r.geom.ContentWidth(), b.height-taskGap, "D")
		r.pdf.SetLineWidth(0.5)
		r.lines(m+taskPadding, y+taskPadding, b.lines)

	case blockPhotoRow:
		r.photoRow(b, y)
	}
}

// summary draws the tally boxes side by side, outlined in their status
// colour.
func (r *renderer) summary(b block, y float64) {
	n := float64(len(b.lines))
	w := (r.geom.ContentWidth() - (n-1)*ThumbGap) / n
	for i, l := range b.lines {
		x := r.geom.Margin + float64(i)*(w+ThumbGap)
		setFill(r.pdf, colorPanel)
		setDraw(r.pdf, l.color)
		r.pdf.SetLineWidth(1)
		r.pdf.Rect(x, y, w, summaryBox, "FD")
		r.lines(x+10, y+(summaryBox-lineHeight(l.size))/2, []line{l})
	}
	r.pdf.SetLineWidth(0.5)
}

// lines draws each line with its baseline one font size below the top of
// its slot.
func (r *renderer) lines(x, y float64, lines []line) {
	for _, l := range lines {
		r.pdf.SetFont(fontFamily, l.style, l.size)
		setText(r.pdf, l.color)
		r.pdf.Text(x, y+l.size, l.text)
		y += lineHeight(l.size)
	}
}

func (r *renderer) photoRow(b block, y float64) {
	label := "Evidence:"
	if !b.first {
		label = "Evidence (cont.):"
	}
	r.lines(r.geom.Margin, y, []line{{text: label, size: 9, style: "B", color: colorMuted}})

	top := y + 14
	for col, idx := range b.photos {
		x := r.geom.Margin + float64(col)*(ThumbWidth+ThumbGap)
		p := r.photos[idx]
		if p.err == nil {
			p.err = r.thumbnail(fmt.Sprintf("photo-%d", idx), p, x, top)
		}
		// the document holds its own copy once embedded
		p.data = nil
		r.photos[idx] = p
		if p.err != nil {
			r.missing++
			r.unavailable(x, top, p.err)
		}

		r.pdf.SetFont(fontFamily, "", 7)
		setText(r.pdf, colorMuted)
		r.pdf.Text(x, top+ThumbHeight+10, sanitize.Text(truncate(r.refs[idx].ref, CaptionMax)))
	}
}

func (r *renderer) thumbnail(name string, p fetched, x, y float64) error {
	opts := fpdf.ImageOptions{ImageType: string(p.format)}
	info := r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(p.data))
	if r.pdf.Err() {
		err := r.pdf.Error()
		r.pdf.ClearError()
		return errors.Wrap(err, "embed image")
	}

	w, h := ThumbWidth, ThumbHeight
	if info != nil && info.Width() > 0 && info.Height() > 0 {
		scale := min(ThumbWidth/info.Width(), ThumbHeight/info.Height())
		w, h = info.Width()*scale, info.Height()*scale
	}
	r.pdf.ImageOptions(name, x+(ThumbWidth-w)/2, y+(ThumbHeight-h)/2, w, h, false, opts, 0, "")

	setDraw(r.pdf, colorPending)
	r.pdf.SetLineWidth(0.5)
	r.pdf.Rect(x, y, ThumbWidth, ThumbHeight, "D")
	return nil
}

func (r *renderer) unavailable(x, y float64, cause error) {
	setFill(r.pdf, colorMissing)
	setDraw(r.pdf, colorFailed)
	r.pdf.SetLineWidth(0.5)
	r.pdf.Rect(x, y, ThumbWidth, ThumbHeight, "FD")

	lines := wrap(r.pdf, "Photo unavailable", 8, "B", ThumbWidth-8, colorFailed)
	lines = append(lines, wrap(r.pdf, truncate(cause.Error(), 120), 7, "", ThumbWidth-8, colorText)...)
	r.lines(x+4, y+4, lines)
}
