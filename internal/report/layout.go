package report

// Page geometry in PDF points, A4 landscape.
const (
	PageWidth  = 842.0
	PageHeight = 595.0
	Margin     = 40.0

	ThumbWidth  = 170.0
	ThumbHeight = 110.0
	ThumbGap    = 12.0
	CaptionMax  = 60
	// PhotosPerRow caps thumbnails per row even when more would fit.
	PhotosPerRow = 2

	// label line above the thumbnails plus caption space below them
	PhotoRowHeight = 14 + ThumbHeight + 20
)

// Geometry is the usable area of a page.
type Geometry struct {
	Width  float64
	Height float64
	Margin float64
}

func DefaultGeometry() Geometry {
	return Geometry{Width: PageWidth, Height: PageHeight, Margin: Margin}
}

// Cursor is the next free vertical position, measured from the top edge of
// Page (1-based).
type Cursor struct {
	Page int
	Y    float64
}

// Placement is where a block was put.
type Placement struct {
	Page    int
	Y       float64
	NewPage bool
}

func (g Geometry) Start() Cursor {
	return Cursor{Page: 1, Y: g.Margin}
}

func (g Geometry) ContentWidth() float64 {
	return g.Width - 2*g.Margin
}

func (g Geometry) Remaining(c Cursor) float64 {
	return g.Height - g.Margin - c.Y
}

// PerRow is how many thumbnails go side by side: PhotosPerRow, or fewer on
// a page too narrow for them.
func (g Geometry) PerRow() int {
	n := int((g.ContentWidth() + ThumbGap) / (ThumbWidth + ThumbGap))
	return max(1, min(n, PhotosPerRow))
}

// Place reserves height at c. When the block does not fit in what is left of
// the page it moves whole to the top of the next one. A page that is still
// empty keeps an oversized block instead of breaking forever.
func (g Geometry) Place(c Cursor, height float64) (Placement, Cursor) {
	p := Placement{Page: c.Page, Y: c.Y}
	if g.Remaining(c) < height && c.Y > g.Margin {
		p = Placement{Page: c.Page + 1, Y: g.Margin, NewPage: true}
	}
	return p, Cursor{Page: p.Page, Y: p.Y + height}
}

// Layout folds Place over heights.
func (g Geometry) Layout(heights []float64) ([]Placement, Cursor) {
	c := g.Start()
	out := make([]Placement, len(heights))
	for i, h := range heights {
		out[i], c = g.Place(c, h)
	}
	return out, c
}
