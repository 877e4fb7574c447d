// Package batch enumerates the triangular pair space {(i, j) : i < j} of an
// n-word vocabulary as a sequence of rectangular blocks. The scheduler is a
// cursor, not a queue: the caller reads the current block, computes and
// durably stores it, then advances. Block dimensions can be halved between
// reads when a block proves too expensive, down to a fixed floor.
package batch

import (
	"errors"
	"fmt"
)

const (
	// DefaultBlockSize is the initial edge length of scheduled blocks.
	DefaultBlockSize = 2048

	// MinBlockSize is the halving floor. A workload that cannot process a
	// block this small has a configuration problem, not a sizing problem.
	MinBlockSize = 64
)

// ErrBlockFloor reports that halving would shrink a block dimension below
// the floor. The condition is fatal to the run.
var ErrBlockFloor = errors.New("batch: block size floor reached")

// Block is one rectangular tile of the pair space. Row indices span
// [RowStart, RowStart+Rows), column indices [ColStart, ColStart+Cols). Tiles
// straddling the diagonal contain cells with i >= j; the compute layer skips
// those, so tiles never need to be clipped to the triangle.
type Block struct {
	RowStart int
	ColStart int
	Rows     int
	Cols     int
}

// Option is a functional option for configuring a [Scheduler].
type Option func(*Scheduler)

// WithBlockSize sets the initial block dimensions. Non-positive values are
// ignored.
func WithBlockSize(rows, cols int) Option {
	return func(s *Scheduler) {
		if rows > 0 {
			s.rows = rows
		}
		if cols > 0 {
			s.cols = cols
		}
	}
}

// WithCursor positions the scheduler at a checkpointed block coordinate
// instead of the origin. Used on resume.
func WithCursor(rowStart, colStart int) Option {
	return func(s *Scheduler) {
		s.cursorRow = rowStart
		s.cursorCol = colStart
	}
}

// Scheduler walks the block tiling of the upper triangle in row-major
// order. Each row band starts its column sweep at the band's own row start,
// so no cell with i < j is ever left out. Not safe for concurrent use.
type Scheduler struct {
	n int

	rows int
	cols int

	cursorRow int
	cursorCol int
}

// New builds a scheduler over an n-word vocabulary.
func New(n int, opts ...Option) (*Scheduler, error) {
	if n < 0 {
		return nil, fmt.Errorf("batch: negative vocabulary size %d", n)
	}
	s := &Scheduler{
		n:    n,
		rows: DefaultBlockSize,
		cols: DefaultBlockSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cursorRow < 0 || s.cursorCol < s.cursorRow {
		return nil, fmt.Errorf("batch: invalid cursor (%d,%d)", s.cursorRow, s.cursorCol)
	}
	return s, nil
}

// BlockSize returns the current block dimensions.
func (s *Scheduler) BlockSize() (rows, cols int) { return s.rows, s.cols }

// Current returns the block at the cursor, clipped to the vocabulary bounds.
// ok is false when the triangle is exhausted. Calling Current repeatedly
// without Advance returns the same coordinates, though possibly with smaller
// dimensions after a Halve.
func (s *Scheduler) Current() (b Block, ok bool) {
	// The last row index ever paired as i is n-2.
	if s.n < 2 || s.cursorRow >= s.n-1 {
		return Block{}, false
	}
	return Block{
		RowStart: s.cursorRow,
		ColStart: s.cursorCol,
		Rows:     min(s.rows, s.n-s.cursorRow),
		Cols:     min(s.cols, s.n-s.cursorCol),
	}, true
}

// Advance moves the cursor past the current block: right along the band, or
// down to the next band once the band's columns are exhausted. Each band
// restarts its column sweep at its own row start.
func (s *Scheduler) Advance() {
	b, ok := s.Current()
	if !ok {
		return
	}
	s.cursorCol += b.Cols
	if s.cursorCol >= s.n {
		s.cursorRow += b.Rows
		s.cursorCol = s.cursorRow
	}
}

// Halve shrinks both block dimensions by half for every subsequent block,
// including the one currently at the cursor. Returns ErrBlockFloor when
// either dimension is already at the floor.
func (s *Scheduler) Halve() error {
	if s.rows/2 < MinBlockSize || s.cols/2 < MinBlockSize {
		return fmt.Errorf("%w: %dx%d cannot shrink below %d", ErrBlockFloor, s.rows, s.cols, MinBlockSize)
	}
	s.rows /= 2
	s.cols /= 2
	return nil
}

// Done reports whether every block has been advanced past.
func (s *Scheduler) Done() bool {
	_, ok := s.Current()
	return !ok
}

// Progress estimates the fraction of the pair space already advanced past,
// in [0, 1]. The estimate assumes the current band was swept at the current
// band height; mid-band halving makes it slightly conservative.
func (s *Scheduler) Progress() float64 {
	total := float64(s.n) * float64(s.n-1) / 2
	if total == 0 {
		return 1
	}
	if s.Done() {
		return 1
	}

	var covered float64
	// Full bands above the cursor: every pair with i < cursorRow.
	r := float64(s.cursorRow)
	covered += r*float64(s.n-1) - r*(r-1)/2
	// Partial band: columns [cursorRow, cursorCol) swept for each band row.
	bandEnd := min(s.cursorRow+s.rows, s.n)
	for i := s.cursorRow; i < bandEnd; i++ {
		if c := s.cursorCol - (i + 1); c > 0 {
			covered += float64(c)
		}
	}

	p := covered / total
	if p > 1 {
		p = 1
	}
	return p
}
