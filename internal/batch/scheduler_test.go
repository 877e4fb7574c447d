package batch

import (
	"errors"
	"testing"
)

// sweep runs the scheduler to exhaustion and returns every block in order.
func sweep(t *testing.T, s *Scheduler) []Block {
	t.Helper()
	var blocks []Block
	for {
		b, ok := s.Current()
		if !ok {
			break
		}
		blocks = append(blocks, b)
		s.Advance()
		if len(blocks) > 10000 {
			t.Fatal("scheduler did not terminate")
		}
	}
	return blocks
}

func TestScheduler_CoversTriangleExactlyOnce(t *testing.T) {
	t.Parallel()

	const n = 50
	s, err := New(n, WithBlockSize(7, 11))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	counts := make(map[[2]int]int)
	for _, b := range sweep(t, s) {
		for i := b.RowStart; i < b.RowStart+b.Rows; i++ {
			for j := b.ColStart; j < b.ColStart+b.Cols; j++ {
				if i < j {
					counts[[2]int{i, j}]++
				}
			}
		}
	}

	want := n * (n - 1) / 2
	if len(counts) != want {
		t.Fatalf("covered %d pairs, want %d", len(counts), want)
	}
	for key, c := range counts {
		if c != 1 {
			t.Errorf("pair %v scheduled %d times, want 1", key, c)
		}
	}
}

func TestScheduler_BlocksStayInBounds(t *testing.T) {
	t.Parallel()

	s, err := New(100, WithBlockSize(33, 33))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	for _, b := range sweep(t, s) {
		if b.Rows <= 0 || b.Cols <= 0 {
			t.Errorf("block %+v has empty dimension", b)
		}
		if b.RowStart+b.Rows > 100 || b.ColStart+b.Cols > 100 {
			t.Errorf("block %+v exceeds vocabulary bounds", b)
		}
		if b.ColStart < b.RowStart {
			t.Errorf("block %+v starts left of its band's diagonal", b)
		}
	}
}

func TestScheduler_TinyVocabularies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n          int
		wantBlocks bool
	}{
		{n: 0, wantBlocks: false},
		{n: 1, wantBlocks: false},
		{n: 2, wantBlocks: true},
	}
	for _, tt := range tests {
		s, err := New(tt.n)
		if err != nil {
			t.Fatalf("New(%d) unexpected error: %v", tt.n, err)
		}
		_, ok := s.Current()
		if ok != tt.wantBlocks {
			t.Errorf("New(%d).Current() ok = %v, want %v", tt.n, ok, tt.wantBlocks)
		}
		if !tt.wantBlocks && s.Progress() != 1 {
			t.Errorf("New(%d).Progress() = %g, want 1", tt.n, s.Progress())
		}
	}
}

func TestScheduler_Halve(t *testing.T) {
	t.Parallel()

	s, err := New(100000, WithBlockSize(512, 512))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	before, _ := s.Current()
	if before.Rows != 512 {
		t.Fatalf("initial block rows = %d, want 512", before.Rows)
	}

	// 512 -> 256 -> 128 -> 64, then the floor.
	for _, want := range []int{256, 128, 64} {
		if err := s.Halve(); err != nil {
			t.Fatalf("Halve() to %d unexpected error: %v", want, err)
		}
		b, _ := s.Current()
		if b.Rows != want || b.Cols != want {
			t.Errorf("block after halve = %dx%d, want %dx%d", b.Rows, b.Cols, want, want)
		}
		if b.RowStart != before.RowStart || b.ColStart != before.ColStart {
			t.Error("Halve must not move the cursor")
		}
	}

	if err := s.Halve(); !errors.Is(err, ErrBlockFloor) {
		t.Fatalf("Halve() at floor error = %v, want ErrBlockFloor", err)
	}
}

func TestScheduler_ResumeFromCursor(t *testing.T) {
	t.Parallel()

	const n = 40
	first, err := New(n, WithBlockSize(9, 9))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	// Run five blocks, then pretend to crash and resume from the cursor the
	// sixth block would have been read at.
	var done []Block
	for i := 0; i < 5; i++ {
		b, ok := first.Current()
		if !ok {
			t.Fatal("scheduler exhausted too early")
		}
		done = append(done, b)
		first.Advance()
	}
	next, _ := first.Current()

	resumed, err := New(n, WithBlockSize(9, 9), WithCursor(next.RowStart, next.ColStart))
	if err != nil {
		t.Fatalf("New() with cursor unexpected error: %v", err)
	}

	covered := make(map[[2]int]bool)
	mark := func(blocks []Block) {
		for _, b := range blocks {
			for i := b.RowStart; i < b.RowStart+b.Rows; i++ {
				for j := b.ColStart; j < b.ColStart+b.Cols; j++ {
					if i < j {
						covered[[2]int{i, j}] = true
					}
				}
			}
		}
	}
	mark(done)
	mark(sweep(t, resumed))

	if want := n * (n - 1) / 2; len(covered) != want {
		t.Fatalf("resumed run covered %d pairs, want %d", len(covered), want)
	}
}

func TestScheduler_Progress(t *testing.T) {
	t.Parallel()

	s, err := New(50, WithBlockSize(10, 10))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	last := -1.0
	for {
		p := s.Progress()
		if p < last {
			t.Fatalf("Progress() went backwards: %g after %g", p, last)
		}
		if p < 0 || p > 1 {
			t.Fatalf("Progress() = %g outside [0, 1]", p)
		}
		last = p
		if _, ok := s.Current(); !ok {
			break
		}
		s.Advance()
	}
	if last != 1 {
		t.Errorf("final Progress() = %g, want 1", last)
	}
}

func TestNew_InvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := New(-1); err == nil {
		t.Error("New(-1) expected error")
	}
	if _, err := New(10, WithCursor(5, 2)); err == nil {
		t.Error("New() with cursor left of the diagonal expected error")
	}
}
