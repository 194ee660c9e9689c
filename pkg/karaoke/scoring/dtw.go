package scoring

import "math"

// DefaultBandFraction sizes the automatic band radius relative to the longer contour.
const DefaultBandFraction = 0.1

// DefaultMaxCells bounds the in-band cost cells of one pass (512 MB of float64).
const DefaultMaxCells = 64 << 20

// minAutoRadius keeps very short contours from getting a zero-width band.
const minAutoRadius = 2

// Step is one aligned (user, reference) index pair.
type Step struct {
	User int `json:"user"`
	Ref  int `json:"ref"`
}

// Alignment is the result of a DTW pass.
type Alignment struct {
	Path     []Step
	Distance float64 // accumulated cost at the terminal cell
	Radius   int     // band radius that produced the path
}

// AlignOptions configures the Sakoe-Chiba band.
// Radius 0 derives the radius from BandFraction and always widens until the end is reachable.
// MaxCells 0 means DefaultMaxCells.
type AlignOptions struct {
	Radius       int
	BandFraction float64
	AutoWiden    bool
	MaxCells     int64
}

// band holds the in-band cells of the cost matrix, row by row.
type band struct {
	n, m   int
	lo, hi []int
	off    []int
	cells  []float64
}

// rowSpan is the in-band column range of row i; the band follows the n:m diagonal.
func rowSpan(i, n, m, radius int) (lo, hi int) {
	if n <= 1 {
		return 0, m - 1
	}
	center := float64(i) * float64(m-1) / float64(n-1)
	lo = max(0, int(math.Ceil(center-float64(radius))))
	hi = min(m-1, int(math.Floor(center+float64(radius))))
	return lo, hi
}

// bandCells counts the cells newBand would allocate.
func bandCells(n, m, radius int) int64 {
	var total int64
	for i := 0; i < n; i++ {
		lo, hi := rowSpan(i, n, m, radius)
		total += int64(hi - lo + 1)
	}
	return total
}

func newBand(n, m, radius int) *band {
	b := &band{n: n, m: m, lo: make([]int, n), hi: make([]int, n), off: make([]int, n)}
	total := 0
	for i := 0; i < n; i++ {
		lo, hi := rowSpan(i, n, m, radius)
		b.lo[i], b.hi[i], b.off[i] = lo, hi, total
		total += hi - lo + 1
	}
	b.cells = make([]float64, total)
	return b
}

func (b *band) at(i, j int) float64 {
	if i < 0 || j < 0 || j < b.lo[i] || j > b.hi[i] {
		return math.Inf(1)
	}
	return b.cells[b.off[i]+j-b.lo[i]]
}

func (b *band) fill(dist DistanceFunc) {
	for i := 0; i < b.n; i++ {
		for j := b.lo[i]; j <= b.hi[i]; j++ {
			var c float64
			if i == 0 && j == 0 {
				c = dist(0, 0)
			} else {
				prev := math.Min(b.at(i-1, j), math.Min(b.at(i, j-1), b.at(i-1, j-1)))
				if math.IsInf(prev, 1) {
					c = prev
				} else {
					c = dist(i, j) + prev
				}
			}
			b.cells[b.off[i]+j-b.lo[i]] = c
		}
	}
}

// Align computes the minimum-cost monotonic path between two contours of length n and m
// under dist, restricted to a diagonal band. A band larger than opts.MaxCells is an
// *AlignmentTooLargeError, checked before anything is allocated.
func Align(n, m int, dist DistanceFunc, opts AlignOptions) (*Alignment, error) {
	if n == 0 || m == 0 {
		return nil, &AlignmentUnreachableError{UserFrames: n, RefFrames: m, Radius: opts.Radius}
	}

	radius := opts.Radius
	widen := opts.AutoWiden || radius <= 0
	if radius <= 0 {
		frac := opts.BandFraction
		if frac <= 0 {
			frac = DefaultBandFraction
		}
		radius = max(minAutoRadius, int(math.Ceil(frac*float64(max(n, m)))))
	}
	limit := max(n, m)
	maxCells := opts.MaxCells
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}

	for {
		if cells := bandCells(n, m, radius); cells > maxCells {
			return nil, &AlignmentTooLargeError{
				UserFrames: n, RefFrames: m, Radius: radius, Cells: cells, MaxCells: maxCells,
			}
		}
		b := newBand(n, m, radius)
		b.fill(dist)
		total := b.at(n-1, m-1)
		if !math.IsInf(total, 1) {
			return &Alignment{Path: b.backtrack(), Distance: total, Radius: radius}, nil
		}
		if !widen || radius >= limit {
			return nil, &AlignmentUnreachableError{UserFrames: n, RefFrames: m, Radius: radius}
		}
		radius = min(radius*2, limit)
	}
}

// AlignContours aligns two normalized contours with the policy's frame distance.
func AlignContours(user, ref Contour, policy Policy, opts AlignOptions) (*Alignment, error) {
	return Align(user.Len(), ref.Len(), FrameDistance(user, ref, policy), opts)
}

// backtrack walks from the terminal cell to the origin. Ties prefer the diagonal, then
// the move that advanced the contour with less remaining, proportionally.
func (b *band) backtrack() []Step {
	i, j := b.n-1, b.m-1
	path := make([]Step, 0, b.n+b.m)
	path = append(path, Step{User: i, Ref: j})

	for i > 0 || j > 0 {
		diag, up, left := math.Inf(1), math.Inf(1), math.Inf(1)
		if i > 0 && j > 0 {
			diag = b.at(i-1, j-1)
		}
		if i > 0 {
			up = b.at(i-1, j)
		}
		if j > 0 {
			left = b.at(i, j-1)
		}
		best := math.Min(diag, math.Min(up, left))

		switch {
		case diag == best:
			i, j = i-1, j-1
		case up == best && left == best:
			if int64(i)*int64(b.m-1) >= int64(j)*int64(b.n-1) {
				i--
			} else {
				j--
			}
		case up == best:
			i--
		default:
			j--
		}
		path = append(path, Step{User: i, Ref: j})
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}
