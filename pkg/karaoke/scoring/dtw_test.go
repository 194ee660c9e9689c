package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wavyDistance(i, j int) float64 {
	return math.Abs(math.Sin(float64(i)*0.7) - math.Cos(float64(j)*0.3))
}

func zeroDistance(int, int) float64 { return 0 }

func TestAlign_PathIsValidAcrossShapes(t *testing.T) {
	shapes := [][2]int{{1, 1}, {1, 7}, {7, 1}, {5, 5}, {10, 40}, {40, 10}, {33, 34}, {120, 80}}
	for _, s := range shapes {
		al, err := Align(s[0], s[1], wavyDistance, AlignOptions{})
		require.NoError(t, err, "shape %v", s)
		assertValidPath(t, al.Path, s[0], s[1])
	}
}

func TestAlign_DistanceIsSumAlongPath(t *testing.T) {
	al, err := Align(25, 31, wavyDistance, AlignOptions{})
	require.NoError(t, err)

	var sum float64
	for _, st := range al.Path {
		sum += wavyDistance(st.User, st.Ref)
	}
	assert.InDelta(t, sum, al.Distance, 1e-9)
}

func TestAlign_BandedMatchesFullWhenWide(t *testing.T) {
	full, err := Align(30, 30, wavyDistance, AlignOptions{Radius: 30})
	require.NoError(t, err)
	banded, err := Align(30, 30, wavyDistance, AlignOptions{Radius: 3})
	require.NoError(t, err)

	// A narrower band can only restrict the search.
	assert.GreaterOrEqual(t, banded.Distance, full.Distance-1e-9)
}

func TestAlign_ExplicitRadiusTooSmall(t *testing.T) {
	_, err := Align(10, 40, zeroDistance, AlignOptions{Radius: 1})

	var unreachable *AlignmentUnreachableError
	require.True(t, errors.As(err, &unreachable))
	assert.Equal(t, 10, unreachable.UserFrames)
	assert.Equal(t, 40, unreachable.RefFrames)
	assert.Equal(t, 1, unreachable.Radius)
}

func TestAlign_AutoWidenReachesEnd(t *testing.T) {
	al, err := Align(10, 40, zeroDistance, AlignOptions{Radius: 1, AutoWiden: true})
	require.NoError(t, err)
	assert.Greater(t, al.Radius, 1)
	assertValidPath(t, al.Path, 10, 40)
}

func TestAlign_EmptyInput(t *testing.T) {
	_, err := Align(0, 5, zeroDistance, AlignOptions{})
	var unreachable *AlignmentUnreachableError
	assert.True(t, errors.As(err, &unreachable))
}

func TestAlign_TiesPreferDiagonal(t *testing.T) {
	al, err := Align(3, 5, zeroDistance, AlignOptions{})
	require.NoError(t, err)

	expected := []Step{{0, 0}, {0, 1}, {0, 2}, {1, 3}, {2, 4}}
	assert.Equal(t, expected, al.Path)
}

func TestAlign_SideTieAdvancesLaggingContour(t *testing.T) {
	// Only the centre cell is costly, so at (2,2) stepping up and left both cost 0
	// while the diagonal costs 10. Both contours are equally far along, so the user
	// side is stepped back first.
	dist := func(i, j int) float64 {
		if i == 1 && j == 1 {
			return 10
		}
		return 0
	}

	al, err := Align(3, 3, dist, AlignOptions{Radius: 3})
	require.NoError(t, err)

	expected := []Step{{0, 0}, {0, 1}, {1, 2}, {2, 2}}
	assert.Equal(t, expected, al.Path)
	assert.Equal(t, 0.0, al.Distance)
}

func TestAlign_RejectsBandOverCellLimit(t *testing.T) {
	_, err := Align(50, 50, zeroDistance, AlignOptions{Radius: 50, MaxCells: 2499})

	var tooLarge *AlignmentTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(2500), tooLarge.Cells)
	assert.Equal(t, StageInput, StageOf(err))

	al, err := Align(50, 50, zeroDistance, AlignOptions{Radius: 50, MaxCells: 2500})
	require.NoError(t, err)
	assertValidPath(t, al.Path, 50, 50)
}

func TestAlign_WideningStopsAtCellLimit(t *testing.T) {
	// Radius 1 cannot reach (9,39); the first doubling already exceeds the limit.
	limit := bandCells(10, 40, 1)
	_, err := Align(10, 40, zeroDistance, AlignOptions{Radius: 1, AutoWiden: true, MaxCells: limit})

	var tooLarge *AlignmentTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, 2, tooLarge.Radius)
}

func TestAlign_DefaultCellLimitCoversFullFrameBudget(t *testing.T) {
	n := DefaultMaxFrames
	radius := max(minAutoRadius, int(math.Ceil(DefaultBandFraction*float64(n))))
	assert.LessOrEqual(t, bandCells(n, n, radius), int64(DefaultMaxCells))
}

func TestBand_StoresOnlyInBandCells(t *testing.T) {
	b := newBand(1000, 1000, 10)
	assert.LessOrEqual(t, len(b.cells), 1000*21)
	assert.True(t, math.IsInf(b.at(0, 500), 1))
}

func BenchmarkAlign(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Align(1800, 2000, wavyDistance, AlignOptions{})
	}
}
