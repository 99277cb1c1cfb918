package buffer

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNew_StartsEmpty(t *testing.T) {
	b := New(4)
	require.Equal(t, []string{"", "", "", ""}, b.ReadSnapshot())
	require.Equal(t, uint64(0), b.Version())
}

func TestNew_NonPositiveUsesDefault(t *testing.T) {
	require.Equal(t, DefaultRows, New(0).Len())
	require.Equal(t, DefaultRows, New(-3).Len())
}

func TestPublish_PadsShortInput(t *testing.T) {
	b := New(4)
	b.Publish([]string{"Could not fetch updates."})
	require.Equal(t, []string{"Could not fetch updates.", "", "", ""}, b.ReadSnapshot())
}

func TestPublish_TruncatesLongInput(t *testing.T) {
	b := New(4)
	b.Publish([]string{"a", "b", "c", "d", "e", "f"})
	require.Equal(t, []string{"a", "b", "c", "d"}, b.ReadSnapshot())
}

func TestPublish_ReplacesAllRows(t *testing.T) {
	b := New(4)
	b.Publish([]string{"1", "2", "3", "4"})
	b.Publish([]string{"A"})
	require.Equal(t, []string{"A", "", "", ""}, b.ReadSnapshot())
	require.Equal(t, uint64(2), b.Version())
}

func TestReadSnapshot_ReturnsCopy(t *testing.T) {
	b := New(4)
	b.Publish([]string{"A", "B", "C", "D"})

	snap := b.ReadSnapshot()
	snap[0] = "mutated"
	require.Equal(t, "A", b.ReadSnapshot()[0])
}

func TestPublish_DoesNotAliasCaller(t *testing.T) {
	b := New(4)
	in := []string{"A", "B", "C", "D"}
	b.Publish(in)
	in[1] = "mutated"
	require.Equal(t, "B", b.ReadSnapshot()[1])
}

// Each publish writes the same tag into every row, so a snapshot mixing two
// publishes would show differing rows.
func TestReadSnapshot_NeverMixesPublishes(t *testing.T) {
	b := New(4)
	b.Publish([]string{"0", "0", "0", "0"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 2000; i++ {
			tag := strconv.Itoa(i)
			b.Publish([]string{tag, tag, tag, tag})
		}
	}()

	for i := 0; i < 2000; i++ {
		snap := b.ReadSnapshot()
		require.Len(t, snap, 4)
		for _, row := range snap[1:] {
			require.Equal(t, snap[0], row, "snapshot mixed two publishes: %q", snap)
		}
	}
	wg.Wait()
	require.Equal(t, uint64(2001), b.Version())
}

func TestPublish_AlwaysFixedLength(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "rows")
		in := rapid.SliceOfN(rapid.String(), 0, 12).Draw(rt, "input")

		b := New(n)
		b.Publish(in)
		snap := b.ReadSnapshot()

		require.Len(t, snap, n)
		for i := range snap {
			if i < len(in) {
				require.Equal(t, in[i], snap[i])
			} else {
				require.Equal(t, "", snap[i])
			}
		}
	})
}
