package events

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"playafind/internal/model"
)

func pe(id string, status model.EventStatus, start, end time.Time, dist *float64, typeAbbr, title string) model.ProcessedEvent {
	return model.ProcessedEvent{
		ID:             id,
		EventUID:       id,
		Title:          title,
		TypeAbbr:       typeAbbr,
		Start:          start,
		End:            end,
		Status:         status,
		DistanceMeters: dist,
	}
}

func dist(v float64) *float64 { return &v }

func sortFixture() []model.ProcessedEvent {
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	return []model.ProcessedEvent{
		pe("a", model.StatusUpcoming, base.Add(3*time.Hour), base.Add(4*time.Hour), dist(900), "muse", "Zenith"),
		pe("b", model.StatusNow, base.Add(-time.Hour), base.Add(30*time.Minute), nil, "food", "Brunch"),
		pe("c", model.StatusNow, base.Add(-time.Hour), base.Add(2*time.Hour), dist(120), "muse", "Brunch"),
		pe("d", model.StatusSoon, base.Add(10*time.Minute), base.Add(time.Hour), dist(50), "arts", "Atrium"),
		pe("e", model.StatusEnded, base.Add(-3*time.Hour), base.Add(-2*time.Hour), nil, "arts", "Dawn Patrol"),
		pe("f", model.StatusUpcoming, base.Add(2*time.Hour), base.Add(5*time.Hour), dist(900), "food", "Zenith"),
	}
}

func ids(list []model.ProcessedEvent) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

func TestSortStrategies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		strategy SortStrategy
		want     []string
	}{
		// now(0) first, soonest-ending leading, then everything by start.
		{SortDefault, []string{"b", "c", "d", "f", "a", "e"}},
		// ascending distance, nil distances last.
		{SortDistance, []string{"d", "c", "f", "a", "e", "b"}},
		{SortTime, []string{"e", "b", "c", "d", "f", "a"}},
		// active first by end, rest by start.
		{SortEnding, []string{"b", "c", "e", "d", "f", "a"}},
		// lexicographic abbr, ties by start.
		{SortType, []string{"e", "d", "b", "f", "c", "a"}},
		// lexicographic title, ties by start.
		{SortTitle, []string{"d", "b", "c", "e", "f", "a"}},
	}

	for _, tc := range cases {
		got := Sort(sortFixture(), tc.strategy)
		if !reflect.DeepEqual(ids(got), tc.want) {
			t.Fatalf("%s: order %v, want %v", tc.strategy, ids(got), tc.want)
		}
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := sortFixture()
	before := ids(in)
	_ = Sort(in, SortDefault)
	if !reflect.DeepEqual(ids(in), before) {
		t.Fatal("Sort mutated its input")
	}
}

func TestSortDeterministicAcrossInputOrder(t *testing.T) {
	t.Parallel()

	reference := Sort(sortFixture(), SortDefault)

	rng := rand.New(rand.NewSource(42))
	for _, strategy := range []SortStrategy{SortDefault, SortDistance, SortTime, SortEnding, SortType, SortTitle} {
		want := Sort(sortFixture(), strategy)
		for i := 0; i < 10; i++ {
			shuffled := sortFixture()
			rng.Shuffle(len(shuffled), func(a, b int) {
				shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
			})
			if got := Sort(shuffled, strategy); !reflect.DeepEqual(got, want) {
				t.Fatalf("%s: shuffled input changed the ordering", strategy)
			}
		}
	}

	// Sorting twice is a no-op on the ordering.
	if again := Sort(reference, SortDefault); !reflect.DeepEqual(again, reference) {
		t.Fatal("re-sorting a sorted list changed it")
	}
}

func TestSortUnknownStrategyFallsBack(t *testing.T) {
	t.Parallel()

	got := Sort(sortFixture(), SortStrategy("bogus"))
	want := Sort(sortFixture(), SortDefault)
	if !reflect.DeepEqual(ids(got), ids(want)) {
		t.Fatal("unknown strategy should behave like the default")
	}
}
