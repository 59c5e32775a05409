// winrahi/listing/listing_test.go
package listing

import (
	"reflect"
	"testing"
	"time"

	"winrahi/models"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func item(id, status, category, wilaya, commune string, age time.Duration) models.Item {
	return models.Item{
		ID:        id,
		Status:    status,
		Category:  category,
		Wilaya:    wilaya,
		Commune:   commune,
		CreatedAt: base.Add(-age),
	}
}

func ids(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestApply(t *testing.T) {
	// id 2 is oldest but human-category, id 3 is newest but resolved.
	fixture := []models.Item{
		item("1", "lost", "documents", "الجزائر", "الجزائر", 1*time.Hour),
		item("2", "found", "human", "وهران", "وهران", 48*time.Hour),
		item("3", "found_owner", "keys", "الجزائر", "الجزائر", 0),
	}

	testCases := []struct {
		name    string
		items   []models.Item
		filters models.ItemFilters
		want    []string
	}{
		{
			name:    "All tab excludes found_owner and puts human first",
			items:   fixture,
			filters: models.ItemFilters{Status: "all"},
			want:    []string{"2", "1"},
		},
		{
			name:    "Found tab keeps only found",
			items:   fixture,
			filters: models.ItemFilters{Status: "found"},
			want:    []string{"2"},
		},
		{
			name:    "Lost tab keeps only lost",
			items:   fixture,
			filters: models.ItemFilters{Status: "lost"},
			want:    []string{"1"},
		},
		{
			name:    "Wilaya exact match",
			items:   fixture,
			filters: models.ItemFilters{Wilaya: "وهران"},
			want:    []string{"2"},
		},
		{
			name:    "Unknown category yields empty output without error",
			items:   fixture,
			filters: models.ItemFilters{Category: "spaceships"},
			want:    []string{},
		},
		{
			name:    "Empty input yields empty output",
			items:   nil,
			filters: models.ItemFilters{Status: "all"},
			want:    []string{},
		},
		{
			name: "Newest first within equal priority",
			items: []models.Item{
				item("old", "lost", "keys", "", "", 72*time.Hour),
				item("new", "lost", "keys", "", "", 1*time.Hour),
				item("mid", "lost", "keys", "", "", 24*time.Hour),
			},
			filters: models.ItemFilters{},
			want:    []string{"new", "mid", "old"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Apply(tc.items, tc.filters))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Apply() order = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	items := []models.Item{
		item("a", "lost", "keys", "", "", 2*time.Hour),
		item("b", "found", "human", "", "", 1*time.Hour),
	}
	snapshot := make([]models.Item, len(items))
	copy(snapshot, items)

	Apply(items, models.ItemFilters{Status: "all"})

	if !reflect.DeepEqual(items, snapshot) {
		t.Error("Apply mutated its input slice")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	items := []models.Item{
		item("a", "lost", "documents", "الجزائر", "", 3*time.Hour),
		item("b", "found", "human", "الجزائر", "", 1*time.Hour),
		item("c", "lost", "keys", "وهران", "", 2*time.Hour),
	}
	filters := models.ItemFilters{Status: "all", Wilaya: "الجزائر"}

	once := Apply(items, filters)
	twice := Apply(once, filters)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("re-applying the same filters changed the output: %v vs %v", ids(once), ids(twice))
	}
}

func TestApplyHumanPriorityIsStable(t *testing.T) {
	// Two human items posted at different times keep newest-first order
	// among themselves, and both precede every non-human item.
	items := []models.Item{
		item("n1", "lost", "keys", "", "", 1*time.Hour),
		item("h-old", "lost", "human", "", "", 50*time.Hour),
		item("n2", "found", "bags", "", "", 2*time.Hour),
		item("h-new", "found", "human", "", "", 5*time.Hour),
	}

	got := ids(Apply(items, models.ItemFilters{Status: "all"}))
	want := []string{"h-new", "h-old", "n1", "n2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() order = %v, want %v", got, want)
	}
}

func TestFoundOwnerNeverListed(t *testing.T) {
	items := []models.Item{
		item("1", "found_owner", "human", "الجزائر", "", time.Hour),
		item("2", "found_owner", "keys", "وهران", "", time.Hour),
	}

	for _, status := range []string{"all", "lost", "found", ""} {
		if got := Apply(items, models.ItemFilters{Status: status}); len(got) != 0 {
			t.Errorf("status tab %q: expected no found_owner items in output, got %v", status, ids(got))
		}
	}
}
