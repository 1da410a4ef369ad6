package seo

import (
	"encoding/json"
	"testing"
	"time"
)

func TestISODuration(t *testing.T) {
	for secs, want := range map[int]string{0: "PT0S", 59: "PT59S", 660: "PT11M", 3723: "PT1H2M3S", 3600: "PT1H"} {
		if got := ISODuration(secs); got != want {
			t.Errorf("ISODuration(%d) = %q, want %q", secs, got, want)
		}
	}
}

func TestEventOmitsEmptyFields(t *testing.T) {
	start := time.Date(2025, 9, 11, 17, 0, 0, 0, time.UTC)
	raw := JSON(Event("Zine making", "", "https://example.com/events/evt-1", "", "Lyon", start, time.Time{}))

	var got map[string]any
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["@type"] != "Event" || got["startDate"] != "2025-09-11T17:00:00Z" {
		t.Fatalf("unexpected event %v", got)
	}
	if _, ok := got["endDate"]; ok {
		t.Fatalf("zero end date must be omitted")
	}
	if _, ok := got["description"]; ok {
		t.Fatalf("empty description must be omitted")
	}
	loc, _ := got["location"].(map[string]any)
	if loc["name"] != "Lyon" {
		t.Fatalf("unexpected location %v", got["location"])
	}
}

func TestBreadcrumbListPositions(t *testing.T) {
	m := BreadcrumbList([]BreadcrumbItem{{Name: "Home", Item: "https://x/"}, {Name: "Videos", Item: "https://x/videos"}})
	items := m["itemListElement"].([]map[string]any)
	if len(items) != 2 || items[1]["position"] != 2 {
		t.Fatalf("unexpected list %v", items)
	}
}
