package bot

import "testing"

func TestTotalAvailable(t *testing.T) {
	snap := Snapshot{
		"2026-03-01": {
			{Time: "14:00:00", QtyAvailable: 8, TrafficLight: TrafficLightAvailable},
			{Time: "16:00:00", QtyAvailable: 0, TrafficLight: TrafficLightSoldOut},
		},
		"2026-03-02": {
			{Time: "14:00:00", QtyAvailable: 3, TrafficLight: TrafficLightLow},
		},
	}

	if got := snap.TotalAvailable(); got != 11 {
		t.Errorf("Expected total 11, got %d", got)
	}
}

func TestTotalAvailable_NegativeNeverCounts(t *testing.T) {
	snap := Snapshot{
		"2026-03-01": {
			{Time: "14:00:00", QtyAvailable: -2},
			{Time: "16:00:00", QtyAvailable: 5},
		},
	}

	if got := snap.TotalAvailable(); got != 5 {
		t.Errorf("Expected oversold slot to be ignored, got total %d", got)
	}
}

func TestSnapshotEqual(t *testing.T) {
	a := Snapshot{
		"2026-03-01": {{Time: "14:00:00", QtyAvailable: 8, TrafficLight: 1, Variations: []string{"v1"}}},
	}
	b := Snapshot{
		"2026-03-01": {{Time: "14:00:00", QtyAvailable: 8, TrafficLight: 1, Variations: []string{"v1"}}},
	}

	if !a.Equal(b) {
		t.Error("Expected identical snapshots to be equal")
	}

	b["2026-03-01"][0].QtyAvailable = 7
	if a.Equal(b) {
		t.Error("Expected snapshots with different quantities to differ")
	}
}

func TestSnapshotEqual_NilPrevious(t *testing.T) {
	a := Snapshot{
		"2026-03-01": {{Time: "14:00:00", QtyAvailable: 8}},
	}

	if a.Equal(nil) {
		t.Error("Expected snapshot to differ from nil previous")
	}
	if !Snapshot(nil).Equal(nil) {
		t.Error("Expected two empty snapshots to be equal")
	}
}

func TestSnapshotEqual_VariationOrderMatters(t *testing.T) {
	a := Snapshot{"d": {{Time: "14:00:00", Variations: []string{"v1", "v2"}}}}
	b := Snapshot{"d": {{Time: "14:00:00", Variations: []string{"v2", "v1"}}}}

	if a.Equal(b) {
		t.Error("Expected differing variation order to compare unequal")
	}
}
