package bot

// TrafficLight values reported by the vendor availability endpoint
const (
	TrafficLightAvailable = 1
	TrafficLightLow       = 2
	TrafficLightSoldOut   = 3
)

// Slot is one bookable time slot within a date
type Slot struct {
	Time         string   `json:"time"`
	QtyAvailable int      `json:"qty_available"`
	TrafficLight int      `json:"traffic_light"`
	Variations   []string `json:"variations"`
}

// Snapshot is the parsed result of one availability poll: date → slots.
// It is transient and compared by value against the previous poll.
type Snapshot map[string][]Slot

// TotalAvailable sums the positive slot quantities. The vendor reports
// negative numbers for oversold slots; those never count.
func (s Snapshot) TotalAvailable() int {
	total := 0
	for _, slots := range s {
		for _, slot := range slots {
			if slot.QtyAvailable > 0 {
				total += slot.QtyAvailable
			}
		}
	}
	return total
}

// Equal compares two snapshots by value
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for date, slots := range s {
		otherSlots, ok := other[date]
		if !ok || len(slots) != len(otherSlots) {
			return false
		}
		for i, slot := range slots {
			if !slot.equal(otherSlots[i]) {
				return false
			}
		}
	}
	return true
}

func (a Slot) equal(b Slot) bool {
	if a.Time != b.Time || a.QtyAvailable != b.QtyAvailable || a.TrafficLight != b.TrafficLight {
		return false
	}
	if len(a.Variations) != len(b.Variations) {
		return false
	}
	for i := range a.Variations {
		if a.Variations[i] != b.Variations[i] {
			return false
		}
	}
	return true
}
