package booking

import (
	"github.com/doctorsportal/portal/internal/domain/catalog"
)

// Available returns a copy of each treatment with the slots taken by
// bookings removed. bookings must all be for the same date. Slot order is
// preserved and treatments with no free slots are kept with an empty list.
func Available(treatments []*catalog.Treatment, bookings []*Booking) []catalog.Treatment {
	booked := make(map[string]map[string]struct{})
	for _, b := range bookings {
		set, ok := booked[b.Treatment]
		if !ok {
			set = make(map[string]struct{})
			booked[b.Treatment] = set
		}
		set[b.Slot] = struct{}{}
	}

	out := make([]catalog.Treatment, 0, len(treatments))
	for _, t := range treatments {
		taken := booked[t.Name]
		free := make([]string, 0, len(t.Slots))
		for _, s := range t.Slots {
			if _, ok := taken[s]; !ok {
				free = append(free, s)
			}
		}
		cp := *t
		cp.Slots = free
		out = append(out, cp)
	}
	return out
}
