package guest

// Stats summarizes a guest list for the admin dashboard.
type Stats struct {
	Total        int `json:"total"`
	RSVPed       int `json:"rsvped"`
	Attending    int `json:"attending"`
	NotAttending int `json:"not_attending"`
	Pending      int `json:"pending"`
	PlusOnes     int `json:"plus_ones"`
}

// ComputeStats tallies RSVP progress over guests.
func ComputeStats(guests []Guest) Stats {
	s := Stats{Total: len(guests)}
	for _, g := range guests {
		if g.HasRSVPed {
			s.RSVPed++
		}
		switch {
		case g.IsAttending == nil:
			s.Pending++
		case *g.IsAttending:
			s.Attending++
		default:
			s.NotAttending++
		}
		if g.HasPlusOne {
			s.PlusOnes++
		}
	}
	return s
}
