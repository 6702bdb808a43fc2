package schedule

import (
	"time"

	"lexcal-scheduler/internal/model"
)

// OccupiedLabel replaces every piece of content on a slot the viewer is not
// party to.
const OccupiedLabel = "occupied"

// Viewer is the caller identity handed in by the transport.
type Viewer struct {
	ID   string
	Role model.Role
}

// View is what leaves the service. Details is nil on a sanitized view, so
// none of its fields are serialised.
type View struct {
	ID              string       `json:"id"`
	LawyerID        string       `json:"lawyerId"`
	Start           time.Time    `json:"start"`
	End             time.Time    `json:"end"`
	DurationMinutes int          `json:"durationMinutes"`
	Status          model.Status `json:"status"`
	Label           string       `json:"label"`
	Occupied        bool         `json:"occupied"`
	*Details
}

type Details struct {
	ClientID        string     `json:"clientId"`
	Title           string     `json:"title"`
	Location        string     `json:"location"`
	Participants    []string   `json:"participants"`
	RequestMessage  string     `json:"requestMessage"`
	ResponseMessage string     `json:"responseMessage"`
	RequestedAt     time.Time  `json:"requestedAt"`
	RespondedAt     *time.Time `json:"respondedAt"`
}

// Project applies the visibility rules for v. The second result is false
// when the record must be left out of the viewer's listing.
func Project(a *model.Appointment, v Viewer) (View, bool) {
	if v.ID != "" && (v.ID == a.LawyerID || v.ID == a.ClientID) {
		return FullView(a), true
	}
	if !a.Status.Active() {
		return View{}, false
	}
	return View{
		ID:              a.ID,
		LawyerID:        a.LawyerID,
		Start:           a.Start,
		End:             a.End(),
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
		Label:           OccupiedLabel,
		Occupied:        true,
	}, true
}

func FullView(a *model.Appointment) View {
	c := a.Clone()
	participants := c.Participants
	if participants == nil {
		participants = []string{}
	}
	label := c.Title
	if label == "" {
		label = "appointment"
	}
	return View{
		ID:              c.ID,
		LawyerID:        c.LawyerID,
		Start:           c.Start,
		End:             c.End(),
		DurationMinutes: c.DurationMinutes,
		Status:          c.Status,
		Label:           label,
		Details: &Details{
			ClientID:        c.ClientID,
			Title:           c.Title,
			Location:        c.Location,
			Participants:    participants,
			RequestMessage:  c.RequestMessage,
			ResponseMessage: c.ResponseMessage,
			RequestedAt:     c.RequestedAt,
			RespondedAt:     c.RespondedAt,
		},
	}
}

// projectAll filters and projects in order.
func projectAll(list []model.Appointment, v Viewer) []View {
	out := make([]View, 0, len(list))
	for i := range list {
		if view, ok := Project(&list[i], v); ok {
			out = append(out, view)
		}
	}
	return out
}
