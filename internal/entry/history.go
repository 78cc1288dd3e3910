package entry

import (
	"time"

	"fieldpulse.org/internal/geo"
	"fieldpulse.org/internal/obs"
)

// historyCap bounds the per-entry transition log; the oldest record is
// evicted first.
const historyCap = 10

// Change names one transition category.
type Change string

const (
	ChangeNone       Change = ""
	ChangeCreated    Change = "created"
	ChangeStatus     Change = "status"
	ChangeRemarks    Change = "remarks"
	ChangeProducts   Change = "products"
	ChangeAssignment Change = "assignment"
	ChangePersonMet  Change = "personMet"
)

// Edit carries the fields of an edit request. Nil pointers and nil slices
// mean "unchanged".
type Edit struct {
	Status           *Status    `json:"status,omitempty"`
	Remarks          *string    `json:"remarks,omitempty"`
	Location         *geo.Point `json:"location,omitempty"`
	Products         []Product  `json:"products,omitempty"`
	AssignedTo       []string   `json:"assignedTo,omitempty"`
	FirstPersonMeet  *string    `json:"firstPersonMeet,omitempty"`
	SecondPersonMeet *string    `json:"secondPersonMeet,omitempty"`
}

// changeRules is the ordered rule table deciding which single transition an
// edit constitutes. Rules are evaluated in priority order and the first
// match wins; person-met changes are cumulative within their one record.
var changeRules = []struct {
	kind    Change
	changed func(Edit, Entry) bool
}{
	{ChangeStatus, func(e Edit, cur Entry) bool {
		return e.Status != nil && *e.Status != cur.Status
	}},
	{ChangeRemarks, func(e Edit, cur Entry) bool {
		return e.Remarks != nil && *e.Remarks != cur.Remarks
	}},
	{ChangeProducts, func(e Edit, cur Entry) bool {
		return e.Products != nil && !productsEqual(e.Products, cur.Products)
	}},
	{ChangeAssignment, func(e Edit, cur Entry) bool {
		return e.AssignedTo != nil && !sameIDSet(e.AssignedTo, cur.AssignedTo)
	}},
	{ChangePersonMet, func(e Edit, cur Entry) bool {
		if e.FirstPersonMeet != nil && *e.FirstPersonMeet != cur.FirstPersonMeet {
			return true
		}
		return e.SecondPersonMeet != nil && *e.SecondPersonMeet != cur.SecondPersonMeet
	}},
}

// DetectChange classifies an edit against current state. ChangeNone means
// the edit touches no loggable field and no record is appended.
func DetectChange(e Edit, cur Entry) Change {
	for _, rule := range changeRules {
		if rule.changed(e, cur) {
			return rule.kind
		}
	}
	return ChangeNone
}

// snapshot captures the post-edit state of the entry as one history record.
func snapshot(e Entry, change Change, at time.Time) HistoryRecord {
	return HistoryRecord{
		Change:           change,
		Status:           e.Status,
		Remarks:          e.Remarks,
		Location:         e.Location,
		Products:         append([]Product(nil), e.Products...),
		AssignedTo:       append([]string(nil), e.AssignedTo...),
		FirstPersonMeet:  e.FirstPersonMeet,
		SecondPersonMeet: e.SecondPersonMeet,
		Timestamp:        at,
	}
}

// appendHistory appends rec, evicting the oldest record once the log is at
// capacity.
func appendHistory(h []HistoryRecord, rec HistoryRecord) []HistoryRecord {
	if len(h) >= historyCap {
		drop := len(h) - historyCap + 1
		for i := 0; i < drop; i++ {
			obs.IncHistoryEviction()
		}
		h = append([]HistoryRecord(nil), h[drop:]...)
	}
	return append(h, rec)
}

func productsEqual(a, b []Product) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// diffIDs returns ids present in next but not in prev.
func diffIDs(next, prev []string) []string {
	set := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		set[id] = struct{}{}
	}
	var out []string
	for _, id := range next {
		if _, ok := set[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
