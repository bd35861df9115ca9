// Package workflow holds the request and reposición state machines. Every
// screen and service asks this package whether a status change is legal
// instead of re-deriving the rules inline.
package workflow

import (
	"fmt"
	"slices"
	"time"

	"backoffice/internal/model"

	"github.com/shopspring/decimal"
)

var requestTransitions = map[model.RequestStatus][]model.RequestStatus{
	model.RequestPending:      {model.RequestReview, model.RequestRejected, model.RequestInReposition},
	model.RequestReview:       {model.RequestPending, model.RequestPaid, model.RequestRejected},
	model.RequestInReposition: {model.RequestPaid, model.RequestRejected},
}

var reposicionTransitions = map[model.ReposicionStatus][]model.ReposicionStatus{
	model.ReposicionPending: {model.ReposicionReview, model.ReposicionPaid, model.ReposicionRejected},
	model.ReposicionReview:  {model.ReposicionPaid, model.ReposicionRejected},
}

// Origin tells who drives a request status change.
type Origin int

const (
	// OriginDirect is a user acting on the request itself.
	OriginDirect Origin = iota
	// OriginCascade is a reposición creation or transition.
	OriginCascade
)

func CanTransitionRequest(from, to model.RequestStatus) bool {
	return slices.Contains(requestTransitions[from], to)
}

func CanTransitionReposicion(from, to model.ReposicionStatus) bool {
	return slices.Contains(reposicionTransitions[from], to)
}

// RequestTargets lists the statuses a user may move a request to directly.
// The UI enables exactly these controls.
func RequestTargets(from model.RequestStatus) []model.RequestStatus {
	if from == model.RequestInReposition {
		return nil
	}
	out := make([]model.RequestStatus, 0, 3)
	for _, to := range requestTransitions[from] {
		if to != model.RequestInReposition {
			out = append(out, to)
		}
	}
	return out
}

// ReposicionTargets lists the statuses reachable from from.
func ReposicionTargets(from model.ReposicionStatus) []model.ReposicionStatus {
	return slices.Clone(reposicionTransitions[from])
}

// CheckRequestTransition validates a request status change. in_reposition
// is entered and left only through the owning reposición.
func CheckRequestTransition(from, to model.RequestStatus, origin Origin) error {
	terr := &TransitionError{Entity: "request", From: string(from), To: string(to)}
	if !CanTransitionRequest(from, to) {
		return terr
	}
	if origin == OriginDirect && (to == model.RequestInReposition || from == model.RequestInReposition) {
		return terr
	}
	return nil
}

// CheckEditable rejects field edits on requests that left the editable
// statuses.
func CheckEditable(r model.Request) error {
	switch {
	case r.Status.IsTerminal():
		return fmt.Errorf("%w: %s is %s", ErrRequestLocked, r.UniqueID, r.Status)
	case r.Status == model.RequestInReposition:
		return fmt.Errorf("%w: %s", ErrRequestInReposition, r.UniqueID)
	}
	return nil
}

// TransitionData is the supplementary input some reposición transitions
// require.
type TransitionData struct {
	Month string            `json:"month"`
	When  model.PaymentWhen `json:"when"`
	Note  string            `json:"note"`
}

// CheckReposicionTransition validates both legality and the supplementary
// data: paid needs month, when and note; review and rejected need a note.
func CheckReposicionTransition(r model.Reposicion, to model.ReposicionStatus, data TransitionData) error {
	if !CanTransitionReposicion(r.Status, to) {
		return &TransitionError{Entity: "reposición", From: string(r.Status), To: string(to)}
	}

	v := Violations{}
	switch to {
	case model.ReposicionPaid:
		v.Required("month", data.Month)
		if data.Month != "" {
			if _, err := time.Parse("2006-01", data.Month); err != nil {
				v["month"] = CodeInvalid
			}
		}
		if data.When == "" {
			v["when"] = CodeRequired
		} else if !data.When.IsValid() {
			v["when"] = CodeInvalid
		}
		v.Required("note", data.Note)
	case model.ReposicionReview, model.ReposicionRejected:
		v.Required("note", data.Note)
	}
	return v.Err()
}

// MemberStatusFor maps a reposición status to the status its members carry.
// Members have no review sub-state of their own.
func MemberStatusFor(s model.ReposicionStatus) model.RequestStatus {
	switch s {
	case model.ReposicionPaid:
		return model.RequestPaid
	case model.ReposicionRejected:
		return model.RequestRejected
	default:
		return model.RequestInReposition
	}
}

// ApplyReposicionTransition sets the new status and metadata on r and
// cascades the member status. It does not validate; call
// CheckReposicionTransition first.
func ApplyReposicionTransition(r *model.Reposicion, to model.ReposicionStatus, data TransitionData) {
	r.Status = to
	if data.Month != "" {
		r.Month = data.Month
	}
	if data.When != "" {
		r.When = data.When
	}
	if data.Note != "" {
		r.Note = data.Note
	}
	member := MemberStatusFor(to)
	for i := range r.Requests {
		r.Requests[i].Status = member
		r.Requests[i].ReposicionID = r.ID
	}
}

// CheckCascade reports the first member whose status disagrees with the
// reposición.
func CheckCascade(r model.Reposicion) error {
	want := MemberStatusFor(r.Status)
	for _, req := range r.Requests {
		if req.Status != want {
			return fmt.Errorf("request %s is %s but reposición %s is %s", req.UniqueID, req.Status, r.ID, r.Status)
		}
	}
	return nil
}

// CheckCreateReposicion validates a batch built from selected requests and
// returns its project and frozen total.
func CheckCreateReposicion(reqs []model.Request, attachments int) (string, decimal.Decimal, error) {
	v := Violations{}
	if len(reqs) == 0 {
		v["requests"] = CodeRequired
	}

	project := ""
	total := decimal.Zero
	for i, r := range reqs {
		if r.Status != model.RequestPending {
			v["requests"] = CodeNotPending
		}
		if i == 0 {
			project = r.Project
		} else if r.Project != project {
			v["project"] = CodeMismatch
		}
		total = total.Add(r.Amount)
	}

	switch {
	case attachments == 0:
		v["attachment"] = CodeRequired
	case attachments > 1:
		v["attachment"] = CodeExactlyOne
	}

	if err := v.Err(); err != nil {
		return "", decimal.Zero, err
	}
	return project, total, nil
}
