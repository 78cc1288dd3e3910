package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/geo"
	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/obs"
	"fieldpulse.org/internal/page"
	"fieldpulse.org/internal/scope"
)

const casAttempts = 5

// Service orchestrates the entry lifecycle: validate, authorize through the
// scope resolver, mutate, append history, persist, then fan notifications
// out to everyone whose delegation changed. Side effects happen only after
// authorization passes and once per request.
type Service struct {
	store    Store
	scopes   *scope.Resolver
	notifier *notify.Dispatcher
	now      func() time.Time
}

// NewService wires the lifecycle to its collaborators.
func NewService(store Store, scopes *scope.Resolver, notifier *notify.Dispatcher) *Service {
	return &Service{
		store:    store,
		scopes:   scopes,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateRequest carries the fields accepted at entry creation.
type CreateRequest struct {
	CustomerName     string     `json:"customerName"`
	Phone            string     `json:"phone"`
	Address          string     `json:"address"`
	Status           string     `json:"status"`
	Remarks          string     `json:"remarks"`
	Location         *geo.Point `json:"location"`
	Products         []Product  `json:"products"`
	AssignedTo       []string   `json:"assignedTo"`
	FirstPersonMeet  string     `json:"firstPersonMeet"`
	SecondPersonMeet string     `json:"secondPersonMeet"`
}

// Create validates, authorizes and persists a new entry. The creation
// itself is the first history record, so history is never empty.
func (s *Service) Create(ctx context.Context, actor directory.User, req CreateRequest) (Entry, error) {
	e, err := s.buildEntry(actor, req)
	if err != nil {
		return Entry{}, err
	}
	sc, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return Entry{}, err
	}
	for _, assignee := range e.AssignedTo {
		if !sc.AllowsUser(assignee) {
			return Entry{}, fmt.Errorf("assignee %s: %w", assignee, scope.ErrOutOfScope)
		}
	}

	e.History = []HistoryRecord{snapshot(e, ChangeCreated, s.now().UTC())}
	created, err := s.store.Create(ctx, e)
	if err != nil {
		return Entry{}, err
	}

	var targets []notify.Target
	for _, assignee := range created.AssignedTo {
		if assignee == actor.ID {
			continue
		}
		targets = append(targets, notify.Target{
			UserID:  assignee,
			Message: fmt.Sprintf("%s assigned you to %s", actor.Username, created.CustomerName),
			EntryID: created.ID,
		})
	}
	s.fanout(ctx, targets)
	return created, nil
}

// Edit applies an edit under optimistic concurrency. When the edit matches
// a transition rule exactly one history record is appended; otherwise the
// fields are updated silently.
func (s *Service) Edit(ctx context.Context, actor directory.User, id string, edit Edit) (Entry, error) {
	if err := validateEdit(edit); err != nil {
		return Entry{}, err
	}
	sc, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return Entry{}, err
	}
	for _, assignee := range edit.AssignedTo {
		if !sc.AllowsUser(assignee) {
			return Entry{}, fmt.Errorf("assignee %s: %w", assignee, scope.ErrOutOfScope)
		}
	}

	var prevAssigned []string
	var updated Entry
	for attempt := 0; ; attempt++ {
		if attempt >= casAttempts {
			return Entry{}, ErrContention
		}
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return Entry{}, err
		}
		if !sc.AllowsUser(cur.CreatedBy) && !sc.AllowsAny(cur.AssignedTo) {
			return Entry{}, scope.ErrOutOfScope
		}

		change := DetectChange(edit, cur)
		next := applyEdit(cur, edit)
		if change != ChangeNone {
			next.History = appendHistory(next.History, snapshot(next, change, s.now().UTC()))
		}

		updated, err = s.store.Update(ctx, next, cur.Version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return Entry{}, err
		}
		prevAssigned = cur.AssignedTo
		break
	}

	var targets []notify.Target
	for _, added := range diffIDs(updated.AssignedTo, prevAssigned) {
		if added == actor.ID {
			continue
		}
		targets = append(targets, notify.Target{
			UserID:  added,
			Message: fmt.Sprintf("%s assigned you to %s", actor.Username, updated.CustomerName),
			EntryID: updated.ID,
		})
	}
	for _, removed := range diffIDs(prevAssigned, updated.AssignedTo) {
		if removed == actor.ID {
			continue
		}
		targets = append(targets, notify.Target{
			UserID:  removed,
			Message: fmt.Sprintf("You were unassigned from %s", updated.CustomerName),
			EntryID: updated.ID,
		})
	}
	if updated.CreatedBy != actor.ID {
		targets = append(targets, notify.Target{
			UserID:  updated.CreatedBy,
			Message: fmt.Sprintf("%s updated %s", actor.Username, updated.CustomerName),
			EntryID: updated.ID,
		})
	}
	s.fanout(ctx, targets)
	return updated, nil
}

// Delete removes an entry inside the actor's scope. Notifications keep only
// a weak reference to the deleted id.
func (s *Service) Delete(ctx context.Context, actor directory.User, id string) error {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	sc, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return err
	}
	if !sc.AllowsUser(cur.CreatedBy) && !sc.AllowsAny(cur.AssignedTo) {
		return scope.ErrOutOfScope
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	var targets []notify.Target
	for _, assignee := range cur.AssignedTo {
		if assignee == actor.ID {
			continue
		}
		targets = append(targets, notify.Target{
			UserID:  assignee,
			Message: fmt.Sprintf("%s deleted %s", actor.Username, cur.CustomerName),
			EntryID: cur.ID,
		})
	}
	if cur.CreatedBy != actor.ID && !cur.IsAssigned(cur.CreatedBy) {
		targets = append(targets, notify.Target{
			UserID:  cur.CreatedBy,
			Message: fmt.Sprintf("%s deleted %s", actor.Username, cur.CustomerName),
			EntryID: cur.ID,
		})
	}
	s.fanout(ctx, targets)
	return nil
}

// List returns the entries visible to the actor, filtered at the
// persistence layer.
func (s *Service) List(ctx context.Context, actor directory.User, f Filter, pr page.Request) ([]Entry, page.Info, error) {
	sc, err := s.scopes.Resolve(ctx, actor)
	if err != nil {
		return nil, page.Info{}, err
	}
	if err := s.scopes.VerifySelected(sc, f.SelectedUserID); err != nil {
		return nil, page.Info{}, err
	}
	pr = pr.Normalize()
	entries, total, err := s.store.List(ctx, sc, f, pr)
	if err != nil {
		return nil, page.Info{}, err
	}
	return entries, page.InfoFor(pr, total), nil
}

// BulkFailure reports one rejected item of a bulk upload.
type BulkFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BulkResult is the partial-success outcome of a bulk upload: valid items
// are committed, invalid items reported individually.
type BulkResult struct {
	Created  []Entry       `json:"created"`
	Failures []BulkFailure `json:"failures"`
}

// BulkCreate commits every valid item and reports the rest by index.
func (s *Service) BulkCreate(ctx context.Context, actor directory.User, reqs []CreateRequest) (BulkResult, error) {
	if len(reqs) == 0 {
		return BulkResult{}, fmt.Errorf("%w: no items", ErrInvalidInput)
	}
	var res BulkResult
	for i, req := range reqs {
		created, err := s.Create(ctx, actor, req)
		if err != nil {
			res.Failures = append(res.Failures, BulkFailure{Index: i, Reason: err.Error()})
			continue
		}
		res.Created = append(res.Created, created)
	}
	return res, nil
}

func (s *Service) buildEntry(actor directory.User, req CreateRequest) (Entry, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return Entry{}, fmt.Errorf("%w: customerName is required", ErrInvalidInput)
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return Entry{}, err
	}
	var loc *geo.Point
	if req.Location != nil {
		if err := req.Location.Validate(); err != nil {
			return Entry{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		cp := *req.Location
		loc = &cp
	}
	for i, p := range req.Products {
		if strings.TrimSpace(p.Name) == "" || p.Quantity < 0 || p.Price < 0 {
			return Entry{}, fmt.Errorf("%w: product %d is malformed", ErrInvalidInput, i)
		}
	}
	assigned := req.AssignedTo
	if len(assigned) == 0 {
		assigned = []string{actor.ID}
	}
	return Entry{
		CustomerName:     name,
		Phone:            strings.TrimSpace(req.Phone),
		Address:          strings.TrimSpace(req.Address),
		Status:           status,
		Remarks:          req.Remarks,
		Location:         loc,
		Products:         req.Products,
		FirstPersonMeet:  strings.TrimSpace(req.FirstPersonMeet),
		SecondPersonMeet: strings.TrimSpace(req.SecondPersonMeet),
		CreatedBy:        actor.ID,
		AssignedTo:       assigned,
	}, nil
}

func validateEdit(edit Edit) error {
	if edit.Status != nil {
		if _, err := ParseStatus(string(*edit.Status)); err != nil {
			return err
		}
	}
	if edit.Location != nil {
		if err := edit.Location.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if edit.AssignedTo != nil && len(edit.AssignedTo) == 0 {
		return fmt.Errorf("%w: assignedTo may not be emptied", ErrInvalidInput)
	}
	return nil
}

func applyEdit(cur Entry, edit Edit) Entry {
	next := cur
	next.AssignedTo = append([]string(nil), cur.AssignedTo...)
	next.Products = append([]Product(nil), cur.Products...)
	next.History = append([]HistoryRecord(nil), cur.History...)
	if edit.Status != nil {
		next.Status = *edit.Status
	}
	if edit.Remarks != nil {
		next.Remarks = *edit.Remarks
	}
	if edit.Location != nil {
		loc := *edit.Location
		next.Location = &loc
	}
	if edit.Products != nil {
		next.Products = append([]Product(nil), edit.Products...)
	}
	if edit.AssignedTo != nil {
		next.AssignedTo = append([]string(nil), edit.AssignedTo...)
	}
	if edit.FirstPersonMeet != nil {
		next.FirstPersonMeet = *edit.FirstPersonMeet
	}
	if edit.SecondPersonMeet != nil {
		next.SecondPersonMeet = *edit.SecondPersonMeet
	}
	return next
}

func (s *Service) fanout(ctx context.Context, targets []notify.Target) {
	if err := s.notifier.Fanout(ctx, targets); err != nil {
		obs.LogEvent(map[string]any{
			"level": "warn",
			"msg":   "entry notification fan-out incomplete",
			"error": err.Error(),
		})
	}
}
