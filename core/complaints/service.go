package complaints

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"complaintdesk/core/directory"
	"complaintdesk/core/notify"
	"complaintdesk/core/routing"
	"complaintdesk/core/utils"
)

// People is the directory surface the service consults.
type People interface {
	Lookup(id string) (directory.Person, bool)
}

type Service struct {
	repo     Repository
	people   People
	resolver *routing.Resolver
	logger   *utils.Logger
	observer Observer
	kick     func()
	now      func() time.Time
	locks    keyedMutex
}

func NewService(repo Repository, people People, resolver *routing.Resolver, logger *utils.Logger) *Service {
	return &Service{
		repo:     repo,
		people:   people,
		resolver: resolver,
		logger:   logger,
		now:      utils.NowUTC,
	}
}

func (s *Service) SetObserver(o Observer) { s.observer = o }

// SetNotifier registers a non-blocking callback run after every committed mutation.
func (s *Service) SetNotifier(kick func()) { s.kick = kick }

func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Create(ctx context.Context, actor directory.Person, title, description string) (c *Complaint, err error) {
	defer s.observe(ActionCreated, time.Now(), &err)

	creator, ok := s.people.Lookup(actor.ID)
	if !ok || creator.Role != directory.RoleStudent {
		return nil, ErrUnauthorized.withMessage("only students can file complaints")
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, ErrValidation.withMessage("title and description are required")
	}
	handler, err := s.resolver.InitialHandler(creator)
	if err != nil {
		return nil, ErrNoHandlerFound.withMessage("%v", err)
	}
	now := s.now()
	c = &Complaint{
		Title:          title,
		Description:    description,
		CreatedBy:      creator.ID,
		AssignedTo:     handler.ID,
		CurrentHandler: handler.ID,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Logs: []LogEntry{{
			Action:    ActionCreated,
			UpdatedBy: creator.ID,
			Timestamp: now,
			Handler:   handler.ID,
		}},
		Version: 1,
	}
	intents := []notify.Intent{notify.NewIntent(notify.KindAssigned, "", handler.ID, handler.Email, title, now)}
	if err := s.repo.Insert(ctx, c, intents); err != nil {
		return nil, fmt.Errorf("insert complaint: %w", err)
	}
	s.logger.Info("complaint created", "id", c.ID, "created_by", c.CreatedBy, "handler", c.CurrentHandler)
	s.notify()
	return c, nil
}

func (s *Service) Resolve(ctx context.Context, actor directory.Person, id, note string) (*Complaint, error) {
	return s.act(ctx, actor, id, ActionResolved, note)
}

func (s *Service) Reject(ctx context.Context, actor directory.Person, id, note string) (*Complaint, error) {
	return s.act(ctx, actor, id, ActionRejected, note)
}

func (s *Service) Forward(ctx context.Context, actor directory.Person, id, note string) (*Complaint, error) {
	return s.act(ctx, actor, id, ActionForwarded, note)
}

func (s *Service) act(ctx context.Context, actor directory.Person, id string, action Action, note string) (out *Complaint, err error) {
	defer s.observe(action, time.Now(), &err)

	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load complaint %s: %w", id, err)
	}
	if cur == nil {
		return nil, ErrNotFound.withMessage("complaint %s", id)
	}
	if cur.Status.Terminal() {
		return nil, ErrInvalidTransition.withMessage("complaint %s is already %s", id, cur.Status)
	}
	if actor.ID == "" || actor.ID != cur.CurrentHandler {
		return nil, ErrUnauthorized.withMessage("%s is not the current handler of %s", actor.ID, id)
	}
	if action == ActionForwarded && actor.Role == directory.RolePrincipal {
		return nil, ErrInvalidTransition.withMessage("the principal cannot forward")
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrValidation.withMessage("a note is required")
	}

	handler := cur.CurrentHandler
	if action == ActionForwarded {
		next, err := s.resolver.NextHandler(actor)
		switch {
		case errors.Is(err, routing.ErrForwardNotAllowed):
			return nil, ErrInvalidTransition.withMessage("%v", err)
		case err != nil:
			return nil, ErrNoHandlerFound.withMessage("%v", err)
		}
		handler = next.ID
	}

	now := s.now()
	entry := LogEntry{Action: action, UpdatedBy: actor.ID, Note: note, Timestamp: now, Handler: handler}
	next := cur.Clone()
	if err := Apply(next, entry); err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1

	var intent notify.Intent
	switch action {
	case ActionResolved:
		intent = notify.NewIntent(notify.KindResolved, id, cur.CreatedBy, s.addressOf(cur.CreatedBy), cur.Title, now)
	case ActionRejected:
		intent = notify.NewIntent(notify.KindRejected, id, cur.CreatedBy, s.addressOf(cur.CreatedBy), cur.Title, now)
	default:
		intent = notify.NewIntent(notify.KindForwarded, id, handler, s.addressOf(handler), cur.Title, now)
	}
	if err := s.repo.Append(ctx, next, entry, cur.Version, []notify.Intent{intent}); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("append %s to %s: %w", action, id, err)
	}
	s.logger.Info("complaint "+string(action), "id", id, "actor", actor.ID, "handler", next.CurrentHandler, "status", next.Status)
	s.notify()
	return next, nil
}

// addressOf returns the contact address of a person, or "" when the
// directory no longer knows them.
func (s *Service) addressOf(id string) string {
	p, ok := s.people.Lookup(id)
	if !ok {
		s.logger.Warn("notification recipient not in directory", "id", id)
		return ""
	}
	return p.Email
}

func (s *Service) Get(ctx context.Context, id string) (*Complaint, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load complaint %s: %w", id, err)
	}
	if c == nil {
		return nil, ErrNotFound.withMessage("complaint %s", id)
	}
	return c, nil
}

// List returns every complaint in creation order.
func (s *Service) List(ctx context.Context) ([]Complaint, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return items, nil
}

// History lists complaints the actor has acted on, excluding ones they only filed.
func (s *Service) History(ctx context.Context, actor directory.Person) ([]Complaint, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return ActedOn(items, actor.ID), nil
}

func (s *Service) notify() {
	if s.kick != nil {
		s.kick()
	}
}

func (s *Service) observe(action Action, started time.Time, errp *error) {
	if s.observer == nil {
		return
	}
	outcome := "ok"
	if *errp != nil {
		outcome = "error"
		if de, ok := AsDomainError(*errp); ok {
			outcome = strings.TrimPrefix(de.Code, "complaints.")
		}
	}
	s.observer.ObserveTransition(action, outcome, time.Since(started).Seconds())
}
