package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/auth"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
	"github.com/ForsunJay/TGTEST/internal/wizard"
)

var (
	// ErrPermissionDenied is returned when the actor is not authorized
	// for the attempted operation
	ErrPermissionDenied = errors.New("permission denied")

	// ErrReasonRequired is returned when a rejection arrives without a
	// reason
	ErrReasonRequired = errors.New("a reason is required to reject a request")

	// ErrFieldNotEditable is returned when an edit names a field outside
	// the editable set
	ErrFieldNotEditable = errors.New("field is not editable")
)

// RequestService owns every post-creation operation on requests: status
// transitions, comments, edits and listing. Permission checks happen
// here, after the transition is validated, so an unauthorized actor
// learns nothing beyond the denial itself.
type RequestService struct {
	requests   port.RequestRepository
	comments   port.CommentRepository
	txManager  port.TransactionManager
	authorizer *auth.Authorizer
	messenger  port.Messenger
	logger     *zap.Logger
}

// NewRequestService creates a request service. messenger may be nil;
// creator notifications are then skipped.
func NewRequestService(
	requests port.RequestRepository,
	comments port.CommentRepository,
	txManager port.TransactionManager,
	authorizer *auth.Authorizer,
	messenger port.Messenger,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		requests:   requests,
		comments:   comments,
		txManager:  txManager,
		authorizer: authorizer,
		messenger:  messenger,
		logger:     logger,
	}
}

// Transition fires a lifecycle trigger against a request. The status
// write and its audit comment commit atomically; the write is guarded by
// the status the actor saw, so two racing transitions cannot both win.
func (s *RequestService) Transition(ctx context.Context, actor *entity.User, requestID int64, trigger lifecycle.Trigger, note string) (*entity.Request, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %d: %w", requestID, err)
	}

	next, err := lifecycle.Next(request.Status, trigger)
	if err != nil {
		return nil, err
	}

	if !s.authorizer.Allowed(actor.TelegramID, permissionFor(trigger), auth.ResourceContext{
		Source:    request.Source,
		Project:   request.Project,
		CreatorID: request.UserID,
	}) {
		return nil, ErrPermissionDenied
	}

	if trigger == lifecycle.TriggerReject && note == "" {
		return nil, ErrReasonRequired
	}
	if note != "" {
		if note, err = wizard.ValidateComment(note); err != nil {
			return nil, err
		}
	}

	from := request.Status
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.requests.UpdateStatus(ctx, requestID, from, next); err != nil {
			return err
		}
		return s.comments.Create(ctx, &entity.Comment{
			RequestID:  requestID,
			AuthorID:   actor.TelegramID,
			Text:       note,
			StatusFrom: from,
			StatusTo:   next,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transition request %d: %w", requestID, err)
	}

	request.Status = next
	s.logger.Info("Request transitioned",
		zap.Int64("request_id", requestID),
		zap.Int64("actor_id", actor.TelegramID),
		zap.String("from", from.String()),
		zap.String("to", next.String()))

	s.notifyCreator(ctx, request, note)
	return request, nil
}

// AddComment appends a comment to a request without changing its status
func (s *RequestService) AddComment(ctx context.Context, actor *entity.User, requestID int64, text string) (*entity.Comment, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %d: %w", requestID, err)
	}

	if !s.authorizer.Allowed(actor.TelegramID, auth.PermissionComment, auth.ResourceContext{
		Source:    request.Source,
		Project:   request.Project,
		CreatorID: request.UserID,
	}) {
		return nil, ErrPermissionDenied
	}

	text, err = wizard.ValidateComment(text)
	if err != nil {
		return nil, err
	}

	comment := &entity.Comment{
		RequestID: requestID,
		AuthorID:  actor.TelegramID,
		Text:      text,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// editableFields is the closed set of request fields an edit may touch
var editableFields = map[string]bool{
	"amount": true,
	"note":   true,
	"period": true,
}

// Edit changes a single whitelisted field of a non-terminal request and
// records the change as an audit comment.
func (s *RequestService) Edit(ctx context.Context, actor *entity.User, requestID int64, field, value string) (*entity.Request, error) {
	if !editableFields[field] {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotEditable, field)
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request %d: %w", requestID, err)
	}

	if request.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: request %d is %s", lifecycle.ErrTerminalState, requestID, request.Status)
	}

	if !s.authorizer.Allowed(actor.TelegramID, auth.PermissionEdit, auth.ResourceContext{
		Source:    request.Source,
		Project:   request.Project,
		CreatorID: request.UserID,
	}) {
		return nil, ErrPermissionDenied
	}

	var audit string
	switch field {
	case "amount":
		amount, err := wizard.ParseAmount(value)
		if err != nil {
			return nil, err
		}
		audit = fmt.Sprintf("amount changed: %s -> %s", request.Amount, amount)
		request.Amount = amount
	case "note":
		note, err := wizard.ValidateNote(value)
		if err != nil {
			return nil, err
		}
		audit = "note changed"
		request.Note = note
	case "period":
		start, end, err := wizard.ParsePeriod(value)
		if err != nil {
			return nil, err
		}
		audit = fmt.Sprintf("period changed: %s - %s",
			start.Format("02.01.2006"), end.Format("02.01.2006"))
		request.PeriodStart = &start
		request.PeriodEnd = &end
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.requests.Update(ctx, request); err != nil {
			return err
		}
		return s.comments.Create(ctx, &entity.Comment{
			RequestID: requestID,
			AuthorID:  actor.TelegramID,
			Text:      audit,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit request %d: %w", requestID, err)
	}

	return request, nil
}

// Get returns one request with its comment history, subject to view
// permissions
func (s *RequestService) Get(ctx context.Context, actor *entity.User, requestID int64) (*entity.Request, []*entity.Comment, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load request %d: %w", requestID, err)
	}

	if request.UserID != actor.TelegramID &&
		!s.authorizer.Allowed(actor.TelegramID, auth.PermissionViewAll, auth.ResourceContext{
			Source:  request.Source,
			Project: request.Project,
		}) {
		return nil, nil, ErrPermissionDenied
	}

	comments, err := s.comments.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load comments: %w", err)
	}
	return request, comments, nil
}

// List returns requests matching the filter. Actors without view-all
// authority over the filtered scope see only their own requests.
func (s *RequestService) List(ctx context.Context, actor *entity.User, filter port.RequestFilter) ([]*entity.Request, error) {
	if !s.authorizer.Allowed(actor.TelegramID, auth.PermissionViewAll, auth.ResourceContext{
		Source:  filter.Source,
		Project: filter.Project,
	}) {
		filter.UserID = actor.TelegramID
	}

	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// notifyCreator tells the request creator about a status change.
// Delivery is best effort; a failure never rolls back the transition.
func (s *RequestService) notifyCreator(ctx context.Context, request *entity.Request, note string) {
	if s.messenger == nil {
		return
	}

	text := fmt.Sprintf("Your request #%d is now %s.", request.ID, request.Status)
	if note != "" {
		text += "\nComment: " + note
	}
	if err := s.messenger.SendMessage(ctx, request.UserID, text, nil); err != nil {
		s.logger.Warn("Failed to notify request creator",
			zap.Int64("request_id", request.ID),
			zap.Int64("user_id", request.UserID),
			zap.Error(err))
	}
}

// permissionFor maps a lifecycle trigger to the permission gating it
func permissionFor(trigger lifecycle.Trigger) auth.Permission {
	if trigger == lifecycle.TriggerReject {
		return auth.PermissionReject
	}
	return auth.PermissionApprove
}
