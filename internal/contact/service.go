// Package contact implements the messaging gateway: sending, inbox and
// conversation reads, and the read-state transitions those reads imply.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"contact-service/internal/models"
	"contact-service/internal/observability"
	"contact-service/internal/replyquote"
	"contact-service/internal/repositories"
	"contact-service/internal/thread"
)

var (
	// ErrStoreUnavailable wraps backend failures; retry by re-invoking the call.
	ErrStoreUnavailable = errors.New("message store unavailable")
	// ErrPermissionDenied wraps access-policy rejections; not retryable
	// without changing identity.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidationFailed reports missing required fields before the store
	// is reached.
	ErrValidationFailed = errors.New("validation failed")
)

// PlaceholderSenderID is the degraded admin identity the legacy clients
// used. It carries no account and is normalized to a nil sender id.
const PlaceholderSenderID = "admin-local"

// Viewer is the authenticated party a call acts on behalf of. It is
// always passed in by the caller; the service holds no session state.
type Viewer struct {
	ID    string
	Email string
}

// Service coordinates the repository, derivation and reply encoding.
type Service struct {
	repo     repositories.MessageRepository
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewService builds a Service.
func NewService(repo repositories.MessageRepository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		tracer:   otel.Tracer("contact-service/contact"),
	}
}

// InboxResult is an inbox snapshot plus the mark-read effects the fetch
// performed.
type InboxResult struct {
	Messages   []models.Message
	MarkedRead []int
}

// FetchInbox returns the viewer's inbox, newest first. Fetching as the
// recipient marks every currently-unread item read as one logical batch:
// each item is updated independently and a failed item is logged and
// skipped, never aborting the rest.
func (s *Service) FetchInbox(ctx context.Context, viewer Viewer) (InboxResult, error) {
	msgs, err := s.repo.ListInbox(ctx, viewer.Email)
	if err != nil {
		return InboxResult{}, storeErr(err)
	}
	marked := s.markAllRead(ctx, msgs, viewer)
	return InboxResult{Messages: msgs, MarkedRead: marked}, nil
}

// ConversationResult is one opened conversation plus its mark-read effects.
type ConversationResult struct {
	Conversation models.Conversation
	MarkedRead   []int
}

// OpenConversation fetches the two-party thread with the counterpart,
// marks incoming unread messages read, and returns the derived
// conversation. The mark-read side effect is explicit in the result so
// callers re-derive unread counts instead of trusting stale ones.
func (s *Service) OpenConversation(ctx context.Context, viewer Viewer, counterpartEmail string) (ConversationResult, error) {
	ctx, span := s.tracer.Start(ctx, "contact.open_conversation")
	defer span.End()

	msgs, err := s.repo.ListConversation(ctx, viewer.Email, counterpartEmail)
	if err != nil {
		return ConversationResult{}, storeErr(err)
	}
	marked := s.markAllRead(ctx, msgs, viewer)

	conversation := models.Conversation{CounterpartEmail: counterpartEmail, Messages: []models.Message{}}
	for _, c := range thread.Derive(msgs, viewer.Email) {
		if c.CounterpartEmail == counterpartEmail {
			conversation = c
			break
		}
	}
	return ConversationResult{Conversation: conversation, MarkedRead: marked}, nil
}

// ListConversations derives the viewer's conversation list, most recently
// active first. Listing does not open any message, so no read-marking
// happens here.
func (s *Service) ListConversations(ctx context.Context, viewer Viewer) ([]models.Conversation, error) {
	msgs, err := s.repo.ListForViewer(ctx, viewer.Email)
	if err != nil {
		return nil, storeErr(err)
	}
	return thread.Derive(msgs, viewer.Email), nil
}

// ListAllMessages returns the entire store for the admin dashboard view.
func (s *Service) ListAllMessages(ctx context.Context) ([]models.Message, error) {
	msgs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return msgs, nil
}

// SendRequest is an outgoing message. ReplyToID, when set, references the
// message being replied to: its text is quoted into the new body and the
// original is marked replied.
type SendRequest struct {
	SenderName     string
	RecipientEmail string
	Subject        string
	Body           string
	ReplyToID      int
}

// Send validates and inserts a new message with the unread status.
func (s *Service) Send(ctx context.Context, viewer Viewer, req SendRequest) (models.Message, error) {
	body := req.Body
	if req.ReplyToID != 0 {
		original, err := s.repo.GetMessage(ctx, req.ReplyToID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				return models.Message{}, fmt.Errorf("%w: reply target not found", ErrValidationFailed)
			}
			return models.Message{}, storeErr(err)
		}
		// Quote the original's own text, not a nested quotation.
		_, actual, _ := replyquote.Decode(original.Body)
		body = replyquote.Encode(actual, req.Body)
	}

	msg := models.NewMessage{
		SenderID:       normalizeSenderID(viewer.ID),
		SenderName:     req.SenderName,
		SenderEmail:    viewer.Email,
		RecipientEmail: req.RecipientEmail,
		Subject:        req.Subject,
		Body:           body,
	}
	if err := s.validate.Struct(msg); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	created, err := s.repo.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, storeErr(err)
	}
	observability.IncMessageSent()

	if req.ReplyToID != 0 {
		// The reply itself starts unread for its recipient; the original
		// moves to replied. Failure here leaves the original as-is and is
		// not worth failing the send over.
		if err := s.repo.UpdateStatus(ctx, req.ReplyToID, models.StatusReplied); err != nil {
			log.Printf("mark replied failed message_id=%d: %v", req.ReplyToID, err)
		}
	}
	return created, nil
}

// MarkRead transitions a single message to read. Re-marking an
// already-read message is a no-op, not an error.
func (s *Service) MarkRead(ctx context.Context, messageID int) error {
	if err := s.repo.UpdateStatus(ctx, messageID, models.StatusRead); err != nil {
		return storeErr(err)
	}
	return nil
}

// markAllRead marks every unread message addressed to the viewer read and
// mutates the snapshot to match. Only the recipient side ever moves a
// message out of unread; the viewer's own sent messages are untouched.
func (s *Service) markAllRead(ctx context.Context, msgs []models.Message, viewer Viewer) []int {
	var marked []int
	for i := range msgs {
		m := &msgs[i]
		if m.RecipientEmail != viewer.Email || m.Status != models.StatusUnread {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, m.ID, models.StatusRead); err != nil {
			log.Printf("mark read failed message_id=%d: %v", m.ID, err)
			observability.IncMarkReadFailure()
			continue
		}
		m.Status = models.StatusRead
		marked = append(marked, m.ID)
	}
	if len(marked) > 0 {
		observability.AddMarkedRead(len(marked))
	}
	return marked
}

func normalizeSenderID(id string) *string {
	if id == "" || id == PlaceholderSenderID {
		return nil
	}
	return &id
}

// storeErr maps repository failures onto the gateway error taxonomy.
// Postgres privilege errors (row-level security rejections) surface as
// permission denials; everything else is a retryable store failure.
func storeErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "42501" || pqErr.Code.Class() == "28" {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
