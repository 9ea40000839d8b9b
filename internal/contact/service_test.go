package contact

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"contact-service/internal/mocks"
	"contact-service/internal/models"
)

var (
	playerViewer = Viewer{ID: "player-1", Email: "player@x.com"}
	adminEmail   = "admin@y.com"
)

func unreadTo(id int, recipient string, created time.Time) models.Message {
	return models.Message{
		ID:             id,
		SenderName:     "Admin Team",
		SenderEmail:    adminEmail,
		RecipientEmail: recipient,
		Subject:        "subject",
		Body:           "body",
		Status:         models.StatusUnread,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestFetchInboxMarksUnreadRead(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	now := time.Now()
	unread := unreadTo(1, playerViewer.Email, now)
	alreadyRead := unreadTo(2, playerViewer.Email, now.Add(-time.Hour))
	alreadyRead.Status = models.StatusRead

	repo.On("ListInbox", mock.Anything, playerViewer.Email).
		Return([]models.Message{unread, alreadyRead}, nil).Once()
	repo.On("UpdateStatus", mock.Anything, 1, models.StatusRead).Return(nil).Once()

	result, err := service.FetchInbox(context.Background(), playerViewer)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, result.MarkedRead)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, models.StatusRead, result.Messages[0].Status)
	repo.AssertExpectations(t)
}

func TestFetchInboxIsolatesPerItemFailures(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	now := time.Now()
	repo.On("ListInbox", mock.Anything, playerViewer.Email).
		Return([]models.Message{unreadTo(1, playerViewer.Email, now), unreadTo(2, playerViewer.Email, now)}, nil).Once()
	repo.On("UpdateStatus", mock.Anything, 1, models.StatusRead).Return(assert.AnError).Once()
	repo.On("UpdateStatus", mock.Anything, 2, models.StatusRead).Return(nil).Once()

	result, err := service.FetchInbox(context.Background(), playerViewer)
	require.NoError(t, err)

	// The failed item stays unread and the batch carries on.
	assert.Equal(t, []int{2}, result.MarkedRead)
	assert.Equal(t, models.StatusUnread, result.Messages[0].Status)
	assert.Equal(t, models.StatusRead, result.Messages[1].Status)
	repo.AssertExpectations(t)
}

func TestFetchInboxStoreError(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	repo.On("ListInbox", mock.Anything, playerViewer.Email).
		Return(([]models.Message)(nil), assert.AnError).Once()

	_, err := service.FetchInbox(context.Background(), playerViewer)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	repo.AssertExpectations(t)
}

func TestOpenConversationZeroesUnreadCount(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	now := time.Now()
	outgoing := models.Message{
		ID: 1, SenderName: "Player One", SenderEmail: playerViewer.Email,
		RecipientEmail: adminEmail, Subject: "s", Body: "b",
		Status: models.StatusUnread, CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour),
	}
	incoming := unreadTo(2, playerViewer.Email, now)

	repo.On("ListConversation", mock.Anything, playerViewer.Email, adminEmail).
		Return([]models.Message{outgoing, incoming}, nil).Once()
	repo.On("UpdateStatus", mock.Anything, 2, models.StatusRead).Return(nil).Once()

	result, err := service.OpenConversation(context.Background(), playerViewer, adminEmail)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, result.MarkedRead)
	assert.Equal(t, adminEmail, result.Conversation.CounterpartEmail)
	require.Len(t, result.Conversation.Messages, 2)
	assert.Equal(t, 1, result.Conversation.Messages[0].ID)
	assert.Equal(t, 2, result.Conversation.Messages[1].ID)
	// Opening the conversation read everything addressed to the viewer.
	assert.Equal(t, 0, result.Conversation.UnreadCount)
	// The viewer's own sent message must never be touched.
	assert.Equal(t, models.StatusUnread, result.Conversation.Messages[0].Status)
	repo.AssertExpectations(t)
}

func TestOpenConversationEmptyThread(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	repo.On("ListConversation", mock.Anything, playerViewer.Email, adminEmail).
		Return([]models.Message{}, nil).Once()

	result, err := service.OpenConversation(context.Background(), playerViewer, adminEmail)
	require.NoError(t, err)
	assert.Equal(t, adminEmail, result.Conversation.CounterpartEmail)
	assert.Empty(t, result.Conversation.Messages)
	assert.Empty(t, result.MarkedRead)
	repo.AssertExpectations(t)
}

func TestSendValidationFailed(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	_, err := service.Send(context.Background(), playerViewer, SendRequest{
		SenderName: "Player One",
		Subject:    "subject",
		Body:       "body",
	})
	require.ErrorIs(t, err, ErrValidationFailed)
	repo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendPermissionDenied(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	repo.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{}, &pq.Error{Code: "42501"}).Once()

	_, err := service.Send(context.Background(), playerViewer, SendRequest{
		SenderName:     "Player One",
		RecipientEmail: adminEmail,
		Subject:        "subject",
		Body:           "body",
	})
	require.ErrorIs(t, err, ErrPermissionDenied)
	repo.AssertExpectations(t)
}

func TestSendStoreUnavailable(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	repo.On("CreateMessage", mock.Anything, mock.Anything).
		Return(models.Message{}, assert.AnError).Once()

	_, err := service.Send(context.Background(), playerViewer, SendRequest{
		SenderName:     "Player One",
		RecipientEmail: adminEmail,
		Subject:        "subject",
		Body:           "body",
	})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	repo.AssertExpectations(t)
}

func TestSendReplyQuotesOriginalAndMarksReplied(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	original := unreadTo(7, playerViewer.Email, time.Now())
	original.Body = "Hello, is the event still happening this weekend?"

	repo.On("GetMessage", mock.Anything, 7).Return(original, nil).Once()
	repo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.NewMessage) bool {
		return strings.HasPrefix(msg.Body, `[Replying to: "Hello, is the event still happening this weeken..."] `) &&
			strings.HasSuffix(msg.Body, "Yes!")
	})).Return(models.Message{ID: 8}, nil).Once()
	repo.On("UpdateStatus", mock.Anything, 7, models.StatusReplied).Return(nil).Once()

	created, err := service.Send(context.Background(), playerViewer, SendRequest{
		SenderName:     "Player One",
		RecipientEmail: adminEmail,
		Subject:        "Re: event",
		Body:           "Yes!",
		ReplyToID:      7,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, created.ID)
	repo.AssertExpectations(t)
}

func TestSendReplyQuotesActualTextNotNestedQuote(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	original := unreadTo(7, playerViewer.Email, time.Now())
	original.Body = `[Replying to: "earlier text"] sounds good`

	repo.On("GetMessage", mock.Anything, 7).Return(original, nil).Once()
	repo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.NewMessage) bool {
		return msg.Body == `[Replying to: "sounds good"] confirmed`
	})).Return(models.Message{ID: 8}, nil).Once()
	repo.On("UpdateStatus", mock.Anything, 7, models.StatusReplied).Return(nil).Once()

	_, err := service.Send(context.Background(), playerViewer, SendRequest{
		SenderName:     "Player One",
		RecipientEmail: adminEmail,
		Subject:        "Re",
		Body:           "confirmed",
		ReplyToID:      7,
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestSendNormalizesPlaceholderSenderID(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	repo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.NewMessage) bool {
		return msg.SenderID == nil
	})).Return(models.Message{ID: 1}, nil).Once()

	placeholder := Viewer{ID: PlaceholderSenderID, Email: "admin@y.com"}
	_, err := service.Send(context.Background(), placeholder, SendRequest{
		SenderName:     "Admin",
		RecipientEmail: "player@x.com",
		Subject:        "subject",
		Body:           "body",
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestMarkReadIdempotent(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	service := NewService(repo)

	repo.On("UpdateStatus", mock.Anything, 3, models.StatusRead).Return(nil).Twice()

	require.NoError(t, service.MarkRead(context.Background(), 3))
	require.NoError(t, service.MarkRead(context.Background(), 3))
	repo.AssertExpectations(t)
}
