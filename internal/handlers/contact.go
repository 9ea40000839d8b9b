package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"contact-service/internal/contact"
	"contact-service/internal/models"
	"contact-service/internal/observability"
	"contact-service/internal/replyquote"
	"contact-service/internal/telemetry"
)

// ContactHandler manages the contact-messaging endpoints.
type ContactHandler struct {
	service *contact.Service
	emitter *telemetry.AuditEmitter
}

// NewContactHandler builds a ContactHandler.
func NewContactHandler(service *contact.Service, emitter *telemetry.AuditEmitter) *ContactHandler {
	return &ContactHandler{service: service, emitter: emitter}
}

type messageResponse struct {
	models.Message
	DisplayBody   string `json:"display_body"`
	QuotedPreview string `json:"quoted_preview,omitempty"`
}

func toMessageResponse(m models.Message) messageResponse {
	preview, actual, _ := replyquote.Decode(m.Body)
	return messageResponse{Message: m, DisplayBody: actual, QuotedPreview: preview}
}

func toMessageResponses(msgs []models.Message) []messageResponse {
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, toMessageResponse(m))
	}
	return resp
}

type conversationResponse struct {
	CounterpartName  string            `json:"counterpart_name"`
	CounterpartEmail string            `json:"counterpart_email"`
	UnreadCount      int               `json:"unread_count"`
	Messages         []messageResponse `json:"messages"`
}

func toConversationResponse(c models.Conversation) conversationResponse {
	return conversationResponse{
		CounterpartName:  c.CounterpartName,
		CounterpartEmail: c.CounterpartEmail,
		UnreadCount:      c.UnreadCount,
		Messages:         toMessageResponses(c.Messages),
	}
}

func viewerFromContext(c *gin.Context) contact.Viewer {
	return contact.Viewer{
		ID:    c.GetString("viewerID"),
		Email: c.GetString("viewerEmail"),
	}
}

// GetInbox returns the viewer's inbox. Fetching it as the recipient marks
// unread items read; the response carries the affected ids.
func (h *ContactHandler) GetInbox(c *gin.Context) {
	viewer := viewerFromContext(c)

	result, err := h.service.FetchInbox(c.Request.Context(), viewer)
	if err != nil {
		respondServiceError(c, err, "failed to load inbox")
		return
	}

	if len(result.MarkedRead) > 0 {
		h.publishContactEvent(c, "messages_read", map[string]interface{}{
			"viewer_email": viewer.Email,
			"marked_read":  result.MarkedRead,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":    toMessageResponses(result.Messages),
		"marked_read": result.MarkedRead,
	})
}

// ListConversations returns the derived conversation list for the viewer.
func (h *ContactHandler) ListConversations(c *gin.Context) {
	viewer := viewerFromContext(c)

	conversations, err := h.service.ListConversations(c.Request.Context(), viewer)
	if err != nil {
		respondServiceError(c, err, "failed to load conversations")
		return
	}

	resp := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp = append(resp, toConversationResponse(conv))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": resp})
}

// OpenConversation returns one conversation and marks its incoming unread
// messages read.
func (h *ContactHandler) OpenConversation(c *gin.Context) {
	counterpart := c.Param("email")
	if counterpart == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing counterpart email"})
		return
	}
	viewer := viewerFromContext(c)

	result, err := h.service.OpenConversation(c.Request.Context(), viewer, counterpart)
	if err != nil {
		respondServiceError(c, err, "failed to load conversation")
		return
	}

	if len(result.MarkedRead) > 0 {
		h.publishContactEvent(c, "messages_read", map[string]interface{}{
			"viewer_email":      viewer.Email,
			"counterpart_email": counterpart,
			"marked_read":       result.MarkedRead,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation": toConversationResponse(result.Conversation),
		"marked_read":  result.MarkedRead,
	})
}

// SendMessage stores an outgoing message, optionally quoting a replied-to
// message.
func (h *ContactHandler) SendMessage(c *gin.Context) {
	var req struct {
		SenderName     string `json:"sender_name" binding:"required"`
		RecipientEmail string `json:"recipient_email" binding:"required,email"`
		Subject        string `json:"subject" binding:"required"`
		Body           string `json:"body" binding:"required"`
		ReplyToID      int    `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewer := viewerFromContext(c)
	msg, err := h.service.Send(c.Request.Context(), viewer, contact.SendRequest{
		SenderName:     req.SenderName,
		RecipientEmail: req.RecipientEmail,
		Subject:        req.Subject,
		Body:           req.Body,
		ReplyToID:      req.ReplyToID,
	})
	if err != nil {
		if errors.Is(err, contact.ErrPermissionDenied) && h.emitter != nil {
			h.emitter.Emit(c.Request.Context(), "WARN",
				fmt.Sprintf("send rejected by store policy sender=%s recipient=%s", viewer.Email, req.RecipientEmail),
				requestIDFromContext(c), viewerIDFromContext(c))
		}
		respondServiceError(c, err, "failed to store message")
		return
	}

	h.publishContactEvent(c, "message_sent", map[string]interface{}{
		"message_id":      msg.ID,
		"sender_email":    msg.SenderEmail,
		"recipient_email": msg.RecipientEmail,
		"is_reply":        req.ReplyToID != 0,
	})

	c.JSON(http.StatusCreated, toMessageResponse(msg))
}

// ListAllMessages returns the full store for the admin dashboard.
func (h *ContactHandler) ListAllMessages(c *gin.Context) {
	msgs, err := h.service.ListAllMessages(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": toMessageResponses(msgs)})
}

func (h *ContactHandler) publishContactEvent(c *gin.Context, eventName string, payload map[string]interface{}) {
	payload["identity"] = map[string]interface{}{
		"ip":        observability.IPFromRequest(c.Request),
		"device_id": observability.DeviceIDFromRequest(c.Request),
	}
	headers := observability.BuildHeaders(requestIDFromContext(c), "")
	_ = observability.PublishEvent(c.Request.Context(), "contact_events."+eventName, observability.EventEnvelope{
		EventType: "contact_events",
		EventName: eventName,
		Payload:   payload,
	}, headers)
}

// respondServiceError maps the gateway error taxonomy onto HTTP statuses.
// Store failures are retryable by re-invoking the call, hence 503.
func respondServiceError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, contact.ErrValidationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, contact.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, contact.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": message})
}
