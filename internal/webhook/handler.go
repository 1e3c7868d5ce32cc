// Package webhook receives LINE webhook callbacks, verifies their
// signature, and answers message and follow events from the
// knowledge base.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/tanakritw/sheetqna-linebot-go/internal/config"
	"github.com/tanakritw/sheetqna-linebot-go/internal/ctxutil"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
	"github.com/tanakritw/sheetqna-linebot-go/internal/lineutil"
	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/metrics"
	"github.com/tanakritw/sheetqna-linebot-go/internal/ratelimit"
)

// Sender delivers replies to the LINE platform. lineSender is the
// production implementation; tests substitute their own.
type Sender interface {
	Reply(replyToken string, messages []messaging_api.MessageInterface) error
	ShowLoading(chatID string) error
}

// lineSender wraps the SDK messaging client.
type lineSender struct {
	client *messaging_api.MessagingApiAPI
}

func (s *lineSender) Reply(replyToken string, messages []messaging_api.MessageInterface) error {
	_, err := s.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	return err
}

func (s *lineSender) ShowLoading(chatID string) error {
	// loadingSeconds must be 5-60 and a multiple of 5.
	_, err := s.client.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: 30,
	})
	return err
}

// Handler handles LINE webhook events.
type Handler struct {
	channelSecret string
	sender        Sender
	resolver      *kb.Resolver
	metrics       *metrics.Metrics
	logger        *logger.Logger
	rateLimiter   *ratelimit.Limiter
	wg            sync.WaitGroup

	processingTimeout   time.Duration
	maxMessagesPerReply int
	maxEventsPerWebhook int
	minReplyTokenLength int
}

// HandlerConfig holds configuration for creating a new Handler.
type HandlerConfig struct {
	ChannelSecret string
	ChannelToken  string
	BotConfig     *config.BotConfig
	Resolver      *kb.Resolver
	Metrics       *metrics.Metrics
	Logger        *logger.Logger

	// Sender overrides the SDK client. Leave nil outside tests.
	Sender Sender
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	sender := cfg.Sender
	if sender == nil {
		client, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken)
		if err != nil {
			return nil, fmt.Errorf("create messaging API client: %w", err)
		}
		sender = &lineSender{client: client}
	}

	h := &Handler{
		channelSecret:       cfg.ChannelSecret,
		sender:              sender,
		resolver:            cfg.Resolver,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.WithModule("webhook"),
		processingTimeout:   cfg.BotConfig.WebhookTimeout,
		maxMessagesPerReply: cfg.BotConfig.MaxMessagesPerReply,
		maxEventsPerWebhook: cfg.BotConfig.MaxEventsPerWebhook,
		minReplyTokenLength: cfg.BotConfig.MinReplyTokenLength,
	}

	h.rateLimiter = ratelimit.New(cfg.BotConfig.GlobalRateRPS, cfg.BotConfig.GlobalRateRPS)

	return h, nil
}

// Handle is the gin handler for the webhook endpoint. LINE expects a
// fast 200; events are processed after the response is written.
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("invalid webhook signature")
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).Error("failed to parse webhook request")
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Status(http.StatusOK)

	start := time.Now()
	h.metrics.RecordWebhook("batch", "received", 0)

	if len(cb.Events) > h.maxEventsPerWebhook {
		h.logger.WithFields(map[string]any{
			"event_count": len(cb.Events),
			"limit":       h.maxEventsPerWebhook,
		}).Warn("too many events in webhook batch, truncating")
		cb.Events = cb.Events[:h.maxEventsPerWebhook]
	}

	// Copy so the slice outlives the request.
	events := make([]webhook.EventInterface, len(cb.Events))
	copy(events, cb.Events)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).Error("panic in async event processing")
			}
		}()

		for _, event := range events {
			h.processEvent(context.Background(), event, start)
		}
	}()
}

// processEvent answers a single webhook event.
func (h *Handler) processEvent(ctx context.Context, event webhook.EventInterface, batchStart time.Time) {
	eventStart := time.Now()

	eventID := extractEventID(event)
	log := h.logger
	if eventID != "" {
		ctx = ctxutil.WithRequestID(ctx, eventID)
		log = log.WithRequestID(eventID)
	}

	ctx, cancel := context.WithTimeout(ctx, h.processingTimeout)
	defer cancel()

	var items []kb.Content
	var eventType string

	switch e := event.(type) {
	case webhook.MessageEvent:
		eventType = "message"
		text, ok := textContent(e)
		if !ok {
			log.WithField("message_type", e.Message.GetType()).Debug("ignoring non-text message")
			return
		}
		userID := sourceUserID(e.Source)
		if userID != "" {
			ctx = ctxutil.WithUserID(ctx, userID)
		}
		if chatID := sourceChatID(e.Source); chatID != "" {
			if err := h.sender.ShowLoading(chatID); err != nil {
				log.WithError(err).Debug("failed to show loading animation")
			}
		}
		items = h.resolver.Resolve(ctx, userID, text)

	case webhook.FollowEvent:
		eventType = "follow"
		items = h.resolver.ResolveFollow(ctx)

	default:
		log.WithField("event_type", fmt.Sprintf("%T", e)).Debug("unsupported event type")
		return
	}

	h.metrics.RecordWebhook(eventType, "success", time.Since(eventStart).Seconds())

	h.reply(event, items, eventType, log)

	log.WithFields(map[string]any{
		"event_type":        eventType,
		"event_duration_ms": time.Since(eventStart).Milliseconds(),
		"batch_duration_ms": time.Since(batchStart).Milliseconds(),
	}).Info("event processed")
}

// reply renders and sends the composed items for one event.
func (h *Handler) reply(event webhook.EventInterface, items []kb.Content, eventType string, log *logger.Logger) {
	if len(items) == 0 {
		return
	}
	if len(items) > h.maxMessagesPerReply {
		log.WithFields(map[string]any{
			"message_count": len(items),
			"limit":         h.maxMessagesPerReply,
		}).Warn("reply exceeds message limit, truncating")
		items = items[:h.maxMessagesPerReply]
	}

	token := replyToken(event)
	if token == "" {
		log.Debug("empty reply token, skipping reply")
		return
	}
	if len(token) < h.minReplyTokenLength {
		log.WithField("token_length", len(token)).Debug("invalid reply token format")
		return
	}

	if !h.rateLimiter.Allow() {
		log.Warn("global rate limit exceeded, waiting")
		h.metrics.RecordRateLimiterDrop("global")
		h.rateLimiter.WaitSimple()
	}

	if err := h.sender.Reply(token, lineutil.Render(items)); err != nil {
		if strings.Contains(err.Error(), "Invalid reply token") {
			log.WithError(err).Debug("reply token already used or expired")
		} else {
			log.WithError(err).Error("failed to send reply")
		}
		h.metrics.RecordWebhook(eventType, "reply_error", 0)
	}
}

// Shutdown waits for in-flight event processing to finish.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func extractEventID(event webhook.EventInterface) string {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return e.WebhookEventId
	case webhook.FollowEvent:
		return e.WebhookEventId
	default:
		return ""
	}
}

// textContent extracts the text body from a message event; non-text
// message types are ignored.
func textContent(e webhook.MessageEvent) (string, bool) {
	msg, ok := e.Message.(webhook.TextMessageContent)
	if !ok {
		return "", false
	}
	return msg.Text, true
}

func sourceUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

// sourceChatID returns the identifier the loading animation targets.
// Only one-on-one chats support it.
func sourceChatID(source webhook.SourceInterface) string {
	if s, ok := source.(webhook.UserSource); ok {
		return s.UserId
	}
	return ""
}

func replyToken(event webhook.EventInterface) string {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return e.ReplyToken
	case webhook.FollowEvent:
		return e.ReplyToken
	default:
		return ""
	}
}
