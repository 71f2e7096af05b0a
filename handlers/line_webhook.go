package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"house-alert-api/models"
	"house-alert-api/services/line"
	"house-alert-api/utils"
)

const (
	welcomeMessage = "歡迎加入 591搶案神器！🏠\n\n" +
		"請直接回覆您註冊時使用的 Email，我們會幫您完成帳號綁定，之後符合條件的新物件就會即時推播給您。"
	bindSuccessMessage = "✅ 綁定成功！\n\n" +
		"您的 LINE 已與帳號連結，符合監控條件的新物件會即時通知您。"
	notFoundMessageFormat = "找不到使用 %s 註冊的帳號。\n\n請先到網站註冊並登入後，再回覆您的 Email 完成綁定。"
	duplicateMessage      = "此 Email 對應到多個帳號，無法自動綁定，請聯絡客服協助處理。"
	instructionMessage    = "請回覆您註冊時使用的 Email（例如 name@example.com）以綁定帳號。"
	genericErrorMessage   = "系統忙碌中，請稍後再試一次。"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsBindableEmail reports whether text has the local@domain.tld shape.
// Any Unicode space, such as U+3000 from CJK input methods, disqualifies it.
func IsBindableEmail(text string) bool {
	if strings.ContainsFunc(text, unicode.IsSpace) {
		return false
	}
	return emailPattern.MatchString(text)
}

type BindingStore interface {
	FindAccountsByEmail(ctx context.Context, email string) ([]models.Account, error)
	UpdateAccountBinding(ctx context.Context, accountID, lineUserID string, linkedAt time.Time) error
}

type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
}

// LineWebhookHandler binds LINE users to accounts by the email they send.
type LineWebhookHandler struct {
	channelSecret string
	accounts      BindingStore
	messenger     Messenger
	now           func() time.Time
}

func NewLineWebhookHandler(channelSecret string, accounts BindingStore, messenger Messenger) *LineWebhookHandler {
	if channelSecret == "" {
		log.Printf("Warning: LINE channel secret is empty, webhook signatures use an empty key")
	}
	return &LineWebhookHandler{
		channelSecret: channelSecret,
		accounts:      accounts,
		messenger:     messenger,
		now:           time.Now,
	}
}

// VerifyEndpoint answers the platform's webhook URL check.
func (h *LineWebhookHandler) VerifyEndpoint(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, models.StatusResponse{Status: "active"})
}

// HandleWebhook verifies the batch signature, then processes each event.
// Per-event failures are logged and never fail the acknowledgment.
func (h *LineWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Printf("LINE webhook error reading body: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !line.VerifySignature(h.channelSecret, body, r.Header.Get(line.SignatureHeader)) {
		log.Printf("Invalid LINE webhook signature from %s", r.RemoteAddr)
		utils.SendErrorResponse(w, http.StatusForbidden, "Invalid signature")
		return
	}

	var payload line.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("LINE webhook error parsing body: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	for _, event := range payload.Events {
		h.handleEvent(r.Context(), event)
	}

	utils.SendJSON(w, http.StatusOK, models.StatusResponse{Status: "ok"})
}

func (h *LineWebhookHandler) handleEvent(ctx context.Context, event line.Event) {
	switch event.Type {
	case line.EventFollow:
		h.handleFollow(ctx, event)
	case line.EventMessage:
		if event.Message != nil && event.Message.Type == line.MessageText {
			h.handleTextMessage(ctx, event)
		}
	}
}

func (h *LineWebhookHandler) handleFollow(ctx context.Context, event line.Event) {
	userID := event.Source.UserID
	if userID == "" {
		log.Printf("Follow event without user id, skipping welcome")
		return
	}

	log.Printf("New follower: %s", utils.MaskID(userID))
	if err := h.messenger.Push(ctx, userID, welcomeMessage); err != nil {
		log.Printf("Failed to push welcome message to %s: %v", utils.MaskID(userID), err)
	}
}

func (h *LineWebhookHandler) handleTextMessage(ctx context.Context, event line.Event) {
	text := strings.TrimSpace(event.Message.Text)
	if !IsBindableEmail(text) {
		h.reply(ctx, event, instructionMessage)
		return
	}

	userID := event.Source.UserID
	if userID == "" {
		log.Printf("Bind request without user id, cannot bind")
		h.reply(ctx, event, genericErrorMessage)
		return
	}

	email := strings.ToLower(text)
	log.Printf("Bind request: %s -> %s", utils.MaskID(userID), utils.MaskEmail(email))

	accounts, err := h.accounts.FindAccountsByEmail(ctx, email)
	if err != nil {
		log.Printf("Error looking up account for %s: %v", utils.MaskEmail(email), err)
		h.reply(ctx, event, genericErrorMessage)
		return
	}

	switch len(accounts) {
	case 0:
		h.reply(ctx, event, fmt.Sprintf(notFoundMessageFormat, text))
	case 1:
		account := accounts[0]
		if err := h.accounts.UpdateAccountBinding(ctx, account.ID, userID, h.now().UTC()); err != nil {
			log.Printf("Error binding LINE user to account %s: %v", utils.MaskID(account.ID), err)
			h.reply(ctx, event, genericErrorMessage)
			return
		}
		log.Printf("Bound LINE user %s to account %s", utils.MaskID(userID), utils.MaskID(account.ID))
		h.reply(ctx, event, bindSuccessMessage)
	default:
		log.Printf("Refusing to bind: %d accounts share %s", len(accounts), utils.MaskEmail(email))
		h.reply(ctx, event, duplicateMessage)
	}
}

func (h *LineWebhookHandler) reply(ctx context.Context, event line.Event, text string) {
	if event.ReplyToken == "" {
		log.Printf("Event without reply token, dropping reply")
		return
	}
	if err := h.messenger.Reply(ctx, event.ReplyToken, text); err != nil {
		log.Printf("Failed to send LINE reply: %v", err)
	}
}
