package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/agendabot/internal/gateway"
	"github.com/user/agendabot/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the gateway. Each chat id must be linked to a
// bearer credential in the config; messages from unlinked chats are refused
// before they reach the gateway.
type Adapter struct {
	bot      *tgbotapi.BotAPI
	gateway  *gateway.Gateway
	sessions types.SessionStore
	chats    map[string]string
}

// New creates a Telegram adapter. chats maps chat ids to credentials.
func New(token string, gw *gateway.Gateway, sessions types.SessionStore, chats map[string]string) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:      bot,
		gateway:  gw,
		sessions: sessions,
		chats:    chats,
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	credential, ok := a.credentialFor(chatID)
	if !ok {
		a.sendResponse(chatID, "This chat is not linked to a calendar account. Ask the operator to add it with `agendabot config set telegram.chats."+strconv.FormatInt(chatID, 10)+" <token>`.")
		return
	}

	inbound := &types.InboundMessage{
		Source:     "telegram",
		SessionKey: buildSessionKey(msg.From.ID, chatID),
		Credential: credential,
		Text:       msg.Text,
	}

	err := a.gateway.HandleInbound(ctx, inbound,
		gateway.WithOnComplete(func(response string) {
			a.sendResponse(chatID, response)
		}),
		gateway.WithOnError(func(err error) {
			slog.Error("telegram turn failed", "chat_id", chatID, "error", err)
			a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
		}))
	if err != nil {
		slog.Error("handle inbound failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm Agendabot, your scheduling assistant. Ask me about your calendar or tell me what to add.")

	case "status":
		key := buildSessionKey(msg.From.ID, chatID)
		sid, err := a.sessions.ResolveOrCreate(ctx, key)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		info, err := a.sessions.Get(ctx, sid)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Session: %s\nStatus: %s\nTurns: %d", sid, info.Status, info.TurnCount))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /status")
	}
}

// SendTo delivers a message to the chat embedded in a session key of the
// form "telegram:<user>:<chat>". Used for reminder delivery.
func (a *Adapter) SendTo(sessionKey, message string) error {
	parts := strings.Split(sessionKey, ":")
	if len(parts) != 3 || parts[0] != "telegram" {
		return fmt.Errorf("not a telegram session key: %s", sessionKey)
	}
	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id from %s: %w", sessionKey, err)
	}
	a.sendResponse(chatID, message)
	return nil
}

func (a *Adapter) credentialFor(chatID int64) (string, bool) {
	credential, ok := a.chats[strconv.FormatInt(chatID, 10)]
	return credential, ok && credential != ""
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				slog.Error("send message failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}
