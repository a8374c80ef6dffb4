package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"hs-classifier/api/internal/form"
	"hs-classifier/api/internal/hscode"
)

// Sender is the part of *tgbotapi.BotAPI the router uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// API is the classification backend as seen by the bot.
type API interface {
	form.Classifier
	Health(ctx context.Context) error
}

type Router struct {
	Bot Sender
	API API
	Log *zap.Logger

	// Timeout bounds one classification round trip.
	Timeout time.Duration

	forms *chatForms
}

func NewRouter(bot Sender, api API, log *zap.Logger, timeout time.Duration) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		Bot:     bot,
		API:     api,
		Log:     log,
		Timeout: timeout,
		forms:   &chatForms{api: api},
	}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(ctx, upd.Message)
		return
	}
	if strings.TrimSpace(upd.Message.Text) == "" {
		r.send(upd.Message.Chat.ID, "Please send the product description as text.")
		return
	}
	r.classify(ctx, upd.Message.Chat.ID, upd.Message.Text)
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.forms.resetIdle(cid)
		r.send(cid, usageText())
	case "help":
		r.send(cid, usageText())
	case "health":
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.API.Health(hctx); err != nil {
			r.send(cid, fmt.Sprintf("❌ API at %s is not reachable: %v", r.API.BaseURL(), err))
			return
		}
		r.send(cid, "✅ OK")
	case "reference":
		if code := strings.TrimSpace(msg.CommandArguments()); code != "" {
			desc, ok := hscode.Lookup(code)
			if !ok {
				r.send(cid, code+" is not in the reference list. Send /reference to see all codes.")
				return
			}
			r.sendMarkdown(cid, fmt.Sprintf("`%s`  %s", code, esc(desc)), nil)
			return
		}
		r.sendMarkdown(cid, referenceText(), nil)
	case "classify":
		if desc := strings.TrimSpace(msg.CommandArguments()); desc != "" {
			r.classify(ctx, cid, desc)
			return
		}
		r.send(cid, form.MsgEmptyDescription)
	default:
		r.send(cid, "Unknown command. "+usageText())
	}
}

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	switch cb.Data {
	case cbAgain:
		r.classify(ctx, cid, r.forms.get(cid).State().Description)
	case cbReference:
		r.sendMarkdown(cid, referenceText(), nil)
	}
}

func (r *Router) classify(ctx context.Context, chatID int64, description string) {
	f := r.forms.get(chatID)

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	if strings.TrimSpace(description) != "" && !f.Loading() {
		_, _ = r.Bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	}

	st, err := f.Submit(ctx, description)
	if errors.Is(err, form.ErrBusy) {
		r.send(chatID, "⏳ A classification is already in progress.")
		return
	}
	if st.Error != "" {
		r.Log.Info("classification failed", zap.Int64("chat_id", chatID), zap.String("error", st.Error))
	}

	var kb *tgbotapi.InlineKeyboardMarkup
	if strings.TrimSpace(st.Description) != "" {
		k := makeResultKeyboard()
		kb = &k
	}
	r.sendMarkdown(chatID, RenderState(st), kb)
}

func referenceText() string {
	var b strings.Builder
	b.WriteString("📚 *HS code reference*\n\n")
	for _, e := range hscode.Reference {
		fmt.Fprintf(&b, "`%s`  %s\n", e.Code, esc(e.Description))
	}
	return strings.TrimSpace(b.String())
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.Log.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendMarkdown(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
