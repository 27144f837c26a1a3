package telegram

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"WhatsappLinker/internal/localstorage"
	"WhatsappLinker/internal/pairing"
	"WhatsappLinker/pkg/config"
)

// Bot is the Telegram front for the pairing orchestrator: it accepts
// pairing commands, relays codes and QR images, and delivers the final
// session blob back to the requesting chat.
type Bot struct {
	Config       *config.Config
	TgAPI        *tgbotapi.BotAPI
	LocalStorage *localstorage.Storage
	Orchestrator *pairing.Orchestrator
}

func New(c *config.Config, o *pairing.Orchestrator) *Bot {
	return &Bot{Config: c, LocalStorage: localstorage.New(), Orchestrator: o}
}

func (b *Bot) handleCommand(update *tgbotapi.Update, userID int64) {
	switch update.Message.Command() {
	case "start", "help":
		b.handleCommandStart(update, userID)
	case "pair":
		b.handlePair(update, userID)
	case "qr":
		b.handleQR(update, userID)
	case "status":
		b.handleStatus(update, userID)
	case "cancel":
		b.handleCancel(update, userID)
	default:
		b.SendTo(userID, "Unknown command. Try /help.", nil)
	}
}

func (b *Bot) handleMessage(update *tgbotapi.Update, userID int64, userInfo *localstorage.UserInfo) {
	if userInfo == nil {
		return
	}
	if userInfo.State == localstorage.StateWaitingPhone {
		b.startPairing(userID, update.Message.Text)
	}
}

func (b *Bot) Start() error {
	bot, err := tgbotapi.NewBotAPI(b.Config.TgApiToken)
	if err != nil {
		return err
	}

	b.TgAPI = bot

	log.Printf("Authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)
		userID := update.Message.From.ID
		userInfo, ok := b.LocalStorage.Get(userID)
		if !ok {
			b.LocalStorage.SetState(userID, localstorage.StateIdle)
		}
		if update.Message.IsCommand() {
			go b.handleCommand(&update, userID)
		} else {
			go b.handleMessage(&update, userID, userInfo)
		}
	}
	return nil
}

func (b *Bot) SendTo(userID int64, text string, replyMarkup interface{}) {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = replyMarkup
	if _, err := b.TgAPI.Send(msg); err != nil {
		log.Printf("telegram: send to %d failed: %v", userID, err)
	}
}
