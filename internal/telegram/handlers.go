package telegram

import (
	"context"
	"errors"
	"io"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"

	"WhatsappLinker/internal/delivery"
	"WhatsappLinker/internal/localstorage"
	"WhatsappLinker/internal/pairing"
)

const helpText = `Link a WhatsApp account and receive its session blob.

/pair <phone> - request a pairing code for +<country><number>
/qr - link by scanning a QR code instead
/status - show the current attempt
/cancel - abort the current attempt`

func (b *Bot) handleCommandStart(update *tgbotapi.Update, userID int64) {
	b.LocalStorage.SetState(userID, localstorage.StateIdle)
	b.SendTo(userID, helpText, nil)
}

func (b *Bot) handlePair(update *tgbotapi.Update, userID int64) {
	phone := update.Message.CommandArguments()
	if phone == "" {
		b.LocalStorage.SetState(userID, localstorage.StateWaitingPhone)
		b.SendTo(userID, "Send the phone number to link, e.g. +15551234567", nil)
		return
	}
	b.startPairing(userID, phone)
}

func (b *Bot) startPairing(userID int64, phone string) {
	attempt, err := b.Orchestrator.Begin(ownerKey(userID), phone)
	switch {
	case errors.Is(err, pairing.ErrInvalidPhone):
		b.SendTo(userID, "That doesn't look like a phone number. Use +<country><number> with at least 10 digits.", nil)
		return
	case errors.Is(err, pairing.ErrAttemptInFlight):
		b.SendTo(userID, "You already have a linking attempt running. /cancel it first.", nil)
		return
	case err != nil:
		log.Printf("telegram: begin pairing for %d: %v", userID, err)
		b.SendTo(userID, "Could not start the linking attempt. Try again later.", nil)
		return
	}

	b.LocalStorage.SetState(userID, localstorage.StatePairing)
	b.LocalStorage.SetAttempt(userID, attempt.ID)

	go b.relayCode(userID, attempt)
	go b.watchAttempt(userID, attempt)
}

func (b *Bot) handleQR(update *tgbotapi.Update, userID int64) {
	attempt, err := b.Orchestrator.BeginQR(ownerKey(userID))
	switch {
	case errors.Is(err, pairing.ErrAttemptInFlight):
		b.SendTo(userID, "You already have a linking attempt running. /cancel it first.", nil)
		return
	case err != nil:
		log.Printf("telegram: begin QR pairing for %d: %v", userID, err)
		b.SendTo(userID, "Could not start the linking attempt. Try again later.", nil)
		return
	}

	b.LocalStorage.SetState(userID, localstorage.StatePairing)
	b.LocalStorage.SetAttempt(userID, attempt.ID)

	go b.relayQR(userID, attempt)
	go b.watchAttempt(userID, attempt)
}

func (b *Bot) handleStatus(update *tgbotapi.Update, userID int64) {
	attempt, ok := b.Orchestrator.Attempt(ownerKey(userID))
	if !ok {
		b.SendTo(userID, "No linking attempt yet. Use /pair or /qr.", nil)
		return
	}
	b.SendTo(userID, "Attempt "+attempt.ID+": "+attempt.State().String(), nil)
}

func (b *Bot) handleCancel(update *tgbotapi.Update, userID int64) {
	attempt, ok := b.Orchestrator.Attempt(ownerKey(userID))
	if !ok {
		b.SendTo(userID, "Nothing to cancel.", nil)
		return
	}
	attempt.Cancel()
	b.LocalStorage.SetState(userID, localstorage.StateIdle)
	b.SendTo(userID, "Attempt cancelled.", nil)
}

// relayCode forwards the pairing code once the linking flow issues it.
func (b *Bot) relayCode(userID int64, attempt *pairing.Attempt) {
	code, err := attempt.WaitCode(context.Background())
	if err != nil {
		return // watchAttempt reports the failure
	}
	if code != "" {
		b.SendTo(userID, "Pairing code: "+code+"\nEnter it on your phone under Linked Devices.", nil)
	}
}

// relayQR streams the QR payload to the chat as a photo, the same way
// the code flow forwards its pairing code.
func (b *Bot) relayQR(userID int64, attempt *pairing.Attempt) {
	payload, err := attempt.WaitCode(context.Background())
	if err != nil || payload == "" {
		return
	}

	qrc, err := qrcode.New(payload)
	if err != nil {
		log.Printf("telegram: build QR for %d: %v", userID, err)
		b.SendTo(userID, "Could not render the QR code.", nil)
		return
	}
	pipeReader, pipeWriter := io.Pipe()
	fileReader := tgbotapi.FileReader{Name: "qr.jpg", Reader: pipeReader}
	writer := standard.NewWithWriter(pipeWriter)
	go qrc.Save(writer)

	photo := tgbotapi.NewPhoto(userID, fileReader)
	photo.Caption = "Scan this QR code under Linked Devices"
	if _, err := b.TgAPI.Send(photo); err != nil {
		log.Printf("telegram: send QR photo to %d: %v", userID, err)
	}
}

// watchAttempt waits for the terminal state, then exports, packages and
// delivers the session blob, and finally releases the attempt.
func (b *Bot) watchAttempt(userID int64, attempt *pairing.Attempt) {
	defer func() {
		b.LocalStorage.SetState(userID, localstorage.StateIdle)
		attempt.Cancel()
	}()

	if err := attempt.WaitDone(context.Background()); err != nil {
		if !errors.Is(err, pairing.ErrCancelled) { // /cancel already answered
			b.SendTo(userID, failureMessage(err), nil)
		}
		return
	}

	ctx := context.Background()
	if err := b.Orchestrator.Export(ctx, attempt); err != nil {
		// Durability deferred; the blob below still carries everything.
		log.Printf("telegram: export attempt %s: %v", attempt.ID, err)
	}

	archive, err := delivery.ArchiveDir(attempt.WorkDir())
	if err != nil {
		log.Printf("telegram: archive attempt %s: %v", attempt.ID, err)
		b.SendTo(userID, "Linking succeeded but packaging the session failed. Start over with /pair.", nil)
		return
	}
	text := delivery.EncodeForTransport(archive)

	if err := delivery.DeliverWithRetry(ctx, b, ownerKey(userID), text); err != nil {
		log.Printf("telegram: deliver attempt %s: %v", attempt.ID, err)
		b.SendTo(userID, "Linking succeeded but the session could not be delivered. Start over with /pair.", nil)
		return
	}
	b.SendTo(userID, "Done. Keep that blob secret - it grants full access to the account.", nil)
}

// Deliver sends the encoded blob to a Telegram chat, satisfying
// delivery.Deliverer.
func (b *Bot) Deliver(ctx context.Context, destination, text string) error {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		return err
	}
	_, err = b.TgAPI.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func failureMessage(err error) string {
	if errors.Is(err, pairing.ErrLinkingTimeout) {
		return "The linking attempt timed out. Start over with /pair."
	}
	return "The connection closed before linking finished. Start over with /pair."
}

func ownerKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
