package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"
)

// ErrDeliveryFailed means the blob could not be handed to the requester.
// Linking itself succeeded; the credentials stay recoverable from the
// attempt's working directory until it is cleaned up.
var ErrDeliveryFailed = errors.New("delivery: sending credentials failed")

const (
	retryCount   = 3
	retryBackoff = 2 * time.Second
)

// Deliverer sends an encoded text to a chat destination.
type Deliverer interface {
	Deliver(ctx context.Context, destination, text string) error
}

// WhatsApp delivers over the freshly linked account itself. An empty
// destination means the account's own chat.
type WhatsApp struct {
	Client *whatsmeow.Client
}

func (w *WhatsApp) Deliver(ctx context.Context, destination, text string) error {
	var jid types.JID
	switch {
	case destination != "":
		jid = types.NewJID(destination, types.DefaultUserServer)
	case w.Client.Store.ID != nil:
		jid = w.Client.Store.ID.ToNonAD()
	default:
		return errors.New("delivery: no destination and no linked account")
	}
	_, err := w.Client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: proto.String(text),
	})
	return err
}

// DeliverWithRetry retries the send a bounded number of times before
// giving up; linking is never redone on a delivery failure.
func DeliverWithRetry(ctx context.Context, d Deliverer, destination, text string) error {
	var lastErr error
	for try := 0; try < retryCount; try++ {
		if try > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrDeliveryFailed, ctx.Err())
			}
		}
		if err := d.Deliver(ctx, destination, text); err != nil {
			lastErr = err
			log.Printf("delivery: attempt %d/%d failed: %v", try+1, retryCount, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, lastErr)
}
