package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mdp/qrterminal"
	"github.com/spf13/cobra"

	"WhatsappLinker/internal/delivery"
	"WhatsappLinker/internal/pairing"
)

// pairCmd is the one-shot session generator: link once, print the blob,
// exit. The only mode that is allowed to terminate after a single run.
func pairCmd() *cobra.Command {
	var (
		phone    string
		useQR    bool
		sendSelf bool
	)

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Run one linking attempt and print the session blob",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				attempt *pairing.Attempt
				err     error
			)
			if useQR {
				attempt, err = orchestrator.BeginQR("cli")
			} else {
				if phone == "" {
					return errors.New("--phone is required unless --qr is set")
				}
				attempt, err = orchestrator.Begin("cli", phone)
			}
			if err != nil {
				return err
			}
			defer attempt.Cancel()

			code, err := attempt.WaitCode(cmd.Context())
			if err != nil {
				return err
			}
			if useQR {
				fmt.Fprintln(os.Stderr, "Scan this QR code under Linked Devices:")
				qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stderr)
			} else if code != "" {
				fmt.Fprintf(os.Stderr, "Pairing code: %s\n", code)
			}

			if err := attempt.WaitDone(cmd.Context()); err != nil {
				return err
			}

			ctx := context.Background()
			if err := orchestrator.Export(ctx, attempt); err != nil {
				fmt.Fprintf(os.Stderr, "warning: session not durably saved: %v\n", err)
			}

			archive, err := delivery.ArchiveDir(attempt.WorkDir())
			if err != nil {
				return err
			}
			text := delivery.EncodeForTransport(archive)

			if sendSelf {
				wa := &delivery.WhatsApp{Client: attempt.Client()}
				if err := delivery.DeliverWithRetry(ctx, wa, "", text); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "Session blob sent to the account's own chat.")
				return nil
			}

			fmt.Println(text)
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "phone number to pair, e.g. +15551234567")
	cmd.Flags().BoolVar(&useQR, "qr", false, "link by QR code instead of a pairing code")
	cmd.Flags().BoolVar(&sendSelf, "send-self", false, "deliver the blob to the linked account's own chat instead of stdout")
	return cmd
}
