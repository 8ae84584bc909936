package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/DDME36/PurrDrop/internal/client"
	sig "github.com/DDME36/PurrDrop/internal/signal"
	"github.com/DDME36/PurrDrop/internal/util"
)

var flagTo string

var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Send a file to a discovered peer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		banner()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runSend(ctx, args[0]); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
	},
}

func init() {
	sendCmd.Flags().StringVar(&flagTo, "to", "", "Target peer name (skips the interactive picker)")
	addModeFlags(sendCmd)
}

func runSend(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	c, err := dialPeer(ctx, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	target, err := pickPeer(ctx, c)
	if err != nil {
		return err
	}

	fileID, err := c.SendFile(target.ID, name, mimeType, data)
	if err != nil {
		return err
	}
	util.LogInfo("offered %s (%s) to %s, waiting for them to accept", name, util.FormatBytes(int64(len(data))), target.Name)

	var bar *progressbar.ProgressBar
	for {
		select {
		case ev := <-c.Events():
			switch e := ev.(type) {
			case client.ProgressEvent:
				if e.FileID != fileID {
					continue
				}
				if bar == nil {
					bar = progressbar.DefaultBytes(e.Total, "sending")
				}
				bar.Set64(e.Transferred)

			case client.OfferRejectedEvent:
				return fmt.Errorf("%s declined the file", target.Name)

			case client.SentEvent:
				if e.FileID != fileID {
					continue
				}
				if bar != nil {
					bar.Finish()
					pterm.Println()
				}
				if e.Err != nil {
					return e.Err
				}
				util.LogInfo("sent %s to %s", e.Name, target.Name)
				return nil

			case client.PeerLeftEvent:
				if e.PeerID == target.ID {
					return fmt.Errorf("%s left before the transfer finished", target.Name)
				}

			case client.DisconnectedEvent:
				return fmt.Errorf("lost the signaling server: %w", e.Err)
			}

		case <-ctx.Done():
			c.CancelActive()
			return ctx.Err()
		}
	}
}

// pickPeer waits until at least one peer is visible, then resolves --to or
// falls back to an interactive picker.
func pickPeer(ctx context.Context, c *client.Client) (sig.PeerInfo, error) {
	spinner, _ := pterm.DefaultSpinner.Start("Looking for peers...")

	peers := c.Peers()
	for len(peers) == 0 {
		select {
		case ev := <-c.Events():
			switch ev.(type) {
			case client.PeersEvent, client.PeerJoinedEvent:
				peers = c.Peers()
			case client.DisconnectedEvent:
				spinner.Stop()
				return sig.PeerInfo{}, fmt.Errorf("lost the signaling server")
			}
		case <-ctx.Done():
			spinner.Stop()
			return sig.PeerInfo{}, ctx.Err()
		}
	}
	spinner.Stop()

	if flagTo != "" {
		for _, p := range peers {
			if strings.EqualFold(p.Name, flagTo) || strings.Contains(strings.ToLower(p.Name), strings.ToLower(flagTo)) {
				return p, nil
			}
		}
		return sig.PeerInfo{}, fmt.Errorf("no visible peer named %q", flagTo)
	}

	if len(peers) == 1 {
		return peers[0], nil
	}

	labels := make([]string, len(peers))
	byLabel := make(map[string]sig.PeerInfo, len(peers))
	for i, p := range peers {
		label := fmt.Sprintf("%s %s (%s)", p.Avatar.Emoji, p.Name, p.Device)
		labels[i] = label
		byLabel[label] = p
	}
	choice, err := pterm.DefaultInteractiveSelect.
		WithOptions(labels).
		WithDefaultText("Send to").
		Show()
	if err != nil {
		return sig.PeerInfo{}, err
	}
	return byLabel[choice], nil
}
