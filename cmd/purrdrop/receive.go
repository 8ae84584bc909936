package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/DDME36/PurrDrop/internal/client"
	"github.com/DDME36/PurrDrop/internal/transfer"
	"github.com/DDME36/PurrDrop/internal/util"
)

var (
	flagDir string
	flagYes bool
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Wait for incoming files",
	Run: func(cmd *cobra.Command, args []string) {
		banner()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runReceive(ctx); err != nil && err != context.Canceled {
			util.LogError("%v", err)
			os.Exit(1)
		}
	},
}

func init() {
	receiveCmd.Flags().StringVar(&flagDir, "dir", ".", "Directory to save received files into")
	receiveCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Accept every offer without asking")
	addModeFlags(receiveCmd)
}

func runReceive(ctx context.Context) error {
	sinks := transfer.DirFactory{Dir: flagDir}

	c, err := dialPeer(ctx, sinks)
	if err != nil {
		return err
	}
	defer c.Close()

	util.LogInfo("waiting for files, press Ctrl+C to stop")

	var bar *progressbar.ProgressBar
	for {
		select {
		case ev := <-c.Events():
			switch e := ev.(type) {
			case client.OfferEvent:
				if err := decideOffer(c, e); err != nil {
					return err
				}

			case client.ProgressEvent:
				if bar == nil {
					bar = progressbar.DefaultBytes(e.Total, "receiving "+e.Name)
				}
				bar.Set64(e.Transferred)

			case client.ReceivedEvent:
				if bar != nil {
					bar.Finish()
					pterm.Println()
					bar = nil
				}
				path := e.Result.Path
				if path == "" {
					path, err = saveToDir(sinks, e.Result.Name, e.Result.Data)
					if err != nil {
						util.LogError("could not save %s: %v", e.Result.Name, err)
						continue
					}
				}
				util.LogInfo("received %s (%s) -> %s", e.Result.Name, util.FormatBytes(e.Result.Size), path)

			case client.ReceiveErrorEvent:
				bar = nil
				util.LogWarning("transfer from %s failed: %v", e.PeerID, e.Err)

			case client.DisconnectedEvent:
				return fmt.Errorf("lost the signaling server: %w", e.Err)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func decideOffer(c *client.Client, e client.OfferEvent) error {
	accept := flagYes
	if !accept {
		prompt := fmt.Sprintf("Accept %s (%s) from %s %s?",
			e.File.Name, util.FormatBytes(e.File.Size), e.From.Avatar.Emoji, e.From.Name)
		accept, _ = pterm.DefaultInteractiveConfirm.WithDefaultValue(true).Show(prompt)
	}
	if accept {
		return c.AcceptOffer(e.FileID)
	}
	return c.RejectOffer(e.FileID)
}

// saveToDir writes a memory-buffered payload into the download directory,
// reusing the sink's collision handling.
func saveToDir(factory transfer.DirFactory, name string, data []byte) (string, error) {
	sink, err := factory.NewSink(name, "", int64(len(data)))
	if err != nil {
		return "", err
	}
	if err := sink.Write(data); err != nil {
		sink.Abort()
		return "", err
	}
	payload, err := sink.Finalize()
	if err != nil {
		return "", err
	}
	return payload.Path, nil
}
