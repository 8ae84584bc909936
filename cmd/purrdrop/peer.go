package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DDME36/PurrDrop/internal/client"
	"github.com/DDME36/PurrDrop/internal/history"
	"github.com/DDME36/PurrDrop/internal/identity"
	"github.com/DDME36/PurrDrop/internal/signal"
	"github.com/DDME36/PurrDrop/internal/store"
	"github.com/DDME36/PurrDrop/internal/transfer"
	"github.com/DDME36/PurrDrop/internal/util"
)

var (
	flagMode         string
	flagRoom         string
	flagRoomPassword string
)

func addModeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagMode, "mode", "public", "Discovery mode: public, network or private")
	cmd.Flags().StringVar(&flagRoom, "room", "", "Private room code (empty creates a room)")
	cmd.Flags().StringVar(&flagRoomPassword, "room-password", "", "Private room password")
}

// dialPeer loads the persistent identity, connects to the signaling server
// and applies the mode flags.
func dialPeer(ctx context.Context, sinks transfer.SinkFactory) (*client.Client, error) {
	wsURL, err := serverURL()
	if err != nil {
		return nil, err
	}

	path, err := store.DefaultPath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	idStore, err := identity.NewStore(db)
	if err != nil {
		return nil, err
	}
	profile, err := idStore.Load()
	if err != nil {
		return nil, err
	}
	hist, err := history.NewStore(db)
	if err != nil {
		return nil, err
	}

	c, err := client.Dial(ctx, client.Config{
		ServerURL: wsURL,
		Profile:   profile,
		Sinks:     sinks,
		History:   hist,
		Log:       util.NewLogger(flagDebug),
	})
	if err != nil {
		return nil, err
	}

	mode := signal.Mode(flagMode)
	if !mode.Valid() {
		c.Close()
		return nil, fmt.Errorf("invalid mode %q", flagMode)
	}
	if mode != signal.ModePublic {
		if err := c.SetMode(mode, flagRoom, flagRoomPassword); err != nil {
			c.Close()
			return nil, err
		}
	}

	util.LogInfo("connected as %s %s", c.Self().Avatar.Emoji, c.Self().Name)
	return c, nil
}
