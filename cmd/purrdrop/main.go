// Purrdrop — CLI entry point.
//
// One binary carries both sides of the system: `purrdrop serve` runs the
// signaling server, while `purrdrop send` and `purrdrop receive` are peers
// that discover each other through it and move files directly over a
// WebRTC data channel.
package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/DDME36/PurrDrop/internal/util"
)

var version = "dev"

var (
	flagDebug  bool
	flagServer string
)

var rootCmd = &cobra.Command{
	Use:     "purrdrop",
	Short:   "Peer-to-peer file drop over WebRTC",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagDebug {
			util.EnableDebug()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "127.0.0.1:3939", "Signaling server host or URL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(profileCmd)
}

// serverURL normalizes the --server value into a signaling WebSocket URL.
func serverURL() (string, error) {
	raw := strings.TrimSpace(flagServer)
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server address: %s", flagServer)
	}
	scheme := "ws"
	if u.Scheme == "wss" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}

func banner() {
	pterm.Info.Println(fmt.Sprintf("PurrDrop — v%s", version))
	pterm.Println()
}
