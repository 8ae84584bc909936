package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/DDME36/PurrDrop/internal/relay"
	"github.com/DDME36/PurrDrop/internal/util"
)

var flagListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Run: func(cmd *cobra.Command, args []string) {
		banner()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		srv := relay.New(util.NewLogger(flagDebug))
		addr, err := srv.Start(flagListenAddr)
		if err != nil {
			util.LogError("failed to start signaling server: %v", err)
			os.Exit(1)
		}
		defer srv.Close()

		lines := fmt.Sprintf("Local:   ws://%s/ws", addr)
		if ip := util.LocalIP(); ip != "" {
			if _, port, splitErr := net.SplitHostPort(addr); splitErr == nil {
				lines += fmt.Sprintf("\nNetwork: ws://%s/ws", net.JoinHostPort(ip, port))
			}
		}
		pterm.DefaultBox.WithTitle("Signaling server up").Println(lines)
		pterm.Println()

		<-ctx.Done()
		util.LogInfo("shutting down")
	},
}

func init() {
	def := ":3939"
	if v := os.Getenv("PURRDROP_ADDR"); v != "" {
		def = v
	}
	serveCmd.Flags().StringVar(&flagListenAddr, "addr", def, "Listen address")
}
