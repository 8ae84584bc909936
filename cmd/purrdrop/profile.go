package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/DDME36/PurrDrop/internal/identity"
	"github.com/DDME36/PurrDrop/internal/store"
	"github.com/DDME36/PurrDrop/internal/util"
)

var (
	flagName  string
	flagEmoji string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the persistent identity",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runProfile(); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
	},
}

func init() {
	profileCmd.Flags().StringVar(&flagName, "name", "", "Set the display name")
	profileCmd.Flags().StringVar(&flagEmoji, "emoji", "", "Set the avatar emoji")
}

func runProfile() error {
	path, err := store.DefaultPath()
	if err != nil {
		return err
	}
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	idStore, err := identity.NewStore(db)
	if err != nil {
		return err
	}
	profile, err := idStore.Load()
	if err != nil {
		return err
	}

	if flagName != "" {
		if err := idStore.Rename(&profile, flagName); err != nil {
			return err
		}
	}
	if flagEmoji != "" {
		if err := idStore.SetEmoji(&profile, flagEmoji); err != nil {
			return err
		}
	}

	util.LogInfo("you appear as %s %s on %s", profile.Emoji, profile.Name, identity.DeviceLabel())
	return nil
}
