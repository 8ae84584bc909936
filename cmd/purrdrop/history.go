package main

import (
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/DDME36/PurrDrop/internal/history"
	"github.com/DDME36/PurrDrop/internal/store"
	"github.com/DDME36/PurrDrop/internal/util"
)

var flagLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transfers",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runHistory(); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "Number of records to show")
}

func runHistory() error {
	path, err := store.DefaultPath()
	if err != nil {
		return err
	}
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	hist, err := history.NewStore(db)
	if err != nil {
		return err
	}

	recs, err := hist.Recent(flagLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		util.LogInfo("no transfers recorded yet")
		return nil
	}

	rows := pterm.TableData{{"When", "Direction", "File", "Size", "Peer", "Status", "Saved to"}}
	for _, r := range recs {
		status := pterm.Green("ok")
		if !r.Success {
			status = pterm.Red("failed")
		}
		rows = append(rows, []string{
			time.Unix(r.CreatedAt, 0).Format("02 Jan 15:04"),
			r.Direction,
			r.FileName,
			util.FormatBytes(r.Size),
			r.PeerName,
			status,
			r.Path,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
