package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/lcx/pokernet/history"
)

func historyCmd() *cobra.Command {
	var (
		path   string
		limit  int
		player string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded games from a history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := history.DefaultCfg()
			cfg.Path = path
			r, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := context.Background()

			if player != "" {
				sessions, err := r.Sessions(ctx, player)
				if err != nil {
					return err
				}
				data := pterm.TableData{{"joined", "left", "reason", "peer"}}
				for _, s := range sessions {
					left := "-"
					if s.LeftAt != nil {
						left = s.LeftAt.Format("2006-01-02 15:04:05")
					}
					data = append(data, []string{s.JoinedAt.Format("2006-01-02 15:04:05"), left, s.LeaveReason, s.Peer})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			}

			games, err := r.RecentGames(ctx, limit)
			if err != nil {
				return err
			}
			data := pterm.TableData{{"game", "started", "hands", "players"}}
			for _, g := range games {
				data = append(data, []string{
					strconv.FormatInt(g.ID, 10),
					g.StartedAt.Format("2006-01-02 15:04:05"),
					strconv.Itoa(g.Hands),
					strings.Join(g.Players, ", "),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	cmd.Flags().StringVar(&path, "db", history.DefaultCfg().Path, "history database file")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of games to list")
	cmd.Flags().StringVar(&player, "player", "", "list the sessions of one player instead")
	return cmd
}
