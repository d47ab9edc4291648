package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/lcx/pokernet/server"
)

// console prints table events for the operator.
type console struct{}

func newConsole() server.Callback {
	return console{}
}

func (console) PlayerJoined(p server.PlayerData) {
	pterm.Success.Printfln("%s joined as player %d from %s", p.Name, p.ID, p.Peer)
}

func (console) PlayerLeft(p server.PlayerData) {
	pterm.Warning.Printfln("%s (player %d) left", p.Name, p.ID)
}

func (console) GameStarted(players []server.PlayerData) {
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	pterm.Info.Printfln("game started: %s", strings.Join(names, ", "))
}

func printBanner(addr netip.AddrPort, cfg *server.Cfg) {
	pterm.DefaultHeader.Println("pokernet")
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"listen", "players", "min players", "auto start"},
		{addr.String(), strconv.Itoa(int(cfg.MaxNumberOfPlayers)), strconv.Itoa(cfg.MinPlayers), strconv.FormatBool(cfg.AutoStart)},
	}).Render()
	pterm.Info.Println("commands: start [dealer], hand <n>, turn <player> <round>, players")
}

// parseCommand turns one console line into a notification. ok is false for
// lines that are not notifications.
func parseCommand(line string) (n server.Notification, ok bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return n, false, nil
	}
	args := make([]uint32, 0, 2)
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return n, false, fmt.Errorf("bad number %q", f)
		}
		args = append(args, uint32(v))
	}
	arg := func(i int) uint32 {
		if i < len(args) {
			return args[i]
		}
		return 0
	}

	switch fields[0] {
	case "start":
		return server.Notification{Kind: server.NotifyGameStart, Param1: arg(0)}, true, nil
	case "hand":
		if len(args) != 1 {
			return n, false, fmt.Errorf("usage: hand <n>")
		}
		return server.Notification{Kind: server.NotifyHandStart, Param1: args[0]}, true, nil
	case "turn":
		if len(args) != 2 {
			return n, false, fmt.Errorf("usage: turn <player> <round>")
		}
		return server.Notification{Kind: server.NotifyWaitForClientAction, Param1: args[0], Param2: args[1]}, true, nil
	}
	return n, false, nil
}

func readCommands(ctx context.Context, in io.Reader, srv *server.Server) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "players" {
			printPlayers(srv.PlayerDataList())
			continue
		}
		n, ok, err := parseCommand(line)
		switch {
		case err != nil:
			pterm.Error.Println(err)
		case ok:
			srv.AddNotification(n.Kind, n.Param1, n.Param2)
		case line != "":
			pterm.Error.Printfln("unknown command %q", line)
		}
	}
}

func printPlayers(players []server.PlayerData) {
	data := pterm.TableData{{"id", "name", "peer"}}
	for _, p := range players {
		data = append(data, []string{strconv.Itoa(int(p.ID)), p.Name, p.Peer.String()})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
