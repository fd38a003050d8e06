package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"streamchat/directory"
	"streamchat/model"
	"streamchat/network"
	"streamchat/session"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	// The terminal is owned by the TUI; logs go to a file.
	f, err := tea.LogToFile("streamchat.log", "client")
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()
	log.SetPrefix("[CLIENT] ")

	conn, err := network.New(cfg.ServerURL, cfg.ReconnectDelay)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	sess := session.New(conn, nil)
	dir := directory.NewClient(cfg.ServerURL)

	p := tea.NewProgram(initialModel(sess, dir), tea.WithAltScreen())

	// Transport and directory events funnel into the single tea event loop.
	sess.SetSink(&teaSink{p: p})
	conn.OnReady = func() {
		sess.Ready()
		p.Send(connStateMsg{connected: true})
	}
	conn.OnPayload = sess.HandleRaw
	conn.OnClosed = func() {
		sess.Closed()
		p.Send(connStateMsg{connected: false})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller := directory.NewPoller(dir, cfg.PollInterval)
	poller.OnRooms = func(rooms []model.Room) { p.Send(roomsMsg(rooms)) }
	poller.OnUsers = func(users []model.User) { p.Send(usersMsg(users)) }
	go poller.Run(ctx)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
	sess.Logout()
}
