package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"streamchat/directory"
	"streamchat/model"
	"streamchat/session"
)

// Messages injected into the tea loop from the core's callbacks.
type (
	connStateMsg struct{ connected bool }
	roomLineMsg  model.Message
	convoLineMsg model.Message
	noticeMsg    string
	roomsMsg     []model.Room
	usersMsg     []model.User
)

// teaSink adapts the session's display sink to tea messages, so every state
// change renders on the program's own event loop.
type teaSink struct {
	p *tea.Program
}

func (s *teaSink) RoomMessage(msg model.Message)         { s.p.Send(roomLineMsg(msg)) }
func (s *teaSink) ConversationMessage(msg model.Message) { s.p.Send(convoLineMsg(msg)) }
func (s *teaSink) Notify(text string)                    { s.p.Send(noticeMsg("🔔 " + text)) }

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")).Italic(true)
	ownStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	otherStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF"))
	peerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5FD7"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))
)

type modelState struct {
	sess *session.Client
	dir  *directory.Client

	viewport  viewport.Model
	textInput textinput.Model

	rooms []model.Room
	users []model.User

	roomLines  []string
	convoLines []string
	peer       *model.User // open conversation, mirrors the session's

	notice    string
	connected bool
	ready     bool
}

func initialModel(sess *session.Client, dir *directory.Client) modelState {
	ti := textinput.New()
	ti.Placeholder = "Enter a username to log in..."
	ti.Focus()
	ti.CharLimit = 256

	return modelState{
		sess:      sess,
		dir:       dir,
		textInput: ti,
	}
}

func (m modelState) Init() tea.Cmd {
	return textinput.Blink
}

func (m modelState) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.peer != nil {
				m.closeConversation()
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case connStateMsg:
		m.connected = msg.connected
		if msg.connected {
			m.appendRoomLine(systemStyle.Render("· connected"))
		} else {
			m.appendRoomLine(systemStyle.Render("· connection lost, retrying..."))
		}

	case roomLineMsg:
		m.appendRoomLine(m.formatLine(model.Message(msg)))

	case convoLineMsg:
		m.convoLines = append(m.convoLines, m.formatLine(model.Message(msg)))
		if m.peer != nil {
			m.refreshViewport()
		}

	case noticeMsg:
		m.notice = string(msg)

	case roomsMsg:
		m.rooms = msg

	case usersMsg:
		m.users = msg

	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.textInput.Width = msg.Width
		m.refreshViewport()
	}

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

// submit handles one line of input: a username when logged out, a /command,
// or message text for the room or the open conversation.
func (m modelState) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textInput.Value())
	m.textInput.SetValue("")
	if input == "" {
		return m, nil
	}

	if m.sess.State() == session.StateLoggedOut {
		self, err := m.sess.Login(input)
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.notice = ""
		m.textInput.Placeholder = "Type a message or /help..."
		m.appendRoomLine(systemStyle.Render(fmt.Sprintf("· logged in as %s", self.Username)))
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.command(input)
	}

	sess := m.sess
	if m.peer != nil {
		return m, func() tea.Msg {
			if err := sess.SendPrivate(input); err != nil {
				return noticeMsg(err.Error())
			}
			return nil
		}
	}
	if m.sess.CurrentRoom() == "" {
		m.notice = "join a room first: /rooms then /join <n>"
		return m, nil
	}
	return m, func() tea.Msg {
		if err := sess.SendMessage(input); err != nil {
			return noticeMsg(err.Error())
		}
		return nil
	}
}

func (m modelState) command(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd, args := parts[0], parts[1:]
	sess := m.sess

	switch cmd {
	case "/help":
		for _, line := range []string{
			"/rooms            list rooms",
			"/users            list users",
			"/join <n|id>      join a room",
			"/leave            leave the current room",
			"/create <name>    create a room",
			"/msg <n>          open a private conversation",
			"/close            close the conversation",
			"/logout           log out",
			"/quit             exit",
		} {
			m.appendRoomLine(systemStyle.Render(line))
		}

	case "/rooms":
		if len(m.rooms) == 0 {
			m.appendRoomLine(systemStyle.Render("no rooms yet"))
		}
		for i, r := range m.rooms {
			marker := " "
			if r.ID == m.sess.CurrentRoom() {
				marker = "*"
			}
			m.appendRoomLine(systemStyle.Render(fmt.Sprintf("%s %d. %s (%d users)", marker, i+1, r.Name, r.UserCount)))
		}

	case "/users":
		self := m.sess.Self()
		n := 0
		for _, u := range m.users {
			if u.ID == self.ID {
				continue
			}
			n++
			m.appendRoomLine(systemStyle.Render(fmt.Sprintf("  %d. %s", n, u.Username)))
		}
		if n == 0 {
			m.appendRoomLine(systemStyle.Render("nobody else is online"))
		}

	case "/join":
		if len(args) != 1 {
			m.notice = "usage: /join <n|id>"
			return m, nil
		}
		roomID := args[0]
		if n, err := strconv.Atoi(args[0]); err == nil {
			if n < 1 || n > len(m.rooms) {
				m.notice = "no such room; try /rooms"
				return m, nil
			}
			roomID = m.rooms[n-1].ID
		}
		m.roomLines = nil
		m.refreshViewport()
		return m, func() tea.Msg {
			if err := sess.JoinRoom(roomID); err != nil {
				return noticeMsg(err.Error())
			}
			return nil
		}

	case "/leave":
		m.roomLines = nil
		m.refreshViewport()
		return m, func() tea.Msg {
			if err := sess.LeaveRoom(); err != nil {
				return noticeMsg(err.Error())
			}
			return nil
		}

	case "/create":
		if len(args) == 0 {
			m.notice = "usage: /create <name>"
			return m, nil
		}
		name := strings.Join(args, " ")
		dir := m.dir
		return m, func() tea.Msg {
			if err := dir.CreateRoom(context.Background(), name); err != nil {
				return noticeMsg(err.Error())
			}
			return noticeMsg(fmt.Sprintf("room %q created", name))
		}

	case "/msg":
		if len(args) != 1 {
			m.notice = "usage: /msg <n>"
			return m, nil
		}
		peer, ok := m.pickUser(args[0])
		if !ok {
			m.notice = "no such user; try /users"
			return m, nil
		}
		m.peer = &peer
		m.convoLines = nil
		m.textInput.Placeholder = fmt.Sprintf("Message %s...", peer.Username)
		m.refreshViewport()
		// Replay happens off the Update loop; cached history arrives as
		// convoLineMsg events.
		return m, func() tea.Msg {
			if err := sess.OpenConversation(peer); err != nil {
				return noticeMsg(err.Error())
			}
			return nil
		}

	case "/close":
		m.closeConversation()

	case "/logout":
		m.sess.Logout()
		m.peer = nil
		m.roomLines = nil
		m.convoLines = nil
		m.notice = ""
		m.textInput.Placeholder = "Enter a username to log in..."
		m.refreshViewport()

	case "/quit":
		return m, tea.Quit

	default:
		m.notice = fmt.Sprintf("unknown command %s; try /help", cmd)
	}
	return m, nil
}

// pickUser resolves a /users index (1-based, self excluded) to a user.
func (m *modelState) pickUser(arg string) (model.User, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return model.User{}, false
	}
	self := m.sess.Self()
	i := 0
	for _, u := range m.users {
		if u.ID == self.ID {
			continue
		}
		i++
		if i == n {
			return u, true
		}
	}
	return model.User{}, false
}

func (m *modelState) closeConversation() {
	m.sess.CloseConversation()
	m.peer = nil
	m.convoLines = nil
	m.textInput.Placeholder = "Type a message or /help..."
	m.refreshViewport()
}

func (m *modelState) appendRoomLine(line string) {
	m.roomLines = append(m.roomLines, line)
	if m.peer == nil {
		m.refreshViewport()
	}
}

func (m *modelState) refreshViewport() {
	if !m.ready {
		return
	}
	lines := m.roomLines
	if m.peer != nil {
		lines = m.convoLines
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *modelState) formatLine(msg model.Message) string {
	timeStr := msg.Timestamp.Format("15:04")
	switch msg.Type {
	case model.TypeSystem, model.TypeJoin, model.TypeLeave:
		return systemStyle.Render(fmt.Sprintf("%s · %s", timeStr, msg.Content))
	}

	style := otherStyle
	if msg.SenderID == m.sess.Self().ID {
		style = ownStyle
	} else if msg.Type == model.TypePrivate {
		style = peerStyle
	}
	sender := msg.Sender
	if sender == "" {
		sender = "unknown"
	}
	vLine := borderStyle.Render("│")
	return fmt.Sprintf("%s %s %s %s %s", timeStr, vLine, style.Render(sender), vLine, msg.Content)
}

func (m modelState) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	status := "offline"
	if m.connected {
		status = "online"
	}
	title := "streamchat"
	if self := m.sess.Self(); self.Username != "" {
		title = fmt.Sprintf("streamchat · %s · %s", self.Username, status)
		if room := m.sess.CurrentRoom(); room != "" && m.peer == nil {
			title += fmt.Sprintf(" · room %s", m.roomName(room))
		}
		if m.peer != nil {
			title += fmt.Sprintf(" · chatting with %s", m.peer.Username)
		}
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		headerStyle.Render(title),
		m.viewport.View(),
		strings.Repeat("─", max(m.viewport.Width, 1)),
		noticeStyle.Render(m.notice),
		m.textInput.View(),
	)
}

func (m *modelState) roomName(id string) string {
	for _, r := range m.rooms {
		if r.ID == id {
			return r.Name
		}
	}
	return id
}
