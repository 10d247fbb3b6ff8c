package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatify/internal/client"
	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/view"
)

const listPaneWidth = 32

type focusArea int

const (
	focusList focusArea = iota
	focusInput
	focusMessages
)

type listMode int

const (
	listBrowse listMode = iota
	listSearch
	listNewChat
	listConfirmDelete
)

type (
	streamReadyMsg  struct{ stream *client.Stream }
	streamEventMsg  struct{ ev client.Event }
	streamClosedMsg struct{}
	chatStartedMsg  struct{ chat *model.Chat }
	signedOutMsg    struct{}
	// opFailedMsg - ошибка операции; показывается в строке статуса.
	opFailedMsg struct{ err error }
)

// chatModel - экран чатов: список "мои чаты" и открытый чат.
type chatModel struct {
	sess   *client.Session
	stream *client.Stream
	me     model.Principal
	now    func() time.Time
	loc    *time.Location

	chats  []model.Chat
	cursor int
	mode   listMode
	search textinput.Model
	target textinput.Model

	openChat  string
	messages  []model.Message
	msgCursor int
	input     textinput.Model
	editing   string
	viewport  viewport.Model

	focus     focusArea
	status    string
	statusErr bool
	width     int
	height    int
}

func newChatModel(sess *client.Session, width, height int) *chatModel {
	search := textinput.New()
	search.Placeholder = "search"
	search.Prompt = "/ "
	target := textinput.New()
	target.Placeholder = "email of the person"
	target.Prompt = "new chat: "
	input := textinput.New()
	input.Placeholder = "type a message"
	input.CharLimit = 4000

	m := &chatModel{
		sess:      sess,
		me:        sess.Me(),
		now:       time.Now,
		loc:       time.Local,
		search:    search,
		target:    target,
		input:     input,
		msgCursor: -1,
		viewport:  viewport.New(0, 0),
	}
	m.resize(width, height)
	return m
}

func (m *chatModel) Init() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		st, err := sess.Subscribe(ctx)
		if err != nil {
			return opFailedMsg{err}
		}
		return streamReadyMsg{st}
	}
}

func waitEvent(st *client.Stream) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-st.Events()
		if !ok {
			return streamClosedMsg{}
		}
		return streamEventMsg{ev}
	}
}

// visible - список после фильтра поиска.
func (m *chatModel) visible() []model.Chat {
	return view.FilterChats(m.chats, m.me.Email, m.search.Value())
}

func (m *chatModel) selected() *model.Chat {
	list := m.visible()
	if m.cursor < 0 || m.cursor >= len(list) {
		return nil
	}
	return &list[m.cursor]
}

func (m *chatModel) chatByID(id string) *model.Chat {
	for i := range m.chats {
		if m.chats[i].ID == id {
			return &m.chats[i]
		}
	}
	return nil
}

func (m *chatModel) layout() view.Layout { return view.LayoutFor(m.width, m.openChat != "") }

func (m *chatModel) resize(width, height int) {
	m.width, m.height = width, height
	w := width - 2
	if l := m.layout(); l.ShowList && l.ShowConversation {
		w = width - listPaneWidth - 4
	}
	// рамка, заголовок, строка ввода, статус
	m.viewport.Width = max(w, 10)
	m.viewport.Height = max(height-7, 3)
	m.input.Width = max(w-4, 10)
	m.refreshViewport()
}

func (m *chatModel) setStatus(text string, isErr bool) {
	m.status, m.statusErr = text, isErr
}

func (m *chatModel) fail(err error) {
	logger.Errorf("tui: %v", err)
	m.setStatus(err.Error(), true)
}

func (m *chatModel) Update(msg tea.Msg) (*chatModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case streamReadyMsg:
		m.stream = msg.stream
		return m, waitEvent(msg.stream)
	case streamEventMsg:
		m.applyEvent(msg.ev)
		if m.stream == nil {
			return m, nil
		}
		return m, waitEvent(m.stream)
	case streamClosedMsg:
		m.stream = nil
		m.setStatus("connection closed", true)
		return m, nil
	case chatStartedMsg:
		m.mode = listBrowse
		m.target.Reset()
		if m.chatByID(msg.chat.ID) == nil {
			m.chats = view.SortChats(append(m.chats, *msg.chat))
		}
		return m, m.openConversation(msg.chat.ID)
	case opFailedMsg:
		m.fail(msg.err)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// applyEvent заменяет список целиком; снапшот сообщений чужого чата отбрасывается.
func (m *chatModel) applyEvent(ev client.Event) {
	switch {
	case ev.Chats != nil:
		m.chats = view.SortChats(ev.Chats)
		if n := len(m.visible()); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		if m.openChat != "" && m.chatByID(m.openChat) == nil {
			m.closeConversation()
			m.setStatus("chat was deleted", false)
		}
	case ev.Messages != nil:
		if ev.Messages.ChatID != m.openChat {
			return
		}
		m.messages = view.SortMessages(ev.Messages.Messages)
		if m.msgCursor >= len(m.messages) {
			m.msgCursor = len(m.messages) - 1
		}
		m.refreshViewport()
	case ev.Error != "":
		m.setStatus(ev.Error, true)
	}
}

// openConversation снимает слушателя прежнего чата и подписывается на новый.
func (m *chatModel) openConversation(chatID string) tea.Cmd {
	m.openChat = chatID
	m.messages = nil
	m.msgCursor = -1
	m.editing = ""
	m.input.Reset()
	m.focus = focusInput
	m.input.Focus()
	m.resize(m.width, m.height)
	st := m.stream
	if st == nil {
		return nil
	}
	return func() tea.Msg {
		if err := st.OpenChat(chatID); err != nil {
			return opFailedMsg{err}
		}
		return nil
	}
}

func (m *chatModel) closeConversation() tea.Cmd {
	m.openChat = ""
	m.messages = nil
	m.msgCursor = -1
	m.editing = ""
	m.input.Reset()
	m.input.Blur()
	m.focus = focusList
	m.resize(m.width, m.height)
	st := m.stream
	if st == nil {
		return nil
	}
	return func() tea.Msg {
		if err := st.CloseChat(); err != nil {
			return opFailedMsg{err}
		}
		return nil
	}
}

func (m *chatModel) handleKey(msg tea.KeyMsg) (*chatModel, tea.Cmd) {
	if msg.String() == "ctrl+o" {
		return m, m.signOut()
	}
	switch m.focus {
	case focusInput:
		return m.handleInputKey(msg)
	case focusMessages:
		return m.handleMessagesKey(msg)
	}
	return m.handleListKey(msg)
}

func (m *chatModel) handleListKey(msg tea.KeyMsg) (*chatModel, tea.Cmd) {
	key := msg.String()
	switch m.mode {
	case listSearch:
		switch key {
		case "esc":
			m.search.Reset()
			m.search.Blur()
			m.mode = listBrowse
			return m, nil
		case "enter":
			m.search.Blur()
			m.mode = listBrowse
			return m, nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.cursor = 0
		return m, cmd
	case listNewChat:
		switch key {
		case "esc":
			m.target.Reset()
			m.target.Blur()
			m.mode = listBrowse
			return m, nil
		case "enter":
			return m, m.startChat(m.target.Value())
		}
		var cmd tea.Cmd
		m.target, cmd = m.target.Update(msg)
		return m, cmd
	case listConfirmDelete:
		m.mode = listBrowse
		if key == "y" {
			if c := m.selected(); c != nil {
				return m, m.deleteChat(c.ID)
			}
		}
		m.setStatus("", false)
		return m, nil
	}

	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case "enter":
		if c := m.selected(); c != nil {
			return m, m.openConversation(c.ID)
		}
	case "/":
		m.mode = listSearch
		return m, m.search.Focus()
	case "n":
		m.mode = listNewChat
		return m, m.target.Focus()
	case "d":
		if c := m.selected(); c != nil {
			m.mode = listConfirmDelete
			m.setStatus(fmt.Sprintf("delete chat with %s and all its messages? y/n", view.DisplayName(*c, m.me.Email)), false)
		}
	case "tab":
		if m.openChat != "" {
			m.focus = focusInput
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m *chatModel) handleInputKey(msg tea.KeyMsg) (*chatModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.editing != "" {
			m.editing = ""
			m.input.Reset()
			return m, nil
		}
		if m.layout().Narrow {
			return m, m.closeConversation()
		}
		m.focus = focusList
		m.input.Blur()
		return m, nil
	case "tab":
		m.focus = focusMessages
		m.input.Blur()
		if m.msgCursor < 0 {
			m.msgCursor = len(m.messages) - 1
		}
		m.refreshViewport()
		return m, nil
	case "enter":
		return m, m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) handleMessagesKey(msg tea.KeyMsg) (*chatModel, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.msgCursor > 0 {
			m.msgCursor--
		}
	case "down", "j":
		if m.msgCursor < len(m.messages)-1 {
			m.msgCursor++
		}
	case "e":
		if sel := m.ownSelected(); sel != nil {
			m.editing = sel.ID
			m.input.SetValue(sel.Text)
			m.input.CursorEnd()
			m.focus = focusInput
			return m, m.input.Focus()
		}
	case "x":
		if sel := m.ownSelected(); sel != nil {
			return m, m.deleteMessage(sel.ID)
		}
	case "tab":
		if m.layout().Narrow {
			m.focus = focusInput
			return m, m.input.Focus()
		}
		m.focus = focusList
	case "esc":
		if m.layout().Narrow {
			return m, m.closeConversation()
		}
		m.focus = focusInput
		return m, m.input.Focus()
	}
	m.refreshViewport()
	return m, nil
}

// ownSelected - выбранное сообщение, если оно своё; иначе статус с пояснением.
func (m *chatModel) ownSelected() *model.Message {
	if m.msgCursor < 0 || m.msgCursor >= len(m.messages) {
		return nil
	}
	msg := &m.messages[m.msgCursor]
	if msg.User != model.NormalizeEmail(m.me.Email) {
		m.setStatus("you can only change your own messages", true)
		return nil
	}
	return msg
}

// submitInput: поле очищается сразу, не дожидаясь ответа сервера.
func (m *chatModel) submitInput() tea.Cmd {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		m.setStatus("message text is empty", true)
		return nil
	}
	chatID := m.openChat
	if chatID == "" {
		m.setStatus("select a chat first", true)
		return nil
	}
	m.input.Reset()
	m.setStatus("", false)
	sess := m.sess
	if id := m.editing; id != "" {
		m.editing = ""
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if _, err := sess.Edit(ctx, chatID, id, text); err != nil {
				return opFailedMsg{err}
			}
			return nil
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if _, err := sess.Send(ctx, chatID, text); err != nil {
			return opFailedMsg{err}
		}
		return nil
	}
}

// startChat: себе писать нельзя, проверяется до запроса.
func (m *chatModel) startChat(email string) tea.Cmd {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	if email == model.NormalizeEmail(m.me.Email) {
		m.setStatus("cannot start a chat with yourself", true)
		return nil
	}
	if existing := m.chatByID(model.ChatID(m.me.Email, email)); existing != nil {
		m.mode = listBrowse
		m.target.Reset()
		return m.openConversation(existing.ID)
	}
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		c, err := sess.StartChat(ctx, email)
		if err != nil {
			return opFailedMsg{err}
		}
		return chatStartedMsg{c}
	}
}

func (m *chatModel) deleteChat(chatID string) tea.Cmd {
	m.setStatus("", false)
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := sess.DeleteChat(ctx, chatID); err != nil {
			return opFailedMsg{err}
		}
		return nil
	}
}

func (m *chatModel) deleteMessage(msgID string) tea.Cmd {
	chatID, sess := m.openChat, m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := sess.DeleteMessage(ctx, chatID, msgID); err != nil {
			return opFailedMsg{err}
		}
		return nil
	}
}

// signOut: слушатели снимаются до запроса к серверу.
func (m *chatModel) signOut() tea.Cmd {
	sess := m.sess
	m.stream = nil
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := sess.Logout(ctx); err != nil {
			logger.Errorf("tui: logout: %v", err)
		}
		return signedOutMsg{}
	}
}

func (m *chatModel) refreshViewport() {
	m.viewport.SetContent(m.renderTimeline())
	if m.focus != focusMessages {
		m.viewport.GotoBottom()
	}
}

func (m *chatModel) renderTimeline() string {
	if m.openChat == "" {
		return ""
	}
	if len(m.messages) == 0 {
		return mutedStyle.Render("no messages yet")
	}
	c := m.chatByID(m.openChat)
	other := ""
	if c != nil {
		other = view.DisplayName(*c, m.me.Email)
	}
	selectedID := ""
	if m.focus == focusMessages && m.msgCursor >= 0 && m.msgCursor < len(m.messages) {
		selectedID = m.messages[m.msgCursor].ID
	}
	var b strings.Builder
	for _, it := range view.Timeline(m.messages, m.me.Email, m.loc, m.now()) {
		if it.Kind == view.ItemDivider {
			b.WriteString(dividerStyle.Render("── "+it.Label+" ──") + "\n")
			continue
		}
		line := renderMessage(it, other, m.loc)
		if it.Message.ID == selectedID {
			line = selectedMsgStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func renderMessage(it view.Item, other string, loc *time.Location) string {
	msg := it.Message
	author, style := other, otherMessageStyle
	if it.Own {
		author, style = "you", ownMessageStyle
	}
	line := mutedStyle.Render(msg.Timestamp.In(loc).Format("15:04")) + " " + style.Render(author+":") + " " + msg.Text
	if msg.Edited {
		line += " " + mutedStyle.Render("(edited)")
	}
	switch it.Receipt {
	case view.ReceiptSent:
		line += " " + sentReceiptStyle.Render("✓")
	case view.ReceiptRead:
		line += " " + readReceiptStyle.Render("✓✓")
	}
	return line
}

func (m *chatModel) View() string {
	l := m.layout()
	var panes []string
	if l.ShowList {
		w := listPaneWidth
		if !l.ShowConversation {
			w = m.width - 2
		}
		panes = append(panes, m.listView(w))
	}
	if l.ShowConversation {
		panes = append(panes, m.conversationView())
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panes...)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusView())
}

func (m *chatModel) listView(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chats") + mutedStyle.Render(" "+m.me.Username) + "\n")
	switch m.mode {
	case listSearch:
		b.WriteString(m.search.View() + "\n")
	case listNewChat:
		b.WriteString(m.target.View() + "\n")
	default:
		if m.search.Value() != "" {
			b.WriteString(mutedStyle.Render("/ "+m.search.Value()) + "\n")
		}
	}
	list := m.visible()
	if len(list) == 0 {
		b.WriteString(mutedStyle.Render("no chats • n: new chat") + "\n")
	}
	for i, c := range list {
		name := view.DisplayName(c, m.me.Email)
		if c.ID == m.openChat {
			name = "● " + name
		}
		row := name
		if c.LastMessage != "" {
			row += "\n" + mutedStyle.Render(truncate(c.LastMessage, width-4))
		}
		if i == m.cursor {
			b.WriteString(selectedItemStyle.Render(row) + "\n")
		} else {
			b.WriteString(itemStyle.Render(row) + "\n")
		}
	}
	style := paneStyle
	if m.focus == focusList {
		style = focusedPaneStyle
	}
	return style.Width(width).Height(max(m.height-3, 3)).Render(strings.TrimSuffix(b.String(), "\n"))
}

func (m *chatModel) conversationView() string {
	title := ""
	if c := m.chatByID(m.openChat); c != nil {
		title = view.DisplayName(*c, m.me.Email)
	}
	prompt := m.input.View()
	if m.editing != "" {
		prompt = mutedStyle.Render("editing • esc: cancel") + "\n" + prompt
	}
	content := titleStyle.Render(title) + "\n" + m.viewport.View() + "\n" + prompt
	style := paneStyle
	if m.focus != focusList {
		style = focusedPaneStyle
	}
	return style.Width(m.viewport.Width + 2).Render(content)
}

func (m *chatModel) statusView() string {
	if m.status != "" {
		if m.statusErr {
			return errorStyle.Padding(0, 1).Render(m.status)
		}
		return statusStyle.Render(m.status)
	}
	switch m.focus {
	case focusInput:
		return statusStyle.Render("enter: send • tab: select messages • esc: back • ctrl+o: sign out")
	case focusMessages:
		return statusStyle.Render("↑/↓: select • e: edit • x: delete • tab/esc: back • ctrl+o: sign out")
	}
	return statusStyle.Render("enter: open • /: search • n: new chat • d: delete • ctrl+o: sign out • ctrl+c: quit")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
