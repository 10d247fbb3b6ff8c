package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chatify/internal/client"
)

const requestTimeout = 15 * time.Second

type formKind int

const (
	formLogin formKind = iota
	formSignup
)

// authedMsg - вход или регистрация прошли, сессия создана.
type authedMsg struct{ sess *client.Session }

type authFailedMsg struct{ err error }

// authForm - форма входа или регистрации; ошибки сервера показываются под формой как есть.
type authForm struct {
	kind   formKind
	fields []textinput.Model
	focus  int
	err    string
	busy   bool
}

func newField(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 128
	ti.Width = 32
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return ti
}

func newAuthForm(kind formKind) authForm {
	f := authForm{kind: kind}
	if kind == formSignup {
		f.fields = append(f.fields, newField("username", false))
	}
	f.fields = append(f.fields, newField("email", false), newField("password", true))
	f.fields[0].Focus()
	return f
}

func (f *authForm) value(i int) string { return strings.TrimSpace(f.fields[i].Value()) }

func (f *authForm) setFocus(i int) {
	f.fields[f.focus].Blur()
	f.focus = (i + len(f.fields)) % len(f.fields)
	f.fields[f.focus].Focus()
}

// submit проверяет заполненность полей до обращения к серверу.
func (f *authForm) submit(api *client.API) tea.Cmd {
	for i := range f.fields {
		if f.value(i) == "" {
			f.err = "fill in all fields"
			return nil
		}
	}
	f.err = ""
	f.busy = true
	if f.kind == formSignup {
		username, email, password := f.value(0), f.value(1), f.fields[2].Value()
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			sess, err := api.Register(ctx, username, email, password)
			if err != nil {
				return authFailedMsg{err}
			}
			return authedMsg{sess}
		}
	}
	email, password := f.value(0), f.fields[1].Value()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sess, err := api.Login(ctx, email, password)
		if err != nil {
			return authFailedMsg{err}
		}
		return authedMsg{sess}
	}
}

func (f authForm) update(msg tea.Msg, api *client.API) (authForm, tea.Cmd) {
	switch msg := msg.(type) {
	case authFailedMsg:
		f.busy = false
		f.err = msg.err.Error()
		return f, nil
	case tea.KeyMsg:
		if f.busy {
			return f, nil
		}
		switch msg.String() {
		case "tab", "down":
			f.setFocus(f.focus + 1)
			return f, nil
		case "shift+tab", "up":
			f.setFocus(f.focus - 1)
			return f, nil
		case "enter":
			if f.focus < len(f.fields)-1 {
				f.setFocus(f.focus + 1)
				return f, nil
			}
			return f, f.submit(api)
		}
	}
	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].Update(msg)
	return f, cmd
}

func (f authForm) view(width, height int) string {
	title, hint := "Sign in", "enter: next/submit • tab: next field • ctrl+t: create account • ctrl+c: quit"
	if f.kind == formSignup {
		title, hint = "Create account", "enter: next/submit • tab: next field • ctrl+t: back to sign in • ctrl+c: quit"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("chatify · "+title) + "\n\n")
	for i := range f.fields {
		b.WriteString(f.fields[i].View() + "\n")
	}
	b.WriteString("\n")
	switch {
	case f.busy:
		b.WriteString(mutedStyle.Render("please wait…"))
	case f.err != "":
		b.WriteString(errorStyle.Render(f.err))
	}
	b.WriteString("\n\n" + mutedStyle.Render(hint))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, boxStyle.Render(b.String()))
}
