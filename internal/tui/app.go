// Package tui - терминальный клиент: экраны входа, регистрации и чатов на bubbletea.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatify/internal/client"
)

type screen int

const (
	screenLogin screen = iota
	screenSignup
	screenChat
)

// App - корневая модель. Сессия существует только на экране чатов.
type App struct {
	api    *client.API
	screen screen
	login  authForm
	signup authForm
	chat   *chatModel
	sess   *client.Session
	width  int
	height int
}

func New(api *client.API) *App {
	return &App{api: api, login: newAuthForm(formLogin), signup: newAuthForm(formSignup)}
}

// Close освобождает сессию при выходе из программы.
func (a *App) Close() {
	if a.sess != nil {
		a.sess.Close()
		a.sess = nil
	}
}

func (a *App) Init() tea.Cmd { return nil }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		if a.chat != nil {
			a.chat.resize(msg.Width, msg.Height)
		}
		return a, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.Close()
			return a, tea.Quit
		case "ctrl+t":
			switch a.screen {
			case screenLogin:
				a.screen = screenSignup
				return a, nil
			case screenSignup:
				a.screen = screenLogin
				return a, nil
			}
		}
	case authedMsg:
		a.sess = msg.sess
		a.chat = newChatModel(msg.sess, a.width, a.height)
		a.screen = screenChat
		a.login, a.signup = newAuthForm(formLogin), newAuthForm(formSignup)
		return a, a.chat.Init()
	case signedOutMsg:
		a.Close()
		a.chat = nil
		a.screen = screenLogin
		return a, nil
	}

	var cmd tea.Cmd
	switch a.screen {
	case screenLogin:
		a.login, cmd = a.login.update(msg, a.api)
	case screenSignup:
		a.signup, cmd = a.signup.update(msg, a.api)
	case screenChat:
		a.chat, cmd = a.chat.Update(msg)
	}
	return a, cmd
}

func (a *App) View() string {
	switch a.screen {
	case screenSignup:
		return a.signup.view(a.width, a.height)
	case screenChat:
		return a.chat.View()
	}
	return a.login.view(a.width, a.height)
}
