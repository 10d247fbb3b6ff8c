package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strconv"
	"time"

	"github.com/chatify/internal/config"
)

// ErrNotConfigured - SMTP не настроен, письмо не отправляется.
var ErrNotConfigured = errors.New("email: SMTP не настроен")

type Sender struct {
	cfg  *config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(cfg *config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg, send: smtp.SendMail}
}

// Configured - заданы ли учётные данные SMTP.
func (s *Sender) Configured() bool {
	return s != nil && s.cfg != nil && s.cfg.Username != "" && s.cfg.Password != ""
}

// SendWelcome отправляет приветственное письмо после регистрации.
func (s *Sender) SendWelcome(ctx context.Context, to, username string) error {
	body := fmt.Sprintf("Привет, %s!\n\nАккаунт в Chatify создан. Войдите по адресу %s, чтобы начать переписку.", username, to)
	return s.sendText(ctx, to, "Добро пожаловать в Chatify", body)
}

func (s *Sender) sendText(ctx context.Context, to, subject, body string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	from := s.cfg.FromEmail
	if from == "" {
		from = s.cfg.Username
	}
	msg := buildMessage(s.cfg.FromName, from, to, subject, body, time.Now())
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	done := make(chan error, 1)
	go func() { done <- s.send(addr, auth, from, []string{to}, msg) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func buildMessage(fromName, from, to, subject, body string, now time.Time) []byte {
	var buf bytes.Buffer
	buf.WriteString("From: " + fromName + " <" + from + ">\r\n")
	buf.WriteString("To: " + to + "\r\n")
	buf.WriteString("Subject: " + subject + "\r\n")
	buf.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}
