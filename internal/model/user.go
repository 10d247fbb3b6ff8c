package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal - аутентифицированный аккаунт: то, что видит клиент и кладётся в контекст запроса.
type Principal struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

func (u *User) ToPrincipal() Principal {
	return Principal{UID: u.ID, Email: u.Email, Username: u.Username}
}

// UsernameEntry - запись индекса имён: lowercased username -> id аккаунта.
type UsernameEntry struct {
	Name      string    `json:"name"`
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"created_at"`
}
