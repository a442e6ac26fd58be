package model

import "time"

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は管理者ユーザー。
	RoleAdmin Role = "admin"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
