// Package model はドメインモデルを定義する。
package model

import "time"

// User はバックエンドに登録されたアカウントを表す。
// PasswordHash はbcryptハッシュのみを保持し、平文は保持しない。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    time.Time
}
