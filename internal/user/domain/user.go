package domain

import "time"

type ID string

type User struct {
	ID           ID
	Email        string
	PasswordHash string
	Name         *string
	CreatedAt    time.Time
}
