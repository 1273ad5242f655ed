package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RealName     string    `json:"real_name"`
	Phone        string    `json:"phone"`
	Mail         string    `json:"mail"`
	DelFlag      int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RegisterParams struct {
	Username string
	Password string
	RealName string
	Phone    string
	Mail     string
}
