package models

import (
	"time"
)

type Product struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name      string    `gorm:"not null"                      json:"name"`
	Batch     string    `gorm:"not null"                      json:"batch"`
	Category  string    `gorm:"not null"                      json:"category"`
	Price     float64   `gorm:"not null;check:price > 0"      json:"price"`
	Stock     uint      `gorm:"not null;default:10"           json:"stock"`
	ImgURL    string    `gorm:"column:imgurl;not null"        json:"imgurl"`
	CreatedAt time.Time `json:"timestamp"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:cashier" json:"role"`
}

// Transaction is immutable once committed. Items holds the frozen JSON
// snapshot of the cart lines at commit time, never a live product reference.
type Transaction struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	UserID    uint      `gorm:"index;not null"            json:"user_id"`
	Total     float64   `gorm:"not null;check:total >= 0" json:"total"`
	Items     string    `gorm:"not null"                  json:"-"`
	CreatedAt time.Time `json:"timestamp"`
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)
