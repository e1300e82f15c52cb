package session

import (
	"time"
)

// CartLine is one reserved product entry in a session's cart. MaxStock is the
// stock level captured when the line was first added; the quantity can never
// climb above it.
type CartLine struct {
	ProductID uint    `json:"id"`
	Name      string  `json:"name"`
	Batch     string  `json:"batch"`
	Price     float64 `json:"price"`
	ImgURL    string  `json:"imgurl"`
	Quantity  uint    `json:"quantity"`
	MaxStock  uint    `json:"maxStock"`
}

// Session binds a rotating opaque token to a user identity and a working
// cart. Values handed out by the registry are copies; the registry keeps the
// only live record.
type Session struct {
	Token            string
	UserID           uint
	Username         string
	Role             string
	LastActivity     time.Time
	Cart             []CartLine
	PendingAutologin bool
}

func (s *Session) snapshot() Session {
	out := *s
	out.Cart = cloneCart(s.Cart)
	return out
}

func cloneCart(cart []CartLine) []CartLine {
	out := make([]CartLine, len(cart))
	copy(out, cart)
	return out
}

// Update carries a partial session mutation; nil fields are left untouched.
type Update struct {
	Username         *string
	UserID           *uint
	Role             *string
	Cart             *[]CartLine
	PendingAutologin *bool
}
