package model

import "time"

// CartSession is the durable artifact of one successful add-to-cart race.
//
// The token is a capability: whoever holds it may open the checkout page,
// there is no separate authentication. Records are never deleted
// automatically; an expired session stays around for audit.
type CartSession struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// Token backs the /checkout/:token URL
	Token  string `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	TaskID int64  `gorm:"index" json:"task_id"`

	// Winning attempt's session cookie
	CookieName   string `gorm:"type:varchar(100);not null" json:"cookie_name"`
	CookieValue  string `gorm:"type:text;not null" json:"cookie_value"`
	CookieDomain string `gorm:"type:varchar(200);not null" json:"cookie_domain"`

	ProductURL  string `gorm:"type:varchar(500);not null" json:"product_url"`
	CheckoutURL string `gorm:"type:varchar(500)" json:"checkout_url"`

	Quantity int `gorm:"not null;default:1" json:"quantity"`
	// TotalTime is the detection-to-cart duration in seconds
	TotalTime float64 `json:"total_time"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}

// TableName specifies the table name for CartSession
func (CartSession) TableName() string {
	return "cart_sessions"
}

// Expired reports whether the vendor-side cart hold has lapsed.
func (c *CartSession) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
