package model

type Notification struct {
	ID        int64   `db:"id" json:"id"`
	CreatedAt string  `db:"created_at" json:"createdAt"`
	Title     string  `db:"title" json:"title"`
	Message   string  `db:"message" json:"message"`
	Link      string  `db:"link" json:"link"`
	IsRead    bool    `db:"is_read" json:"isRead"`
	ReadAt    *string `db:"read_at" json:"readAt,omitempty"`
}
