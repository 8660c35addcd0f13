package blog

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-query-cache/cache"
)

// Collection is the table and cache collection name for blogs.
const Collection = "blogs"

// Blog is a post owned by one user.
type Blog struct {
	bun.BaseModel `bun:"table:blogs"`

	ID        string    `bun:"_id,pk" json:"_id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Content   string    `bun:"content,notnull" json:"content"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// CreateInput is what a user submits for a new blog.
type CreateInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Reconstruct decodes a cached blog. It only decodes: a hit must carry the
// same values a database read returned.
func Reconstruct(codec cache.Codec, raw []byte) (Blog, error) {
	var b Blog
	if err := codec.Unmarshal(raw, &b); err != nil {
		return Blog{}, err
	}
	return b, nil
}

// normalize runs before insert so stored rows are already in canonical form.
func (b *Blog) normalize() {
	b.Title = strings.TrimSpace(b.Title)
	if !b.CreatedAt.IsZero() {
		b.CreatedAt = b.CreatedAt.UTC()
	}
}
