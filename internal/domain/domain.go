package domain

import "time"

type PostType string

const (
	PostTypeNews    PostType = "news"
	PostTypeArticle PostType = "article"
)

func (t PostType) Valid() bool {
	return t == PostTypeNews || t == PostTypeArticle
}

type User struct {
	ID       int64
	Username string
	Email    string
	IsAuthor bool
}

type Category struct {
	ID   int64
	Name string
}

type Post struct {
	ID         int64
	AuthorID   int64
	Author     User
	Type       PostType
	Title      string
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Categories []Category
}

// ImportedItem is a syndicated feed entry that has not been stored yet.
type ImportedItem struct {
	FeedURL   string
	GUID      string
	Title     string
	Content   string
	Link      string
	Published time.Time
}
