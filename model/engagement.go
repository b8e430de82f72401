package model

import "time"

/*

Like, SavedItem, Comment and ViewEvent are the relation records between a user
and a post. All of them reference the user by Uid and the post by PostID.

Like: at most one per (Uid, PostID)
SavedItem: at most one per (Uid, PostID), carries a copy of the post image
Comment: many per post
ViewEvent: append-only, one per render

*/

type Like struct {
	Id          string    `json:"id" mapstructure:"-"`
	Uid         string    `json:"uid" mapstructure:"uid"`
	PostID      string    `json:"post_id" mapstructure:"post_id"`
	DateCreated time.Time `json:"dateCreated" mapstructure:"-"`
}

type SavedItem struct {
	Id          string    `json:"id" mapstructure:"-"`
	Uid         string    `json:"uid" mapstructure:"uid"`
	PostID      string    `json:"post_id" mapstructure:"post_id"`
	ImageURL    string    `json:"imageURL" mapstructure:"imageURL"`
	DateCreated time.Time `json:"dateCreated" mapstructure:"-"`
}

type Comment struct {
	Id          string    `json:"id" mapstructure:"-"`
	Uid         string    `json:"uid" mapstructure:"uid"`
	PostID      string    `json:"post_id" mapstructure:"post_id"`
	Email       string    `json:"email" mapstructure:"email"`
	TextComment string    `json:"textComment" mapstructure:"textComment"`
	DateCreated time.Time `json:"dateCreated" mapstructure:"-"`
}

// CommentWithAuthor is a comment joined with its commenter.
type CommentWithAuthor struct {
	*Comment
	User AuthorSummary `json:"user"`
}

type ViewEvent struct {
	Id         string    `json:"id" mapstructure:"-"`
	Uid        string    `json:"uid" mapstructure:"uid"`
	PostID     string    `json:"post_id" mapstructure:"post_id"`
	DateViewed time.Time `json:"date_viewed" mapstructure:"-"`
}

// ToggleState is the outcome of a like or save toggle. Active is the viewer's
// state after the toggle, Count the post's total after it.
type ToggleState struct {
	PostID string `json:"postId"`
	Active bool   `json:"active"`
	Count  int64  `json:"count"`
}
