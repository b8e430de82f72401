package model

import "time"

/*

Post is a piece of user generated content in the posts collection

Id: document id
Uid: author's uid
Uuid: author's id on legacy records written before uid existed
Email: author's email at posting time
TextCaption: caption text, may contain #hashtags
ImageURL: optional image
Country: country the post was made from
RePost: truthy when the post re-shares someone else's content. Legacy records
		store it as a string, newer ones as a bool.
PostMadeBy: uid of the original author when RePost is set
DateCreated: creation time, the feed is ordered by it

FirstName, LastName, UserName, ImageURL on EmbeddedUser: author hints copied onto
the post by the mobile client. Only used when the author is missing from the
users collection.

*/

type Post struct {
	Id           string        `json:"id" mapstructure:"-"`
	Uid          string        `json:"uid" mapstructure:"uid"`
	Uuid         string        `json:"uuid,omitempty" mapstructure:"uuid"`
	Email        string        `json:"email" mapstructure:"email"`
	TextCaption  string        `json:"textCaption" mapstructure:"textCaption"`
	ImageURL     string        `json:"imageURL" mapstructure:"imageURL"`
	Country      string        `json:"country" mapstructure:"country"`
	RePost       bool          `json:"re_post" mapstructure:"-"`
	PostMadeBy   string        `json:"post_made_by,omitempty" mapstructure:"post_made_by"`
	FirstName    string        `json:"-" mapstructure:"firstName"`
	LastName     string        `json:"-" mapstructure:"lastName"`
	UserName     string        `json:"-" mapstructure:"userName"`
	EmbeddedUser *EmbeddedUser `json:"-" mapstructure:"user"`
	DateCreated  time.Time     `json:"dateCreated" mapstructure:"-"`
}

// EmbeddedUser is the author snapshot some clients store on the post itself.
type EmbeddedUser struct {
	Uid           string `mapstructure:"uid"`
	UserName      string `mapstructure:"userName"`
	FirstName     string `mapstructure:"firstName"`
	LastName      string `mapstructure:"lastName"`
	ImageURL      string `mapstructure:"imageURL"`
	CountryOrigin string `mapstructure:"countryOrigin"`
}

// AuthorID returns the uid, falling back to the legacy uuid field.
func (p *Post) AuthorID() string {
	if p.Uid != "" {
		return p.Uid
	}
	return p.Uuid
}

// IsRepost is true when the post re-shares content and names its original
// author.
func (p *Post) IsRepost() bool {
	return p.RePost && p.PostMadeBy != ""
}

// NewPostInput is what a client submits to create a post.
type NewPostInput struct {
	TextCaption string `json:"textCaption"`
	ImageURL    string `json:"imageURL"`
	Country     string `json:"country"`
	Email       string `json:"email"`
	PostMadeBy  string `json:"post_made_by"`
}
