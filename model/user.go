package model

import "time"

/*

User is a registered Plutoid account

Id: document id assigned by the store
Uid: identity provider id, immutable, the key every other record references
FirstName, LastName: display name parts
Email: sign-in email, also the source of a derived handle for legacy records
UserName: public handle, secondarily unique
ImageURL: avatar
Bio, Country: free-form profile fields
DateCreated: account creation time

*/

type User struct {
	Id          string    `json:"id" mapstructure:"-"`
	Uid         string    `json:"uid" mapstructure:"uid"`
	FirstName   string    `json:"firstName" mapstructure:"firstName"`
	LastName    string    `json:"lastName" mapstructure:"lastName"`
	Email       string    `json:"email" mapstructure:"email"`
	UserName    string    `json:"userName" mapstructure:"userName"`
	ImageURL    string    `json:"imageURL" mapstructure:"imageURL"`
	Bio         string    `json:"bio" mapstructure:"bio"`
	Country     string    `json:"country" mapstructure:"country"`
	DateCreated time.Time `json:"dateCreated" mapstructure:"-"`
}

// AuthorSummary is the slice of a User a feed item carries. Synthesized is set
// when the summary was built from fields embedded on the post because the
// author could not be found in the users collection.
type AuthorSummary struct {
	Uid         string `json:"uid"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	UserName    string `json:"userName"`
	ImageURL    string `json:"imageURL"`
	Country     string `json:"countryOrigin,omitempty"`
	Synthesized bool   `json:"synthesized,omitempty"`
}

// Summary projects a stored user into an AuthorSummary.
func (u *User) Summary() AuthorSummary {
	return AuthorSummary{
		Uid:       u.Uid,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		UserName:  u.UserName,
		ImageURL:  u.ImageURL,
		Country:   u.Country,
	}
}
