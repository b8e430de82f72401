package model

import "time"

/*

FeedItem is a Post joined with everything a client needs to render it. It is
rebuilt on every fetch and never persisted.

User: the author, possibly synthesized
OriginalPoster: original author of a repost, nil when not a repost or when the
		original author cannot be found
CommentsCount, LikeCount, ViewCount, BookmarkCount: engagement counters
IsLiked, IsSaved: viewer relative state, false for anonymous viewers

*/

type FeedItem struct {
	Id             string         `json:"id"`
	Uid            string         `json:"uid"`
	TextCaption    string         `json:"textCaption"`
	ImageURL       string         `json:"imageURL"`
	Country        string         `json:"country"`
	RePost         bool           `json:"re_post"`
	DateCreated    time.Time      `json:"dateCreated"`
	User           AuthorSummary  `json:"user"`
	OriginalPoster *AuthorSummary `json:"originalPoster,omitempty"`
	CommentsCount  int64          `json:"commentsCount"`
	LikeCount      int64          `json:"likeCount"`
	ViewCount      int64          `json:"viewCount"`
	BookmarkCount  int64          `json:"bookmarkCount"`
	IsLiked        bool           `json:"isLiked"`
	IsSaved        bool           `json:"isSaved"`
}

// FeedPage is one page of a feed. An empty NextCursor means there is nothing
// after this page.
type FeedPage struct {
	Items      []*FeedItem `json:"items"`
	NextCursor string      `json:"nextCursor"`
}

// TrendingHashtag aggregates usage of one lower-cased hashtag.
type TrendingHashtag struct {
	Hashtag  string `json:"hashtag"`
	Count    int64  `json:"count"`
	Comments int64  `json:"comments"`
	Views    int64  `json:"views"`
	Likes    int64  `json:"likes"`
	Score    int64  `json:"score"`
}
