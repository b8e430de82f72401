package feed

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/plutoid/plutoid/docstore"
	"github.com/plutoid/plutoid/model"
	. "github.com/plutoid/plutoid/utils/log"
)

// decodeFields fills out from fields on a best-effort basis. mapstructure keeps
// decoding past a field of the wrong shape, so a bad optional field only costs
// that field.
func decodeFields(d *docstore.Document, out interface{}) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err == nil {
		err = dec.Decode(d.Fields)
	}
	if err != nil {
		Log.WithError(err).WithField("doc_id", d.Id).Warn("malformed fields skipped")
	}
}

// truthy follows how clients used re_post: a bool on new records, a string on
// old ones where anything but "", "0", "false" and "no" counts as set.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false", "no":
			return false
		}
		return true
	case int, int32, int64, float32, float64:
		return fmt.Sprint(t) != "0"
	}
	return false
}

func decodePost(d *docstore.Document) *model.Post {
	p := &model.Post{Id: d.Id, DateCreated: d.CreatedAt}
	decodeFields(d, p)
	p.RePost = truthy(d.Fields["re_post"])
	return p
}

func decodeUser(d *docstore.Document) *model.User {
	u := &model.User{Id: d.Id, DateCreated: d.CreatedAt}
	decodeFields(d, u)
	return u
}

func decodeComment(d *docstore.Document) *model.Comment {
	c := &model.Comment{Id: d.Id, DateCreated: d.CreatedAt}
	decodeFields(d, c)
	return c
}

func decodeSavedItem(d *docstore.Document) *model.SavedItem {
	s := &model.SavedItem{Id: d.Id, DateCreated: d.CreatedAt}
	decodeFields(d, s)
	return s
}

// validPost is the mandatory-field check: an author id and a creation time.
func validPost(p *model.Post) bool {
	return p.AuthorID() != "" && !p.DateCreated.IsZero()
}
