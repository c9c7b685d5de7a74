package event

import (
	"encoding/json"
	"strings"
)

// Filter is a subscription query. Tags holds single-letter tag filters keyed
// without the leading '#', e.g. Tags["p"] = []string{pubkey}.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Since   *int64
	Until   *int64
	Limit   int
	Tags    map[string][]string
}

// MarshalJSON renders the filter as a NIP-01 filter object.
func (f Filter) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 6+len(f.Tags))
	if len(f.IDs) > 0 {
		out["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		out["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		out["kinds"] = f.Kinds
	}
	if f.Since != nil {
		out["since"] = *f.Since
	}
	if f.Until != nil {
		out["until"] = *f.Until
	}
	if f.Limit > 0 {
		out["limit"] = f.Limit
	}
	for name, values := range f.Tags {
		out["#"+name] = values
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a NIP-01 filter object.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var out Filter
	for key, value := range fields {
		var err error
		switch {
		case key == "ids":
			err = json.Unmarshal(value, &out.IDs)
		case key == "authors":
			err = json.Unmarshal(value, &out.Authors)
		case key == "kinds":
			err = json.Unmarshal(value, &out.Kinds)
		case key == "since":
			out.Since = new(int64)
			err = json.Unmarshal(value, out.Since)
		case key == "until":
			out.Until = new(int64)
			err = json.Unmarshal(value, out.Until)
		case key == "limit":
			err = json.Unmarshal(value, &out.Limit)
		case strings.HasPrefix(key, "#"):
			var values []string
			err = json.Unmarshal(value, &values)
			if out.Tags == nil {
				out.Tags = make(map[string][]string)
			}
			out.Tags[key[1:]] = values
		}
		if err != nil {
			return err
		}
	}
	*f = out
	return nil
}

// AuthorFilters returns the two filters used for a full account backup: every
// event written by pubkey, and every event that tags pubkey.
func AuthorFilters(pubkey string, kinds []int) []Filter {
	authored := Filter{Authors: []string{pubkey}, Kinds: kinds}
	mentions := Filter{Tags: map[string][]string{"p": {pubkey}}, Kinds: kinds}
	return []Filter{authored, mentions}
}
