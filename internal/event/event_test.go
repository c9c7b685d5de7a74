package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEvent = `{"id":"abc","pubkey":"p1","created_at":1700000000,"kind":1,"tags":[["p","p2"]],"content":"hi","sig":"s1","x-extra":true}`

func TestParseKeepsRawBytes(t *testing.T) {
	ev, err := Parse([]byte(sampleEvent))
	require.NoError(t, err)

	assert.Equal(t, "abc", ev.ID)
	assert.Equal(t, "p1", ev.PubKey)
	assert.Equal(t, 1, ev.Kind)
	assert.Equal(t, int64(1700000000), ev.CreatedAt)

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, sampleEvent, string(out))
	assert.Contains(t, string(out), "x-extra")
}

func TestParseRejectsEventWithoutID(t *testing.T) {
	_, err := Parse([]byte(`{"pubkey":"p1","kind":1}`))
	require.Error(t, err)

	_, err = Parse([]byte(`not json`))
	require.Error(t, err)
}

func TestParseList(t *testing.T) {
	events, err := ParseList([]byte(`[` + sampleEvent + `,{"id":"def","pubkey":"p2","kind":3}]`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "def", events[1].ID)
	assert.Equal(t, KindContactList, events[1].Kind)
}

func TestFilterRoundTrip(t *testing.T) {
	since := int64(10)
	f := Filter{
		Authors: []string{"p1"},
		Kinds:   []int{0, 1, 3},
		Since:   &since,
		Limit:   500,
		Tags:    map[string][]string{"p": {"p1"}},
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"authors":["p1"],"kinds":[0,1,3],"since":10,"limit":500,"#p":["p1"]}`, string(data))

	var back Filter
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, f, back)
}

func TestEmptyFilterMarshalsToEmptyObject(t *testing.T) {
	data, err := json.Marshal(Filter{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestAuthorFilters(t *testing.T) {
	filters := AuthorFilters("p1", nil)
	require.Len(t, filters, 2)
	assert.Equal(t, []string{"p1"}, filters[0].Authors)
	assert.Equal(t, []string{"p1"}, filters[1].Tags["p"])
}
