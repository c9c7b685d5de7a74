package dedup

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

func mustEvent(t testing.TB, id, content string) event.Event {
	t.Helper()
	ev, err := event.Parse(fmt.Appendf(nil, `{"id":%q,"pubkey":"p","kind":1,"content":%q}`, id, content))
	require.NoError(t, err)
	return ev
}

func TestFirstWriterWins(t *testing.T) {
	s := New()

	assert.True(t, s.Add(mustEvent(t, "a", "relay-1")))
	assert.True(t, s.Add(mustEvent(t, "b", "relay-1")))
	assert.False(t, s.Add(mustEvent(t, "a", "relay-2")))

	values := s.Values()
	require.Len(t, values, 2)
	assert.Equal(t, "a", values[0].ID)
	assert.Contains(t, string(values[0].Raw()), "relay-1")
	assert.Equal(t, 2, s.Len())
}

func TestConcurrentAdds(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for relay := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				s.Add(mustEvent(t, fmt.Sprintf("id-%d", i), fmt.Sprintf("relay-%d", relay)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())
}

func TestValuesReturnsCopy(t *testing.T) {
	s := New()
	s.Add(mustEvent(t, "a", ""))
	values := s.Values()
	values[0] = mustEvent(t, "z", "")

	assert.Equal(t, "a", s.Values()[0].ID)
}

// For any arrival sequence, the store keeps exactly one event per distinct id
// and it is the first one delivered.
func TestProperty_FirstArrivalKept(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("one event per id, first arrival wins", prop.ForAll(
		func(ids []int) bool {
			s := New()
			first := make(map[string]string)
			var order []string
			for seq, n := range ids {
				id := fmt.Sprintf("id-%d", n)
				source := fmt.Sprintf("delivery-%d", seq)
				if _, ok := first[id]; !ok {
					first[id] = source
					order = append(order, id)
				}
				s.Add(mustEvent(t, id, source))
			}

			values := s.Values()
			if len(values) != len(order) {
				return false
			}
			for i, ev := range values {
				if ev.ID != order[i] {
					return false
				}
				if !strings.Contains(string(ev.Raw()), fmt.Sprintf("%q", first[ev.ID])) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 15)),
	))

	properties.TestingRun(t)
}
