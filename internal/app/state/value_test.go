package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValue_SetNotifiesObservers(t *testing.T) {
	req := require.New(t)
	v := NewValue([]string(nil))

	var seen [][]string
	h := v.Subscribe(func(s []string) { seen = append(seen, s) })

	v.Set([]string{"a"})
	v.Set([]string{"a", "b"})
	v.Unsubscribe(h)
	v.Set(nil)

	req.Equal([][]string{{"a"}, {"a", "b"}}, seen)
	req.Nil(v.Get())
	req.Equal(uint64(3), v.Version())
}
