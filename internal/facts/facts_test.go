package facts

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCollectThenFreeze(t *testing.T) {
	t.Parallel()
	s := New()
	require.NoError(t, s.Add("mailers", "Notifier", "signup"))
	require.NoError(t, s.Add("mailers", "Notifier", "welcome"))
	require.NoError(t, s.Add("mailers", "Notifier", "signup"))
	require.NoError(t, s.Add("mailers", "Admin", "report"))

	s.Freeze()
	assert.True(t, s.Frozen())

	err := s.Add("mailers", "Notifier", "late")
	assert.ErrorIs(t, err, ErrFrozen)

	mailers := s.Table("mailers")
	assert.Equal(t, []string{"signup", "welcome"}, mailers.Get("Notifier"))
	assert.True(t, mailers.Has("Admin", "report"))
	assert.False(t, mailers.Has("Admin", "signup"))
	assert.Nil(t, mailers.Get("Missing"))
	assert.Equal(t, []string{"Admin", "Notifier"}, mailers.Keys())
	assert.Empty(t, s.Table("other").Keys())
}

func TestStoreConcurrentWritersAreDeterministic(t *testing.T) {
	t.Parallel()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Add("t", "k", fmt.Sprintf("v%02d", 19-i)))
		}(i)
	}
	wg.Wait()
	s.Freeze()

	got := s.Table("t").Get("k")
	require.Len(t, got, 20)
	assert.Equal(t, "v00", got[0])
	assert.Equal(t, "v19", got[19])
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	require.NoError(t, s.Add("t", "k", "a"))
	s.Freeze()
	got := s.Table("t").Get("k")
	got[0] = "mutated"
	assert.Equal(t, []string{"a"}, s.Table("t").Get("k"))
}
