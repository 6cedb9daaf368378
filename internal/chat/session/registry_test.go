package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_MultipleConnectionsPerUser(t *testing.T) {
	req := require.New(t)
	registry := NewMemoryRegistry()

	// Given a user with two connections
	registry.Register("U", "c1")
	registry.Register("U", "c2")

	// Then both are listed under the user
	req.Equal([]string{"c1", "c2"}, registry.Lookup("U"))
	req.Equal(1, registry.Users())
}

func TestMemoryRegistry_RegisterIsIdempotent(t *testing.T) {
	registry := NewMemoryRegistry()
	registry.Register("U", "c1")
	registry.Register("U", "c1")

	require.Equal(t, []string{"c1"}, registry.Lookup("U"))
}

func TestMemoryRegistry_UnregisterOneOfSeveral(t *testing.T) {
	req := require.New(t)
	registry := NewMemoryRegistry()
	registry.Register("U", "c1")
	registry.Register("U", "c2")

	// When one of the connections goes away
	remaining := registry.Unregister("U", "c1")

	// Then the entry stays with the remaining id
	req.Equal(1, remaining)
	req.Equal([]string{"c2"}, registry.Lookup("U"))
	req.Equal(1, registry.Users())
}

func TestMemoryRegistry_UnregisterLastRemovesUser(t *testing.T) {
	req := require.New(t)
	registry := NewMemoryRegistry()
	registry.Register("U", "c1")
	registry.Register("V", "c2")
	before := registry.Users()

	remaining := registry.Unregister("U", "c1")

	req.Zero(remaining)
	req.Nil(registry.Lookup("U"))
	req.Less(registry.Users(), before)
}

func TestMemoryRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	registry := NewMemoryRegistry()
	registry.Register("U", "c1")

	require.Zero(t, registry.Unregister("nobody", "c1"))
	require.Equal(t, 1, registry.Unregister("U", "unknown"))
	require.Equal(t, []string{"c1"}, registry.Lookup("U"))

	registry.Unregister("U", "c1")
	require.Zero(t, registry.Unregister("U", "c1"))
	require.Zero(t, registry.Users())
}

func TestMemoryRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	registry := NewMemoryRegistry()
	userID := uuid.NewString()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			connID := uuid.NewString()
			registry.Register(userID, connID)
			registry.Unregister(userID, connID)
		}()
	}
	wg.Wait()

	require.Zero(t, registry.Users())
}
