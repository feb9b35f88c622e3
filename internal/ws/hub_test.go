package ws

import (
	"sync"
	"testing"
	"time"

	"courier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	require.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.Equal(t, 0, hub.Online())
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	client := newClient(hub, nil, models.UserID(1), 4)
	require.True(t, hub.add(client))
	require.Eventually(t, func() bool { return hub.Online() == 1 }, time.Second, time.Millisecond)

	hub.remove(client)
	require.Eventually(t, func() bool { return hub.Online() == 0 }, time.Second, time.Millisecond)

	// Unregistering twice is harmless
	hub.remove(client)
	assert.Equal(t, 0, hub.Online())
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	var wg sync.WaitGroup
	numClients := 10
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			hub.add(newClient(hub, nil, models.UserID(id), 4))
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return hub.Online() == numClients }, time.Second, time.Millisecond)
}

func TestHub_AddAfterClose(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Close()
	<-hub.Done()

	assert.False(t, hub.add(newClient(hub, nil, models.UserID(1), 4)))
}

func TestHub_CloseClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newClient(hub, nil, models.UserID(1), 4)
	require.True(t, hub.add(client))
	hub.Close()
	<-hub.Done()

	assert.ErrorIs(t, client.Push([]byte("x")), ErrClientClosed)
}
