package channel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func connectTestChannel(t *testing.T) (*NATS, *nats.Conn) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	ch, err := NewNATS(nc, DefaultNATSConfig(), nil)
	require.NoError(t, err)
	return ch, nc
}

func TestNATS_SendBrowseCommand(t *testing.T) {
	ch, nc := connectTestChannel(t)

	msgs := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("peripheral.conn-1.browse.cmd", msgs)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	err = ch.SendBrowseCommand(context.Background(), "conn-1", "tok-1", "ns=2;s=Plant", 2, "value")
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		var cmd Command
		require.NoError(t, json.Unmarshal(msg.Data, &cmd))
		assert.Equal(t, "tok-1", cmd.Token)
		assert.Equal(t, "ns=2;s=Plant", cmd.Target)
		assert.Equal(t, 2, cmd.Depth)
		assert.Equal(t, "value", cmd.Filter)
	case <-time.After(2 * time.Second):
		t.Fatal("command not published")
	}
}

func TestNATS_SubscribeReceivesReplies(t *testing.T) {
	ch, nc := connectTestChannel(t)

	replies := make(chan Reply, 1)
	sub, err := ch.Subscribe("conn-1", func(r Reply) { replies <- r })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	reply := Reply{
		Token: "tok-2",
		Nodes: []RawNode{{ID: "ns=2;s=Plant.Line1", DisplayName: "Line1", Class: "object"}},
	}
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	require.NoError(t, nc.Publish("peripheral.conn-1.browse.reply", data))

	select {
	case got := <-replies:
		assert.Equal(t, reply, got)
	case <-time.After(2 * time.Second):
		t.Fatal("reply not delivered")
	}
}

func TestNATS_SubscribeDropsMalformedReply(t *testing.T) {
	ch, nc := connectTestChannel(t)

	replies := make(chan Reply, 1)
	sub, err := ch.Subscribe("conn-1", func(r Reply) { replies <- r })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, nc.Publish("peripheral.conn-1.browse.reply", []byte("not json")))

	select {
	case r := <-replies:
		t.Fatalf("malformed reply surfaced: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNATS_WatchAllRegistries(t *testing.T) {
	ch, nc := connectTestChannel(t)

	events := make(chan string, 2)
	sub, err := ch.WatchAllRegistries(func(connectionID string) { events <- connectionID })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, nc.Publish("peripheral.conn-1.registry", []byte(`{}`)))
	require.NoError(t, nc.Publish("peripheral.conn-2.registry", []byte(`{}`)))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-events:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("registry events not delivered")
		}
	}
	assert.True(t, seen["conn-1"])
	assert.True(t, seen["conn-2"])
}

func TestNATS_UnsubscribeIdempotent(t *testing.T) {
	ch, _ := connectTestChannel(t)

	sub, err := ch.Subscribe("conn-1", func(Reply) {})
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
}
