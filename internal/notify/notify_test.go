package notify

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegisterMessage(t *testing.T) {
	msg, err := parseRegisterMessage([]byte(`{"type":"register","client_id":"c1"}`))
	require.NoError(t, err)
	assert.Equal(t, "c1", msg.ClientID)

	_, err = parseRegisterMessage([]byte(`{"type":"register"}`))
	assert.Error(t, err)

	_, err = parseRegisterMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestRegistryIgnoresIncompleteEntries(t *testing.T) {
	r := NewRegistry()
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1234}

	r.Register("", addr)
	r.Register("c1", nil)
	assert.Empty(t, r.Snapshot())

	r.Register("c1", addr)
	require.Len(t, r.Snapshot(), 1)

	r.Remove("c1")
	assert.Empty(t, r.Snapshot())
}

func TestRegisterThenNotifyResolved(t *testing.T) {
	registry := NewRegistry()
	srv := NewServer("127.0.0.1:0", registry, nil)

	go func() { _ = srv.Run() }()
	t.Cleanup(func() { _ = srv.Close() })

	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, time.Millisecond)

	client, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Write([]byte(`{"type":"register","client_id":"c1"}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(registry.Snapshot()) == 1 }, time.Second, time.Millisecond)

	srv.NotifyResolved("k1", "m1", "87.5")

	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 2048)
	n, err := client.Read(buf)
	require.NoError(t, err)

	var msg ChapterResolvedMessage
	require.NoError(t, json.Unmarshal(buf[:n], &msg))
	assert.Equal(t, ChapterResolvedMessageType, msg.Type)
	assert.Equal(t, "k1", msg.Key)
	assert.Equal(t, "m1", msg.MangaID)
	assert.Equal(t, "87.5", msg.Chapter)
}
