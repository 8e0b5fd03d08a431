// SPDX-License-Identifier: GPL-3.0-or-later

package testnet

import (
	"context"
	"testing"
	"time"

	"github.com/rdproxy/rdnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPEchoRoundTrip(t *testing.T) {
	n := New()
	addr := rdnet.NewAddressDomain("127.0.0.1", 1234)

	lst, err := n.TCPBind(context.Background(), rdnet.NewContext(), addr)
	require.NoError(t, err)
	defer lst.Close()

	go func() {
		stream, _, err := lst.Accept(context.Background())
		if err != nil {
			return
		}
		buf := make([]byte, 64)
		for {
			nr, err := stream.Read(buf)
			if err != nil {
				return
			}
			if _, err := stream.Write(buf[:nr]); err != nil {
				return
			}
		}
	}()

	client, err := n.TCPConnect(context.Background(), rdnet.NewContext(), addr)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestTCPConnectWithNoListenerIsRefused(t *testing.T) {
	n := New()
	_, err := n.TCPConnect(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("127.0.0.1", 9999))
	assert.ErrorIs(t, err, rdnet.ErrConnectionRefused)
}

func TestTCPStreamAddressesAreSwappedAcrossEnds(t *testing.T) {
	n := New()
	addr := rdnet.NewAddressDomain("127.0.0.1", 12345)

	lst, err := n.TCPBind(context.Background(), rdnet.NewContext(), addr)
	require.NoError(t, err)
	defer lst.Close()

	acceptedCh := make(chan rdnet.TCPStream, 1)
	go func() {
		s, _, err := lst.Accept(context.Background())
		require.NoError(t, err)
		acceptedCh <- s
	}()

	client, err := n.TCPConnect(context.Background(), rdnet.NewContext(), addr)
	require.NoError(t, err)
	defer client.Close()

	accepted := <-acceptedCh
	defer accepted.Close()

	clientPeer, err := client.PeerAddr()
	require.NoError(t, err)
	assert.Equal(t, uint16(12345), clientPeer.Port())

	acceptedLocal, err := accepted.LocalAddr()
	require.NoError(t, err)
	assert.Equal(t, uint16(12345), acceptedLocal.Port())
}

func TestUDPSendRecvRoundTrip(t *testing.T) {
	n := New()
	serverAddr := rdnet.NewAddressDomain("127.0.0.1", 53)

	server, err := n.UDPBind(context.Background(), rdnet.NewContext(), serverAddr)
	require.NoError(t, err)
	defer server.Close()

	client, err := n.UDPBind(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("127.0.0.1", 0))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.SendTo(context.Background(), []byte("query"), serverAddr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf := make([]byte, 16)
	n2, from, err := server.RecvFrom(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "query", string(buf[:n2]))
	assert.True(t, from.Socket.IsValid())
}

func TestLookupHostResolvesToLoopback(t *testing.T) {
	n := New()
	addrs, err := n.LookupHost(context.Background(), rdnet.NewAddressDomain("example.com", 443))
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, uint16(443), addrs[0].Port())
	assert.True(t, addrs[0].Addr().IsLoopback())
}
