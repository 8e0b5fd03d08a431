// SPDX-License-Identifier: GPL-3.0-or-later

package builtin

import (
	"context"
	"testing"

	"github.com/rdproxy/rdnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTCPBindAndConnectRoundTrip(t *testing.T) {
	l := NewLocal(nil, nil)
	lst, err := l.TCPBind(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("127.0.0.1", 0))
	require.NoError(t, err)
	defer lst.Close()

	local, err := lst.LocalAddr()
	require.NoError(t, err)

	acceptedCh := make(chan rdnet.TCPStream, 1)
	go func() {
		stream, _, err := lst.Accept(context.Background())
		require.NoError(t, err)
		acceptedCh <- stream
	}()

	client, err := l.TCPConnect(context.Background(), rdnet.NewContext(), rdnet.NewAddressSocket(local))
	require.NoError(t, err)
	defer client.Close()

	server := <-acceptedCh
	defer server.Close()

	n, err := client.Write([]byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	buf := make([]byte, 4)
	n, err = server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestLocalUDPBindSendRecvRoundTrip(t *testing.T) {
	l := NewLocal(nil, nil)
	serverSock, err := l.UDPBind(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("127.0.0.1", 0))
	require.NoError(t, err)
	defer serverSock.Close()

	serverAddr, err := serverSock.LocalAddr()
	require.NoError(t, err)

	clientSock, err := l.UDPBind(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("127.0.0.1", 0))
	require.NoError(t, err)
	defer clientSock.Close()

	_, err = clientSock.SendTo(context.Background(), []byte("hello"), rdnet.NewAddressSocket(serverAddr))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, _, err := serverSock.RecvFrom(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestUDPSocketSendToDomainAddressFails(t *testing.T) {
	l := NewLocal(nil, nil)
	sock, err := l.UDPBind(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("127.0.0.1", 0))
	require.NoError(t, err)
	defer sock.Close()

	_, err = sock.SendTo(context.Background(), []byte("x"), rdnet.NewAddressDomain("example.com", 53))
	assert.Error(t, err)
}
