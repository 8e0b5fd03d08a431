// SPDX-License-Identifier: GPL-3.0-or-later

package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/rdproxy/rdnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlackholeTCPDiscardsWritesAndBlocksReads(t *testing.T) {
	b := NewBlackhole()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := b.TCPConnect(ctx, rdnet.NewContext(), rdnet.NewAddressDomain("example.com", 443))
	require.NoError(t, err)

	n, err := stream.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	readDone := make(chan error, 1)
	go func() {
		buf := make([]byte, 4)
		_, err := stream.Read(buf)
		readDone <- err
	}()

	select {
	case <-readDone:
		t.Fatal("read returned before context was cancelled")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-readDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after cancel")
	}
}

func TestBlackholeUDPDiscardsSends(t *testing.T) {
	b := NewBlackhole()
	sock, err := b.UDPBind(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("example.com", 53))
	require.NoError(t, err)
	defer sock.Close()

	n, err := sock.SendTo(context.Background(), []byte("query"), rdnet.NewAddressDomain("example.com", 53))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
