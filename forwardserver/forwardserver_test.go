// SPDX-License-Identifier: GPL-3.0-or-later

package forwardserver

import (
	"context"
	"testing"
	"time"

	"github.com/rdproxy/rdnet"
	"github.com/rdproxy/rdnet/internal/testnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoOn starts a goroutine that accepts one connection on net at addr and
// echoes everything it reads back to the writer, until the connection
// closes.
func echoOn(t *testing.T, net rdnet.Net, addr rdnet.Address) {
	t.Helper()
	lst, err := net.TCPBind(context.Background(), rdnet.NewContext(), addr)
	require.NoError(t, err)
	go func() {
		stream, _, err := lst.Accept(context.Background())
		if err != nil {
			return
		}
		defer stream.Close()
		buf := make([]byte, 64)
		for {
			n, err := stream.Read(buf)
			if n > 0 {
				if _, werr := stream.Write(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
}

func TestForwardServerDirectEcho(t *testing.T) {
	net := testnet.New()
	echoOn(t, net, rdnet.NewAddressDomain("127.0.0.1", 4321))

	rn := rdnet.NewRunningNet("direct", net)
	getter := func(ref *rdnet.NetRef, _ *rdnet.VisitorContext) (*rdnet.RunningNet, error) {
		return ref.Net()
	}
	bctx := rdnet.ServerBuildContext{
		ServerName: "s",
		Getter:     getter,
		VisitorCtx: rdnet.NewVisitorContext("server/s"),
		Manager:    rdnet.NoopConnManager,
	}
	cfg := &Config{
		Net:    rdnet.NewNetRef("direct", rn),
		Listen: "127.0.0.1:1234",
		Target: "127.0.0.1:4321",
	}
	srv, err := New(bctx, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	time.Sleep(10 * time.Millisecond) // let Serve's TCPBind land before the client connects

	client, err := net.TCPConnect(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("127.0.0.1", 1234))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte("hello\n"))
	require.NoError(t, err)

	buf := make([]byte, 6)
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(buf[:n]))
}
