package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterProviderRejectsDuplicate(t *testing.T) {
	require.NoError(t, RegisterProvider("provider-a"))
	err := RegisterProvider("provider-a")
	require.Error(t, err)
}

func TestVerifyIdentity(t *testing.T) {
	require.NoError(t, VerifyIdentity(Identity))
	require.Error(t, VerifyIdentity("not-yokan"))
}

func TestBulkHandleIsSingleSegment(t *testing.T) {
	h := NewBulkHandle(make([]byte, 16))
	require.Equal(t, 1, h.Segments())
	require.Len(t, h.Bytes(), 16)
	require.NoError(t, h.Pull())
	require.NoError(t, h.Push())
}

func TestRemoteHandlePushThenPull(t *testing.T) {
	region := make([]byte, 8)
	peer, err := ListenPeer("127.0.0.1:0", region)
	require.NoError(t, err)
	defer peer.Close()

	pusher := NewRemoteHandle(peer.Addr(), 8)
	copy(pusher.Bytes(), []byte("hello!!!"))
	require.NoError(t, pusher.Push())

	puller := NewRemoteHandle(peer.Addr(), 8)
	require.NoError(t, puller.Pull())
	require.Equal(t, "hello!!!", string(puller.Bytes()))
}
