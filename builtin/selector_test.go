// SPDX-License-Identifier: GPL-3.0-or-later

package builtin

import (
	"context"
	"testing"

	"github.com/rdproxy/rdnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestSelector(t *testing.T, names ...string) (*Selector, map[string]*Reject) {
	t.Helper()
	getter := func(ref *rdnet.NetRef, _ *rdnet.VisitorContext) (*rdnet.RunningNet, error) {
		return ref.Net()
	}
	nets := make(map[string]rdnet.NetRef, len(names))
	rejects := make(map[string]*Reject, len(names))
	for _, name := range names {
		r := NewReject()
		rejects[name] = r
		nets[name] = rdnet.NewNetRef(name, rdnet.NewRunningNet(name, r))
	}
	cfg := &SelectorConfig{Nets: nets}
	s, err := NewSelector(getter, rdnet.NewVisitorContext("net/sel"), cfg)
	require.NoError(t, err)
	return s, rejects
}

func TestSelectorDefaultsToFirstWhenUnset(t *testing.T) {
	s, _ := buildTestSelector(t, "a")
	assert.Equal(t, "a", s.Current())
}

func TestSelectorSelectSwitchesCurrent(t *testing.T) {
	s, _ := buildTestSelector(t, "a", "b")
	require.NoError(t, s.Select("b"))
	assert.Equal(t, "b", s.Current())
}

func TestSelectorSelectUnknownNameFails(t *testing.T) {
	s, _ := buildTestSelector(t, "a")
	err := s.Select("missing")
	assert.Equal(t, rdnet.KindNotFound, rdnet.KindOf(err))
}

func TestSelectorDelegatesToCurrentChild(t *testing.T) {
	s, _ := buildTestSelector(t, "a", "b")
	require.NoError(t, s.Select("b"))

	_, err := s.TCPConnect(context.Background(), rdnet.NewContext(), rdnet.NewAddressDomain("example.com", 443))
	assert.ErrorIs(t, err, rdnet.ErrConnectionRefused)
}

func TestSelectorNamesReturnsAllChildren(t *testing.T) {
	s, _ := buildTestSelector(t, "a", "b", "c")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, s.Names())
}
