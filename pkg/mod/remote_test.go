// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package mod_test

import (
	"errors"
	"testing"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towgame/tow/pkg/mod"
)

type fakeRemote struct {
	inits      []int
	constructs []int
	attached   bool
	detached   bool
	deliveries []mod.Delivery
}

func (f *fakeRemote) Describe() (mod.Descriptor, error) {
	return mod.Descriptor{
		Name:      "fake",
		API:       "^1.0",
		Entries:   1,
		InitHooks: 2,
		Listeners: []mod.ListenerSpec{{ID: 0, Event: "tank.moved", Priority: "high"}},
	}, nil
}

func (f *fakeRemote) Init(hook int) error {
	if hook > 1 {
		return errors.New("no such hook")
	}
	f.inits = append(f.inits, hook)
	return nil
}

func (f *fakeRemote) Construct(entry int) error {
	f.constructs = append(f.constructs, entry)
	return nil
}

func (f *fakeRemote) Attach() error {
	f.attached = true
	return nil
}

func (f *fakeRemote) Deliver(d mod.Delivery) (mod.Outcome, error) {
	f.deliveries = append(f.deliveries, d)
	return mod.Outcome{Cancel: true}, nil
}

func (f *fakeRemote) Detach() error {
	f.detached = true
	return nil
}

func dispense(t *testing.T, impl mod.Remote) mod.Remote {
	t.Helper()
	client, _ := hashiplug.TestPluginRPCConn(t, mod.PluginMap(impl), nil)
	t.Cleanup(func() { _ = client.Close() })

	raw, err := client.Dispense(mod.PluginName)
	require.NoError(t, err)
	remote, ok := raw.(mod.Remote)
	require.True(t, ok, "dispensed %T", raw)
	return remote
}

func TestRemote_RoundTrip(t *testing.T) {
	impl := &fakeRemote{}
	remote := dispense(t, impl)

	desc, err := remote.Describe()
	require.NoError(t, err)
	assert.Equal(t, "fake", desc.Name)
	assert.Equal(t, 1, desc.Entries)
	require.Len(t, desc.Listeners, 1)
	assert.Equal(t, "tank.moved", desc.Listeners[0].Event)

	require.NoError(t, remote.Init(0))
	require.NoError(t, remote.Init(1))
	require.NoError(t, remote.Construct(0))
	require.NoError(t, remote.Attach())

	out, err := remote.Deliver(mod.Delivery{Listener: 0, Event: "tank.moved", Payload: []byte(`{"TankID":"t1"}`)})
	require.NoError(t, err)
	assert.True(t, out.Cancel)
	assert.False(t, out.Handle)

	require.NoError(t, remote.Detach())

	assert.Equal(t, []int{0, 1}, impl.inits)
	assert.Equal(t, []int{0}, impl.constructs)
	assert.True(t, impl.attached)
	assert.True(t, impl.detached)
	require.Len(t, impl.deliveries, 1)
	assert.JSONEq(t, `{"TankID":"t1"}`, string(impl.deliveries[0].Payload))
}

func TestRemote_ErrorsCrossTheWire(t *testing.T) {
	remote := dispense(t, &fakeRemote{})

	err := remote.Init(7)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such hook")
}

func TestRemotePlugin_ServerRequiresImpl(t *testing.T) {
	p := &mod.RemotePlugin{}

	_, err := p.Server(nil)

	assert.Error(t, err)
}

func TestServe_PanicsWithoutImpl(t *testing.T) {
	assert.Panics(t, func() { mod.Serve(nil) })
}
