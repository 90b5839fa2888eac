// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package mod

import (
	"net/rpc"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"
)

// PluginName is the name remote mods are dispensed under.
const PluginName = "mod"

// HandshakeConfig is shared by the host and every remote mod. Bump
// ProtocolVersion when the Remote contract changes.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TOW_MOD",
	MagicCookieValue: "tow-mod-v1",
}

// ListenerSpec declares one remote listener. Events are named through the
// host registry since a remote process cannot share Go types with the host.
type ListenerSpec struct {
	ID       int
	Event    string
	Priority string
}

// Descriptor is what a remote mod contributes.
type Descriptor struct {
	Name      string
	API       string
	Entries   int
	InitHooks int
	Listeners []ListenerSpec
}

// Delivery is one event sent to a remote listener. Payload is the JSON form
// of the event.
type Delivery struct {
	Listener  int
	Event     string
	Payload   []byte
	Cancelled bool
	Handled   bool
}

// Outcome reports which latches the remote listener set.
type Outcome struct {
	Cancel bool
	Handle bool
}

// Remote is implemented by out-of-process mods.
type Remote interface {
	Describe() (Descriptor, error)
	// Init runs eager-init hook i.
	Init(hook int) error
	// Construct builds entry i.
	Construct(entry int) error
	Attach() error
	Deliver(d Delivery) (Outcome, error)
	Detach() error
}

// PluginMap returns the go-plugin plugin set for impl. Hosts pass a nil impl.
func PluginMap(impl Remote) map[string]hashiplug.Plugin {
	return map[string]hashiplug.Plugin{
		PluginName: &RemotePlugin{Impl: impl},
	}
}

// Serve runs a remote mod. Call it from main; it blocks until the host
// kills the process.
func Serve(impl Remote) {
	if impl == nil {
		panic("mod: remote implementation cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap(impl),
	})
}

// RemotePlugin implements go-plugin's Plugin interface over net/rpc.
type RemotePlugin struct {
	// Impl is used on the mod side only.
	Impl Remote
}

// Server returns the RPC server (called by the mod process).
func (p *RemotePlugin) Server(*hashiplug.MuxBroker) (interface{}, error) {
	if p.Impl == nil {
		return nil, oops.In("mod").Errorf("remote implementation is nil")
	}
	return &RPCServer{Impl: p.Impl}, nil
}

// Client returns the RPC client (called by the host process).
func (p *RemotePlugin) Client(_ *hashiplug.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// RPCClient is the host side of the Remote contract.
type RPCClient struct {
	client *rpc.Client
}

var _ Remote = (*RPCClient)(nil)

// Describe implements Remote.
func (c *RPCClient) Describe() (Descriptor, error) {
	var resp Descriptor
	err := c.client.Call("Plugin.Describe", new(interface{}), &resp)
	return resp, err
}

// Init implements Remote.
func (c *RPCClient) Init(hook int) error {
	var ok bool
	return c.client.Call("Plugin.Init", hook, &ok)
}

// Construct implements Remote.
func (c *RPCClient) Construct(entry int) error {
	var ok bool
	return c.client.Call("Plugin.Construct", entry, &ok)
}

// Attach implements Remote.
func (c *RPCClient) Attach() error {
	var ok bool
	return c.client.Call("Plugin.Attach", new(interface{}), &ok)
}

// Deliver implements Remote.
func (c *RPCClient) Deliver(d Delivery) (Outcome, error) {
	var resp Outcome
	err := c.client.Call("Plugin.Deliver", d, &resp)
	return resp, err
}

// Detach implements Remote.
func (c *RPCClient) Detach() error {
	var ok bool
	return c.client.Call("Plugin.Detach", new(interface{}), &ok)
}

// RPCServer is the mod side of the Remote contract.
type RPCServer struct {
	Impl Remote
}

// Describe serves Remote.Describe.
func (s *RPCServer) Describe(_ interface{}, resp *Descriptor) error {
	d, err := s.Impl.Describe()
	if err != nil {
		return err
	}
	*resp = d
	return nil
}

// Init serves Remote.Init.
func (s *RPCServer) Init(hook int, resp *bool) error {
	*resp = true
	return s.Impl.Init(hook)
}

// Construct serves Remote.Construct.
func (s *RPCServer) Construct(entry int, resp *bool) error {
	*resp = true
	return s.Impl.Construct(entry)
}

// Attach serves Remote.Attach.
func (s *RPCServer) Attach(_ interface{}, resp *bool) error {
	*resp = true
	return s.Impl.Attach()
}

// Deliver serves Remote.Deliver.
func (s *RPCServer) Deliver(d Delivery, resp *Outcome) error {
	out, err := s.Impl.Deliver(d)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

// Detach serves Remote.Detach.
func (s *RPCServer) Detach(_ interface{}, resp *bool) error {
	*resp = true
	return s.Impl.Detach()
}
