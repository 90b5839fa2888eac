// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package remote loads .mod executables as out-of-process mods using
// HashiCorp's go-plugin over net/rpc.
//
// Each mod runs in its own child process: a crash in the mod cannot take the
// host down, and Close kills the process.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/towgame/tow/internal/logging"
	"github.com/towgame/tow/internal/modloader"
	"github.com/towgame/tow/pkg/errutil"
	"github.com/towgame/tow/pkg/event"
	"github.com/towgame/tow/pkg/mod"
)

// DefaultHandshakeAttempts is how many times a failed handshake is retried.
const DefaultHandshakeAttempts = 3

// PluginClient wraps the go-plugin client for testability.
type PluginClient interface {
	// Client starts the process if needed and returns the RPC protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	NewClient(execPath string, logger hclog.Logger) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct{}

// NewClient creates a go-plugin client speaking net/rpc.
func (DefaultClientFactory) NewClient(execPath string, logger hclog.Logger) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  mod.HandshakeConfig,
		Plugins:          mod.PluginMap(nil),
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath comes from the mods directory listing
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolNetRPC},
		Logger:           logger,
	})
}

var _ modloader.Opener = (*Opener)(nil)

// Opener loads .mod executables.
type Opener struct {
	factory   ClientFactory
	attempts  uint64
	backoff   time.Duration
	logFormat string
	logOutput io.Writer
}

// OpenerOption configures the Opener.
type OpenerOption func(*Opener)

// WithClientFactory replaces the go-plugin client factory.
func WithClientFactory(f ClientFactory) OpenerOption {
	return func(o *Opener) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithHandshakeRetry sets how often and how far apart a failed handshake
// is retried.
func WithHandshakeRetry(attempts uint64, backoff time.Duration) OpenerOption {
	return func(o *Opener) {
		o.attempts = attempts
		if backoff > 0 {
			o.backoff = backoff
		}
	}
}

// WithPluginLog sets where go-plugin writes child process logs.
func WithPluginLog(format string, w io.Writer) OpenerOption {
	return func(o *Opener) {
		o.logFormat = format
		o.logOutput = w
	}
}

// NewOpener creates a remote opener.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		factory:  DefaultClientFactory{},
		attempts: DefaultHandshakeAttempts,
		backoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backend implements modloader.Opener.
func (o *Opener) Backend() string { return "remote" }

// Extension implements modloader.Opener.
func (o *Opener) Extension() string { return ".mod" }

// Open starts the executable, completes the handshake and reads the mod's
// descriptor.
func (o *Opener) Open(ctx context.Context, path string, env modloader.Env) (modloader.OpenedUnit, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, oops.In("remote").With("path", path).Hint("cannot access mod executable").Wrap(err)
	}

	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, rem, err := o.connect(ctx, path)
	if err != nil {
		return nil, err
	}

	desc, err := rem.Describe()
	if err != nil {
		client.Kill()
		return nil, oops.In("remote").With("path", path).Wrapf(err, "describe")
	}

	u := &unit{client: client, remote: rem, desc: desc, logger: logger}
	if err := u.buildListeners(env.Registry); err != nil {
		client.Kill()
		return nil, oops.In("remote").With("path", path).Wrap(err)
	}
	return u, nil
}

// connect runs the handshake, starting a fresh process for every attempt.
func (o *Opener) connect(ctx context.Context, path string) (PluginClient, mod.Remote, error) {
	var (
		client PluginClient
		rem    mod.Remote
	)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	backoff := retry.WithMaxRetries(o.attempts, retry.NewConstant(o.backoff))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		c := o.factory.NewClient(path, logging.ForPlugin(name, o.logFormat, o.logOutput))
		proto, err := c.Client()
		if err != nil {
			c.Kill()
			return retry.RetryableError(err)
		}
		raw, err := proto.Dispense(mod.PluginName)
		if err != nil {
			c.Kill()
			return err
		}
		r, ok := raw.(mod.Remote)
		if !ok {
			c.Kill()
			return fmt.Errorf("dispensed %T does not implement mod.Remote", raw)
		}
		client, rem = c, r
		return nil
	})
	if err != nil {
		return nil, nil, oops.In("remote").With("path", path).Hint("handshake failed").Wrap(err)
	}
	return client, rem, nil
}

// unit is one running mod process.
type unit struct {
	client    PluginClient
	remote    mod.Remote
	desc      mod.Descriptor
	logger    *slog.Logger
	listeners []event.Listener
}

func (u *unit) Name() string                { return u.desc.Name }
func (u *unit) API() string                 { return u.desc.API }
func (u *unit) Listeners() []event.Listener { return u.listeners }

func (u *unit) Entries() []mod.Constructor {
	ctors := make([]mod.Constructor, u.desc.Entries)
	for i := range ctors {
		ctors[i] = func() (mod.Entry, error) {
			if err := u.remote.Construct(i); err != nil {
				return nil, err
			}
			return &entry{unit: u}, nil
		}
	}
	return ctors
}

func (u *unit) InitHooks() []mod.InitHook {
	hooks := make([]mod.InitHook, u.desc.InitHooks)
	for i := range hooks {
		hooks[i] = func() error { return u.remote.Init(i) }
	}
	return hooks
}

func (u *unit) Close() error {
	u.client.Kill()
	return nil
}

func (u *unit) buildListeners(reg *event.Registry) error {
	if len(u.desc.Listeners) > 0 && reg == nil {
		return oops.Errorf("no event registry available")
	}
	for _, spec := range u.desc.Listeners {
		// Codes from the event package stay out of the chain so the loader's
		// load failure code wins.
		key, err := reg.Lookup(spec.Event)
		if err != nil {
			return oops.Errorf("listener %d: %v", spec.ID, err)
		}
		p, err := event.ParsePriority(spec.Priority)
		if err != nil {
			return oops.Errorf("listener %d: %v", spec.ID, err)
		}
		id := fmt.Sprintf("%s#%d", spec.Event, spec.ID)
		u.listeners = append(u.listeners, event.Adapt(key, func(e event.Event) {
			u.deliver(spec, id, e)
		}, event.WithPriority(p), event.WithName(id)))
	}
	return nil
}

// deliver forwards e to the mod process and applies the returned latches.
// Transport and mod errors are logged and contained.
func (u *unit) deliver(spec mod.ListenerSpec, id string, e event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		errutil.LogWarn(u.logger, "event cannot be sent to mod", err, "listener", id)
		return
	}
	d := mod.Delivery{Listener: spec.ID, Event: spec.Event, Payload: payload}
	c, cancellable := e.(event.CancellableEvent)
	if cancellable {
		d.Cancelled = c.IsCancelled()
	}
	h, handleable := e.(event.HandleableEvent)
	if handleable {
		d.Handled = h.IsHandled()
	}

	out, err := u.remote.Deliver(d)
	if err != nil {
		errutil.LogWarn(u.logger, "remote listener failed", err, "listener", id)
		return
	}
	if out.Cancel && cancellable {
		c.Cancel()
	}
	if out.Handle && handleable {
		h.Handle()
	}
}

type entry struct {
	unit *unit
}

func (e *entry) Attach(mod.Host) error {
	return e.unit.remote.Attach()
}

func (e *entry) Detach() {
	if err := e.unit.remote.Detach(); err != nil {
		errutil.LogWarn(e.unit.logger, "remote detach failed", err)
	}
}
