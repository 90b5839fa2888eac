// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/towgame/tow/pkg/mod"
)

// Listener IDs handed to the host in Describe.
const (
	listenMoves = iota + 1
	listenWorld
)

// forbiddenWorld is the world echo never lets the host switch to.
const forbiddenWorld = "void"

type tankPayload struct {
	Tank struct {
		ID string  `json:"id"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	} `json:"tank"`
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type worldPayload struct {
	World string `json:"world"`
	Next  string `json:"next"`
}

type echo struct {
	logger   hclog.Logger
	attached bool
	echoed   int
}

var _ mod.Remote = (*echo)(nil)

func newEcho(logger hclog.Logger) *echo {
	return &echo{logger: logger}
}

func (e *echo) Describe() (mod.Descriptor, error) {
	return mod.Descriptor{
		Name:      "echo",
		API:       "^1.0",
		Entries:   1,
		InitHooks: 1,
		Listeners: []mod.ListenerSpec{
			{ID: listenMoves, Event: "tank.moved", Priority: "monitor"},
			{ID: listenWorld, Event: "world.changed", Priority: "high"},
		},
	}, nil
}

func (e *echo) Init(hook int) error {
	e.logger.Info("echo booting", "hook", hook)
	return nil
}

func (e *echo) Construct(entry int) error {
	if entry != 0 {
		return fmt.Errorf("echo has one entry, got %d", entry)
	}
	return nil
}

func (e *echo) Attach() error {
	e.attached = true
	e.logger.Info("echo attached")
	return nil
}

func (e *echo) Deliver(d mod.Delivery) (mod.Outcome, error) {
	switch d.Listener {
	case listenMoves:
		var p tankPayload
		if err := json.Unmarshal(d.Payload, &p); err != nil {
			return mod.Outcome{}, fmt.Errorf("decode %s: %w", d.Event, err)
		}
		e.echoed++
		e.logger.Info("echo", "tank", p.Tank.ID,
			"x", p.Tank.X+p.DX,
			"y", p.Tank.Y+p.DY,
			"cancelled", d.Cancelled)
		return mod.Outcome{}, nil
	case listenWorld:
		var p worldPayload
		if err := json.Unmarshal(d.Payload, &p); err != nil {
			return mod.Outcome{}, fmt.Errorf("decode %s: %w", d.Event, err)
		}
		if p.Next == forbiddenWorld {
			e.logger.Warn("refusing world change", "from", p.World, "to", p.Next)
			return mod.Outcome{Cancel: true}, nil
		}
		return mod.Outcome{}, nil
	default:
		return mod.Outcome{}, fmt.Errorf("unknown listener %d", d.Listener)
	}
}

func (e *echo) Detach() error {
	e.attached = false
	e.logger.Info("echo detached", "echoed", e.echoed)
	return nil
}
