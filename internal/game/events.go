// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

package game

import (
	"reflect"

	"github.com/samber/oops"

	"github.com/towgame/tow/pkg/event"
)

// Event names, as seen by Lua and remote mods.
const (
	EventTick         = "game.tick"
	EventReady        = "game.ready"
	EventTankMoved    = "tank.moved"
	EventTankRotated  = "tank.rotated"
	EventTowerRotated = "tank.tower_rotated"
	EventWorldChanged = "world.changed"
	EventWorldRemoved = "world.removed"
	EventTank         = "tank"
	EventWorld        = "world"
)

// TickStage marks whether a tick event opens or closes a tick.
type TickStage string

// Tick stages.
const (
	TickStart TickStage = "start"
	TickEnd   TickStage = "end"
)

// TickEvent is published twice per clock tick, at its start and at its end.
type TickEvent struct {
	event.Base
	Clock string    `json:"clock"`
	Stage TickStage `json:"stage"`
	Tick  int64     `json:"tick"`
	// Delta is the time in seconds since the previous tick. It is zero on
	// the first tick.
	Delta float64 `json:"delta"`
}

// GameReadyEvent is published once after the load pass, when every mod is
// running.
type GameReadyEvent struct {
	event.Base
	Mods  int    `json:"mods"`
	World string `json:"world"`
}

// Tank is the state of one tank as carried by tank events.
type Tank struct {
	ID            string  `json:"id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Rotation      float64 `json:"rotation"`
	TowerRotation float64 `json:"tower_rotation"`
}

// TankEvent is implemented by every event about a tank. Listeners keyed on
// it receive all of them.
type TankEvent interface {
	event.CancellableEvent
	TankState() Tank
}

type tankEvent struct {
	event.Cancellable
	Tank Tank `json:"tank"`
}

func (e *tankEvent) TankState() Tank { return e.Tank }

// TankMovedEvent is published before a tank moves. Cancelling it keeps the
// tank in place.
type TankMovedEvent struct {
	tankEvent
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// TankRotatedEvent is published before a tank hull rotates.
type TankRotatedEvent struct {
	tankEvent
	Degrees float64 `json:"degrees"`
}

// TankTowerRotatedEvent is published before a tank tower rotates.
type TankTowerRotatedEvent struct {
	tankEvent
	Degrees float64 `json:"degrees"`
}

// WorldEvent is implemented by every event about the loaded world.
type WorldEvent interface {
	event.CancellableEvent
	WorldName() string
}

type worldEvent struct {
	event.Cancellable
	World string `json:"world"`
}

func (e *worldEvent) WorldName() string { return e.World }

// WorldChangedEvent is published before the current world is replaced.
type WorldChangedEvent struct {
	worldEvent
	Next string `json:"next"`
}

// WorldRemovedEvent is published before the current world is unloaded.
type WorldRemovedEvent struct {
	worldEvent
}

// NewTankMovedEvent builds a move event for t.
func NewTankMovedEvent(t Tank, dx, dy float64) *TankMovedEvent {
	return &TankMovedEvent{tankEvent: tankEvent{Tank: t}, DX: dx, DY: dy}
}

// NewTankRotatedEvent builds a hull rotation event for t.
func NewTankRotatedEvent(t Tank, degrees float64) *TankRotatedEvent {
	return &TankRotatedEvent{tankEvent: tankEvent{Tank: t}, Degrees: degrees}
}

// NewTankTowerRotatedEvent builds a tower rotation event for t.
func NewTankTowerRotatedEvent(t Tank, degrees float64) *TankTowerRotatedEvent {
	return &TankTowerRotatedEvent{tankEvent: tankEvent{Tank: t}, Degrees: degrees}
}

// NewWorldChangedEvent builds a world change from current to next.
func NewWorldChangedEvent(current, next string) *WorldChangedEvent {
	return &WorldChangedEvent{worldEvent: worldEvent{World: current}, Next: next}
}

// NewWorldRemovedEvent builds a world removal event.
func NewWorldRemovedEvent(world string) *WorldRemovedEvent {
	return &WorldRemovedEvent{worldEvent: worldEvent{World: world}}
}

var gameEvents = []struct {
	name string
	typ  reflect.Type
}{
	{EventTick, reflect.TypeFor[*TickEvent]()},
	{EventReady, reflect.TypeFor[*GameReadyEvent]()},
	{EventTankMoved, reflect.TypeFor[*TankMovedEvent]()},
	{EventTankRotated, reflect.TypeFor[*TankRotatedEvent]()},
	{EventTowerRotated, reflect.TypeFor[*TankTowerRotatedEvent]()},
	{EventWorldChanged, reflect.TypeFor[*WorldChangedEvent]()},
	{EventWorldRemoved, reflect.TypeFor[*WorldRemovedEvent]()},
	{EventTank, reflect.TypeFor[TankEvent]()},
	{EventWorld, reflect.TypeFor[WorldEvent]()},
}

// RegisterEvents names every game event in r.
func RegisterEvents(r *event.Registry) error {
	for _, ev := range gameEvents {
		if err := r.Register(ev.name, ev.typ); err != nil {
			return oops.In("game").Wrapf(err, "register game events")
		}
	}
	return nil
}
