// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

// Package models defines the normalized vehicle data model shared by the
// sync, store, api, and websocket packages.
//
// A VehicleReading is the normalized form of one upstream device record.
// Optional telemetry uses pointer fields so "never reported" is distinct
// from a zero value, which is what makes field-level carry-forward and
// pointer coalescing possible. Readings are treated as immutable once
// published into a Snapshot.
package models

import (
	"reflect"
	"time"
)

// TriState represents a boolean flag the upstream may not report.
type TriState string

// TriState values. TriStateUnknown is the zero-ish default when the
// upstream has never reported the flag.
const (
	TriStateUnknown TriState = "unknown"
	TriStateOn      TriState = "on"
	TriStateOff     TriState = "off"
)

// TriStateFromFlag converts an upstream integer flag to a TriState.
func TriStateFromFlag(on bool) TriState {
	if on {
		return TriStateOn
	}
	return TriStateOff
}

// Position is a WGS84 coordinate pair.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// VehicleReading is the normalized state of a single vehicle.
//
// ID is the stable vehicle identity derived during normalization; all other
// fields describe the most recently known state. Optional numeric fields are
// nil until the upstream first reports them and retain their last known
// value afterward.
type VehicleReading struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rego string `json:"rego,omitempty"`

	Position *Position `json:"position,omitempty"`

	SpeedKMH        *float64 `json:"speed_kmh,omitempty"`
	Heading         *float64 `json:"heading,omitempty"`
	BatteryLevel    *float64 `json:"battery_level,omitempty"`
	Volts           *float64 `json:"volts,omitempty"`
	Odometer        *float64 `json:"odometer,omitempty"`
	EngineOnMinutes *float64 `json:"engine_on_minutes,omitempty"`

	InternalBattery string   `json:"internal_battery,omitempty"`
	ExternalPower   TriState `json:"external_power"`
	Engine          TriState `json:"engine"`

	ZoneIDs   []string `json:"zone_ids,omitempty"`
	ZoneNames []string `json:"zone_names,omitempty"`
	ZoneState string   `json:"zone_state,omitempty"`

	LastSeenAt time.Time `json:"last_seen_at,omitzero"`

	// CommsDelta is the raw seconds-since-last-comms reported upstream.
	// CommsDeltaSeconds is the adjusted value (raw minus one, floored at
	// zero) and LastComms its human-readable rendering.
	CommsDelta        *int64 `json:"comms_delta,omitempty"`
	CommsDeltaSeconds *int64 `json:"comms_delta_seconds,omitempty"`
	LastComms         string `json:"last_comms,omitempty"`

	// Raw is the unmodified upstream record, kept for diagnostics only.
	// It is excluded from API serialization.
	Raw map[string]any `json:"-"`
}

// Equal reports whether two readings are field-for-field identical.
// Pointer fields compare by pointed-to value. Raw maps compare deeply so a
// cosmetic upstream change still counts as a change.
func (r *VehicleReading) Equal(o *VehicleReading) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.ID != o.ID || r.Name != o.Name || r.Rego != o.Rego {
		return false
	}
	if !eqPositionPtr(r.Position, o.Position) {
		return false
	}
	if !eqFloatPtr(r.SpeedKMH, o.SpeedKMH) ||
		!eqFloatPtr(r.Heading, o.Heading) ||
		!eqFloatPtr(r.BatteryLevel, o.BatteryLevel) ||
		!eqFloatPtr(r.Volts, o.Volts) ||
		!eqFloatPtr(r.Odometer, o.Odometer) ||
		!eqFloatPtr(r.EngineOnMinutes, o.EngineOnMinutes) {
		return false
	}
	if r.InternalBattery != o.InternalBattery ||
		r.ExternalPower != o.ExternalPower ||
		r.Engine != o.Engine {
		return false
	}
	if !eqStrings(r.ZoneIDs, o.ZoneIDs) || !eqStrings(r.ZoneNames, o.ZoneNames) || r.ZoneState != o.ZoneState {
		return false
	}
	if !r.LastSeenAt.Equal(o.LastSeenAt) {
		return false
	}
	if !eqInt64Ptr(r.CommsDelta, o.CommsDelta) ||
		!eqInt64Ptr(r.CommsDeltaSeconds, o.CommsDeltaSeconds) ||
		r.LastComms != o.LastComms {
		return false
	}
	return reflect.DeepEqual(r.Raw, o.Raw)
}

func eqPositionPtr(a, b *Position) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Snapshot is the full published fleet state, keyed by vehicle ID.
// A Snapshot and the readings inside it are immutable after publication;
// each poll cycle builds a fresh map rather than mutating in place.
type Snapshot map[string]*VehicleReading
