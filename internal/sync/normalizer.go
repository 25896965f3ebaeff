// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

/*
normalizer.go - Device Record Normalization

Pure functions that turn one loosely-typed upstream device record into a
VehicleReading. The upstream mixes strings and numbers freely, renames
fields between firmware versions, and omits fields it did not sample this
cycle, so normalization is built around three rules:

 1. Alias lists per field, checked in order, nested telemetry point first.
 2. Permissive scalar coercion: "12.5" and 12.5 are the same value.
 3. Field-level carry-forward: an absent or malformed field keeps the
    previous reading's value instead of regressing to unknown.

Identity derivation walks a preference list of id-bearing fields, then
falls back to a short stable hash of account and display name. A record
with no identity-bearing field at all is dropped by the caller.

All functions here are side-effect free; the coordinator owns logging,
metrics, and coalescing decisions.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"crypto/sha1" //nolint:gosec // identity hashing, not security
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/fleetglass/internal/models"
)

// identityFields is the preference order for id-bearing record fields.
var identityFields = []string{
	"unique_id", "id", "vehicle_id", "uuid", "vin", "imei", "deviceId", "device_id",
}

// nameFields is the preference order for display name fields.
var nameFields = []string{"name", "label", "display_name"}

// Options configures identity derivation.
type Options struct {
	// IdentityField, when set, is checked before the built-in preference
	// list. Lets an operator pin identity to a specific upstream field.
	IdentityField string

	// AccountID salts the hash fallback so identical vehicle names in
	// different accounts derive distinct IDs.
	AccountID string
}

// DeriveVehicleID derives the stable vehicle identity for a raw record.
// Returns false when the record carries no identity-bearing field of any
// kind; such records must be dropped by the caller.
func DeriveVehicleID(raw map[string]any, opts Options) (string, bool) {
	if opts.IdentityField != "" {
		if v := stringValue(raw[opts.IdentityField]); v != "" {
			return v, true
		}
	}
	for _, field := range identityFields {
		if v := stringValue(raw[field]); v != "" {
			return v, true
		}
	}
	// Last resort: a stable hash of account and name.
	if name := firstString(raw, nameFields); name != "" {
		return hashIdentity(opts.AccountID, name), true
	}
	return "", false
}

// hashIdentity derives a short stable identifier from account and name.
func hashIdentity(account, name string) string {
	sum := sha1.Sum([]byte(account + ":" + name)) //nolint:gosec // not security-sensitive
	return hex.EncodeToString(sum[:])[:12]
}

// NormalizeDevice converts one raw device record into a VehicleReading.
//
// prev is the vehicle's previous reading (nil for a new vehicle) and feeds
// per-field carry-forward. zoneNames resolves zone IDs to display names,
// falling back to the raw ID for unknown zones. The result is always a new
// allocation; coalescing against prev is the caller's job.
func NormalizeDevice(id string, raw map[string]any, prev *models.VehicleReading, zoneNames map[string]string) *models.VehicleReading {
	r := &models.VehicleReading{
		ID:  id,
		Raw: raw,
	}

	if name := firstString(raw, nameFields); name != "" {
		r.Name = name
	} else {
		r.Name = "Vehicle " + id
	}
	r.Rego = firstString(raw, []string{"rego", "registration", "plate"})
	r.InternalBattery = firstString(raw, []string{"internal_battery", "int_battery"})

	point := firstPoint(raw)

	if pos := extractPosition(point, raw); pos != nil {
		r.Position = pos
	} else if prev != nil {
		r.Position = prev.Position
	}

	r.SpeedKMH = mergeFloat(point, raw, []string{"speed"}, []string{"speed_kmh", "speed"}, prevFloat(prev, func(p *models.VehicleReading) *float64 { return p.SpeedKMH }))
	r.Heading = mergeFloat(point, raw, []string{"heading"}, []string{"heading", "bearing", "course"}, prevFloat(prev, func(p *models.VehicleReading) *float64 { return p.Heading }))
	r.BatteryLevel = mergeFloat(nil, raw, nil, []string{"battery_level", "battery"}, prevFloat(prev, func(p *models.VehicleReading) *float64 { return p.BatteryLevel }))
	r.Volts = mergeFloat(nil, raw, nil, []string{"volts", "voltage"}, prevFloat(prev, func(p *models.VehicleReading) *float64 { return p.Volts }))
	r.Odometer = mergeFloat(nil, raw, nil, []string{"odometer", "odo"}, prevFloat(prev, func(p *models.VehicleReading) *float64 { return p.Odometer }))
	r.EngineOnMinutes = mergeFloat(nil, raw, nil, []string{"acc_counter", "engine_minutes"}, prevFloat(prev, func(p *models.VehicleReading) *float64 { return p.EngineOnMinutes }))

	r.ExternalPower = mergeTriState(raw, []string{"external_power", "ext_power"}, prevTri(prev, func(p *models.VehicleReading) models.TriState { return p.ExternalPower }))
	r.Engine = mergeTriState(raw, []string{"engine", "ignition", "acc"}, prevTri(prev, func(p *models.VehicleReading) models.TriState { return p.Engine }))

	r.ZoneIDs = ParseZoneList(firstString(raw, []string{"zone", "zones"}))
	if len(r.ZoneIDs) > 0 {
		r.ZoneNames = make([]string, len(r.ZoneIDs))
		for i, zid := range r.ZoneIDs {
			if name, ok := zoneNames[zid]; ok && name != "" {
				r.ZoneNames[i] = name
			} else {
				r.ZoneNames[i] = zid
			}
		}
		r.ZoneState = strings.Join(r.ZoneNames, ", ")
	}

	if ts, ok := extractTimestamp(point, raw); ok {
		r.LastSeenAt = ts
	} else if prev != nil {
		r.LastSeenAt = prev.LastSeenAt
	}

	if rawDelta, ok := intField(raw, "comms_delta", "comms", "last_comms_delta"); ok {
		adjusted := AdjustCommsDelta(rawDelta)
		r.CommsDelta = &rawDelta
		r.CommsDeltaSeconds = &adjusted
		r.LastComms = FormatCommsDelta(adjusted)
	} else if prev != nil {
		r.CommsDelta = prev.CommsDelta
		r.CommsDeltaSeconds = prev.CommsDeltaSeconds
		r.LastComms = prev.LastComms
	}

	return r
}

// ParseZoneList splits a comma-separated zone field, trimming whitespace,
// dropping empties, and preserving upstream order.
func ParseZoneList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	zones := make([]string, 0, len(parts))
	for _, p := range parts {
		if z := strings.TrimSpace(p); z != "" {
			zones = append(zones, z)
		}
	}
	if len(zones) == 0 {
		return nil
	}
	return zones
}

// firstPoint returns the most recent nested telemetry point, if any.
// The upstream lists points newest-first under "aaData" or "points".
func firstPoint(raw map[string]any) map[string]any {
	for _, key := range []string{"aaData", "points"} {
		list, ok := raw[key].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		if point, ok := list[0].(map[string]any); ok {
			return point
		}
	}
	return nil
}

// extractPosition reads a coordinate pair, nested point first, then the
// top-level record. Both axes must parse and be in range or the position
// is treated as absent.
func extractPosition(point, raw map[string]any) *models.Position {
	sources := []map[string]any{point, raw}
	for _, src := range sources {
		if src == nil {
			continue
		}
		lat, latOK := floatField(src, "lat", "latitude")
		lng, lngOK := floatField(src, "lng", "lon", "longitude")
		if !latOK || !lngOK {
			continue
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			continue
		}
		return &models.Position{Latitude: lat, Longitude: lng}
	}
	return nil
}

// extractTimestamp reads the newest available record timestamp: nested
// point epoch first, then top-level epoch fields, then ISO string fields.
func extractTimestamp(point, raw map[string]any) (time.Time, bool) {
	if point != nil {
		if epoch, ok := intField(point, "epoch", "timestamp"); ok && epoch > 0 {
			return time.Unix(epoch, 0).UTC(), true
		}
	}
	if epoch, ok := intField(raw, "timestamp_epoch", "epoch"); ok && epoch > 0 {
		return time.Unix(epoch, 0).UTC(), true
	}
	// A numeric "timestamp" is an epoch; a string one is ISO.
	if epoch, ok := intField(raw, "timestamp"); ok && epoch > 0 {
		return time.Unix(epoch, 0).UTC(), true
	}
	for _, key := range []string{"timestamp", "recorded_at", "time", "updated_at"} {
		s, ok := raw[key].(string)
		if !ok || s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// floatValue coerces a JSON scalar to float64. Strings parse permissively;
// anything else is absent.
func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// floatField returns the first coercible float among the given keys.
func floatField(src map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := src[k]; ok {
			if f, ok := floatValue(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// intField returns the first coercible integer among the given keys.
func intField(src map[string]any, keys ...string) (int64, bool) {
	if f, ok := floatField(src, keys...); ok {
		return int64(f), true
	}
	return 0, false
}

// firstString returns the first non-empty string-coercible value among keys.
func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if v := stringValue(raw[k]); v != "" {
			return v
		}
	}
	return ""
}

// mergeFloat resolves an optional float: nested point keys first, then
// top-level keys, then carry-forward from the previous reading.
func mergeFloat(point, raw map[string]any, pointKeys, rawKeys []string, prevVal *float64) *float64 {
	if point != nil {
		if f, ok := floatField(point, pointKeys...); ok {
			return &f
		}
	}
	if f, ok := floatField(raw, rawKeys...); ok {
		return &f
	}
	return prevVal
}

// mergeTriState resolves a tri-state flag from integer-ish upstream values,
// carrying forward when absent or unparseable.
func mergeTriState(raw map[string]any, keys []string, prevVal models.TriState) models.TriState {
	for _, k := range keys {
		v, present := raw[k]
		if !present {
			continue
		}
		switch t := v.(type) {
		case bool:
			return models.TriStateFromFlag(t)
		case float64:
			if t == 1 {
				return models.TriStateOn
			}
			if t == 0 {
				return models.TriStateOff
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "1", "true", "on", "yes":
				return models.TriStateOn
			case "0", "false", "off", "no":
				return models.TriStateOff
			}
		}
	}
	if prevVal == "" {
		return models.TriStateUnknown
	}
	return prevVal
}

// prevFloat safely projects an optional float from a possibly-nil reading.
// Sharing the previous pointer is safe because published readings are
// immutable.
func prevFloat(prev *models.VehicleReading, get func(*models.VehicleReading) *float64) *float64 {
	if prev == nil {
		return nil
	}
	return get(prev)
}

// prevTri safely projects a tri-state from a possibly-nil reading.
func prevTri(prev *models.VehicleReading, get func(*models.VehicleReading) models.TriState) models.TriState {
	if prev == nil {
		return models.TriStateUnknown
	}
	return get(prev)
}
