// Package history holds the cached event types and the wire records they are built from.
package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// WindDirection is the sensor type for wind direction. It is only meaningful
// next to a wind speed reading, so it is never offered as a standalone type.
const WindDirection = "wdir"

// DeviceEntry is one cached device history row.
type DeviceEntry struct {
	TS            int64  `json:"ts" yaml:"ts"`
	DeviceID      int64  `json:"deviceId" yaml:"deviceId"`
	State         int    `json:"state" yaml:"state"`
	StateValue    string `json:"stateValue" yaml:"stateValue"`
	Origin        string `json:"origin" yaml:"origin"`
	SuccessStatus int    `json:"successStatus" yaml:"successStatus"`
	Title         string `json:"title" yaml:"title"`
	Description   string `json:"description" yaml:"description"`
	Color         string `json:"color" yaml:"color"`
	Icon          string `json:"icon" yaml:"icon"`
	Class         string `json:"class" yaml:"class"`
}

// Timestamp returns the event time in seconds since epoch.
func (e DeviceEntry) Timestamp() int64 { return e.TS }

// SensorEntry is one cached sensor measurement.
type SensorEntry struct {
	TS       int64   `json:"ts" yaml:"ts"`
	SensorID int64   `json:"sensorId" yaml:"sensorId"`
	Type     string  `json:"type" yaml:"type"`
	Value    float64 `json:"value" yaml:"value"`
	Scale    string  `json:"scale" yaml:"scale"`
}

// Timestamp returns the measurement time in seconds since epoch.
func (e SensorEntry) Timestamp() int64 { return e.TS }

// SensorType is a measurement kind a sensor has reported.
type SensorType struct {
	Type  string `json:"type" yaml:"type"`
	Scale string `json:"scale" yaml:"scale"`
}

// GeoFenceEvent is a logged geofence crossing.
type GeoFenceEvent struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Action     string `json:"action" yaml:"action"`
	Title      string `json:"title" yaml:"title"`
	Timestamp  string `json:"timestamp" yaml:"timestamp"`
	InAppTime  string `json:"inAppTime" yaml:"inAppTime"`
}

// Validate checks the natural key fields are present.
func (e GeoFenceEvent) Validate() error {
	if e.Identifier == "" {
		return fmt.Errorf("geofence event: identifier is empty")
	}
	if e.Timestamp == "" && e.InAppTime == "" {
		return fmt.Errorf("geofence event %s: no timestamp", e.Identifier)
	}
	return nil
}

// DeviceRecord is a device history record as returned by the remote API.
type DeviceRecord struct {
	TS            int64      `json:"ts"`
	State         int        `json:"state"`
	StateValue    FlexString `json:"stateValue"`
	Origin        string     `json:"origin"`
	SuccessStatus int        `json:"successStatus"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Color         string     `json:"color"`
	Icon          string     `json:"icon"`
	DeviceClass   string     `json:"deviceClass"`
}

// SensorRecord is a sensor history record as returned by the remote API.
// One record carries every value the sensor reported at TS.
type SensorRecord struct {
	TS   int64         `json:"ts"`
	Data []SensorDatum `json:"data"`
}

// SensorDatum is a single value inside a SensorRecord.
type SensorDatum struct {
	Name  string     `json:"name"`
	Value FlexFloat  `json:"value"`
	Scale FlexString `json:"scale"`
}

// DeviceEntries converts remote records into rows owned by deviceID.
func DeviceEntries(deviceID int64, records []DeviceRecord) []DeviceEntry {
	entries := make([]DeviceEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, DeviceEntry{
			TS:            r.TS,
			DeviceID:      deviceID,
			State:         r.State,
			StateValue:    string(r.StateValue),
			Origin:        r.Origin,
			SuccessStatus: r.SuccessStatus,
			Title:         r.Title,
			Description:   r.Description,
			Color:         r.Color,
			Icon:          r.Icon,
			Class:         r.DeviceClass,
		})
	}
	return entries
}

// SensorEntries flattens remote records into one row per reported value.
func SensorEntries(sensorID int64, records []SensorRecord) []SensorEntry {
	var entries []SensorEntry
	for _, r := range records {
		for _, d := range r.Data {
			entries = append(entries, SensorEntry{
				TS:       r.TS,
				SensorID: sensorID,
				Type:     d.Name,
				Value:    float64(d.Value),
				Scale:    string(d.Scale),
			})
		}
	}
	return entries
}

// FlexString decodes from either a JSON string or a JSON number.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*s = FlexString(n.String())
	return nil
}

// FlexFloat decodes from either a JSON number or a numeric JSON string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("flex float %q: %w", v, err)
		}
		*f = FlexFloat(parsed)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("flex float: %w", err)
	}
	*f = FlexFloat(v)
	return nil
}
