// internal/services/snapshot.go
package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/javajoker/verifyhub/internal/models"
)

// snapshotDoc is a parsed device snapshot. Plugins of different versions send
// different shapes, so every field is read independently and a wrong type only
// drops that field.
type snapshotDoc map[string]any

func parseSnapshot(raw string) snapshotDoc {
	var doc snapshotDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil || doc == nil {
		return snapshotDoc{}
	}
	return doc
}

// first returns the value of the first key present and non-null.
func (d snapshotDoc) first(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := d[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (d snapshotDoc) str(keys ...string) *string {
	v, ok := d.first(keys...)
	if !ok {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

func (d snapshotDoc) boolean(keys ...string) *bool {
	v, ok := d.first(keys...)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return &b
		}
	}
	return nil
}

func (d snapshotDoc) float(keys ...string) *float64 {
	v, ok := d.first(keys...)
	if !ok {
		return nil
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func (d snapshotDoc) integer(keys ...string) *int {
	f := d.float(keys...)
	if f == nil || *f > math.MaxInt32 || *f < math.MinInt32 {
		return nil
	}
	n := int(math.Round(*f))
	return &n
}

type fieldExtractor func(doc snapshotDoc, record *models.TelemetryRecord)

var snapshotFields = []fieldExtractor{
	func(d snapshotDoc, r *models.TelemetryRecord) { r.IPAddress = d.str("ipAddress", "ip") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.CountryCode = d.str("countryCode", "country") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.City = d.str("city") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.ISP = d.str("isp") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.IsProxy = d.boolean("isProxy") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.IsVPN = d.boolean("isVpn") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.IsTor = d.boolean("isTor") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.GPSLatitude = d.float("gpsLatitude") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.GPSLongitude = d.float("gpsLongitude") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.BrowserName = d.str("browserName") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.OSName = d.str("osName") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.DeviceType = d.str("deviceType") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.IsMobile = d.boolean("isMobile") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.BatteryLevel = d.float("batteryLevel") },
	func(d snapshotDoc, r *models.TelemetryRecord) {
		r.NetworkType = d.str("networkType", "networkEffectiveType")
	},
	func(d snapshotDoc, r *models.TelemetryRecord) { r.CanvasHash = d.str("canvasHash") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.RiskScore = d.integer("riskScore") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.UserEmail = d.str("email", "contactEmail") },
	func(d snapshotDoc, r *models.TelemetryRecord) { r.UserPhone = d.str("phoneNumber", "phone") },
}

// applySnapshot fills the optional fields of record from raw and keeps raw verbatim.
func applySnapshot(raw string, record *models.TelemetryRecord) {
	record.RawJSON = raw
	if strings.TrimSpace(raw) == "" {
		record.RawJSON = "{}"
	}
	doc := parseSnapshot(raw)
	for _, extract := range snapshotFields {
		extract(doc, record)
	}
}
