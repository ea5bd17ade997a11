// internal/services/snapshot_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/verifyhub/internal/models"
)

func TestApplySnapshot_FullDocument(t *testing.T) {
	raw := `{
		"ipAddress": "198.51.100.4",
		"countryCode": "TW",
		"city": "Taipei",
		"isp": "HiNet",
		"isProxy": false,
		"isVpn": "true",
		"isTor": false,
		"gpsLatitude": 25.033,
		"gpsLongitude": "121.565",
		"browserName": "Chrome",
		"osName": "Android",
		"deviceType": "phone",
		"isMobile": true,
		"batteryLevel": 0.82,
		"networkType": "4g",
		"canvasHash": "ab12cd",
		"riskScore": 17,
		"email": "someone@example.com",
		"phoneNumber": "+886900000000"
	}`

	var record models.TelemetryRecord
	applySnapshot(raw, &record)

	require.NotNil(t, record.IPAddress)
	assert.Equal(t, "198.51.100.4", *record.IPAddress)
	require.NotNil(t, record.City)
	assert.Equal(t, "Taipei", *record.City)
	require.NotNil(t, record.IsVPN)
	assert.True(t, *record.IsVPN)
	require.NotNil(t, record.IsProxy)
	assert.False(t, *record.IsProxy)
	require.NotNil(t, record.GPSLongitude)
	assert.InDelta(t, 121.565, *record.GPSLongitude, 1e-9)
	require.NotNil(t, record.BatteryLevel)
	assert.InDelta(t, 0.82, *record.BatteryLevel, 1e-9)
	require.NotNil(t, record.RiskScore)
	assert.Equal(t, 17, *record.RiskScore)
	require.NotNil(t, record.UserPhone)
	assert.Equal(t, "+886900000000", *record.UserPhone)
	assert.Equal(t, raw, record.RawJSON)
}

func TestApplySnapshot_AlternateKeys(t *testing.T) {
	var record models.TelemetryRecord
	applySnapshot(`{"ip":"10.0.0.1","country":"JP","networkEffectiveType":"wifi","contactEmail":"a@b.co","phone":"123"}`, &record)

	require.NotNil(t, record.IPAddress)
	assert.Equal(t, "10.0.0.1", *record.IPAddress)
	require.NotNil(t, record.CountryCode)
	assert.Equal(t, "JP", *record.CountryCode)
	require.NotNil(t, record.NetworkType)
	assert.Equal(t, "wifi", *record.NetworkType)
	require.NotNil(t, record.UserEmail)
	assert.Equal(t, "a@b.co", *record.UserEmail)
	require.NotNil(t, record.UserPhone)
	assert.Equal(t, "123", *record.UserPhone)
}

func TestApplySnapshot_WrongTypesDropOnlyThatField(t *testing.T) {
	var record models.TelemetryRecord
	applySnapshot(`{"city":{"name":"Taipei"},"isVpn":"maybe","gpsLatitude":"north","riskScore":[1],"osName":"iOS","isp":null}`, &record)

	assert.Nil(t, record.City)
	assert.Nil(t, record.IsVPN)
	assert.Nil(t, record.GPSLatitude)
	assert.Nil(t, record.RiskScore)
	assert.Nil(t, record.ISP)
	require.NotNil(t, record.OSName)
	assert.Equal(t, "iOS", *record.OSName)
}

func TestApplySnapshot_NumberAsString(t *testing.T) {
	var record models.TelemetryRecord
	applySnapshot(`{"phoneNumber":886912345678,"riskScore":"88.4"}`, &record)

	require.NotNil(t, record.UserPhone)
	assert.Equal(t, "886912345678", *record.UserPhone)
	require.NotNil(t, record.RiskScore)
	assert.Equal(t, 88, *record.RiskScore)
}

func TestApplySnapshot_UnparseableInput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantRaw string
	}{
		{"empty", "", "{}"},
		{"blank", "   ", "{}"},
		{"not json", "<html>", "<html>"},
		{"json array", `[1,2,3]`, `[1,2,3]`},
		{"json null", "null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var record models.TelemetryRecord
			applySnapshot(tt.raw, &record)

			assert.Equal(t, tt.wantRaw, record.RawJSON)
			assert.Nil(t, record.IPAddress)
			assert.Nil(t, record.IsMobile)
			assert.Nil(t, record.BatteryLevel)
		})
	}
}
