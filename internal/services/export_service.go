// internal/services/export_service.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/javajoker/verifyhub/internal/models"
	"github.com/javajoker/verifyhub/internal/repository"
)

type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
	ExportXLSX ExportFormat = "xlsx"
)

const exportSheet = "Telemetry"

type ExportRequest struct {
	Format    ExportFormat
	LicenseID *uuid.UUID
	Domain    string
	Archive   bool
}

// ExportFile is a rendered export. Archive is set when the file was also uploaded.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
	Archive     *UploadResult
}

type ExportService struct {
	telemetry *TelemetryService
	storage   *StorageService
	now       func() time.Time
}

func NewExportService(telemetry *TelemetryService, storage *StorageService) *ExportService {
	return &ExportService{telemetry: telemetry, storage: storage, now: time.Now}
}

func ParseExportFormat(raw string) (ExportFormat, error) {
	switch format := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case "":
		return ExportCSV, nil
	case ExportCSV, ExportJSON, ExportXLSX:
		return format, nil
	default:
		return "", newError(KindMalformedInput, "Unsupported export format %q.", raw)
	}
}

// ExportForUser exports telemetry of licenses owned by userID.
func (s *ExportService) ExportForUser(ctx context.Context, userID uuid.UUID, req ExportRequest) (*ExportFile, error) {
	filter := repository.TelemetryFilter{UserID: &userID, LicenseID: req.LicenseID}
	return s.export(ctx, filter, req)
}

// ExportAll exports telemetry across every license.
func (s *ExportService) ExportAll(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	filter := repository.TelemetryFilter{LicenseID: req.LicenseID, Domain: strings.TrimSpace(req.Domain)}
	return s.export(ctx, filter, req)
}

func (s *ExportService) export(ctx context.Context, filter repository.TelemetryFilter, req ExportRequest) (*ExportFile, error) {
	if req.Format == "" {
		req.Format = ExportCSV
	}
	records, err := s.telemetry.ForExport(ctx, filter)
	if err != nil {
		return nil, err
	}

	file, err := renderExport(req.Format, records)
	if err != nil {
		return nil, err
	}
	file.Filename = fmt.Sprintf("telemetry_%s.%s", s.now().UTC().Format("20060102_150405"), req.Format)

	if req.Archive {
		scope := "all"
		if req.LicenseID != nil {
			scope = req.LicenseID.String()
		} else if filter.UserID != nil {
			scope = "user-" + filter.UserID.String()
		}
		archive, err := s.storage.UploadExport(ctx, scope, string(req.Format), file.ContentType, file.Data)
		if err != nil {
			return nil, err
		}
		file.Archive = archive
		logrus.WithFields(logrus.Fields{"key": archive.Key, "rows": file.Rows}).Info("Telemetry export archived")
	}
	return file, nil
}

func renderExport(format ExportFormat, records []models.TelemetryRecord) (*ExportFile, error) {
	switch format {
	case ExportJSON:
		data, err := renderJSON(records)
		if err != nil {
			return nil, err
		}
		return &ExportFile{ContentType: "application/json", Data: data, Rows: len(records)}, nil
	case ExportXLSX:
		data, err := renderXLSX(records)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
			Rows:        len(records),
		}, nil
	case ExportCSV:
		data, err := renderCSV(records)
		if err != nil {
			return nil, err
		}
		return &ExportFile{ContentType: "text/csv", Data: data, Rows: len(records)}, nil
	default:
		return nil, newError(KindMalformedInput, "Unsupported export format %q.", format)
	}
}

var exportColumns = []string{
	"id", "license_id", "session_id", "channel", "plugin_domain", "received_at",
	"ip_address", "country_code", "city", "isp", "is_proxy", "is_vpn", "is_tor",
	"gps_latitude", "gps_longitude", "browser_name", "os_name", "device_type",
	"is_mobile", "battery_level", "network_type", "canvas_hash", "risk_score",
	"user_email", "user_phone",
}

func exportRow(r *models.TelemetryRecord) []string {
	return []string{
		r.ID.String(), r.LicenseID.String(), r.SessionID, string(r.Channel), r.PluginDomain,
		r.ReceivedAt.UTC().Format(time.RFC3339),
		optString(r.IPAddress), optString(r.CountryCode), optString(r.City), optString(r.ISP),
		optBool(r.IsProxy), optBool(r.IsVPN), optBool(r.IsTor),
		optFloat(r.GPSLatitude), optFloat(r.GPSLongitude),
		optString(r.BrowserName), optString(r.OSName), optString(r.DeviceType),
		optBool(r.IsMobile), optFloat(r.BatteryLevel), optString(r.NetworkType),
		optString(r.CanvasHash), optInt(r.RiskScore),
		optString(r.UserEmail), optString(r.UserPhone),
	}
}

func renderCSV(records []models.TelemetryRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportColumns); err != nil {
		return nil, err
	}
	for i := range records {
		if err := w.Write(exportRow(&records[i])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// jsonExportRecord carries the snapshot as embedded JSON rather than a string.
type jsonExportRecord struct {
	models.TelemetryRecord
	RawJSON json.RawMessage `json:"raw_json"`
}

func renderJSON(records []models.TelemetryRecord) ([]byte, error) {
	out := make([]jsonExportRecord, 0, len(records))
	for _, r := range records {
		r.License = nil
		raw := json.RawMessage(r.RawJSON)
		if !json.Valid(raw) {
			quoted, _ := json.Marshal(r.RawJSON)
			raw = quoted
		}
		out = append(out, jsonExportRecord{TelemetryRecord: r, RawJSON: raw})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to write json: %w", err)
	}
	return data, nil
}

func renderXLSX(records []models.TelemetryRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet writer: %w", err)
	}

	header := make([]interface{}, len(exportColumns))
	for i, col := range exportColumns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i := range records {
		row := exportRow(&records[i])
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
