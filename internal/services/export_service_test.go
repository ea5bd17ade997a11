// internal/services/export_service_test.go
package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"github.com/javajoker/verifyhub/internal/config"
	"github.com/javajoker/verifyhub/internal/models"
)

type ExportServiceTestSuite struct {
	serviceSuite
	telemetry *TelemetryService
	exports   *ExportService
	license   *models.License
}

func TestExportServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ExportServiceTestSuite))
}

func (s *ExportServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	s.telemetry = NewTelemetryService(s.store, s.licenses, s.cfg)
	s.telemetry.now = s.clock.Now

	storage, err := NewStorageService(config.AWSConfig{})
	s.Require().NoError(err)
	s.exports = NewExportService(s.telemetry, storage)
	s.exports.now = s.clock.Now

	s.license = s.activate(s.issue(s.starter), "shop.example.com")
	for _, snapshot := range []string{`{"ip":"203.0.113.1","isVpn":true}`, `not json`} {
		_, err := s.telemetry.Push(s.ctx, PushRequest{LicenseKey: s.license.Key, SnapshotJSON: snapshot}, s.pluginClaims(s.license))
		s.Require().NoError(err)
	}
}

func (s *ExportServiceTestSuite) TestParseExportFormat() {
	format, err := ParseExportFormat("")
	s.Require().NoError(err)
	s.Equal(ExportCSV, format)

	format, err = ParseExportFormat(" XLSX ")
	s.Require().NoError(err)
	s.Equal(ExportXLSX, format)

	_, err = ParseExportFormat("pdf")
	s.ErrorIs(err, ErrMalformedInput)
}

func (s *ExportServiceTestSuite) TestExportCSV() {
	file, err := s.exports.ExportForUser(s.ctx, s.user.ID, ExportRequest{Format: ExportCSV})
	s.Require().NoError(err)

	s.Equal("text/csv", file.ContentType)
	s.Equal(2, file.Rows)
	s.Regexp(`^telemetry_\d{8}_\d{6}\.csv$`, file.Filename)

	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal(exportColumns, rows[0])
	for _, row := range rows[1:] {
		s.Len(row, len(exportColumns))
		s.Equal("shop.example.com", row[4])
	}
}

func (s *ExportServiceTestSuite) TestExportJSON_EmbedsValidSnapshots() {
	file, err := s.exports.ExportAll(s.ctx, ExportRequest{Format: ExportJSON, Domain: "shop.example.com"})
	s.Require().NoError(err)

	var out []map[string]interface{}
	s.Require().NoError(json.Unmarshal(file.Data, &out))
	s.Require().Len(out, 2)

	var embedded, quoted int
	for _, record := range out {
		switch record["raw_json"].(type) {
		case map[string]interface{}:
			embedded++
		case string:
			quoted++
		}
	}
	s.Equal(1, embedded)
	s.Equal(1, quoted)
}

func (s *ExportServiceTestSuite) TestExportXLSX() {
	file, err := s.exports.ExportForUser(s.ctx, s.user.ID, ExportRequest{Format: ExportXLSX})
	s.Require().NoError(err)

	book, err := excelize.OpenReader(bytes.NewReader(file.Data))
	s.Require().NoError(err)
	defer book.Close()

	rows, err := book.GetRows(exportSheet)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("license_id", rows[0][1])
	s.Equal(s.license.ID.String(), rows[1][1])
}

func (s *ExportServiceTestSuite) TestExportForUser_ScopedToOwner() {
	stranger := s.createUser("stranger@example.com", "another-password-1")

	file, err := s.exports.ExportForUser(s.ctx, stranger.ID, ExportRequest{})
	s.Require().NoError(err)
	s.Zero(file.Rows)
}

func (s *ExportServiceTestSuite) TestArchiveRequiresStorage() {
	_, err := s.exports.ExportAll(s.ctx, ExportRequest{Format: ExportCSV, Archive: true})

	s.ErrorIs(err, ErrInvalidState)
}
