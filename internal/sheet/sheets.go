package sheet

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/panphy/labassistant/internal/model"
)

// DefaultRange is the A1 range holding the results table.
const DefaultRange = "Results!A:G"

// Service appends result rows to a Google Sheet. It relies on the Sheets
// API's own atomicity for single-row appends; there is no client-side
// locking or deduplication.
type Service struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewService builds a Sheets-backed sink from a service-account credentials
// file. An empty readRange falls back to DefaultRange.
func NewService(ctx context.Context, credentialsFile, spreadsheetID, readRange string) (*Service, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if readRange == "" {
		readRange = DefaultRange
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Service{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

// Append adds one result row at the end of the results table.
func (s *Service) Append(ctx context.Context, rec model.ResultRecord) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{RecordRow(rec)}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.readRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append result row: %w", err)
	}
	slog.Info("appended result row",
		"student", rec.StudentName, "question", rec.QuestionID,
		"score", rec.Score, "max", rec.MaxMarks)
	return nil
}

// Records scans the full results table. Used by the teacher dashboard and
// the export command; averages are computed by the caller.
func (s *Service) Records(ctx context.Context) ([]model.ResultRecord, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read results sheet: %w", err)
	}

	var records []model.ResultRecord
	for i, row := range resp.Values {
		if i == 0 && IsHeaderRow(row) {
			continue
		}
		if len(row) == 0 {
			continue
		}
		records = append(records, RowRecord(row))
	}
	return records, nil
}
