// Package sheet persists marking results to a spreadsheet-shaped store.
// Appends are fire-and-forget from the pipeline's point of view: a failed
// write becomes a user-visible warning, never a failed marking.
package sheet

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/panphy/labassistant/internal/model"
)

// TimestampLayout is the spreadsheet-facing timestamp format.
const TimestampLayout = "2006-01-02 15:04"

// Header is the fixed column order of the results sheet.
var Header = []string{"Timestamp", "Student Name", "Class Set", "Question", "Score", "Max Marks", "Summary"}

// Sink is an append-only result store. Implementations: the Google Sheets
// service in this package and the local SQLite store.
type Sink interface {
	Append(ctx context.Context, rec model.ResultRecord) error
	Records(ctx context.Context) ([]model.ResultRecord, error)
}

// RecordRow converts a record to a sheet row in Header order.
func RecordRow(rec model.ResultRecord) []interface{} {
	return []interface{}{
		rec.Timestamp.Format(TimestampLayout),
		rec.StudentName,
		rec.ClassSet,
		rec.QuestionID,
		rec.Score,
		rec.MaxMarks,
		rec.Summary,
	}
}

// RowRecord parses a sheet row back into a record. Short or malformed rows
// are tolerated field by field; the sheet is hand-editable by teachers.
func RowRecord(row []interface{}) model.ResultRecord {
	var rec model.ResultRecord
	if len(row) > 0 {
		if ts, err := time.Parse(TimestampLayout, cellString(row[0])); err == nil {
			rec.Timestamp = ts
		}
	}
	if len(row) > 1 {
		rec.StudentName = cellString(row[1])
	}
	if len(row) > 2 {
		rec.ClassSet = cellString(row[2])
	}
	if len(row) > 3 {
		rec.QuestionID = cellString(row[3])
	}
	if len(row) > 4 {
		rec.Score = cellInt(row[4])
	}
	if len(row) > 5 {
		rec.MaxMarks = cellInt(row[5])
	}
	if len(row) > 6 {
		rec.Summary = cellString(row[6])
	}
	return rec
}

// IsHeaderRow reports whether a sheet row is the column header.
func IsHeaderRow(row []interface{}) bool {
	return len(row) > 0 && strings.EqualFold(cellString(row[0]), Header[0])
}

func cellString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return strings.TrimSpace(strconv.FormatFloat(toFloat(v), 'f', -1, 64))
	}
}

func cellInt(v interface{}) int {
	switch n := v.(type) {
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	default:
		return int(toFloat(v))
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
