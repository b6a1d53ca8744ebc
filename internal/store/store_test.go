// File: internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	s, err := New(context.Background(), mock, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s, mock
}

func sampleReport() *schemas.Report {
	return &schemas.Report{
		FileName:   "benchy.gcode",
		AnalyzedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Score:      82.5,
		Severity:   schemas.SeverityLow,
		Grade:      "B",
		Issues: []schemas.Issue{
			{ID: "iss-1", Type: "stringing", Severity: schemas.SeverityMedium, Line: 120},
		},
		Patches: []schemas.Patch{},
	}
}

func TestNew_PingFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err = New(context.Background(), mock, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "failed to ping database")
}

func TestSaveReport(t *testing.T) {
	s, mock := newTestStore(t)
	rep := sampleReport()

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(pgxmock.AnyArg(), "user-7", "benchy.gcode", "ref-1", "uploads/user-7/benchy.gcode",
			rep.AnalyzedAt, rep.Score, "B", "low", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.SaveReport(context.Background(), "user-7", "benchy.gcode", rep, SaveOptions{
		FileRef:     "ref-1",
		StoragePath: "uploads/user-7/benchy.gcode",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReport_ExecFailureWrapsPersistenceError(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation \"reports\" does not exist"))

	rep := sampleReport()
	_, err := s.SaveReport(context.Background(), "user-7", "benchy.gcode", rep, SaveOptions{})
	require.Error(t, err)

	var perr *schemas.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "save_report", perr.Op)

	// The in-memory report is untouched by a failed save.
	assert.Equal(t, 82.5, rep.Score)
	assert.Len(t, rep.Issues, 1)
}

func TestGetReport_RoundTrip(t *testing.T) {
	s, mock := newTestStore(t)

	body := []byte(`{"file_name":"benchy.gcode","score":82.5,"grade":"B","severity":"low"}`)
	mock.ExpectQuery("SELECT report").
		WithArgs("rep-42").
		WillReturnRows(pgxmock.NewRows([]string{"report"}).AddRow(body))

	rep, err := s.GetReport(context.Background(), "rep-42")
	require.NoError(t, err)
	assert.Equal(t, "benchy.gcode", rep.FileName)
	assert.True(t, rep.Saved)
	assert.Equal(t, "rep-42", rep.SavedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReport_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT report").
		WithArgs("missing").
		WillReturnError(errors.New("no rows in result set"))

	_, err := s.GetReport(context.Background(), "missing")
	var perr *schemas.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "get_report", perr.Op)
}
