package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func TestStatusWithoutChecks(t *testing.T) {
	st := NewService(nil).Status(context.Background())
	require.True(t, st.OK)
	require.Empty(t, st.Checks)
}

func TestStatusReportsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	st := NewService(map[string]Pinger{"database": db, "skipped": nil}).Status(context.Background())
	require.True(t, st.OK)
	require.Equal(t, map[string]string{"database": "ok"}, st.Checks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusFailingCheck(t *testing.T) {
	st := NewService(map[string]Pinger{"database": failingPinger{}}).Status(context.Background())
	require.False(t, st.OK)
	require.Equal(t, "connection refused", st.Checks["database"])
}
