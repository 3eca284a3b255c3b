package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresQueryOrdered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "name", "address", "contact_email", "phone"}).
		AddRow("c1", "Aspen Dental", "1 Main St", "aspen@example.com", "+1 555 0100").
		AddRow("c2", "Birch Dental", "2 Oak Ave", "birch@example.com", "+1 555 0101")
	mock.ExpectQuery(`SELECT \* FROM clinics ORDER BY name ASC`).WillReturnRows(rows)

	p := NewPostgresWithPool(mock)
	data, err := p.Query(context.Background(), CollectionClinics, QueryOptions{OrderBy: "name"})
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Aspen Dental", got[0]["name"])
	assert.Equal(t, "Birch Dental", got[1]["name"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryEmptyIsNotAnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT \* FROM clinics`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

	p := NewPostgresWithPool(mock)
	data, err := p.Query(context.Background(), CollectionClinics, QueryOptions{OrderBy: "name"})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestPostgresQueryWithFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT \* FROM appointments WHERE hospital_id = \$1 ORDER BY appointment_date ASC`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "hospital_id"}).AddRow("a1", "c1"))

	p := NewPostgresWithPool(mock)
	data, err := p.Query(context.Background(), CollectionAppointments, QueryOptions{
		OrderBy: "appointment_date",
		Filters: map[string]string{"hospital_id": "c1"},
	})
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0]["hospital_id"])
}

func TestPostgresQueryRejectsUnknownCollection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := NewPostgresWithPool(mock)
	_, err = p.Query(context.Background(), "users", QueryOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCollection)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "query", storeErr.Op)
}

func TestPostgresQueryRejectsUnknownOrderColumn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := NewPostgresWithPool(mock)
	_, err = p.Query(context.Background(), CollectionClinics, QueryOptions{OrderBy: "name; DROP TABLE clinics"})
	assert.Error(t, err)
}

func TestPostgresInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Columns are sorted alphabetically by the driver.
	mock.ExpectExec(`INSERT INTO appointments \(appointment_date, email, full_name, hospital_id, phone, time_slot\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WithArgs("2030-06-15", "jane@example.com", "Jane Doe", "c1", "+1 555 010 2000", "09:00 AM").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := NewPostgresWithPool(mock)
	err = p.Insert(context.Background(), CollectionAppointments, map[string]any{
		"full_name":        "Jane Doe",
		"email":            "jane@example.com",
		"phone":            "+1 555 010 2000",
		"hospital_id":      "c1",
		"appointment_date": "2030-06-15",
		"time_slot":        "09:00 AM",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertRejectsUnknownColumn(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := NewPostgresWithPool(mock)
	err = p.Insert(context.Background(), CollectionAppointments, map[string]any{"evil_column": "x"})
	assert.Error(t, err)
}
