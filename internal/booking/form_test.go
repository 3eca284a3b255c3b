package booking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakdental/booking-platform/internal/notify"
	"github.com/oakdental/booking-platform/internal/store"
	"github.com/oakdental/booking-platform/pkg/logging"
)

// captureSink records pushed notifications.
type captureSink struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (s *captureSink) Push(n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
}

func (s *captureSink) all() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Notification(nil), s.notes...)
}

// blockingStore holds Insert until released, to pin the form in the
// submitting phase.
type blockingStore struct {
	entered chan struct{}
	release chan error
}

func newBlockingStore() *blockingStore {
	return &blockingStore{entered: make(chan struct{}), release: make(chan error)}
}

func (b *blockingStore) Query(context.Context, string, store.QueryOptions) ([]byte, error) {
	return []byte("[]"), nil
}

func (b *blockingStore) Insert(context.Context, string, any) error {
	close(b.entered)
	return <-b.release
}

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

func newTestForm(st store.Client, sink notify.Sink) *Form {
	return NewForm(st, sink, logging.New("error"), WithClock(fixedClock()))
}

func fillValid(t *testing.T, f *Form) {
	t.Helper()
	require.True(t, f.InstallDirectory(testDirectory()))
	d := validDraft()
	errs, err := f.SetFields(FieldChanges{
		FullName:        &d.FullName,
		Email:           &d.Email,
		Phone:           &d.Phone,
		HospitalID:      &d.HospitalID,
		AppointmentDate: d.AppointmentDate,
		TimeSlot:        &d.TimeSlot,
		Message:         &d.Message,
	})
	require.NoError(t, err)
	require.Empty(t, errs)
}

func TestSubmitRejectsInvalidDraftWithoutStoreCall(t *testing.T) {
	m := store.NewMemory()
	sink := &captureSink{}
	f := newTestForm(m, sink)
	require.True(t, f.InstallDirectory(testDirectory()))

	out, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Booked)
	assert.NotEmpty(t, out.FieldErrors)

	// No insert, no transition, no toast.
	assert.Empty(t, m.Records(store.CollectionAppointments))
	assert.Equal(t, PhaseIdle, f.Phase())
	assert.False(t, f.Closed())
	assert.Empty(t, sink.all())
}

func TestSubmitPersistsAndClosesOnSuccess(t *testing.T) {
	m := store.NewMemory()
	sink := &captureSink{}
	f := newTestForm(m, sink)
	fillValid(t, f)

	out, err := f.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, out.Booked)
	require.NotNil(t, out.Record)
	assert.Equal(t, "2030-06-15", out.Record.AppointmentDate)

	recs := m.Records(store.CollectionAppointments)
	require.Len(t, recs, 1)
	assert.Equal(t, "Jane Doe", recs[0]["full_name"])
	assert.Equal(t, "2030-06-15", recs[0]["appointment_date"])

	// Draft cleared, dialog closed.
	assert.Equal(t, Draft{}, f.Draft())
	assert.True(t, f.Closed())

	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Appointment Booked!", notes[0].Title)
	assert.Equal(t, notify.SeverityNormal, notes[0].Severity)
}

func TestSubmitFailureKeepsDraftAndStaysOpen(t *testing.T) {
	m := store.NewMemory()
	m.FailInsert = errors.New("service unavailable")
	sink := &captureSink{}
	f := newTestForm(m, sink)
	fillValid(t, f)

	before := f.Draft()
	out, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Booked)
	require.Error(t, out.SubmissionErr)

	var storeErr *store.StoreError
	assert.ErrorAs(t, out.SubmissionErr, &storeErr)

	// Every entered value preserved; form editable again.
	assert.Equal(t, before, f.Draft())
	assert.Equal(t, PhaseIdle, f.Phase())
	assert.False(t, f.Closed())

	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Error", notes[0].Title)
	assert.Equal(t, notify.SeverityDestructive, notes[0].Severity)

	// Manual re-trigger succeeds once the store recovers.
	m.FailInsert = nil
	out, err = f.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Booked)
}

func TestExactlyOneSubmissionInFlight(t *testing.T) {
	bs := newBlockingStore()
	f := newTestForm(bs, &captureSink{})
	fillValid(t, f)

	done := make(chan *Outcome, 1)
	go func() {
		out, _ := f.Submit(context.Background())
		done <- out
	}()
	<-bs.entered
	assert.Equal(t, PhaseSubmitting, f.Phase())

	_, err := f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	// Fields are locked while the insert is outstanding.
	name := "Someone Else"
	_, err = f.SetFields(FieldChanges{FullName: &name})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	bs.release <- nil
	out := <-done
	assert.True(t, out.Booked)
}

func TestCancelDiscardsDraftSilently(t *testing.T) {
	m := store.NewMemory()
	sink := &captureSink{}
	f := newTestForm(m, sink)
	fillValid(t, f)

	f.Cancel()

	assert.True(t, f.Closed())
	assert.Equal(t, Draft{}, f.Draft())
	assert.Empty(t, m.Records(store.CollectionAppointments))
	assert.Empty(t, sink.all())

	_, err := f.Submit(context.Background())
	assert.ErrorIs(t, err, ErrFormClosed)

	name := "Jane"
	_, err = f.SetFields(FieldChanges{FullName: &name})
	assert.ErrorIs(t, err, ErrFormClosed)
}

func TestLateSubmissionResultAfterTeardownIsDropped(t *testing.T) {
	bs := newBlockingStore()
	sink := &captureSink{}
	f := newTestForm(bs, sink)
	fillValid(t, f)

	done := make(chan *Outcome, 1)
	go func() {
		out, _ := f.Submit(context.Background())
		done <- out
	}()
	<-bs.entered

	// Dialog closed while the insert is still in flight.
	f.Cancel()
	bs.release <- nil

	out := <-done
	assert.True(t, out.Booked, "the write itself settled")
	assert.Empty(t, sink.all(), "no toast may reach a closed dialog")
}

func TestInstallDirectoryAfterCloseIsRejected(t *testing.T) {
	f := newTestForm(store.NewMemory(), &captureSink{})
	f.Cancel()
	assert.False(t, f.InstallDirectory(testDirectory()))

	dir, loaded := f.Directory()
	assert.Empty(t, dir)
	assert.False(t, loaded)
}

func TestSetFieldsValidatesOnlyChangedFields(t *testing.T) {
	f := newTestForm(store.NewMemory(), &captureSink{})
	require.True(t, f.InstallDirectory(testDirectory()))

	bad := "x"
	errs, err := f.SetFields(FieldChanges{Email: &bad})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, FieldEmail, errs[0].Field)
	assert.Equal(t, ReasonEmailInvalid, errs[0].Reason)

	// The rejected value stays in the draft for the patient to fix.
	assert.Equal(t, "x", f.Draft().Email)

	good := "jane@example.com"
	errs, err = f.SetFields(FieldChanges{Email: &good})
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestSetFieldsClearDate(t *testing.T) {
	f := newTestForm(store.NewMemory(), &captureSink{})
	require.True(t, f.InstallDirectory(testDirectory()))

	date := time.Date(2030, time.June, 15, 0, 0, 0, 0, time.UTC)
	errs, err := f.SetFields(FieldChanges{AppointmentDate: &date})
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.NotNil(t, f.Draft().AppointmentDate)

	errs, err = f.SetFields(FieldChanges{ClearDate: true})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, ReasonDate, errs[0].Reason)
	assert.Nil(t, f.Draft().AppointmentDate)
}

func TestEmptyDirectoryBlocksSubmission(t *testing.T) {
	m := store.NewMemory()
	f := newTestForm(m, &captureSink{})
	require.True(t, f.InstallDirectory(nil)) // zero clinics is a valid load

	d := validDraft()
	_, err := f.SetFields(FieldChanges{
		FullName:        &d.FullName,
		Email:           &d.Email,
		Phone:           &d.Phone,
		HospitalID:      &d.HospitalID,
		AppointmentDate: d.AppointmentDate,
		TimeSlot:        &d.TimeSlot,
	})
	require.NoError(t, err)

	out, err := f.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, out.FieldErrors, 1)
	assert.Equal(t, FieldHospitalID, out.FieldErrors[0].Field)
	assert.Equal(t, ReasonHospital, out.FieldErrors[0].Reason)
	assert.Equal(t, PhaseIdle, f.Phase())
	assert.Empty(t, m.Records(store.CollectionAppointments))
}

func TestBlankMessageOmittedFromRecord(t *testing.T) {
	d := validDraft()
	d.Message = ""
	raw, err := json.Marshal(d.Record())
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	_, present := fields["message"]
	assert.False(t, present, "blank message must be omitted, not sent as an empty-typed value")

	d.Message = "Tooth ache"
	raw, err = json.Marshal(d.Record())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "Tooth ache", fields["message"])
}

func TestSubmitValidatesAgainstSnapshotAtCallTime(t *testing.T) {
	m := store.NewMemory()
	f := newTestForm(m, &captureSink{})
	fillValid(t, f)

	// Directory replaced by a later load that no longer has c1.
	require.True(t, f.InstallDirectory(nil))

	out, err := f.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, out.FieldErrors, 1)
	assert.Equal(t, FieldHospitalID, out.FieldErrors[0].Field)
}
