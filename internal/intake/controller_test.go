package intake

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimpoint/internal"
	"claimpoint/internal/storage"
)

type stubSubmitter struct {
	batches []internal.ClaimBatch
	err     error
	hook    func()
}

func (s *stubSubmitter) Submit(ctx context.Context, batch internal.ClaimBatch) (string, error) {
	if s.hook != nil {
		s.hook()
	}
	if s.err != nil {
		return "", s.err
	}
	s.batches = append(s.batches, batch)
	return "batch-1", nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newOpenController(t *testing.T, sub Submitter) *Controller {
	t.Helper()
	c := NewController(sub, nil)
	c.SetPolicies([]internal.Policy{
		{ID: 1, Name: "P", Administrators: []string{"A1", "A2"}},
		{ID: 2, Name: "P2", Administrators: []string{"A3"}},
	})
	require.NoError(t, c.Start())
	return c
}

func fillForm(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.Edit(
		Policyholder("P"),
		Administrator("A1"),
		Template("Monthly"),
		PaidFrom(day(2024, 1, 1)),
		PaidTo(day(2024, 1, 31)),
		File(internal.FileRef{Name: "claims.xlsx", Size: 1024}),
	))
}

func TestPolicyholderRecomputesAdministrators(t *testing.T) {
	c := newOpenController(t, &stubSubmitter{})

	require.NoError(t, c.SelectPolicyholder("P"))
	assert.ElementsMatch(t, []string{"A1", "A2"}, c.AdministratorOptions())
	require.NoError(t, c.SelectAdministrator("A2"))
	assert.Equal(t, "A2", c.Form().ClaimAdministrator)

	require.NoError(t, c.SelectPolicyholder("P2"))
	assert.Equal(t, []string{"A3"}, c.AdministratorOptions())
	assert.Empty(t, c.Form().ClaimAdministrator)

	err := c.SelectAdministrator("A1")
	assert.ErrorIs(t, err, internal.ErrValidation)
	assert.ErrorIs(t, c.SelectPolicyholder("Nobody"), internal.ErrValidation)
}

func TestUploadMissingFields(t *testing.T) {
	sub := &stubSubmitter{}
	c := newOpenController(t, sub)
	require.NoError(t, c.Edit(Policyholder("P"), PaidTo(day(2024, 1, 1))))

	_, err := c.Upload(context.Background())
	require.ErrorIs(t, err, internal.ErrValidation)
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"claim_administrator", "template", "paid_from", "file"}, missing.Fields)
	assert.Equal(t, StateOpen, c.State())
	assert.Empty(t, sub.batches)
}

func TestUploadInvalidDateRange(t *testing.T) {
	sub := &stubSubmitter{}
	c := newOpenController(t, sub)
	fillForm(t, c)
	require.NoError(t, c.SetPaidRange(day(2024, 2, 1), day(2024, 1, 1)))

	_, err := c.Upload(context.Background())
	var rangeErr *InvalidDateRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.ErrorIs(t, err, internal.ErrValidation)
	assert.Empty(t, sub.batches)

	require.NoError(t, c.SetPaidRange(day(2024, 1, 1), day(2024, 1, 1)))
	_, err = c.Upload(context.Background())
	assert.NoError(t, err, "equal dates are a valid range")
}

func TestMissingFieldsCheckedBeforeDateRange(t *testing.T) {
	c := newOpenController(t, &stubSubmitter{})
	require.NoError(t, c.SetPaidRange(day(2024, 2, 1), day(2024, 1, 1)))
	_, err := c.Upload(context.Background())
	var missing *MissingFieldError
	assert.ErrorAs(t, err, &missing)
}

func TestUploadSuccessClosesForm(t *testing.T) {
	sub := &stubSubmitter{}
	c := newOpenController(t, sub)
	fillForm(t, c)
	received := day(2024, 2, 3)
	require.NoError(t, c.Edit(ReceivedDate(&received), Description("January run")))

	id, err := c.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "batch-1", id)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, Form{}, c.Form())

	require.Len(t, sub.batches, 1)
	b := sub.batches[0]
	assert.Equal(t, "P", b.Policyholder)
	assert.Equal(t, "A1", b.ClaimAdministrator)
	assert.Equal(t, "Monthly", b.TemplateName)
	assert.Equal(t, day(2024, 1, 31), b.PaidTo)
	require.NotNil(t, b.ReceivedDate)
	assert.Equal(t, received, *b.ReceivedDate)
	assert.Equal(t, "claims.xlsx", b.File.Name)
}

func TestUploadFailureKeepsFields(t *testing.T) {
	c := newOpenController(t, &stubSubmitter{err: errors.New("backend down")})
	fillForm(t, c)

	_, err := c.Upload(context.Background())
	assert.ErrorIs(t, err, internal.ErrPersistence)
	assert.Equal(t, StateOpen, c.State())
	assert.Equal(t, "Monthly", c.Form().TemplateName)
}

func TestCancelDiscardsState(t *testing.T) {
	sub := &stubSubmitter{}
	c := newOpenController(t, sub)
	fillForm(t, c)

	c.Cancel()
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, Form{}, c.Form())
	assert.Empty(t, c.AdministratorOptions())
	assert.Empty(t, sub.batches)

	assert.ErrorIs(t, c.SelectTemplate("Monthly"), ErrInvalidTransition)
	_, err := c.Upload(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartResetsFields(t *testing.T) {
	c := newOpenController(t, &stubSubmitter{})
	fillForm(t, c)
	require.NoError(t, c.Start())
	assert.Equal(t, Form{}, c.Form())
}

func TestApplyDropsStaleEdits(t *testing.T) {
	c := newOpenController(t, &stubSubmitter{})
	gen := c.Generation()
	require.NoError(t, c.Apply(gen, Template("Monthly")))

	c.Cancel()
	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.Apply(gen, Template("Late")), ErrStale)
	assert.Empty(t, c.Form().TemplateName)
}

func TestCancelDuringSubmissionDiscardsResult(t *testing.T) {
	sub := &stubSubmitter{}
	c := newOpenController(t, sub)
	fillForm(t, c)
	sub.hook = func() { c.Cancel() }

	_, err := c.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, Form{}, c.Form())
}

func TestLoadPoliciesAndRecordSubmitter(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	_, err = db.Insert(ctx, internal.TablePolicies, []internal.Record{
		{"name": "Acme", "claim_admin_1": "Admin A", "claim_admin_2": " "},
		{"name": "Globex", "claim_admin_1": "Admin B", "claim_admin_2": "Admin C"},
	})
	require.NoError(t, err)

	c := NewController(RecordSubmitter{Records: db}, nil)
	require.NoError(t, c.LoadPolicies(ctx, db))
	assert.Equal(t, []string{"Acme", "Globex"}, c.Policyholders())

	require.NoError(t, c.Start())
	require.NoError(t, c.SelectPolicyholder("Acme"))
	assert.Equal(t, []string{"Admin A"}, c.AdministratorOptions())

	require.NoError(t, c.Edit(
		Administrator("Admin A"),
		Template("Monthly"),
		PaidFrom(day(2024, 3, 1)),
		PaidTo(day(2024, 3, 31)),
		File(internal.FileRef{Name: "march.xlsx", Size: 10}),
	))
	id, err := c.Upload(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rows, err := db.Fetch(ctx, internal.TableClaimBatches)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0]["id"])
	assert.Equal(t, "2024-03-31", rows[0]["paid_to"])
}

type failingStore struct{}

func (failingStore) Fetch(context.Context, string) ([]internal.Record, error) {
	return nil, errors.New("unreachable")
}

func (failingStore) Insert(context.Context, string, []internal.Record) ([]internal.Record, error) {
	return nil, errors.New("unreachable")
}

func TestLoadPoliciesFailure(t *testing.T) {
	c := NewController(nil, nil)
	assert.ErrorIs(t, c.LoadPolicies(context.Background(), failingStore{}), internal.ErrPersistence)
}
