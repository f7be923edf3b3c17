package meta_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagedata/metakeep/chain"
	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/internal/testutil"
	"github.com/vantagedata/metakeep/meta"
	"github.com/vantagedata/metakeep/refdata"
	"github.com/vantagedata/metakeep/registry"
	"github.com/vantagedata/metakeep/uow"
)

const (
	targetType = "TABLE"
	targetID   = "orders"
)

type serviceFixture struct {
	db      *sql.DB
	mgr     *uow.Manager
	codes   *refdata.CodeStore
	terms   *refdata.TermStore
	service *meta.Service
}

func newServiceFixture(t *testing.T, testDB *sql.DB) serviceFixture {
	t.Helper()
	engine := chain.NewEngine(nil)
	mgr := uow.NewManager(testDB, nil)
	codes := refdata.NewCodeStore(engine, nil)
	terms := refdata.NewTermStore(engine, nil)
	f := serviceFixture{
		db:      testDB,
		mgr:     mgr,
		codes:   codes,
		terms:   terms,
		service: meta.NewService(mgr, engine, registry.New(nil, nil), codes, terms, nil),
	}

	err := mgr.Required(context.Background(), func(ctx context.Context) error {
		return refdata.Bootstrap(ctx, codes, terms, nil)
	})
	require.NoError(t, err)
	return f
}

func setupService(t *testing.T) serviceFixture {
	t.Helper()
	return newServiceFixture(t, testutil.SetupTestDB(t))
}

func (f serviceFixture) set(t *testing.T, itemCode string, v meta.TaggedValue) string {
	t.Helper()
	versionID, err := f.service.SetValue(context.Background(), targetType, targetID, itemCode, v, meta.WriteMeta{Author: "tester"})
	require.NoError(t, err)
	require.NotEmpty(t, versionID)
	return versionID
}

func TestPrimitiveValueLifecycle(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	firstID := f.set(t, "retention_days", meta.PrimitiveValue(json.RawMessage(`{"days":30}`)))

	got, err := f.service.GetValue(ctx, targetType, targetID, "retention_days")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.VersionNo)
	assert.Equal(t, registry.KindPrimitive, got.Payload.Type)
	assert.JSONEq(t, `{"days":30}`, string(got.Payload.Value))
	assert.Equal(t, "tester", got.Author)
	assert.True(t, got.Current())

	f.set(t, "retention_days", meta.PrimitiveValue(json.RawMessage(`{"days":60}`)))

	got, err = f.service.GetValue(ctx, targetType, targetID, "retention_days")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.VersionNo)
	assert.JSONEq(t, `{"days":60}`, string(got.Payload.Value))

	// The superseded version stays readable by id, closed, with its
	// original payload.
	old, err := f.service.GetVersion(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "retention_days", old.ItemCode)
	assert.Equal(t, 1, old.VersionNo)
	assert.JSONEq(t, `{"days":30}`, string(old.Payload.Value))
	require.NotNil(t, old.ValidTo)
	assert.False(t, old.Current())
}

func TestPrimitiveRejectsInvalidJSON(t *testing.T) {
	f := setupService(t)

	_, err := f.service.SetValue(context.Background(), targetType, targetID, "retention_days",
		meta.PrimitiveValue(json.RawMessage(`{"days":`)), meta.WriteMeta{})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestStringValueStoredAsJSONString(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.set(t, "table_description", meta.StringValue(`customer orders, one row per "order"`))

	got, err := f.service.GetValue(ctx, targetType, targetID, "table_description")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, registry.KindString, got.Payload.Type)

	var text string
	require.NoError(t, json.Unmarshal(got.Payload.Value, &text))
	assert.Equal(t, `customer orders, one row per "order"`, text)
}

func TestCodesetValueResolvesAndProjectsLive(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.set(t, "pii_level", meta.CodesetValue("RESTRICTED"))

	got, err := f.service.GetValue(ctx, targetType, targetID, "pii_level")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Payload.Code)
	assert.Equal(t, "RESTRICTED", got.Payload.Code.CodeKey)
	assert.Equal(t, "Restricted", got.Payload.Code.Label)

	// Relabeling the code changes what every projection shows, without a
	// new meta version: labels are read-time attributes.
	_, err = f.service.SetCodeLabel(ctx, got.Payload.Code.CodeID, refdata.CodeLabelUpdate{
		Label: "Restricted Access", IsActive: true,
	})
	require.NoError(t, err)

	got, err = f.service.GetValue(ctx, targetType, targetID, "pii_level")
	require.NoError(t, err)
	assert.Equal(t, 1, got.VersionNo, "relabel must not advance the value chain")
	assert.Equal(t, "Restricted Access", got.Payload.Code.Label)
}

func TestCodesetValueAcceptsCodeID(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	var codeID string
	err := f.mgr.Required(ctx, func(ctx context.Context) error {
		c, err := f.codes.ResolveCode(ctx, "PII_LEVEL", "PUBLIC")
		if err != nil {
			return err
		}
		codeID = c.CodeID
		return nil
	})
	require.NoError(t, err)

	f.set(t, "pii_level", meta.CodesetValue(codeID))

	got, err := f.service.GetValue(ctx, targetType, targetID, "pii_level")
	require.NoError(t, err)
	assert.Equal(t, "PUBLIC", got.Payload.Code.CodeKey)
}

func TestTaxonomySingleValue(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.set(t, "domain", meta.TaxonomyValue(registry.SelectSingle, "FIN"))

	got, err := f.service.GetValue(ctx, targetType, targetID, "domain")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, registry.SelectSingle, got.Payload.SelectionMode)
	require.Len(t, got.Payload.Terms, 1)
	assert.Equal(t, "FIN", got.Payload.Terms[0].TermKey)
	assert.Equal(t, "Finance", got.Payload.Terms[0].DisplayName)
}

func TestTaxonomyMultiPreservesInputOrder(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.set(t, "tags", meta.TaxonomyValue(registry.SelectMulti, "HR", "FIN"))

	got, err := f.service.GetValue(ctx, targetType, targetID, "tags")
	require.NoError(t, err)
	require.Len(t, got.Payload.Terms, 2)
	assert.Equal(t, "HR", got.Payload.Terms[0].TermKey)
	assert.Equal(t, "FIN", got.Payload.Terms[1].TermKey)
}

func TestSelectionModeMismatch(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		item  string
		value meta.TaggedValue
	}{
		{"single with two terms", "domain", meta.TaxonomyValue(registry.SelectSingle, "FIN", "HR")},
		{"single with zero terms", "domain", meta.TaxonomyValue(registry.SelectSingle)},
		{"multi with zero terms", "tags", meta.TaxonomyValue(registry.SelectMulti)},
		{"mode differs from item", "domain", meta.TaxonomyValue(registry.SelectMulti, "FIN")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.SetValue(ctx, targetType, targetID, tc.item, tc.value, meta.WriteMeta{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSelectionModeMismatch))
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestTypeMismatch(t *testing.T) {
	f := setupService(t)

	_, err := f.service.SetValue(context.Background(), targetType, targetID, "pii_level",
		meta.StringValue("not a code"), meta.WriteMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTypeMismatch))
	assert.False(t, errors.Is(err, errors.ErrReferenceNotFound),
		"type check must fire before reference resolution")
}

func TestUnknownItemCode(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.service.SetValue(ctx, targetType, targetID, "no_such_item",
		meta.StringValue("x"), meta.WriteMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))

	_, err = f.service.GetValue(ctx, targetType, targetID, "no_such_item")
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))

	_, err = f.service.ListVersions(ctx, targetType, targetID, "no_such_item")
	assert.True(t, errors.Is(err, errors.ErrItemNotFound))
}

func TestRejectedWriteLeavesNoTrace(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	_, err := f.service.SetValue(ctx, targetType, targetID, "pii_level",
		meta.CodesetValue("NOT_A_CODE"), meta.WriteMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrReferenceNotFound))
	assert.Contains(t, err.Error(), "NOT_A_CODE")

	got, err := f.service.GetValue(ctx, targetType, targetID, "pii_level")
	require.NoError(t, err)
	assert.Nil(t, got, "a rejected write must not create the value")

	values, err := f.service.ListValues(ctx, targetType, targetID)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestRejectedWritePreservesCurrentVersion(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.set(t, "pii_level", meta.CodesetValue("RESTRICTED"))

	_, err := f.service.SetValue(ctx, targetType, targetID, "pii_level",
		meta.CodesetValue("NOT_A_CODE"), meta.WriteMeta{})
	require.Error(t, err)

	got, err := f.service.GetValue(ctx, targetType, targetID, "pii_level")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.VersionNo)
	assert.Equal(t, "RESTRICTED", got.Payload.Code.CodeKey)

	history, err := f.service.ListVersions(ctx, targetType, targetID, "pii_level")
	require.NoError(t, err)
	assert.Len(t, history, 1, "the rejected write must not appear in history")
}

func TestVersionChainStaysContiguous(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	const writes = 5
	for i := 1; i <= writes; i++ {
		payload, err := json.Marshal(map[string]int{"days": i * 10})
		require.NoError(t, err)
		f.set(t, "retention_days", meta.PrimitiveValue(payload))
	}

	history, err := f.service.ListVersions(ctx, targetType, targetID, "retention_days")
	require.NoError(t, err)
	require.Len(t, history, writes)

	for i, v := range history {
		assert.Equal(t, i+1, v.VersionNo, "version numbers are contiguous from 1")
		if i < writes-1 {
			require.NotNil(t, v.ValidTo, "version %d must be closed", v.VersionNo)
			next := history[i+1]
			assert.False(t, v.ValidTo.After(next.ValidFrom),
				"closed interval may not overlap its successor")
		} else {
			assert.Nil(t, v.ValidTo, "only the last version stays open")
		}
	}
}

func TestListValuesAcrossItems(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.set(t, "retention_days", meta.PrimitiveValue(json.RawMessage(`{"days":30}`)))
	f.set(t, "table_description", meta.StringValue("orders table"))
	f.set(t, "domain", meta.TaxonomyValue(registry.SelectSingle, "FIN"))

	values, err := f.service.ListValues(ctx, targetType, targetID)
	require.NoError(t, err)
	require.Len(t, values, 3)

	byItem := make(map[string]meta.ValueProjection, len(values))
	for _, v := range values {
		byItem[v.ItemCode] = v
		assert.True(t, v.Current(), "listing shows current versions only")
	}
	assert.Contains(t, byItem, "retention_days")
	assert.Contains(t, byItem, "table_description")
	assert.Contains(t, byItem, "domain")

	other, err := f.service.ListValues(ctx, targetType, "untouched")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGetValueAbsentIsNil(t *testing.T) {
	f := setupService(t)

	got, err := f.service.GetValue(context.Background(), targetType, "never-written", "retention_days")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetVersionUnknownID(t *testing.T) {
	f := setupService(t)

	_, err := f.service.GetVersion(context.Background(), "no-such-version")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestListVersionsNeverWritten(t *testing.T) {
	f := setupService(t)

	history, err := f.service.ListVersions(context.Background(), targetType, "never-written", "retention_days")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUpsertTermContentThroughService(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	var termID string
	err := f.mgr.Required(ctx, func(ctx context.Context) error {
		term, err := f.terms.ResolveTerm(ctx, "DATA_DOMAIN", "FIN")
		if err != nil {
			return err
		}
		termID = term.TermID
		return nil
	})
	require.NoError(t, err)

	versionID, err := f.service.UpsertTermContent(ctx, termID, refdata.TermContentUpdate{
		BodyMarkdown: "all things finance", Author: "tester",
	})
	require.NoError(t, err)
	require.NotEmpty(t, versionID)

	err = f.mgr.ReadOnly(ctx, func(ctx context.Context) error {
		versions, err := f.terms.ListTermVersions(ctx, termID)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, "all things finance", versions[0].BodyMarkdown)
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentWritersSerialize(t *testing.T) {
	if testing.Short() {
		t.Skip("file-backed concurrency test")
	}
	f := newServiceFixture(t, testutil.SetupFileDB(t))
	ctx := context.Background()

	const writers = 4
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload, _ := json.Marshal(map[string]int{"days": i})
			_, errs[i] = f.service.SetValue(ctx, targetType, targetID, "retention_days",
				meta.PrimitiveValue(payload), meta.WriteMeta{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	history, err := f.service.ListVersions(ctx, targetType, targetID, "retention_days")
	require.NoError(t, err)
	require.Len(t, history, writers)
	for i, v := range history {
		assert.Equal(t, i+1, v.VersionNo, "losers must re-read the chain head, not reuse a stale number")
	}
}
