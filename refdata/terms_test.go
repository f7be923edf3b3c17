package refdata_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/refdata"
)

func TestCreateTaxonomyAndTerms(t *testing.T) {
	f := setupRefdata(t)

	f.run(t, func(ctx context.Context) error {
		tax, err := f.terms.CreateTaxonomy(ctx, "DATA_DOMAIN", "Data Domain", "business domains")
		require.NoError(t, err)

		got, err := f.terms.GetTaxonomyByCode(ctx, "DATA_DOMAIN")
		require.NoError(t, err)
		assert.Equal(t, tax.TaxonomyID, got.TaxonomyID)
		assert.Equal(t, "business domains", got.Description)

		parent, err := f.terms.CreateTerm(ctx, tax.TaxonomyID, "FIN", "Finance", "")
		require.NoError(t, err)
		child, err := f.terms.CreateTerm(ctx, tax.TaxonomyID, "FIN_AP", "Accounts Payable", parent.TermID)
		require.NoError(t, err)

		fetched, err := f.terms.GetTerm(ctx, child.TermID)
		require.NoError(t, err)
		assert.Equal(t, "FIN_AP", fetched.TermKey)
		assert.Equal(t, parent.TermID, fetched.ParentTermID)
		assert.Empty(t, fetched.CurrentVersionID, "no content written yet")

		_, err = f.terms.GetTaxonomyByCode(ctx, "NOPE")
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
		return nil
	})
}

func TestUpsertTermContentBuildsChain(t *testing.T) {
	f := setupRefdata(t)

	var termID string
	f.run(t, func(ctx context.Context) error {
		tax, err := f.terms.CreateTaxonomy(ctx, "DATA_DOMAIN", "Data Domain", "")
		require.NoError(t, err)
		term, err := f.terms.CreateTerm(ctx, tax.TaxonomyID, "FIN", "Finance", "")
		require.NoError(t, err)
		termID = term.TermID

		_, err = f.terms.UpsertTermContent(ctx, termID, refdata.TermContentUpdate{
			BodyMarkdown: "# Finance\nmoney things", Author: "alice",
		})
		require.NoError(t, err)
		_, err = f.terms.UpsertTermContent(ctx, termID, refdata.TermContentUpdate{
			BodyMarkdown: "# Finance\nrevised",
			BodyJSON:     json.RawMessage(`{"owner":"cfo"}`),
			Author:       "bob", Reason: "quarterly review",
		})
		return err
	})

	f.run(t, func(ctx context.Context) error {
		versions, err := f.terms.ListTermVersions(ctx, termID)
		require.NoError(t, err)
		require.Len(t, versions, 2)

		assert.Equal(t, 1, versions[0].VersionNo)
		assert.Equal(t, "# Finance\nmoney things", versions[0].BodyMarkdown)
		require.NotNil(t, versions[0].ValidTo)

		assert.Equal(t, 2, versions[1].VersionNo)
		assert.Equal(t, "quarterly review", versions[1].Reason)
		assert.JSONEq(t, `{"owner":"cfo"}`, string(versions[1].BodyJSON))
		assert.Nil(t, versions[1].ValidTo)

		term, err := f.terms.GetTerm(ctx, termID)
		require.NoError(t, err)
		assert.Equal(t, versions[1].VersionID, term.CurrentVersionID)
		return nil
	})
}

func TestUpsertTermContentUnknownTerm(t *testing.T) {
	f := setupRefdata(t)

	err := f.mgr.Required(context.Background(), func(ctx context.Context) error {
		_, err := f.terms.UpsertTermContent(ctx, "no-such-term", refdata.TermContentUpdate{BodyMarkdown: "x"})
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEntityNotFound))
}

func TestResolveTerm(t *testing.T) {
	f := setupRefdata(t)

	var wantID string
	f.run(t, func(ctx context.Context) error {
		one, err := f.terms.CreateTaxonomy(ctx, "DATA_DOMAIN", "Data Domain", "")
		require.NoError(t, err)
		other, err := f.terms.CreateTaxonomy(ctx, "REGIONS", "Regions", "")
		require.NoError(t, err)

		term, err := f.terms.CreateTerm(ctx, one.TaxonomyID, "EU", "European Business", "")
		require.NoError(t, err)
		wantID = term.TermID
		_, err = f.terms.CreateTerm(ctx, other.TaxonomyID, "EU", "Europe", "")
		require.NoError(t, err)
		return nil
	})

	f.run(t, func(ctx context.Context) error {
		t.Run("by id", func(t *testing.T) {
			term, err := f.terms.ResolveTerm(ctx, "", wantID)
			require.NoError(t, err)
			assert.Equal(t, wantID, term.TermID)
		})

		t.Run("by key scoped", func(t *testing.T) {
			term, err := f.terms.ResolveTerm(ctx, "DATA_DOMAIN", "EU")
			require.NoError(t, err)
			assert.Equal(t, wantID, term.TermID)
			assert.Equal(t, "European Business", term.DisplayName)
		})

		t.Run("unknown key", func(t *testing.T) {
			_, err := f.terms.ResolveTerm(ctx, "DATA_DOMAIN", "MARS")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrReferenceNotFound))
			assert.Contains(t, err.Error(), "MARS")
		})
		return nil
	})
}

func TestDisplayName(t *testing.T) {
	f := setupRefdata(t)

	f.run(t, func(ctx context.Context) error {
		tax, err := f.terms.CreateTaxonomy(ctx, "DATA_DOMAIN", "Data Domain", "")
		require.NoError(t, err)
		term, err := f.terms.CreateTerm(ctx, tax.TaxonomyID, "HR", "Human Resources", "")
		require.NoError(t, err)

		name, err := f.terms.DisplayName(ctx, term.TermID)
		require.NoError(t, err)
		assert.Equal(t, "Human Resources", name)

		_, err = f.terms.DisplayName(ctx, "missing")
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
		return nil
	})
}
