package refdata

import (
	"context"

	"go.uber.org/zap"
)

// Bootstrap seeds a sample taxonomy and codeset for quick manual testing:
// taxonomy DATA_DOMAIN with FIN and HR terms, codeset PII_LEVEL with PUBLIC
// and RESTRICTED codes, each code given its first label version. The caller
// owns the unit of work.
func Bootstrap(ctx context.Context, codes *CodeStore, terms *TermStore, logger *zap.SugaredLogger) error {
	tax, err := terms.CreateTaxonomy(ctx, "DATA_DOMAIN", "Data Domain", "")
	if err != nil {
		return err
	}
	if _, err := terms.CreateTerm(ctx, tax.TaxonomyID, "FIN", "Finance", ""); err != nil {
		return err
	}
	if _, err := terms.CreateTerm(ctx, tax.TaxonomyID, "HR", "Human Resources", ""); err != nil {
		return err
	}

	cs, err := codes.CreateCodeSet(ctx, "PII_LEVEL", "PII Level", "")
	if err != nil {
		return err
	}
	for _, seed := range []struct{ key, label string }{
		{"PUBLIC", "Public"},
		{"RESTRICTED", "Restricted"},
	} {
		c, err := codes.CreateCode(ctx, cs.CodeSetID, seed.key)
		if err != nil {
			return err
		}
		if _, err := codes.SetCodeLabel(ctx, c.CodeID, CodeLabelUpdate{
			Label:    seed.label,
			IsActive: true,
		}); err != nil {
			return err
		}
	}

	if logger != nil {
		logger.Infow("Bootstrap data seeded",
			"taxonomy", "DATA_DOMAIN",
			"codeset", "PII_LEVEL",
		)
	}
	return nil
}
