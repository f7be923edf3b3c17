package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagedata/metakeep/logger"
	"github.com/vantagedata/metakeep/refdata"
)

// BootstrapCmd seeds demo reference data for quick manual testing.
var BootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed demo taxonomy and codeset data",
	Long: `Seed a sample taxonomy (DATA_DOMAIN with FIN and HR terms) and codeset
(PII_LEVEL with PUBLIC and RESTRICTED codes) for quick manual testing.`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.uow.Required(context.Background(), func(ctx context.Context) error {
		return refdata.Bootstrap(ctx, a.codes, a.terms, logger.Logger)
	})
	if err != nil {
		return err
	}

	fmt.Println("Demo data seeded: taxonomy DATA_DOMAIN, codeset PII_LEVEL")
	return nil
}
