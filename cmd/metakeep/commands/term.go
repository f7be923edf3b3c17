package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagedata/metakeep/refdata"
)

// TermCmd groups taxonomy term operations.
var TermCmd = &cobra.Command{
	Use:   "term",
	Short: "Manage taxonomy terms and their versioned content",
}

var termContentCmd = &cobra.Command{
	Use:   "content <term-id>",
	Short: "Write a new content version for a term",
	Args:  cobra.ExactArgs(1),
	RunE:  runTermContent,
}

var termHistoryCmd = &cobra.Command{
	Use:   "history <term-id>",
	Short: "Show a term's content version history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTermHistory,
}

var (
	termMarkdownFlag string
	termJSONFlag     string
	termAuthorFlag   string
	termReasonFlag   string
)

func init() {
	termContentCmd.Flags().StringVar(&termMarkdownFlag, "markdown", "", "Markdown body")
	termContentCmd.Flags().StringVar(&termJSONFlag, "json", "", "Structured JSON body")
	termContentCmd.Flags().StringVar(&termAuthorFlag, "author", "", "Author recorded on the version")
	termContentCmd.Flags().StringVar(&termReasonFlag, "reason", "", "Change reason recorded on the version")

	TermCmd.AddCommand(termContentCmd)
	TermCmd.AddCommand(termHistoryCmd)
}

func runTermContent(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	upd := refdata.TermContentUpdate{
		BodyMarkdown: termMarkdownFlag,
		Author:       a.author(termAuthorFlag),
		Reason:       termReasonFlag,
	}
	if termJSONFlag != "" {
		upd.BodyJSON = json.RawMessage(termJSONFlag)
	}

	versionID, err := a.service.UpsertTermContent(context.Background(), args[0], upd)
	if err != nil {
		return err
	}

	fmt.Printf("version_id: %s\n", versionID)
	return nil
}

func runTermHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var versions []refdata.TermVersion
	err = a.uow.ReadOnly(context.Background(), func(ctx context.Context) error {
		var err error
		versions, err = a.terms.ListTermVersions(ctx, args[0])
		return err
	})
	if err != nil {
		return err
	}

	if len(versions) == 0 {
		fmt.Println("(no versions)")
		return nil
	}
	for _, v := range versions {
		open := "closed"
		if v.ValidTo == nil {
			open = "current"
		}
		fmt.Printf("v%d  %s  %s  author=%s\n", v.VersionNo, v.VersionID, open, v.Author)
	}
	return nil
}
