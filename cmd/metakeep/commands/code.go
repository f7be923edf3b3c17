package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagedata/metakeep/refdata"
)

// CodeCmd groups reference-code operations.
var CodeCmd = &cobra.Command{
	Use:   "code",
	Short: "Manage reference codes and their versioned labels",
}

var codeLabelCmd = &cobra.Command{
	Use:   "label <code-id>",
	Short: "Write a new display version for a code",
	Args:  cobra.ExactArgs(1),
	RunE:  runCodeLabel,
}

var codeHistoryCmd = &cobra.Command{
	Use:   "history <code-id>",
	Short: "Show a code's label version history",
	Args:  cobra.ExactArgs(1),
	RunE:  runCodeHistory,
}

var (
	codeLabelFlag  string
	codeSortFlag   int
	codeAuthorFlag string
	codeReasonFlag string
)

func init() {
	codeLabelCmd.Flags().StringVar(&codeLabelFlag, "label", "", "Display label (required)")
	codeLabelCmd.Flags().IntVar(&codeSortFlag, "sort-order", 0, "Sort order")
	codeLabelCmd.Flags().StringVar(&codeAuthorFlag, "author", "", "Author recorded on the version")
	codeLabelCmd.Flags().StringVar(&codeReasonFlag, "reason", "", "Change reason recorded on the version")
	codeLabelCmd.MarkFlagRequired("label")

	CodeCmd.AddCommand(codeLabelCmd)
	CodeCmd.AddCommand(codeHistoryCmd)
}

func runCodeLabel(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	versionID, err := a.service.SetCodeLabel(context.Background(), args[0], refdata.CodeLabelUpdate{
		Label:     codeLabelFlag,
		SortOrder: codeSortFlag,
		IsActive:  true,
		Author:    a.author(codeAuthorFlag),
		Reason:    codeReasonFlag,
	})
	if err != nil {
		return err
	}

	fmt.Printf("version_id: %s\n", versionID)
	return nil
}

func runCodeHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var versions []refdata.CodeVersion
	err = a.uow.ReadOnly(context.Background(), func(ctx context.Context) error {
		var err error
		versions, err = a.codes.ListCodeVersions(ctx, args[0])
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
		fmt.Printf("v%d  %q  %s  sort=%d\n", v.VersionNo, v.Label, open, v.SortOrder)
	}
	return nil
}
