package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vantagedata/metakeep/errors"
	"github.com/vantagedata/metakeep/meta"
	"github.com/vantagedata/metakeep/registry"
)

// ValueCmd groups meta-value operations.
var ValueCmd = &cobra.Command{
	Use:   "value",
	Short: "Manage meta values attached to targets",
	Long: `Manage versioned meta values attached to targets.

Examples:
  metakeep value set table orders retention_days --primitive '{"days":30}'
  metakeep value set table orders table_description --string "Order fact table"
  metakeep value set table orders pii_level --code RESTRICTED
  metakeep value set table orders domain --term FIN
  metakeep value set table orders tags --term FIN --term HR --multi
  metakeep value get table orders retention_days
  metakeep value list table orders
  metakeep value history table orders retention_days`,
}

var valueSetCmd = &cobra.Command{
	Use:   "set <target-type> <target-id> <item-code>",
	Short: "Set a meta value (creates a new version)",
	Args:  cobra.ExactArgs(3),
	RunE:  runValueSet,
}

var valueGetCmd = &cobra.Command{
	Use:   "get <target-type> <target-id> <item-code>",
	Short: "Show the current value of a meta item",
	Args:  cobra.ExactArgs(3),
	RunE:  runValueGet,
}

var valueListCmd = &cobra.Command{
	Use:   "list <target-type> <target-id>",
	Short: "List all current values attached to a target",
	Args:  cobra.ExactArgs(2),
	RunE:  runValueList,
}

var valueHistoryCmd = &cobra.Command{
	Use:   "history <target-type> <target-id> <item-code>",
	Short: "Show the full version history of a meta item",
	Args:  cobra.ExactArgs(3),
	RunE:  runValueHistory,
}

var (
	primitiveFlag string
	stringFlag    string
	codeFlag      string
	termFlags     []string
	multiFlag     bool
	authorFlag    string
	reasonFlag    string
)

func init() {
	valueSetCmd.Flags().StringVar(&primitiveFlag, "primitive", "", "Primitive JSON value")
	valueSetCmd.Flags().StringVar(&stringFlag, "string", "", "String value")
	valueSetCmd.Flags().StringVar(&codeFlag, "code", "", "Code key or id (CODESET items)")
	valueSetCmd.Flags().StringArrayVar(&termFlags, "term", nil, "Term key or id (TAXONOMY items, repeatable)")
	valueSetCmd.Flags().BoolVar(&multiFlag, "multi", false, "Use MULTI selection mode")
	valueSetCmd.Flags().StringVar(&authorFlag, "author", "", "Author recorded on the version")
	valueSetCmd.Flags().StringVar(&reasonFlag, "reason", "", "Change reason recorded on the version")

	ValueCmd.AddCommand(valueSetCmd)
	ValueCmd.AddCommand(valueGetCmd)
	ValueCmd.AddCommand(valueListCmd)
	ValueCmd.AddCommand(valueHistoryCmd)
}

// taggedValueFromFlags builds the tagged value from whichever payload flag
// was given; exactly one payload flavor must be set.
func taggedValueFromFlags() (meta.TaggedValue, error) {
	set := 0
	if primitiveFlag != "" {
		set++
	}
	if stringFlag != "" {
		set++
	}
	if codeFlag != "" {
		set++
	}
	if len(termFlags) > 0 {
		set++
	}
	if set != 1 {
		return meta.TaggedValue{}, errors.New("exactly one of --primitive, --string, --code or --term is required")
	}

	switch {
	case primitiveFlag != "":
		return meta.PrimitiveValue(json.RawMessage(primitiveFlag)), nil
	case stringFlag != "":
		return meta.StringValue(stringFlag), nil
	case codeFlag != "":
		return meta.CodesetValue(codeFlag), nil
	default:
		mode := registry.SelectSingle
		if multiFlag {
			mode = registry.SelectMulti
		}
		return meta.TaxonomyValue(mode, termFlags...), nil
	}
}

func runValueSet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := taggedValueFromFlags()
	if err != nil {
		return err
	}

	versionID, err := a.service.SetValue(context.Background(), args[0], args[1], args[2], value, meta.WriteMeta{
		Author: a.author(authorFlag),
		Reason: reasonFlag,
	})
	if err != nil {
		return err
	}

	fmt.Printf("version_id: %s\n", versionID)
	return nil
}

func runValueGet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	proj, err := a.service.GetValue(context.Background(), args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if proj == nil {
		fmt.Println("(no current value)")
		return nil
	}
	return printProjection(proj)
}

func runValueList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	projections, err := a.service.ListValues(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	if len(projections) == 0 {
		fmt.Println("(no values)")
		return nil
	}
	for i := range projections {
		if err := printProjection(&projections[i]); err != nil {
			return err
		}
	}
	return nil
}

func runValueHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	projections, err := a.service.ListVersions(context.Background(), args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if len(projections) == 0 {
		fmt.Println("(no versions)")
		return nil
	}
	for i := range projections {
		if err := printProjection(&projections[i]); err != nil {
			return err
		}
	}
	return nil
}

func printProjection(proj *meta.ValueProjection) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(proj)
}
