package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/chinchliff/oti/pkg/server/dto"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/spf13/cobra"
)

var propertiesOutput string

var propertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "List searchable properties",
	Long:  `List the properties each entity class can be searched by, and which of its indexes carry them.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if propertiesOutput == "table" {
			return writePropertiesTable(cmd.OutOrStdout())
		}
		props := make(map[types.EntityClass][]types.SearchableProperty, len(types.EntityClasses))
		for _, class := range types.EntityClasses {
			props[class] = types.SearchableProperties(class)
		}
		return writeOutput(cmd.OutOrStdout(), propertiesOutput, dto.PropertiesResponse{Properties: props})
	},
}

func init() {
	rootCmd.AddCommand(propertiesCmd)
	propertiesCmd.Flags().StringVarP(&propertiesOutput, "output", "o", "table", "Output format (table, json, yaml)")
}

func writePropertiesTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tPROPERTY\tEXACT\tFULLTEXT")
	for _, class := range types.EntityClasses {
		for _, p := range types.SearchableProperties(class) {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%t\n", class, p.Name, p.Exact, p.Fulltext)
		}
	}
	return tw.Flush()
}
