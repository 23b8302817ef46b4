package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/chinchliff/oti/pkg/config"
	"github.com/chinchliff/oti/pkg/server/dto"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a single search",
	Long: `Run a single search against the configured store and print the results.

Match modes default to the indexes the property is registered in. Use
--exact and --fulltext to choose them explicitly; a search with both
disabled matches nothing.`,
}

var (
	searchProperty string
	searchValue    string
	searchExact    bool
	searchFulltext bool
	searchOutput   string
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.PersistentFlags().StringVar(&searchProperty, "property", "", "Property to search (see oti properties)")
	searchCmd.PersistentFlags().StringVar(&searchValue, "value", "", "Value to match")
	searchCmd.PersistentFlags().BoolVar(&searchExact, "exact", false, "Query the exact index")
	searchCmd.PersistentFlags().BoolVar(&searchFulltext, "fulltext", false, "Query the fulltext index")
	searchCmd.PersistentFlags().StringVarP(&searchOutput, "output", "o", "json", "Output format (json, yaml)")
	_ = searchCmd.MarkPersistentFlagRequired("property")

	searchCmd.AddCommand(
		newSearchCommand("studies", "Find studies by metadata property", types.StudyClass),
		newSearchCommand("trees", "Find trees by root property", types.TreeClass),
		newSearchCommand("nodes", "Find trees containing matching nodes", types.TreeNodeClass),
	)
}

func newSearchCommand(use, short string, class types.EntityClass) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, class)
		},
	}
}

// searchRequest builds a request from the flags. Match mode flags left
// unset keep the property's defaults.
func searchRequest(cmd *cobra.Command) dto.SearchRequest {
	req := dto.SearchRequest{
		Property: searchProperty,
		Value:    searchValue,
	}
	if cmd.Flags().Changed("exact") {
		exact := searchExact
		req.Exact = &exact
	}
	if cmd.Flags().Changed("fulltext") {
		fulltext := searchFulltext
		req.Fulltext = &fulltext
	}
	return req
}

func runSearch(cmd *cobra.Command, class types.EntityClass) error {
	req := searchRequest(cmd)
	if err := req.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr(), "cli")
	if err != nil {
		return err
	}
	defer a.Close()

	response, err := search(ctx, a, class, req.Predicate(class))
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), searchOutput, response)
}

// search runs pred against the shape for class and wraps the results the
// way the HTTP API does.
func search(ctx context.Context, a *app, class types.EntityClass, pred types.SearchPredicate) (any, error) {
	switch class {
	case types.StudyClass:
		studies, err := a.client.SearchStudies(ctx, pred)
		if err != nil {
			return nil, err
		}
		return dto.StudySearchResponse{MatchedStudies: studies, Total: len(studies)}, nil
	case types.TreeClass:
		trees, err := a.client.SearchTrees(ctx, pred)
		if err != nil {
			return nil, err
		}
		return dto.TreeSearchResponse{MatchedTrees: trees, Total: len(trees)}, nil
	case types.TreeNodeClass:
		trees, err := a.client.SearchTreeNodes(ctx, pred)
		if err != nil {
			return nil, err
		}
		return dto.TreeNodeSearchResponse{MatchedTrees: trees, Total: len(trees)}, nil
	default:
		return nil, fmt.Errorf("unknown entity class %q", class)
	}
}

// writeOutput encodes v as JSON or YAML.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}
