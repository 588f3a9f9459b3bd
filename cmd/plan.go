package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TFMV/filigram/internal/rules"
	"github.com/TFMV/filigram/internal/walk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var planCmd = &cobra.Command{
	Use:   "plan [options] <source>",
	Short: "Show what a run would do, without writing anything",
	Long: `List every file under the source with the decision filigram would take
for it: watermark it, or copy it unchanged, and why. Nothing is written.

Placeholders for --format:
  {}        path on disk          {rel}     path relative to the source
  {base}    file name             {dir}     directory of the relative path
  {size}    size in bytes         {class}   watermarkable or excluded
  {reason}  why the file got its class
Quoted variants such as {""} or {"rel"} are also available.

Examples:
  filigram plan photos
  filigram plan photos --only=watermarkable --format="{rel} ({size} bytes)"
  filigram plan photos --exclude="**/raw/*" --format="{class}: {rel} ({reason})"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd.Context(), os.Stdout, args[0])
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("format", "", "Format string for each line")
	planCmd.Flags().String("only", "", "Only list one class (watermarkable|excluded)")

	viper.BindPFlag("plan.format", planCmd.Flags().Lookup("format"))
	viper.BindPFlag("plan.only", planCmd.Flags().Lookup("only"))
}

// planEntry is one line of a plan.
type planEntry struct {
	Path   string
	Rel    string
	Size   int64
	Class  rules.Class
	Reason rules.Reason
}

func runPlan(ctx context.Context, w io.Writer, root string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	v := viper.GetViper()

	var only *rules.Class
	switch v.GetString("plan.only") {
	case "":
	case "watermarkable":
		c := rules.Watermarkable
		only = &c
	case "excluded":
		c := rules.Excluded
		only = &c
	default:
		return fmt.Errorf("invalid only value: %s", v.GetString("plan.only"))
	}

	classifier, err := rules.NewClassifier(rulesFromConfig(v))
	if err != nil {
		return err
	}
	format := v.GetString("plan.format")

	counts := make(map[rules.Class]int)
	err = walk.New(root, walk.Options{}).Walk(ctx, func(e walk.Entry) error {
		if e.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", e.Rel, e.Err)
			return nil
		}
		if e.Kind != walk.KindFile {
			return nil
		}

		class, reason := classifier.Explain(e.Rel)
		counts[class]++
		if only != nil && *only != class {
			return nil
		}

		entry := planEntry{Path: e.Path, Rel: e.Rel, Class: class, Reason: reason}
		if e.Info != nil {
			entry.Size = e.Info.Size()
		}
		if format != "" {
			_, err := fmt.Fprintln(w, formatPlanLine(format, entry))
			return err
		}
		_, err := fmt.Fprintf(w, "%-13s %-22s %s\n", class, reason, e.Rel)
		return err
	})
	if err != nil {
		return err
	}

	if format == "" && !v.GetBool("silent") {
		fmt.Fprintf(w, "\n%d to watermark, %d to copy\n", counts[rules.Watermarkable], counts[rules.Excluded])
	}
	return nil
}

// formatPlanLine replaces placeholders in a template with values from the
// entry. Values are inserted in a single pass and never expanded again.
func formatPlanLine(template string, e planEntry) string {
	values := []struct{ key, value string }{
		{"", e.Path},
		{"rel", e.Rel},
		{"base", filepath.Base(e.Rel)},
		{"dir", filepath.Dir(e.Rel)},
		{"size", strconv.FormatInt(e.Size, 10)},
		{"class", e.Class.String()},
		{"reason", string(e.Reason)},
	}

	pairs := make([]string, 0, 4*len(values))
	for _, kv := range values {
		pairs = append(pairs,
			"{"+kv.key+"}", kv.value,
			`{"`+kv.key+`"}`, strconv.Quote(kv.value),
		)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
