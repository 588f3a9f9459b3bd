package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/TFMV/filigram/internal/pipeline"
	"github.com/TFMV/filigram/internal/rules"
	"github.com/TFMV/filigram/internal/walk"
	"github.com/TFMV/filigram/internal/watermark"
	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "filigram [options] <source> <destination>",
	Short: "Copy a directory tree, watermarking its images",
	Long: `filigram recreates the source tree under the destination. Images are
resized to 500x500 and watermarked, every other file is copied unchanged.

Examples:
  filigram photos published
  filigram photos published --text="© Example" --color="#ffffff80" --workers=8
  filigram photos published --exclude-dir=drafts --exclude="**/raw/*" --progress
  filigram photos published --clean --report=summary.yaml`,
	Version:       version,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFiligram(cmd.Context(), args[0], args[1])
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := watermark.DefaultSpec()
	defaultRules := rules.DefaultRules()

	// Shared by every command
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.filigram.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().Bool("silent", false, "Disable all output except errors")
	rootCmd.PersistentFlags().StringSlice("extensions", defaultRules.Extensions, "Extensions to watermark")
	rootCmd.PersistentFlags().StringSlice("exclude-dir", defaultRules.ExcludeDirs, "Directory names whose contents are copied, not watermarked")
	rootCmd.PersistentFlags().StringSlice("exclude-file", defaultRules.ExcludeFiles, "File name prefixes that are copied, not watermarked")
	rootCmd.PersistentFlags().StringSlice("exclude", nil, "Glob or substring patterns that are copied, not watermarked")

	// Run options
	rootCmd.Flags().IntP("workers", "w", 0, "Number of concurrent workers (default: number of CPUs)")
	rootCmd.Flags().String("format", "text", "Summary format (text|json|yaml)")
	rootCmd.Flags().Bool("progress", false, "Show a progress bar")
	rootCmd.Flags().String("report", "", "Also write the summary to this file (.json, .yaml or .yml)")
	rootCmd.Flags().Bool("clean", false, "Remove the destination before running")
	rootCmd.Flags().Bool("strict", false, "Exit with an error when any file fails")

	// Watermark options
	rootCmd.Flags().String("text", defaults.Text, "Watermark text")
	rootCmd.Flags().String("color", "#0000006e", "Text colour, any CSS colour (#rrggbbaa, white, rgba(...))")
	rootCmd.Flags().Float64("font-size", defaults.FontSize, "Font size in pixels")
	rootCmd.Flags().Float64("angle", defaults.Angle, "Clockwise text rotation in radians")
	rootCmd.Flags().Int("x", defaults.Position.X, "Text position, left")
	rootCmd.Flags().Int("y", defaults.Position.Y, "Text position, top")
	rootCmd.Flags().Float64("opacity", defaults.Opacity, "Overlay opacity between 0 and 1 (0 selects 1)")
	rootCmd.Flags().String("filter", defaults.Filter, "Resampling filter (nearest|box|linear|catmullrom|lanczos)")
	rootCmd.Flags().String("graphic", "", "Image composited over the text")
	rootCmd.Flags().Int("graphic-x", 0, "Graphic position, left")
	rootCmd.Flags().Int("graphic-y", 0, "Graphic position, top")
	rootCmd.Flags().Int("jpeg-quality", defaults.JPEGQuality, "JPEG output quality (1-100)")
	rootCmd.Flags().Bool("preserve-metadata", defaults.PreserveMetadata, "Carry Exif and ICC data over to watermarked images")

	// Bind flags to viper
	for _, name := range []string{"verbose", "silent", "extensions", "exclude-dir", "exclude-file", "exclude"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	for _, name := range []string{
		"workers", "format", "progress", "report", "clean", "strict",
		"text", "color", "font-size", "angle", "x", "y", "opacity", "filter",
		"graphic", "graphic-x", "graphic-y", "jpeg-quality", "preserve-metadata",
	} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".filigram" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".filigram")
	}

	viper.SetEnvPrefix("filigram")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("silent") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// rulesFromConfig builds the classification rules from v.
func rulesFromConfig(v *viper.Viper) rules.Rules {
	return rules.Rules{
		Extensions:      v.GetStringSlice("extensions"),
		ExcludeDirs:     v.GetStringSlice("exclude-dir"),
		ExcludeFiles:    v.GetStringSlice("exclude-file"),
		ExcludePatterns: v.GetStringSlice("exclude"),
	}
}

// specFromConfig builds the watermark from v. Keys that are not set keep
// their default value.
func specFromConfig(v *viper.Viper) (watermark.Spec, error) {
	spec := watermark.DefaultSpec()

	if v.IsSet("text") {
		spec.Text = v.GetString("text")
	}
	if v.IsSet("color") {
		c, err := watermark.ParseColor(v.GetString("color"))
		if err != nil {
			return spec, fmt.Errorf("invalid color value: %w", err)
		}
		spec.Color = c
	}
	if v.IsSet("font-size") {
		spec.FontSize = v.GetFloat64("font-size")
	}
	if v.IsSet("angle") {
		spec.Angle = v.GetFloat64("angle")
	}
	if v.IsSet("x") || v.IsSet("y") {
		spec.Position = image.Pt(intOr(v, "x", spec.Position.X), intOr(v, "y", spec.Position.Y))
	}
	if v.IsSet("opacity") {
		spec.Opacity = v.GetFloat64("opacity")
	}
	if v.IsSet("filter") {
		spec.Filter = v.GetString("filter")
	}
	if v.IsSet("jpeg-quality") {
		spec.JPEGQuality = v.GetInt("jpeg-quality")
	}
	if v.IsSet("preserve-metadata") {
		spec.PreserveMetadata = v.GetBool("preserve-metadata")
	}
	if path := v.GetString("graphic"); path != "" {
		g, err := watermark.LoadGraphic(path)
		if err != nil {
			return spec, fmt.Errorf("invalid graphic value: %w", err)
		}
		spec.Graphic = g
		spec.GraphicPosition = image.Pt(v.GetInt("graphic-x"), v.GetInt("graphic-y"))
	}

	return spec, spec.Validate()
}

func intOr(v *viper.Viper, key string, fallback int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	return fallback
}

// logLevel maps the verbosity flags to a pipeline log level.
func logLevel(v *viper.Viper) pipeline.LogLevel {
	switch {
	case v.GetBool("verbose"):
		return pipeline.LogLevelDebug
	case v.GetBool("silent"):
		return pipeline.LogLevelError
	default:
		return pipeline.LogLevelInfo
	}
}

// cleanDestination removes dst, refusing to remove anything when the source
// is not an existing directory or when dst holds the source.
func cleanDestination(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(absSrc)
	if err != nil {
		return fmt.Errorf("refusing to clean %s: %w", dst, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("refusing to clean %s: %s: %w", dst, src, pipeline.ErrNotDirectory)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absDst, absSrc)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to clean %s: it contains the source", dst)
	}
	if err := os.RemoveAll(absDst); err != nil {
		return fmt.Errorf("clean %s: %w", dst, err)
	}
	return nil
}

func runFiligram(ctx context.Context, src, dst string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	v := viper.GetViper()

	format := v.GetString("format")
	if !validFormat(format) {
		return fmt.Errorf("invalid format: %s", format)
	}
	spec, err := specFromConfig(v)
	if err != nil {
		return err
	}
	classifier, err := rules.NewClassifier(rulesFromConfig(v))
	if err != nil {
		return err
	}
	renderer, err := watermark.NewRenderer(spec)
	if err != nil {
		return err
	}

	if v.GetBool("clean") {
		if err := cleanDestination(src, dst); err != nil {
			return err
		}
	}

	opts := pipeline.Options{
		Workers:  v.GetInt("workers"),
		LogLevel: logLevel(v),
	}
	silent := v.GetBool("silent")

	// Set the progress bar if requested, sized from a first walk
	var bar *pb.ProgressBar
	if v.GetBool("progress") && !silent {
		total, err := walk.Count(ctx, src)
		if err != nil {
			return fmt.Errorf("count files: %w", err)
		}
		bar = pb.New(total).SetWriter(os.Stderr).Start()
	}

	opts.OnEvent = func(e pipeline.Event) {
		switch {
		case bar != nil:
			if e.Outcome != pipeline.OutcomeSkipped {
				bar.Increment()
			}
		case !silent && format == "text":
			fmt.Printf("%-11s %s\n", e.Outcome, e.Path)
		}
	}

	d, err := pipeline.New(renderer, classifier, opts)
	if err != nil {
		return err
	}
	summary, runErr := d.Run(ctx, src, dst)
	if bar != nil {
		bar.Finish()
	}

	var setupErr *pipeline.SetupError
	if errors.As(runErr, &setupErr) || summary == nil {
		return runErr
	}

	if !silent || format != "text" {
		if err := writeReport(os.Stdout, summary, format); err != nil {
			return err
		}
	}
	if path := v.GetString("report"); path != "" {
		if err := writeReportFile(path, summary); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if v.GetBool("strict") && summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Files)
	}
	return nil
}
