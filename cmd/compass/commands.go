package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/spf13/cobra"

	"github.com/growthcompass/compass/internal/docx"
	"github.com/growthcompass/compass/internal/extract"
	appI18n "github.com/growthcompass/compass/internal/i18n"
	"github.com/growthcompass/compass/internal/model"
	"github.com/growthcompass/compass/internal/pipeline"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show how a document splits into student sections",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	f := cmd.Flags()
	f.StringP("format", "f", "text", "Output format (text, markdown, html)")
	f.String("delimiter", "", "Section delimiter (default: try \"Student:\" then \"Student Name:\")")
	f.Int64("max-file-size", 50<<20, "Largest document accepted, in bytes")
	addLogFlags(f)
	return cmd
}

func duplicatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Report stored records whose teacher comments look duplicated",
		Args:  cobra.NoArgs,
		RunE:  runDuplicates,
	}
	f := cmd.Flags()
	f.String("db", "compass.db", "SQLite database path or postgres:// DSN")
	f.String("class", "", "Only check this class code")
	f.String("student", "", "Only check this student")
	f.Float64("similarity", pipeline.DefaultSimilarity, "Word overlap at or above which comments count as duplicates (0-1)")
	f.StringP("lang", "l", "en", "Summary language (en, zh)")
	addLogFlags(f)
	return cmd
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	root := v.GetString("root")
	if len(args) == 1 {
		root = args[0]
	}
	if root == "" {
		return errors.New("no feedback folder: pass ROOT or set --root")
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	ctx, err := localized(ctx, v)
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := newPipeline(v, db)
	if err != nil {
		return err
	}

	summary, err := p.Import(ctx, root)
	if err != nil {
		return fmt.Errorf("import %s: %w", root, err)
	}
	printLines(cmd.OutOrStdout(), appI18n.SummaryLines(ctx, summary))
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signalContext(cmd)
	defer stop()

	p, err := newPipeline(v, nil)
	if err != nil {
		return err
	}

	results := p.Run(ctx, args)
	recs := make([]model.FeedbackRecord, 0)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		recs = append(recs, res.Records...)
	}
	if err := writeJSON(v.GetString("output"), recs); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be read", failed, len(results))
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	loader := docx.New(docx.Config{MaxFileSize: v.GetInt64("max-file-size")})
	doc, err := loader.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(v.GetString("format")) {
	case "html":
		_, err = fmt.Fprintln(out, doc.HTML)
		return err
	case "markdown", "md":
		md, err := markdown(doc.HTML)
		if err != nil {
			return fmt.Errorf("convert to markdown: %w", err)
		}
		_, err = fmt.Fprintln(out, md)
		return err
	case "text":
		writeSections(out, args[0], doc, delimiters(v.GetString("delimiter")))
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, markdown or html)", v.GetString("format"))
	}
}

func markdown(html string) (string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return conv.ConvertString(html)
}

// writeSections prints the path metadata, then each section's extracted
// fields in document order.
func writeSections(w io.Writer, path string, doc *docx.Document, delims []string) {
	meta := extract.ParsePathMetadata(path)
	fmt.Fprintf(w, "class=%s unit=%s lesson=%s instructor=%s type=%s\n",
		meta.ClassCode, meta.UnitNumber, meta.LessonNumber, meta.Instructor, meta.FeedbackType)

	sections := extract.Split(doc.Text, doc.HTML, delims...)
	if len(sections) == 0 {
		fmt.Fprintln(w, "no student sections found")
		return
	}
	for _, sec := range sections {
		c := extract.ParseSectionContent(sec)
		fmt.Fprintf(w, "\n[%d] %s %q\n", sec.Index, sec.Delimiter, sec.StudentName)
		fmt.Fprintf(w, "  motion:   %s (%s, %s)\n", orDash(c.Motion), c.MotionKind, c.MotionStrategy)
		fmt.Fprintf(w, "  duration: %s\n", orDash(c.Duration))
		fmt.Fprintf(w, "  comments: %s\n", orDash(c.TeacherComments))
		for _, def := range model.Rubric {
			if s, ok := c.RubricScores[def.Category]; ok {
				fmt.Fprintf(w, "  %-24s %s\n", def.Label+":", s)
			}
		}
	}
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func runDuplicates(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	threshold := v.GetFloat64("similarity")
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("similarity must be in (0, 1], got %v", threshold)
	}

	ctx, err := localized(cmd.Context(), v)
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := db.ListFeedback(ctx, model.FeedbackFilter{
		Class:   v.GetString("class"),
		Student: v.GetString("student"),
	})
	if err != nil {
		return fmt.Errorf("list feedback: %w", err)
	}

	dups := pipeline.FindDuplicates(recs, threshold)
	slog.Debug("checked for duplicates", "records", len(recs), "threshold", threshold)
	out := cmd.OutOrStdout()
	if len(dups) == 0 {
		fmt.Fprintln(out, appI18n.T(ctx, "NoDuplicates"))
		return nil
	}
	fmt.Fprintln(out, appI18n.Tp(ctx, "DuplicatesFound", len(dups)))
	for _, d := range dups {
		fmt.Fprintf(out, "%s  %s unit %s lesson %s  %.2f\n  %s\n  %s\n",
			d.Student, d.ClassCode, d.UnitNumber, d.LessonNumber, d.Similarity, d.FirstPath, d.SecondPath)
	}
	return nil
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
