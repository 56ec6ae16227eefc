package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docmap/internal/app"
	"github.com/dgallion1/docmap/internal/config"
	"github.com/dgallion1/docmap/internal/outline"
	"github.com/dgallion1/docmap/internal/parser"
	"github.com/dgallion1/docmap/internal/pipeline"
)

func newRootCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:           "docmapctl",
		Short:         "Extract text from documents and build mindmaps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	logger := func() *slog.Logger {
		if !verbose {
			return slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	cmd.AddCommand(newExtractCommand(logger))
	cmd.AddCommand(newGenerateCommand(logger))
	return cmd
}

func readInput(path string, image bool) (parser.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return parser.Input{}, err
	}
	in := parser.Input{Data: data, Filename: filepath.Base(path), Kind: parser.KindDocument}
	if image {
		in.Kind = parser.KindImage
	}
	return in, nil
}

func newExtractCommand(logger func() *slog.Logger) *cobra.Command {
	var image bool
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text recognized in a document or photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args[0], image)
			if err != nil {
				return err
			}
			engine := app.NewEngine(config.Load(), logger())
			defer engine.Close()

			text, err := engine.Extractor.Extract(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&image, "image", false, "treat the file as a photo and run OCR")
	return cmd
}

func newGenerateCommand(logger func() *slog.Logger) *cobra.Command {
	var (
		image   bool
		depth   string
		model   string
		title   string
		asJSON  bool
		publish bool
		userID  string
	)
	cmd := &cobra.Command{
		Use:   "generate <file>",
		Short: "Build a mindmap and print it as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args[0], image)
			if err != nil {
				return err
			}
			cfg := config.Load()
			log := logger()
			ctx := cmd.Context()
			opts := pipeline.Options{Depth: outline.ParseDepth(depth), Model: model, Title: title}

			var (
				svc     *pipeline.Service
				cleanup func()
			)
			if publish {
				a, err := app.New(ctx, cfg, log)
				if err != nil {
					return err
				}
				svc, cleanup = a.Service, func() { a.Close() }
			} else {
				engine := app.NewEngine(cfg, log)
				svc = pipeline.NewService(engine.Extractor, engine.Generator, nil, nil, pipeline.ServiceConfig{}, log)
				cleanup = engine.Close
			}
			defer cleanup()

			out, err := svc.Process(ctx, in, opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(w, out.Markdown)
			}

			if publish {
				rec, err := svc.Publish(ctx, userID, out, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "published %s: %s\n", rec.ID, rec.URL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&image, "image", false, "treat the file as a photo and run OCR")
	cmd.Flags().StringVar(&depth, "depth", string(outline.DepthBalanced), "brief, balanced or detailed")
	cmd.Flags().StringVar(&model, "model", "", "model label or ID")
	cmd.Flags().StringVar(&title, "title", "", "map title; empty lets the model choose")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the outline as JSON")
	cmd.Flags().BoolVar(&publish, "publish", false, "upload the map and add it to the user's history")
	cmd.Flags().StringVar(&userID, "user", "cli", "history owner for --publish")
	return cmd
}
