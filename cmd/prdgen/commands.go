package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/phrazzld/prdgen/internal/generation"
	"github.com/phrazzld/prdgen/internal/service"
	"github.com/spf13/cobra"
)

func newServeCmd(state *cliState) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the PRD generator web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				state.app.config.Server.Port = port
			}
			return state.app.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	return cmd
}

type generateOptions struct {
	context     string
	contextFile string
	images      []string
	model       string
	out         string
	export      bool
	title       string
}

func newGenerateCmd(state *cliState) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a PRD from a product description and/or design images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, state.app, opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.context, "context", "c", "", "product context / description")
	fs.StringVar(&opts.contextFile, "context-file", "", "read the product context from a file (- for stdin)")
	fs.StringArrayVarP(&opts.images, "image", "i", nil, "design mockup or screenshot, PNG or JPEG (repeatable)")
	fs.StringVarP(&opts.model, "model", "m", "", "Gemini model (overrides llm.model_name)")
	fs.StringVarP(&opts.out, "out", "o", "", "write the PRD to this file instead of stdout")
	fs.BoolVar(&opts.export, "export", false, "also create a Google Doc from the PRD")
	fs.StringVar(&opts.title, "title", service.DefaultDocumentTitle, "Google Doc title used with --export")
	cmd.MarkFlagsMutuallyExclusive("context", "context-file")
	return cmd
}

func runGenerate(cmd *cobra.Command, app *application, opts generateOptions) error {
	productContext := opts.context
	if opts.contextFile != "" {
		data, err := readInput(cmd, opts.contextFile)
		if err != nil {
			return err
		}
		productContext = string(data)
	}

	images := make([]generation.Image, 0, len(opts.images))
	for _, path := range opts.images {
		img, err := generation.LoadImage(path)
		if err != nil {
			return err
		}
		images = append(images, img)
	}

	prd, err := app.prdService.GeneratePRD(cmd.Context(), service.GenerateInput{
		Model:   opts.model,
		Context: productContext,
		Images:  images,
	})
	if err != nil {
		return err
	}

	// The document link goes wherever the PRD does not.
	linkOut := cmd.ErrOrStderr()
	if opts.out != "" {
		if err := os.WriteFile(opts.out, []byte(prd), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.out, err)
		}
		linkOut = cmd.OutOrStdout()
		_, _ = fmt.Fprintf(linkOut, "PRD written to %s\n", opts.out)
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), prd)
	}

	if !opts.export {
		return nil
	}

	link, err := app.prdService.ExportPRD(cmd.Context(), opts.title, prd)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(linkOut, "Successfully created! %s\n", link)
	return nil
}

func newExportCmd(state *cliState) *cobra.Command {
	var file, title string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Create a Google Doc from an existing PRD file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			link, err := state.app.prdService.ExportPRD(cmd.Context(), title, string(data))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "PRD file to export (- for stdin)")
	cmd.Flags().StringVar(&title, "title", service.DefaultDocumentTitle, "document title")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newAuthCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Obtain and store Google Docs credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.app.authorizer == nil {
				return errors.New("the configured exporter does not support authorization")
			}
			location, err := state.app.authorizer.Authorize(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Google Docs credentials ready (%s)\n", location)
			return nil
		},
	}
}

// readInput reads path, or the command's stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
