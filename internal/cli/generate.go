package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/ashureev/sitecraft/internal/form"
	"github.com/ashureev/sitecraft/internal/preview"
	"github.com/ashureev/sitecraft/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// GenerateCmd returns the generate command.
func GenerateCmd() *cobra.Command {
	var websiteType string
	var title string
	var output string
	var open bool

	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Generate a website from a description",
		Long: `Generate a website from a natural-language description.

The description must be between 10 and 2000 characters. When --title is
omitted a default title is derived from the website type.

Examples:
  sitecraft generate "a portfolio for a wildlife photographer"
  sitecraft generate --type blog --title "Garden Notes" "a blog about growing tomatoes"
  sitecraft generate -o site.zip "a landing page for a coffee subscription"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseWebsiteType(websiteType)
			if err != nil {
				return err
			}

			logger := newLogger(cmd)
			st := store.New()
			st.SetUserPrompt(strings.Join(args, " "))
			st.SetWebsiteType(t)
			st.SetTitle(title)

			ctrl := form.NewController(st, newClient(cmd, logger), form.WithLogger(logger))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generating %s website...\n", t.Label())

			website, err := ctrl.Submit(cmd.Context())
			if err != nil {
				var verr *form.ValidationError
				if errors.As(err, &verr) || errors.Is(err, form.ErrInFlight) {
					return err
				}
				// The store holds the message the form would show inline.
				return errors.New(st.Snapshot().Error)
			}

			success(out, "Generated %q (id %s)", website.Title, website.ID)
			printWebsite(out, website)

			if output != "" {
				path, err := writeArchive(output, website)
				if err != nil {
					return err
				}
				success(out, "Saved %s", path)
			}
			if open {
				path, err := writeDocument(website)
				if err != nil {
					return err
				}
				success(out, "Preview written to %s", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&websiteType, "type", "t", string(domain.DefaultWebsiteType), "Website type ("+websiteTypeList()+")")
	cmd.Flags().StringVar(&title, "title", "", "Website title")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the website as a ZIP archive to this path")
	cmd.Flags().BoolVar(&open, "open", false, "Write the standalone document to a temp file")

	return cmd
}

func printWebsite(w io.Writer, website *domain.GeneratedWebsite) {
	label := color.New(color.FgHiBlack)
	_, _ = label.Fprint(w, "  Type:    ")
	fmt.Fprintln(w, website.WebsiteType.Label())
	if t, ok := website.CreatedAt.Time(); ok {
		_, _ = label.Fprint(w, "  Created: ")
		fmt.Fprintln(w, t.Format("Jan 2, 2006 15:04"))
	}
	files := []string{preview.EntryHTML, preview.EntryCSS}
	if website.HasScript() {
		files = append(files, preview.EntryScript)
	}
	_, _ = label.Fprint(w, "  Files:   ")
	fmt.Fprintln(w, strings.Join(files, ", "))
}

func websiteTypeList() string {
	names := make([]string, len(domain.WebsiteTypes))
	for i, t := range domain.WebsiteTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// writeArchive packages website into path. A directory path gets the
// default archive name. It returns the file written.
func writeArchive(path string, website *domain.GeneratedWebsite) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, filepath.Base(preview.ArchiveName(website)))
	}
	data, err := preview.Archive(website)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return path, nil
}

// writeDocument stores the standalone document in a temp file so a browser
// can open it.
func writeDocument(website *domain.GeneratedWebsite) (string, error) {
	doc, err := preview.Document(website)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "sitecraft-*.html")
	if err != nil {
		return "", fmt.Errorf("create preview file: %w", err)
	}
	if _, err := f.WriteString(doc); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write preview file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close preview file: %w", err)
	}
	return f.Name(), nil
}
