package cli

import (
	"fmt"
	"io"

	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/ashureev/sitecraft/internal/history"
	"github.com/ashureev/sitecraft/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ProjectsCmd returns the projects command.
func ProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "history"},
		Short:   "Browse previously generated websites",
	}

	cmd.AddCommand(projectsListCmd())
	cmd.AddCommand(projectsViewCmd())
	cmd.AddCommand(projectsDeleteCmd())
	cmd.AddCommand(projectsExportCmd())

	return cmd
}

func newBrowser(cmd *cobra.Command, pageSize int) (*store.Store, *history.Browser) {
	logger := newLogger(cmd)
	st := store.New()
	opts := []history.Option{history.WithLogger(logger)}
	if pageSize > 0 {
		opts = append(opts, history.WithPageSize(pageSize))
	}
	return st, history.NewBrowser(st, newClient(cmd, logger), opts...)
}

func projectsListCmd() *cobra.Command {
	var pageSize int
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, newest first",
		Long: `List projects, newest first.

Examples:
  sitecraft projects list
  sitecraft projects list --all
  sitecraft projects list --page-size 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, browser := newBrowser(cmd, pageSize)
			if err := browser.Load(cmd.Context()); err != nil {
				return err
			}
			// A full page may mean more history is available.
			hasMore := len(st.Snapshot().Projects) == browser.PageSize()
			for all && hasMore {
				added, err := browser.LoadMore(cmd.Context())
				if err != nil {
					return err
				}
				hasMore = added == browser.PageSize()
			}

			out := cmd.OutOrStdout()
			projects := st.Snapshot().Projects
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects yet. Generate your first website!")
				return nil
			}
			printProjects(out, projects)
			if hasMore {
				fmt.Fprintln(out, color.New(color.FgHiBlack).Sprint("More projects available; use --all to list everything."))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", history.DefaultPageSize, "Projects fetched per request")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Keep fetching until the history is exhausted")

	return cmd
}

func projectsViewCmd() *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "view <id>",
		Short: "Show a project and its prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, browser := newBrowser(cmd, 0)
			project, err := browser.View(cmd.Context(), domain.ID(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", color.New(color.Bold).Sprint(project.Title), color.New(color.FgCyan).Sprintf("[%s]", project.ID))
			printWebsite(out, st.Snapshot().GeneratedWebsite)
			fmt.Fprintln(out)
			fmt.Fprintln(out, project.UserPrompt)

			if open {
				path, err := writeDocument(st.Snapshot().GeneratedWebsite)
				if err != nil {
					return err
				}
				success(out, "Preview written to %s", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "Write the standalone document to a temp file")

	return cmd
}

func projectsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Long: `Delete a project from the backend. Asks for confirmation unless --yes
is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, browser := newBrowser(cmd, 0)

			confirm := promptConfirm(cmd)
			if yes {
				confirm = history.Confirmed
			}

			out := cmd.OutOrStdout()
			deleted, err := browser.Delete(cmd.Context(), domain.ID(args[0]), confirm)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
			success(out, "Deleted project %s", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func projectsExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a project as a ZIP archive",
		Long: `Download a project as a ZIP archive holding index.html, styles.css and,
when the project has JavaScript, script.js.

Examples:
  sitecraft projects export 42
  sitecraft projects export 42 -o ~/Downloads`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, browser := newBrowser(cmd, 0)
			if _, err := browser.View(cmd.Context(), domain.ID(args[0])); err != nil {
				return err
			}
			path, err := writeArchive(output, st.Snapshot().GeneratedWebsite)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Saved %s", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ".", "Archive path or directory")

	return cmd
}

func printProjects(w io.Writer, projects []domain.Project) {
	fmt.Fprintf(w, "%-8s %-14s %-12s %s\n", "ID", "TYPE", "CREATED", "TITLE")
	for _, p := range projects {
		created := "-"
		if t, ok := p.CreatedAt.Time(); ok {
			created = t.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s %-14s %-12s %s\n",
			color.New(color.FgCyan).Sprintf("%-8s", p.ID), p.WebsiteType.Label(), created, p.Title)
	}
}
