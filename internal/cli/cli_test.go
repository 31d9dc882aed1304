package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/sitecraft/internal/apiclient/apitest"
	"github.com/ashureev/sitecraft/internal/domain"
	"github.com/ashureev/sitecraft/internal/form"
	"github.com/ashureev/sitecraft/internal/health"
	"github.com/ashureev/sitecraft/internal/history"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func run(t *testing.T, srv *apitest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--api-url", srv.BaseURL()))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newServer(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	return srv
}

func addProjects(srv *apitest.Server, titles ...string) []domain.Project {
	var out []domain.Project
	for _, title := range titles {
		out = append(out, srv.AddProject(domain.Project{
			Title:       title,
			WebsiteType: domain.WebsitePortfolio,
			UserPrompt:  "a portfolio for a wildlife photographer",
			HTML:        "<h1>" + title + "</h1>",
			CSS:         "h1{}",
		}))
	}
	return out
}

func TestRootCmdStructure(t *testing.T) {
	root := RootCmd()
	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"generate", "projects", "health"})

	projects, _, err := root.Find([]string{"projects"})
	require.NoError(t, err)
	var subs []string
	for _, sub := range projects.Commands() {
		subs = append(subs, sub.Name())
	}
	assert.ElementsMatch(t, []string{"list", "view", "delete", "export"}, subs)
}

func TestGenerateWritesArchive(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()

	out, err := run(t, srv, "", "generate", "--type", "blog", "--title", "Garden", "-o", dir, "a blog about", "growing tomatoes")
	require.NoError(t, err)

	req := srv.LastGenerate.Load()
	require.NotNil(t, req)
	assert.Equal(t, "a blog about growing tomatoes", req.UserPrompt)
	assert.Equal(t, domain.WebsiteBlog, req.WebsiteType)
	assert.Equal(t, "Garden", req.Title)

	assert.Contains(t, out, `Generated "Garden"`)
	assert.Contains(t, out, "index.html, styles.css, script.js")

	zr, err := zip.OpenReader(filepath.Join(dir, "Garden.zip"))
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 3)
}

func TestGenerateDefaultTitle(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, srv, "", "generate", "a landing page for a coffee subscription")
	require.NoError(t, err)

	req := srv.LastGenerate.Load()
	require.NotNil(t, req)
	assert.Equal(t, domain.DefaultWebsiteType, req.WebsiteType)
	assert.Equal(t, form.DefaultTitle(domain.DefaultWebsiteType), req.Title)
}

func TestGenerateValidationNeverCallsBackend(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, srv, "", "generate", "short")
	require.Error(t, err)
	assert.Equal(t, form.MsgPromptTooShort, userMessage(err))
	assert.Zero(t, srv.GenerateCalls.Load())
}

func TestGenerateRejectsUnknownType(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, srv, "", "generate", "--type", "wiki", "a wiki about mountain bikes")
	require.Error(t, err)
	assert.Zero(t, srv.GenerateCalls.Load())
}

func TestGenerateBackendFailure(t *testing.T) {
	srv := newServer(t)
	srv.FailGenerate(&apitest.Failure{Status: 500, Body: `{"detail":"model overloaded"}`})

	_, err := run(t, srv, "", "generate", "a portfolio for a wildlife photographer")
	require.Error(t, err)
	assert.Equal(t, "model overloaded", userMessage(err))
}

func TestProjectsListPaging(t *testing.T) {
	srv := newServer(t)
	addProjects(srv, "First", "Second", "Third")

	out, err := run(t, srv, "", "projects", "list", "--page-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Third")
	assert.Contains(t, out, "Second")
	assert.NotContains(t, out, "First")
	assert.Contains(t, out, "use --all")

	srv.ListCalls.Store(0)
	out, err = run(t, srv, "", "projects", "list", "--page-size", "2", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "First")
	assert.NotContains(t, out, "use --all")
	assert.EqualValues(t, 2, srv.ListCalls.Load())
}

func TestProjectsListEmpty(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, "", "projects", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No projects yet")
}

func TestProjectsListFailureIsAlert(t *testing.T) {
	srv := newServer(t)
	srv.FailList(&apitest.Failure{Status: 503, Body: `{"detail":"down"}`})

	_, err := run(t, srv, "", "projects", "list")
	require.Error(t, err)
	assert.Equal(t, history.MsgLoadProjectsFailed, userMessage(err))
}

func TestProjectsView(t *testing.T) {
	srv := newServer(t)
	p := addProjects(srv, "Wildlife")[0]

	out, err := run(t, srv, "", "projects", "view", p.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Wildlife")
	assert.Contains(t, out, "["+p.ID.String()+"]")
	assert.Contains(t, out, p.UserPrompt)
	assert.Contains(t, out, "index.html, styles.css")
	assert.NotContains(t, out, "script.js")
}

func TestProjectsViewMissing(t *testing.T) {
	srv := newServer(t)

	_, err := run(t, srv, "", "projects", "view", "404")
	require.Error(t, err)
	assert.Equal(t, history.MsgLoadProjectFailed, userMessage(err))
}

func TestProjectsDeleteAsksFirst(t *testing.T) {
	srv := newServer(t)
	p := addProjects(srv, "Keep me")[0]

	out, err := run(t, srv, "n\n", "projects", "delete", p.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, history.ConfirmDeletePrompt)
	assert.Contains(t, out, "Cancelled.")
	assert.Zero(t, srv.DeleteCalls.Load())
	assert.Len(t, srv.Projects(), 1)

	out, err = run(t, srv, "yes\n", "projects", "delete", p.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted project "+p.ID.String())
	assert.Empty(t, srv.Projects())
}

func TestProjectsDeleteYesSkipsPrompt(t *testing.T) {
	srv := newServer(t)
	p := addProjects(srv, "Gone")[0]

	out, err := run(t, srv, "", "projects", "delete", "--yes", p.ID.String())
	require.NoError(t, err)
	assert.NotContains(t, out, history.ConfirmDeletePrompt)
	assert.Empty(t, srv.Projects())
}

func TestProjectsDeleteFailureIsAlert(t *testing.T) {
	srv := newServer(t)
	p := addProjects(srv, "Stuck")[0]
	srv.FailDelete(&apitest.Failure{Status: 500, Body: `{"detail":"locked"}`})

	_, err := run(t, srv, "", "projects", "delete", "-y", p.ID.String())
	require.Error(t, err)
	assert.Equal(t, history.MsgDeleteProjectFailed, userMessage(err))
	assert.Len(t, srv.Projects(), 1)
}

func TestProjectsExport(t *testing.T) {
	srv := newServer(t)
	p := addProjects(srv, "Gallery")[0]
	dir := t.TempDir()

	out, err := run(t, srv, "", "projects", "export", p.ID.String(), "-o", dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "Gallery.zip")
	assert.Contains(t, out, path)
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"index.html", "styles.css"}, names)
}

func TestProjectsExportSanitizesTitle(t *testing.T) {
	srv := newServer(t)
	projects := addProjects(srv, "../escaped", "Bread/Cafe")
	dir := t.TempDir()
	downloads := filepath.Join(dir, "downloads")
	require.NoError(t, os.Mkdir(downloads, 0o755))

	for _, p := range projects {
		_, err := run(t, srv, "", "projects", "export", p.ID.String(), "-o", downloads)
		require.NoError(t, err)
	}

	assert.FileExists(t, filepath.Join(downloads, "_escaped.zip"))
	assert.FileExists(t, filepath.Join(downloads, "Bread_Cafe.zip"))
	assert.NoFileExists(t, filepath.Join(dir, "escaped.zip"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGenerateTypeHelpListsTypes(t *testing.T) {
	flag := GenerateCmd().Flags().Lookup("type")
	require.NotNil(t, flag)
	for _, typ := range domain.WebsiteTypes {
		assert.Contains(t, flag.Usage, string(typ))
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, "", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "API: healthy")

	srv.SetHealthStatus("degraded")
	out, err = run(t, srv, "", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degraded")
	assert.NotEqual(t, health.DefaultReason, err.Error())
	assert.Contains(t, out, "API: unhealthy")
	assert.Contains(t, out, "degraded")
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.New("boom"))
	assert.Equal(t, "Error: boom\n", buf.String())
}
