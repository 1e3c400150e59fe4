package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

func TestAuditCommandPrintsPageAnalysis(t *testing.T) {
	t.Parallel()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Example landing page title</title></head><body><h1>Hi</h1></body></html>`))
	}))
	t.Cleanup(site.Close)

	cfgPath := writeConfig(t, `
logging:
  development: false
worker:
  poll_interval_seconds: 1
crawler:
  requests_per_second: 0
`)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "audit", "--page", site.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, cmd.ExecuteContext(ctx))

	var results audit.JobResults
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.NotNil(t, results.Analysis)
	require.Nil(t, results.Report)
	require.Equal(t, 1, results.Stats.PagesScanned)
}

func TestAuditCommandRequiresURL(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"audit"})
	require.ErrorContains(t, cmd.Execute(), "accepts 1 arg")
}

func TestAuditCommandRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, "store:\n  backend: etcd\n")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "audit", "https://example.com"})
	require.ErrorContains(t, cmd.Execute(), "store.backend")
}

func TestAuditFlagsOptions(t *testing.T) {
	t.Parallel()

	cmd := newAuditCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--max-pages", "7", "--max-depth", "0", "--no-details", "--ignore-robots"}))

	var flags auditFlags
	flags.maxPages, _ = cmd.Flags().GetInt("max-pages")
	flags.maxDepth, _ = cmd.Flags().GetInt("max-depth")
	flags.noDetails, _ = cmd.Flags().GetBool("no-details")
	flags.ignoreRobots, _ = cmd.Flags().GetBool("ignore-robots")

	opts := flags.options(cmd)
	require.Equal(t, 7, opts.MaxPages)
	require.NotNil(t, opts.MaxDepth)
	require.Zero(t, *opts.MaxDepth)
	require.NotNil(t, opts.IncludeDetails)
	require.False(t, *opts.IncludeDetails)
	require.True(t, opts.IgnoreRobotsTxt)

	unset := newAuditCmd()
	require.NoError(t, unset.ParseFlags(nil))
	defaults := auditFlags{}.options(unset)
	require.Nil(t, defaults.MaxDepth)
	require.Nil(t, defaults.IncludeDetails)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seoaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
