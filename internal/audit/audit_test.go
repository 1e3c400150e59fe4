package audit

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJobPatchApplyMergesNonNilFields(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	job := Job{ID: "job-1", Status: JobStatusQueued, Progress: 0, Message: "queued"}
	status := JobStatusProcessing
	progress := 40
	JobPatch{Status: &status, Progress: &progress, Started: &now}.Apply(&job)

	require.Equal(t, JobStatusProcessing, job.Status)
	require.Equal(t, 40, job.Progress)
	require.Equal(t, "queued", job.Message)
	require.NotNil(t, job.Started)
	require.True(t, job.Started.Equal(now))
	require.Nil(t, job.Completed)
	require.Nil(t, job.Error)
}

func TestValidateTargetURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw string
		ok  bool
	}{
		{"https://example.com", true},
		{"http://example.com/path?q=1", true},
		{"  https://example.com/  ", true},
		{"", false},
		{"example.com", false},
		{"/relative/path", false},
		{"ftp://example.com", false},
		{"https://", false},
		{"http://[::1", false},
	}
	for _, tc := range cases {
		_, err := ValidateTargetURL(tc.raw)
		if tc.ok {
			require.NoError(t, err, tc.raw)
			continue
		}
		require.Error(t, err, tc.raw)
		require.ErrorIs(t, err, ErrValidation, tc.raw)
	}
}

func TestValidateOptions(t *testing.T) {
	t.Parallel()

	depth := -1
	require.NoError(t, ValidateOptions(Options{}))
	require.ErrorIs(t, ValidateOptions(Options{MaxPages: -1}), ErrValidation)
	require.ErrorIs(t, ValidateOptions(Options{MaxDepth: &depth}), ErrValidation)
	require.ErrorIs(t, ValidateOptions(Options{TimeoutMs: -5}), ErrValidation)
}

func TestTypedErrorsUnwrap(t *testing.T) {
	t.Parallel()

	fetchErr := &FetchError{URL: "https://a.test/", Err: io.ErrUnexpectedEOF}
	require.ErrorIs(t, fetchErr, io.ErrUnexpectedEOF)
	require.Contains(t, fetchErr.Error(), "https://a.test/")

	var target *AnalysisError
	wrapped := errors.Join(errors.New("outer"), &AnalysisError{Category: CategoryMeta, Err: io.EOF})
	require.ErrorAs(t, wrapped, &target)
	require.Equal(t, CategoryMeta, target.Category)
}

func TestHeadingsAndStatusHelpers(t *testing.T) {
	t.Parallel()

	var h Headings
	h[0] = []Heading{{Text: "Title"}}
	h[2] = []Heading{{Text: "a"}, {Text: "b"}}
	require.Equal(t, 3, h.Count())
	require.Len(t, h.Level(3), 2)
	require.Nil(t, h.Level(7))

	require.True(t, JobStatusCompleted.Terminal())
	require.False(t, JobStatusProcessing.Terminal())
	require.True(t, JobTypePageAudit.Valid())
	require.False(t, JobType("crawl").Valid())
	require.True(t, IsHTMLContentType("text/html; charset=utf-8"))
	require.False(t, IsHTMLContentType(""))
	require.Less(t, ImpactHigh.Rank(), ImpactLow.Rank())
}
