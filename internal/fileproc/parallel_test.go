package fileproc

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt-labs/codegraph/pkg/parser"
)

func TestMapFilesProcessesAll(t *testing.T) {
	files := []string{"a.py", "b.py", "c.py"}

	results, errs := MapFiles(context.Background(), files, func(p *parser.Parser, path string) (string, error) {
		require.NotNil(t, p)
		return path, nil
	})

	assert.Nil(t, errs)
	sort.Strings(results)
	assert.Equal(t, files, results)
}

func TestMapFilesEmptyInput(t *testing.T) {
	results, errs := MapFiles(context.Background(), nil, func(*parser.Parser, string) (int, error) {
		t.Fatal("fn must not be called for empty input")
		return 0, nil
	})
	assert.Nil(t, results)
	assert.Nil(t, errs)
}

func TestMapFilesIsolatesFailures(t *testing.T) {
	files := []string{"good.py", "bad.py", "also-good.py"}

	results, errs := MapFiles(context.Background(), files, func(_ *parser.Parser, path string) (string, error) {
		if path == "bad.py" {
			return "", errors.New("boom")
		}
		return path, nil
	})

	require.NotNil(t, errs)
	require.Len(t, errs.Errors, 1)
	assert.Equal(t, "bad.py", errs.Errors[0].Path)

	sort.Strings(results)
	assert.Equal(t, []string{"also-good.py", "good.py"}, results)
}

func TestMapFilesWithProgressTicksEveryFile(t *testing.T) {
	files := []string{"a.py", "b.py", "c.py", "d.py"}
	var ticks atomic.Int32

	_, errs := MapFilesWithProgress(context.Background(), files, func(_ *parser.Parser, path string) (string, error) {
		return path, nil
	}, func(string) {
		ticks.Add(1)
	})

	assert.Nil(t, errs)
	assert.Equal(t, int32(len(files)), ticks.Load())
}

func TestMapFilesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, errs := MapFiles(ctx, []string{"a.py", "b.py"}, func(_ *parser.Parser, path string) (string, error) {
		return path, nil
	})

	assert.Empty(t, results)
	require.NotNil(t, errs)
	for _, e := range errs.Errors {
		assert.ErrorIs(t, e.Err, context.Canceled)
	}
}

func TestProcessingErrorsMessage(t *testing.T) {
	errs := &ProcessingErrors{}
	assert.False(t, errs.HasErrors())

	errs.Add("a.py", errors.New("first"))
	assert.True(t, errs.HasErrors())
	assert.Contains(t, errs.Error(), "a.py")

	errs.Add("b.py", errors.New("second"))
	assert.Contains(t, errs.Error(), "2 files failed")
}
