package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/receiptor/pkg/api"
)

type fakeExecutor struct {
	name   string
	args   []string
	stdin  string
	output []byte
	err    error
}

func (f *fakeExecutor) Run(_ context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	if stdin != nil {
		b, _ := io.ReadAll(stdin)
		f.stdin = string(b)
	}
	return f.output, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name       string
		opts       api.RenderOptions
		wantWidth  string
		wantHeight string
	}{
		{name: "defaults", wantWidth: DefaultWidth, wantHeight: DefaultHeight},
		{name: "override", opts: api.RenderOptions{Width: "210mm", Height: "297mm"}, wantWidth: "210mm", wantHeight: "297mm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := Args("out.pdf", tt.opts)
			assert.Equal(t, []string{"-", "out.pdf"}, args[len(args)-2:])
			assert.Contains(t, args, tt.wantWidth)
			assert.Contains(t, args, tt.wantHeight)
		})
	}
}

func TestRender_PipesHTML(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewWithExecutor(Config{Binary: "/opt/wk/bin/wkhtmltopdf"}, exec, quietLogger())

	require.NoError(t, r.Render(context.Background(), "<p>hi</p>", "/tmp/x.pdf", api.RenderOptions{}))

	assert.Equal(t, "/opt/wk/bin/wkhtmltopdf", exec.name)
	assert.Equal(t, "<p>hi</p>", exec.stdin)
	assert.Equal(t, "/tmp/x.pdf", exec.args[len(exec.args)-1])
}

func TestRender_ReportsOutput(t *testing.T) {
	exec := &fakeExecutor{output: []byte("Exit with code 1 due to network error\n"), err: errors.New("exit status 1")}
	r := NewWithExecutor(Config{}, exec, quietLogger())

	err := r.Render(context.Background(), "<p>hi</p>", "x.pdf", api.RenderOptions{})

	require.Error(t, err)
	assert.Equal(t, DefaultBinary, exec.name)
	assert.Contains(t, err.Error(), "network error")
}

func TestMerge_NoInputs(t *testing.T) {
	err := NewMerger(quietLogger()).Merge(context.Background(), nil, filepath.Join(t.TempDir(), "out.pdf"))
	assert.Error(t, err)
}

func TestMerge_MissingInput(t *testing.T) {
	dir := t.TempDir()
	err := NewMerger(quietLogger()).Merge(context.Background(), []string{filepath.Join(dir, "missing.pdf")}, filepath.Join(dir, "out.pdf"))
	assert.Error(t, err)
}
