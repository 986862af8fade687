package usecase_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/spf13/afero"
)

// orgClientMock is a hand-written mock of interfaces.OrgClient
type orgClientMock struct {
	GetFunc func(ctx context.Context, ref string) (*http.Response, error)

	mu    sync.Mutex
	calls []string
}

func (m *orgClientMock) Get(ctx context.Context, ref string) (*http.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ref)
	m.mu.Unlock()
	return m.GetFunc(ctx, ref)
}

func (m *orgClientMock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func newResponse(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

// buildZip returns an archive holding files in the given order
func buildZip(t *testing.T, files ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		gt.NoError(t, err)
		_, err = io.WriteString(w, f[1])
		gt.NoError(t, err)
	}
	gt.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	gt.NoError(t, afero.WriteFile(fs, path, data, 0644))
}

// readZip returns entry name to content of an archive on fs
func readZip(t *testing.T, fs afero.Fs, path string) map[string]string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	gt.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	gt.NoError(t, err)

	entries := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		gt.NoError(t, err)
		content, err := io.ReadAll(rc)
		gt.NoError(t, err)
		gt.NoError(t, rc.Close())
		entries[f.Name] = string(content)
	}
	return entries
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sinkMock is a hand-written mock of interfaces.Sink
type sinkMock struct {
	WriteFunc func(ctx context.Context, name string, r io.Reader) error
}

func (m *sinkMock) Write(ctx context.Context, name string, r io.Reader) error {
	return m.WriteFunc(ctx, name, r)
}

// memorySink keeps written objects in memory
type memorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemorySink() *memorySink {
	return &memorySink{objects: map[string][]byte{}}
}

func (s *memorySink) Write(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = data
	return nil
}

func exportPage(links ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for _, l := range links {
		b.WriteString(`<tr><td><a href="` + l + `">download</a></td></tr>`)
	}
	b.WriteString("</table></body></html>")
	return []byte(b.String())
}
