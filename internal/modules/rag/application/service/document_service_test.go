package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"ReqGraph/internal/modules/rag/domain/graph"
	"ReqGraph/internal/modules/rag/infrastructure/queue"
	"ReqGraph/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureDispatcher struct {
	jobs []queue.BuildJob
}

func (d *captureDispatcher) Dispatch(_ context.Context, job queue.BuildJob) error {
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *captureDispatcher) Close(context.Context) error { return nil }

func makeFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func newDocumentService(t *testing.T) (DocumentService, *serviceDeps, *captureDispatcher) {
	t.Helper()
	deps := newServiceDeps(t)
	dispatcher := &captureDispatcher{}
	svc := NewDocumentService(deps.store, deps.index, deps.extractor, dispatcher, deps.retrieve, deps.uploadDir)
	return svc, deps, dispatcher
}

func TestDocumentService_Upload(t *testing.T) {
	svc, deps, dispatcher := newDocumentService(t)
	ctx := context.Background()

	fh := makeFileHeader(t, "spec.txt", []byte("The system shall log every request."))
	res, err := svc.Upload(ctx, fh)
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocID)
	assert.Equal(t, "spec.txt", res.Filename)
	assert.Equal(t, graph.StatusReceived, res.Status)

	doc, err := deps.store.GetDocument(ctx, res.DocID)
	require.NoError(t, err)
	assert.Equal(t, graph.StatusReceived, doc.Status)

	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, res.DocID, dispatcher.jobs[0].DocID)
	assert.FileExists(t, dispatcher.jobs[0].Path)
	assert.Equal(t, filepath.Join(deps.uploadDir, res.DocID+".txt"), dispatcher.jobs[0].Path)
}

func TestDocumentService_Upload_UnsupportedFormat(t *testing.T) {
	svc, _, dispatcher := newDocumentService(t)

	fh := makeFileHeader(t, "image.png", []byte{0x89, 0x50, 0x4e, 0x47})
	_, err := svc.Upload(context.Background(), fh)
	require.Error(t, err)
	assert.Empty(t, dispatcher.jobs)
}

func TestDocumentService_GetAndList(t *testing.T) {
	svc, deps, _ := newDocumentService(t)
	ctx := context.Background()

	deps.createDoc(t, "doc-a", "a.txt", "The system shall accept uploads from registered users.")
	deps.createDoc(t, "doc-b", "b.txt", "The system shall reject expired tokens during login.")

	got, err := svc.Get(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Filename)
	assert.Equal(t, graph.StatusReceived, got.Status)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)

	_, err = svc.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, xerr.IsNotFound(err))
}

func TestDocumentService_Delete(t *testing.T) {
	svc, deps, _ := newDocumentService(t)
	ctx := context.Background()

	deps.createDoc(t, "doc-del", "del.txt", "The system shall purge deleted documents completely.")
	path := filepath.Join(deps.uploadDir, "doc-del.txt")
	require.FileExists(t, path)

	require.NoError(t, svc.Delete(ctx, "doc-del"))

	_, err := deps.store.GetDocument(ctx, "doc-del")
	assert.True(t, xerr.IsNotFound(err))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDocumentService_Delete_NotFound(t *testing.T) {
	svc, _, _ := newDocumentService(t)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, xerr.IsNotFound(err))
}
