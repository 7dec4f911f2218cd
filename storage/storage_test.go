package storage

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestAttachmentKey(t *testing.T) {
	key := AttachmentKey("User 42", "SQL Injection (login).PDF")

	assert.True(t, strings.HasPrefix(key, "reports/user-42/sql-injection-login-"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)
	assert.NotEqual(t, key, AttachmentKey("User 42", "SQL Injection (login).PDF"))

	assert.True(t, strings.HasPrefix(AttachmentKey("", "!!!"), "reports/anonymous/attachment-"))
}

func TestLocalStore_SaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "uploads"), "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Save(ctx, fileHeader(t, "poc.txt", []byte("hello")), "reports/u1/poc.txt")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/reports/u1/poc.txt", url)

	data, err := os.ReadFile(filepath.Join(dir, "uploads", "reports", "u1", "poc.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, "reports/u1/poc.txt"))
	require.NoError(t, store.Delete(ctx, "reports/u1/poc.txt"), "deleting twice is fine")
	_, err = os.Stat(filepath.Join(dir, "uploads", "reports", "u1", "poc.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_KeysStayInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "uploads"), "/uploads")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), fileHeader(t, "x", []byte("x")), "../../escape.txt")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "uploads", "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(err))

	_, err = store.Save(context.Background(), fileHeader(t, "x", []byte("x")), "")
	assert.Error(t, err)
}
