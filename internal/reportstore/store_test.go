package reportstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestFileStorePut(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	location, err := store.Put(context.Background(), Key("closures", "pos-1", "c-1", "pdf"), "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "%PDF" {
		t.Fatalf("unexpected content %q", data)
	}
	if !strings.HasSuffix(location, "c-1.pdf") {
		t.Fatalf("unexpected location %s", location)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"", "../escape.pdf", "a/../../b.pdf"} {
		if _, err := store.Put(context.Background(), key, "", nil); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

type recordingTransport struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	rt.objects[req.URL.Path] = body
	rt.types[req.URL.Path] = req.Header.Get("Content-Type")
	rt.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"ETag": {"\"etag\""}},
	}, nil
}

func TestS3StorePut(t *testing.T) {
	rt := &recordingTransport{objects: map[string][]byte{}, types: map[string]string{}}
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "reports",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: rt},
	})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	location, err := store.Put(context.Background(), "closures/pos-1/c-1.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte("xlsx"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if location != "s3://reports/closures/pos-1/c-1.xlsx" {
		t.Fatalf("unexpected location %s", location)
	}
	path := "/reports/closures/pos-1/c-1.xlsx"
	if !bytes.Contains(rt.objects[path], []byte("xlsx")) {
		t.Fatalf("object not uploaded, have %v", rt.objects)
	}
	if !strings.HasPrefix(rt.types[path], "application/vnd.openxmlformats") {
		t.Fatalf("unexpected content type %q", rt.types[path])
	}
}

func TestS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
