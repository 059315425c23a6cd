package servertest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
)

// S3 is an in-memory stand-in for the handful of path-style object storage
// calls pairgen makes: CreateBucket and PutObject. It records which objects
// were written, which is enough to tell a committed upload from an aborted
// one without starting a container.
type S3 struct {
	URL string

	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

// NewS3 starts a fake object store that's shut down when the test completes.
func NewS3(tb testing.TB) *S3 {
	tb.Helper()
	fake := &S3{
		buckets: make(map[string]bool),
		objects: make(map[string][]byte),
	}
	srv := httptest.NewServer(http.HandlerFunc(fake.serveHTTP))
	tb.Cleanup(srv.Close)
	fake.URL = srv.URL
	return fake
}

// Objects returns the bucket/key names of every object written so far.
func (f *S3) Objects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (f *S3) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeS3Error(w, http.StatusNotImplemented, "NotImplemented")
		return
	}
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	f.mu.Lock()
	defer f.mu.Unlock()
	if key == "" {
		if f.buckets[bucket] {
			writeS3Error(w, http.StatusConflict, "BucketAlreadyOwnedByYou")
			return
		}
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
		return
	}
	if !f.buckets[bucket] {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeS3Error(w, http.StatusBadRequest, "IncompleteBody")
		return
	}
	f.objects[bucket+"/"+key] = body
	w.Header().Set("ETag", fmt.Sprintf(`"%x"`, len(body)))
	w.WriteHeader(http.StatusOK)
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}
