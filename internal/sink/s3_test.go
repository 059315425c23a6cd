package sink

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"go.akshayshah.org/attest"
)

func TestS3Upload(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a MinIO container")
	}
	cfg := newMinIO(t)

	for _, key := range []string{"names.txt", "names.txt.gz"} {
		s, err := OpenS3(t.Context(), cfg, key)
		attest.Ok(t, err)
		writeAll(t, s)

		// The bucket exists now, which isn't an error.
		err = ensureBucketExists(t.Context(), NewS3Client(cfg), cfg.Bucket, cfg.Timeout)
		attest.Ok(t, err, attest.Sprint("bucket already exists"))

		res, err := NewS3Client(cfg).GetObject(t.Context(), &s3.GetObjectInput{
			Bucket: aws.String(cfg.Bucket),
			Key:    aws.String(key),
		})
		attest.Ok(t, err)
		var body io.Reader = res.Body
		if CompressionFor(key) == Gzip {
			body, err = gzip.NewReader(res.Body)
			attest.Ok(t, err)
		}
		got, err := io.ReadAll(body)
		attest.Ok(t, err)
		attest.Ok(t, res.Body.Close())
		attest.Equal(t, string(got), want, attest.Sprintf("object %s", key))
	}
}

func newMinIO(tb testing.TB) S3Config {
	tb.Helper()
	const user, password = "admin", "password"
	mc, err := minio.Run(
		tb.Context(),
		"minio/minio:RELEASE.2025-07-23T15-54-02Z",
		minio.WithUsername(user),
		minio.WithPassword(password),
	)
	testcontainers.CleanupContainer(tb, mc)
	attest.Ok(tb, err, attest.Sprint("start MinIO container"))
	addr, err := mc.ConnectionString(tb.Context())
	attest.Ok(tb, err, attest.Sprint("get MinIO conn str"))
	return S3Config{
		Endpoint: fmt.Sprintf("http://%s", addr),
		Region:   "us-east-1",
		Bucket:   "pairgen",
		User:     user,
		Password: password,
		Timeout:  10 * time.Second,
	}
}
