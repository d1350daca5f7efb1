package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ignite/contact-ingest/internal/service/ingest"
)

type fakeS3 struct {
	getObject func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	lastKey   string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastKey = *in.Key
	return f.getObject(in)
}

func TestS3Store_Fetch(t *testing.T) {
	fake := &fakeS3{
		getObject: func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			if *in.Bucket != "csv-uploads" {
				t.Errorf("Bucket = %s, want csv-uploads", *in.Bucket)
			}
			return &s3.GetObjectOutput{
				Body: io.NopCloser(strings.NewReader("email;first_name\na@x.io;Ann\n")),
			}, nil
		},
	}

	store := &S3Store{client: fake, bucket: "csv-uploads"}
	data, err := store.Fetch(context.Background(), "uploads/42.csv")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if fake.lastKey != "uploads/42.csv" {
		t.Errorf("Requested key = %s, want uploads/42.csv", fake.lastKey)
	}
	if !strings.HasPrefix(string(data), "email;first_name") {
		t.Errorf("Fetch() returned %q, want the object body", data)
	}
}

func TestS3Store_Fetch_MissingKey(t *testing.T) {
	fake := &fakeS3{
		getObject: func(*s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			return nil, &types.NoSuchKey{}
		},
	}

	store := &S3Store{client: fake, bucket: "csv-uploads"}
	_, err := store.Fetch(context.Background(), "uploads/missing.csv")
	if !errors.Is(err, ingest.ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestS3Store_Fetch_TransportError(t *testing.T) {
	fake := &fakeS3{
		getObject: func(*s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			return nil, errors.New("connection reset")
		},
	}

	store := &S3Store{client: fake, bucket: "csv-uploads"}
	_, err := store.Fetch(context.Background(), "uploads/42.csv")
	if err == nil || errors.Is(err, ingest.ErrNotFound) {
		t.Errorf("Fetch() error = %v, want a wrapped transport error", err)
	}
}
