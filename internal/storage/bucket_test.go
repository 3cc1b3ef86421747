package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/psantana5/hitctl/pkg/logging"
)

type fakeS3 struct {
	pages   [][]string
	objects map[string][]byte
	types   map[string]string
	listed  int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := f.listed
	f.listed++
	out := &s3.ListObjectsV2Output{}
	for _, k := range f.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String("more")
	}
	return out, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestListFollowsContinuation(t *testing.T) {
	f := &fakeS3{pages: [][]string{{"a.jpg", "b.jpg"}, {"c.jpg"}}}
	b := &Bucket{client: f, name: "towers", logger: logging.Discard()}

	keys, err := b.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 3 || keys[2] != "c.jpg" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestSyncSkipsExistingKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"t_1_first.jpg", "t_1_last.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	f := &fakeS3{
		pages:   [][]string{{"t_1_first.jpg"}},
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
	b := &Bucket{client: f, name: "towers", logger: logging.Discard()}

	result, err := b.Sync(context.Background(), dir, "*.jpg")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Skipped != 1 || len(result.Uploaded) != 1 || result.Uploaded[0] != "t_1_last.jpg" {
		t.Errorf("unexpected result %+v", result)
	}
	if string(f.objects["t_1_last.jpg"]) != "t_1_last.jpg" {
		t.Errorf("uploaded body mismatch")
	}
	if f.types["t_1_last.jpg"] != "image/jpeg" {
		t.Errorf("content type = %q", f.types["t_1_last.jpg"])
	}
}
