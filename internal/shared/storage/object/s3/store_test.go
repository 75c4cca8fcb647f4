package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"persona-backend/internal/shared/storage/object"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "provider-raw/u/a.json", want: "provider-raw/u/a.json"},
		{name: "simple prefix", prefix: "persona", key: "provider-raw/u/a.json", want: "persona/provider-raw/u/a.json"},
		{name: "prefix trailing slash", prefix: "persona/", key: "provider-raw/u/a.json", want: "persona/provider-raw/u/a.json"},
		{name: "prefix and key slashes", prefix: "/persona/", key: "/provider-raw/u/a.json", want: "persona/provider-raw/u/a.json"},
		{name: "nested prefix", prefix: "persona/prod", key: "provider-raw/u/a.json", want: "persona/prod/provider-raw/u/a.json"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	body    []byte
	putErr  error
	objects map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, _ := io.ReadAll(in.Body)
	f.body = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	content, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(content))}, nil
}

func TestPutUsesPrefixAndEncryption(t *testing.T) {
	fake := &fakeS3{}
	store := &Store{client: fake, bucket: "b", prefix: "persona"}

	n, err := store.Put(context.Background(), "provider-raw/u/a.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 bytes, got %d", n)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("expected one put, got %d", len(fake.puts))
	}
	in := fake.puts[0]
	if *in.Key != "persona/provider-raw/u/a.json" {
		t.Fatalf("unexpected key %q", *in.Key)
	}
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256 encryption, got %q", in.ServerSideEncryption)
	}
}

func TestPutRejectsTraversal(t *testing.T) {
	store := &Store{client: &fakeS3{}, bucket: "b"}
	if _, err := store.Put(context.Background(), "../x", "application/json", strings.NewReader("{}")); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestOpenReadsObject(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"p/k.json": `{"a":1}`}}
	store := &Store{client: fake, bucket: "b", prefix: "p"}
	rc, err := store.Open(context.Background(), "k.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected body %q", data)
	}
}
