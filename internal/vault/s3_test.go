package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 keeps objects in memory. Only single-part uploads are supported,
// which covers bundles below the upload manager's part size.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	bucket  string
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, bucket: bucket}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart upload not supported by fake")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart upload not supported by fake")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart upload not supported by fake")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3Vault_PutGetList(t *testing.T) {
	fake := newFakeS3("my-contacts")
	v := newS3Vault("cloud", "my-contacts", "abook", fake)

	content := "age-encryption.org/v1 ..."
	name := "contacts-20240115T103000Z.vcf.age"
	if err := v.PutBackup(name, strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutBackup() error = %v", err)
	}
	if _, ok := fake.objects["abook/backups/"+name]; !ok {
		t.Errorf("object keys = %v, want abook/backups/%s", fake.objects, name)
	}

	var buf bytes.Buffer
	if err := v.GetBackup(name, &buf); err != nil {
		t.Fatalf("GetBackup() error = %v", err)
	}
	if buf.String() != content {
		t.Errorf("GetBackup() = %q", buf.String())
	}

	fake.objects["abook/other/unrelated"] = []byte("x")
	names, err := v.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(names) != 1 || names[0] != name {
		t.Errorf("ListBackups() = %v", names)
	}
}

func TestS3Vault_Errors(t *testing.T) {
	v := newS3Vault("cloud", "my-contacts", "", newFakeS3("my-contacts"))

	var buf bytes.Buffer
	if err := v.GetBackup("missing", &buf); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBackup() error = %v, want ErrNotFound", err)
	}
	if err := v.PutBackup("a/b", strings.NewReader("x"), 1); err == nil {
		t.Error("PutBackup() expected invalid name error")
	}
	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	other := newS3Vault("cloud", "missing-bucket", "", newFakeS3("my-contacts"))
	if err := other.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for missing bucket")
	}
}
