package s3

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"

	pkg_aws "github.com/paddlepaddle/tipc-bench/pkg/aws"
	"github.com/paddlepaddle/tipc-bench/pkg/fileutil"
	"github.com/paddlepaddle/tipc-bench/pkg/randutil"
)

// fakeS3 scripts the handful of S3 calls the package issues. Unused
// methods panic through the embedded nil interface.
type fakeS3 struct {
	s3iface.S3API

	createBucketErr   error
	createBucketInput *s3.CreateBucketInput
	taggingCalls      int
	lifecycleInputs   []*s3.PutBucketLifecycleInput
	putObjectInputs   []*s3.PutObjectInput
}

func (f *fakeS3) CreateBucket(in *s3.CreateBucketInput) (*s3.CreateBucketOutput, error) {
	f.createBucketInput = in
	return &s3.CreateBucketOutput{}, f.createBucketErr
}

func (f *fakeS3) PutBucketTagging(in *s3.PutBucketTaggingInput) (*s3.PutBucketTaggingOutput, error) {
	f.taggingCalls++
	return &s3.PutBucketTaggingOutput{}, nil
}

func (f *fakeS3) PutBucketLifecycle(in *s3.PutBucketLifecycleInput) (*s3.PutBucketLifecycleOutput, error) {
	f.lifecycleInputs = append(f.lifecycleInputs, in)
	return &s3.PutBucketLifecycleOutput{}, nil
}

func (f *fakeS3) PutObject(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	f.putObjectInputs = append(f.putObjectInputs, in)
	return &s3.PutObjectOutput{}, nil
}

func TestCreateBucket(t *testing.T) {
	lg := zap.NewExample()

	fake := &fakeS3{}
	if err := CreateBucket(lg, fake, "bkt", "us-west-2", "tipc-bench", 90); err != nil {
		t.Fatal(err)
	}
	if fake.createBucketInput.CreateBucketConfiguration == nil {
		t.Fatal("expected location constraint outside us-east-1")
	}
	if lc := aws.StringValue(fake.createBucketInput.CreateBucketConfiguration.LocationConstraint); lc != "us-west-2" {
		t.Fatalf("unexpected location constraint %q", lc)
	}
	if fake.taggingCalls != 1 {
		t.Fatalf("expected 1 tagging call, got %d", fake.taggingCalls)
	}
	if len(fake.lifecycleInputs) != 1 {
		t.Fatalf("expected 1 lifecycle call, got %d", len(fake.lifecycleInputs))
	}
	rules := fake.lifecycleInputs[0].LifecycleConfiguration.Rules
	if len(rules) != 1 || aws.Int64Value(rules[0].Expiration.Days) != 90 {
		t.Fatalf("unexpected lifecycle rules %+v", rules)
	}
}

func TestCreateBucketUSEast1OmitsConstraint(t *testing.T) {
	fake := &fakeS3{}
	if err := CreateBucket(zap.NewExample(), fake, "bkt", "us-east-1", "", 0); err != nil {
		t.Fatal(err)
	}
	if fake.createBucketInput.CreateBucketConfiguration != nil {
		t.Fatal("us-east-1 must omit the location constraint")
	}
	if len(fake.lifecycleInputs) != 0 {
		t.Fatal("no lifecycle rule expected without prefix and days")
	}
}

func TestCreateBucketAlreadyOwned(t *testing.T) {
	fake := &fakeS3{
		createBucketErr: awserr.New(s3.ErrCodeBucketAlreadyOwnedByYou, "owned", nil),
	}
	if err := CreateBucket(zap.NewExample(), fake, "bkt", "us-west-2", "", 0); err != nil {
		t.Fatal(err)
	}
	// an existing bucket keeps its tags and lifecycle untouched
	if fake.taggingCalls != 0 || len(fake.lifecycleInputs) != 0 {
		t.Fatalf("existing bucket must not be re-tagged (%d tagging, %d lifecycle)", fake.taggingCalls, len(fake.lifecycleInputs))
	}
}

func TestUpload(t *testing.T) {
	fpath, err := fileutil.WriteTempFile(randutil.Bytes(10))
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(fpath)

	fake := &fakeS3{}
	if err = Upload(zap.NewExample(), fake, "bkt", "results/hello/world.json", fpath); err != nil {
		t.Fatal(err)
	}
	if len(fake.putObjectInputs) != 1 {
		t.Fatalf("expected 1 put, got %d", len(fake.putObjectInputs))
	}
	in := fake.putObjectInputs[0]
	if aws.StringValue(in.Bucket) != "bkt" || aws.StringValue(in.Key) != "results/hello/world.json" {
		t.Fatalf("unexpected put target %s/%s", aws.StringValue(in.Bucket), aws.StringValue(in.Key))
	}
	if kind := aws.StringValue(in.Metadata["Kind"]); kind != "tipc-bench" {
		t.Fatalf("unexpected Kind metadata %q", kind)
	}
}

func TestUploadMissingFile(t *testing.T) {
	err := Upload(zap.NewExample(), &fakeS3{}, "bkt", "k", filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing local file")
	}
}

// requires AWS credentials and an existing bucket
func TestS3(t *testing.T) {
	if os.Getenv("RUN_AWS_TESTS") != "1" {
		t.Skip()
	}
	bucket := os.Getenv("TIPC_BENCH_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("TIPC_BENCH_TEST_S3_BUCKET not set")
	}

	lg := zap.NewExample()
	ss, _, _, err := pkg_aws.New(&pkg_aws.Config{
		Logger:    lg,
		Partition: "aws",
		Region:    "us-west-2",
	})
	if err != nil {
		t.Skip(err)
	}
	s3API := s3.New(ss)

	// already-exists is tolerated, so an existing bucket passes through
	if err = CreateBucket(lg, s3API, bucket, "us-west-2", "", 0); err != nil {
		t.Fatal(err)
	}

	prefix := filepath.Join("tipc-bench-test", randutil.String(10))
	defer func() {
		t.Logf("DeleteObjects: %v", DeleteObjects(lg, s3API, bucket, prefix))
	}()

	body := randutil.Bytes(10)
	fpath, err := fileutil.WriteTempFile(body)
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(fpath)

	s3Key := filepath.Join(prefix, randutil.String(10))
	if err = Upload(lg, s3API, bucket, s3Key, fpath); err != nil {
		t.Fatal(err)
	}

	localPath, err := DownloadToTempFile(lg, s3API, bucket, s3Key, WithOverwrite(true))
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(localPath)

	d, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(body, d) {
		t.Fatalf("downloaded %q, uploaded %q", d, body)
	}
}
