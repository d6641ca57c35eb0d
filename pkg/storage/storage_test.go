package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
	"github.com/appenmapper/appenmapper/pkg/storage/s3"
)

func TestParse(t *testing.T) {
	loc, err := Parse("s3://bucket/dir/file2.xlsx")
	require.NoError(t, err)
	assert.Equal(t, Location{Bucket: "bucket", Path: "dir/file2.xlsx"}, loc)
	assert.True(t, loc.Remote())
	assert.Equal(t, "s3://bucket/dir/file2.xlsx", loc.String())

	loc, err = Parse("data/file1.csv")
	require.NoError(t, err)
	assert.False(t, loc.Remote())

	for _, bad := range []string{"", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(s3.DefaultConfig())
	ctx := context.Background()

	for _, name := range []string{"out/plain.csv", "out/packed.csv.gz"} {
		path := filepath.Join(dir, name)

		w, err := store.Create(ctx, path, "text/csv")
		require.NoError(t, err)
		_, err = io.WriteString(w, "id,name\n1,a\n")
		require.NoError(t, err)
		require.NoError(t, w.Close())

		r, err := store.Open(ctx, path)
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, "id,name\n1,a\n", string(data), name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "out/packed.csv.gz"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])
}

func TestOpenMissing(t *testing.T) {
	_, err := New(s3.DefaultConfig()).Open(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, amerrors.IsCode(err, amerrors.CodeLoadFailure))
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &awss3.PutObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := NewWithClient(s3.NewWithAPI(s3.DefaultConfig(), fake))
	ctx := context.Background()

	w, err := store.Create(ctx, "s3://exports/run/out.xlsx", "application/x-test")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	assert.Empty(t, fake.objects, "nothing is uploaded before Close")
	require.NoError(t, w.Close())

	assert.Equal(t, []byte("payload"), fake.objects["exports/run/out.xlsx"])
	assert.Equal(t, "application/x-test", fake.types["exports/run/out.xlsx"])

	r, err := store.Open(ctx, "s3://exports/run/out.xlsx")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = store.Open(ctx, "s3://exports/missing.csv")
	assert.True(t, amerrors.IsCode(err, amerrors.CodeLoadFailure))
}
