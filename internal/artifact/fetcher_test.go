package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	apperrors "github.com/savaki/changeset-replace/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	ObjectGetter
	mock.Mock
}

func (m *mockS3Client) GetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(input)
	if v := args.Get(0); v != nil {
		return v.(*s3.GetObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func objectOf(data []byte) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}
}

var testLocation = Location{Bucket: "artifact-bucket", Key: "pipeline/templates/abc123"}

func expectGet(c *mockS3Client) *mock.Call {
	return c.On("GetObject", &s3.GetObjectInput{
		Bucket: aws.String("artifact-bucket"),
		Key:    aws.String("pipeline/templates/abc123"),
	})
}

func TestFetchArchiveEntry(t *testing.T) {
	archive := zipOf(t, map[string]string{
		"main.yaml":           "https://example.s3.amazonaws.com/main.yaml",
		"nested/outputs.json": `{"TemplateURL":"https://example/t.yaml"}`,
	})

	tests := []struct {
		name  string
		entry string
		want  string
	}{
		{name: "top level entry", entry: "main.yaml", want: "https://example.s3.amazonaws.com/main.yaml"},
		{name: "nested entry", entry: "nested/outputs.json", want: `{"TemplateURL":"https://example/t.yaml"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := new(mockS3Client)
			expectGet(c).Return(objectOf(archive), nil)

			got, err := NewFetcher(c).FetchArchiveEntry(context.Background(), testLocation, tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
			c.AssertExpectations(t)
		})
	}
}

func TestFetchArchiveEntry_EntryNotFound(t *testing.T) {
	c := new(mockS3Client)
	expectGet(c).Return(objectOf(zipOf(t, map[string]string{"main.yaml": "x"})), nil)

	_, err := NewFetcher(c).FetchArchiveEntry(context.Background(), testLocation, "other.yaml")
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
	assert.Contains(t, err.Error(), "other.yaml")
}

func TestFetchArchiveEntry_ExactMatchOnly(t *testing.T) {
	c := new(mockS3Client)
	expectGet(c).Return(objectOf(zipOf(t, map[string]string{"dir/main.yaml": "x"})), nil)

	_, err := NewFetcher(c).FetchArchiveEntry(context.Background(), testLocation, "main.yaml")
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
}

func TestFetchArchiveEntry_FetchFailed(t *testing.T) {
	c := new(mockS3Client)
	expectGet(c).Return(nil, errors.New("AccessDenied"))

	_, err := NewFetcher(c).FetchArchiveEntry(context.Background(), testLocation, "main.yaml")
	assert.ErrorIs(t, err, apperrors.ErrFetchFailed)
	assert.Contains(t, err.Error(), "AccessDenied")
	c.AssertNumberOfCalls(t, "GetObject", 1)
}

func TestFetchArchiveEntry_NotAZip(t *testing.T) {
	c := new(mockS3Client)
	expectGet(c).Return(objectOf([]byte("plain text, not an archive")), nil)

	_, err := NewFetcher(c).FetchArchiveEntry(context.Background(), testLocation, "main.yaml")
	assert.ErrorIs(t, err, apperrors.ErrFetchFailed)
}

func TestLocationOf(t *testing.T) {
	a := events.CodePipelineInputArtifact{
		Name: "templates",
		Location: events.CodePipelineInputLocation{
			S3Location: events.CodePipelineS3Location{
				BucketName: "bucket",
				ObjectKey:  "key/abc",
			},
			LocationType: "S3",
		},
	}

	loc := LocationOf(a)
	assert.Equal(t, Location{Bucket: "bucket", Key: "key/abc"}, loc)
	assert.Equal(t, "s3://bucket/key/abc", loc.String())
}
