// Package artifact reads single files out of zipped pipeline artifacts stored in S3.
package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/savaki/changeset-replace/internal/errors"
)

// ObjectGetter is the subset of the S3 client used to download artifacts.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Location points at an object in S3
type Location struct {
	Bucket string
	Key    string
}

// LocationOf returns the S3 location of a pipeline input artifact
func LocationOf(a events.CodePipelineInputArtifact) Location {
	return Location{
		Bucket: a.Location.S3Location.BucketName,
		Key:    a.Location.S3Location.ObjectKey,
	}
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

type Fetcher struct {
	s3Client ObjectGetter
}

func NewFetcher(s3Client ObjectGetter) *Fetcher {
	return &Fetcher{
		s3Client: s3Client,
	}
}

// FetchArchiveEntry downloads the zip archive at loc and returns the raw bytes of
// the entry whose path matches entryName exactly.
func (f *Fetcher) FetchArchiveEntry(ctx context.Context, loc Location, entryName string) (data []byte, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Debug().
			Int("length", len(data)).
			Interface("error", err).
			Str("bucket", loc.Bucket).
			Str("key", loc.Key).
			Str("entry", entryName).
			Dur("duration", time.Since(begin)).
			Msg("Fetched archive entry")
	}(time.Now())

	archive, err := f.download(ctx, loc)
	if err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a zip archive: %w", errors.ErrFetchFailed, loc, err)
	}

	for _, file := range reader.File {
		if file.Name != entryName {
			continue
		}
		return readEntry(file)
	}

	return nil, fmt.Errorf("%w: file '%s' was not found in %s", errors.ErrEntryNotFound, entryName, loc)
}

func (f *Fetcher) download(ctx context.Context, loc Location) ([]byte, error) {
	result, err := f.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrFetchFailed, loc, err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", errors.ErrFetchFailed, loc, err)
	}

	return content, nil
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open entry %s: %w", errors.ErrFetchFailed, file.Name, err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read entry %s: %w", errors.ErrFetchFailed, file.Name, err)
	}
	return content, nil
}
