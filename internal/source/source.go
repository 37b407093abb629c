// Package source opens ranking list documents from the local file system
// or from S3-compatible object storage.
//
// A location is either a file path or an s3://bucket/key URI.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/applicants/internal/core"
	"github.com/JonMunkholm/applicants/internal/workbook"
)

const s3Scheme = "s3://"

// S3Config configures access to object storage.
type S3Config struct {
	Region          string
	Endpoint        string // optional, e.g. a MinIO URL
	PathStyle       bool
	AccessKeyID     string // optional, falls back to the default chain
	SecretAccessKey string
}

// Opener resolves locations into documents.
type Opener struct {
	cfg    S3Config
	client *s3.Client
}

// NewOpener returns an Opener. The S3 client is created on first use.
func NewOpener(cfg S3Config) *Opener {
	return &Opener{cfg: cfg}
}

// WithClient makes the Opener use an existing S3 client.
func (o *Opener) WithClient(c *s3.Client) *Opener {
	o.client = c
	return o
}

// IsS3 reports whether loc is an s3:// URI.
func IsS3(loc string) bool {
	return strings.HasPrefix(loc, s3Scheme)
}

// ParseS3 splits an s3://bucket/key URI.
func ParseS3(loc string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(loc, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q: want s3://bucket/key", loc)
	}
	return bucket, key, nil
}

// Name returns the file name part of a location.
func Name(loc string) string {
	if IsS3(loc) {
		return path.Base(loc)
	}
	return filepath.Base(loc)
}

// Open returns the document at loc. The caller closes the returned Closer
// once the document has been ingested.
//
// The extension is checked before anything is read, so an unsupported
// location fails with core.ErrUnsupportedFormat without I/O.
func (o *Opener) Open(ctx context.Context, loc string, mode core.Mode) (core.Document, io.Closer, error) {
	name := Name(loc)
	if !workbook.IsSupported(name) {
		return core.Document{}, nil, fmt.Errorf("open %s: %w", name, core.ErrUnsupportedFormat)
	}
	if IsS3(loc) {
		return o.openS3(ctx, loc, name, mode)
	}
	return openFile(loc, name, mode)
}

func openFile(loc, name string, mode core.Mode) (core.Document, io.Closer, error) {
	f, err := os.Open(loc)
	if err != nil {
		return core.Document{}, nil, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return core.Document{}, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	return core.Document{
		Name:    name,
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Reader:  f,
		Mode:    mode,
	}, f, nil
}

func (o *Opener) openS3(ctx context.Context, loc, name string, mode core.Mode) (core.Document, io.Closer, error) {
	bucket, key, err := ParseS3(loc)
	if err != nil {
		return core.Document{}, nil, err
	}
	client, err := o.s3Client(ctx)
	if err != nil {
		return core.Document{}, nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return core.Document{}, nil, fmt.Errorf("get %s: %w", loc, err)
	}

	doc := core.Document{
		Name:   name,
		Reader: out.Body,
		Mode:   mode,
	}
	if out.LastModified != nil {
		doc.ModTime = *out.LastModified
	}
	if out.ContentLength != nil {
		doc.Size = *out.ContentLength
	}
	return doc, out.Body, nil
}

func (o *Opener) s3Client(ctx context.Context) (*s3.Client, error) {
	if o.client != nil {
		return o.client, nil
	}
	region := o.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if o.cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.cfg.AccessKeyID, o.cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	o.client = s3.NewFromConfig(awsCfg, func(opts *s3.Options) {
		opts.UsePathStyle = o.cfg.PathStyle
		if o.cfg.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.cfg.Endpoint)
		}
	})
	return o.client, nil
}
