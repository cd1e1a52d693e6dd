package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/natefinch/atomic"

	"github.com/bumpwatch/bumpwatch/server/internal/api"
)

// Formats accepted by Encode.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// S3API is the part of *s3.Client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Destination is a parsed export target.
type Destination struct {
	Path   string // local file
	Bucket string // S3 bucket, when the destination is s3://
	Key    string
}

// IsS3 reports whether d is an S3 object.
func (d Destination) IsS3() bool { return d.Bucket != "" }

func (d Destination) String() string {
	if d.IsS3() {
		return "s3://" + d.Bucket + "/" + d.Key
	}
	return d.Path
}

// ParseDestination parses a path or an s3://bucket/key URL.
func ParseDestination(s string) (Destination, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Destination{}, fmt.Errorf("export: destination is empty")
	}
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		return Destination{Path: s}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Destination{}, fmt.Errorf("export: %q: want s3://bucket/key", s)
	}
	return Destination{Bucket: bucket, Key: key}, nil
}

// Options configures Save.
type Options struct {
	// Region for S3 uploads. Empty uses the AWS default chain.
	Region string
	// ContentType of the uploaded object.
	ContentType string
	// S3 overrides the client; nil builds one from the default config.
	S3 S3API
}

// Save writes data to dest.
func Save(ctx context.Context, dest Destination, data []byte, opts Options) error {
	if !dest.IsS3() {
		if err := atomic.WriteFile(dest.Path, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("export: write %s: %w", dest.Path, err)
		}
		return nil
	}

	client := opts.S3
	if client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if opts.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return fmt.Errorf("export: load aws config: %w", err)
		}
		client = s3.NewFromConfig(cfg)
	}

	in := &s3.PutObjectInput{
		Bucket: aws.String(dest.Bucket),
		Key:    aws.String(dest.Key),
		Body:   bytes.NewReader(data),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if _, err := client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("export: upload %s: %w", dest, err)
	}
	return nil
}

// Encode renders a list in format and returns the bytes with their
// content type.
func Encode(l api.ListResponse, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		b, err := json.MarshalIndent(l, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("export: encode json: %w", err)
		}
		return append(b, '\n'), "application/json", nil
	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		w.Write([]string{"id", "street_name", "exact_location", "status", "health", "car_count", "last_updated"}) //nolint:errcheck
		for _, b := range l.Bumps {
			health := ""
			if b.Health != nil {
				health = strconv.Itoa(*b.Health)
			}
			w.Write([]string{ //nolint:errcheck
				b.ID, b.StreetName, b.ExactLocation, string(b.Status), health,
				strconv.FormatInt(b.CarCount, 10), b.LastUpdated,
			})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, "", fmt.Errorf("export: encode csv: %w", err)
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("export: unknown format %q (want json or csv)", format)
	}
}
