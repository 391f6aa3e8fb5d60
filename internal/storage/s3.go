package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/OFFIS-RIT/dematel/internal/util"
)

const (
	workbookName = "workbook.csv"
	snapshotName = "submission.json"
	historyName  = "history.csv"

	downloadLinkTTL = 15 * time.Minute
)

// WorkbookKey is the object key of a sheet's rendered workbook.
func WorkbookKey(sheet string) string {
	return path.Join(sheet, workbookName)
}

// SnapshotKey is the object key of the latest raw submission of a sheet.
func SnapshotKey(sheet string) string {
	return path.Join(sheet, snapshotName)
}

// HistoryKey is the object key of a sheet's submission log.
func HistoryKey(sheet string) string {
	return path.Join(sheet, historyName)
}

// Archive stores report artifacts in one bucket.
type Archive struct {
	client         *s3.Client
	bucket         string
	publicEndpoint string
}

// NewArchive configures an S3 client from AWS_REGION, AWS_ENDPOINT, AWS_ACCESS_KEY,
// AWS_SECRET_KEY, AWS_BUCKET and AWS_PUBLIC_ENDPOINT.
func NewArchive(ctx context.Context) (*Archive, error) {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &Archive{
		client:         client,
		bucket:         util.GetEnv("AWS_BUCKET"),
		publicEndpoint: util.GetEnvString("AWS_PUBLIC_ENDPOINT", endpoint),
	}, nil
}

// Put uploads body under key, retrying transient failures. The content type follows
// the key's extension.
func (a *Archive) Put(ctx context.Context, key string, body []byte) error {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	err := util.RetryErrWithContext(ctx, util.DefaultRetryPolicy, func(ctx context.Context) error {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(contentType),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}
	return nil
}

// DownloadLink presigns a short-lived GET for key against the public endpoint.
func (a *Archive) DownloadLink(ctx context.Context, key string) (string, error) {
	publicURL, err := url.Parse(a.publicEndpoint)
	if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
		return "", fmt.Errorf("invalid AWS_PUBLIC_ENDPOINT: %s", a.publicEndpoint)
	}
	prefix := strings.TrimSuffix(publicURL.Path, "/")
	publicBaseEndpoint := fmt.Sprintf("%s://%s", publicURL.Scheme, publicURL.Host)

	// The signature covers the Host header, so sign against the public host.
	presignClient := s3.NewFromConfig(
		aws.Config{
			Region:      a.client.Options().Region,
			Credentials: a.client.Options().Credentials,
			HTTPClient:  a.client.Options().HTTPClient,
		},
		func(o *s3.Options) {
			o.BaseEndpoint = aws.String(publicBaseEndpoint)
			o.UsePathStyle = true
		},
	)

	out, err := s3.NewPresignClient(presignClient).PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(downloadLinkTTL),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate download link: %w", err)
	}

	if prefix == "" {
		return out.URL, nil
	}
	signedURL, err := url.Parse(out.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned url: %w", err)
	}
	signedURL.Path = prefix + signedURL.Path
	return signedURL.String(), nil
}

// DeleteSheet removes every artifact stored for sheet.
func (a *Archive) DeleteSheet(ctx context.Context, sheet string) error {
	prefix := sheet + "/"
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := a.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return fmt.Errorf("failed to list objects in %s: %w", prefix, err)
		}
		if len(listOutput.Contents) == 0 {
			return nil
		}

		objects := make([]types.ObjectIdentifier, 0, len(listOutput.Contents))
		for _, obj := range listOutput.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(a.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects in %s: %w", prefix, err)
		}

		if listOutput.IsTruncated == nil || !*listOutput.IsTruncated {
			return nil
		}
		listInput.ContinuationToken = listOutput.NextContinuationToken
	}
}
