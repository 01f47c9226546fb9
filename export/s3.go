package export

import (
	"context"
	"fmt"
	"io"

	"webshrink/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// UploadToS3WithCreds uploads content to an S3 object using the static keys in
// accessInfo (accessKey, secretKey, region, bucket, and key or prefix).
// An optional endpoint targets S3-compatible servers with path-style addressing.
func UploadToS3WithCreds(ctx context.Context, accessInfo map[string]string, filename, contentType string, reader io.Reader) (string, error) {
	bucket := accessInfo["bucket"]
	if bucket == "" || accessInfo["region"] == "" {
		return "", fmt.Errorf("missing required accessInfo keys: bucket, region")
	}
	key := objectName(accessInfo, "key", filename)

	creds := credentials.NewStaticCredentialsProvider(accessInfo["accessKey"], accessInfo["secretKey"], "")
	opts := s3.Options{
		Region:      accessInfo["region"],
		Credentials: creds,
	}
	if endpoint := accessInfo["endpoint"]; endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	s3Client := s3.New(opts)

	uploader := manager.NewUploader(s3Client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", key, bucket, err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", key, bucket)
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
