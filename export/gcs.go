package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"webshrink/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// UploadToGCSWithJSON uploads content to a Google Cloud Storage object using a
// service account key in accessInfo["credentialsJSON"], raw or base64.
func UploadToGCSWithJSON(ctx context.Context, accessInfo map[string]string, filename, contentType string, reader io.Reader) (string, error) {
	bucketName := accessInfo["bucket"]
	if bucketName == "" || accessInfo["credentialsJSON"] == "" {
		return "", fmt.Errorf("missing required accessInfo keys: bucket, credentialsJSON")
	}
	object := objectName(accessInfo, "object", filename)

	credentialsJSON, err := base64.StdEncoding.DecodeString(accessInfo["credentialsJSON"])
	if err != nil {
		credentialsJSON = []byte(accessInfo["credentialsJSON"])
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return "", fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(object).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err = io.Copy(wc, reader); err != nil {
		wc.Close()
		return "", fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", object, bucketName)
	return fmt.Sprintf("gs://%s/%s", bucketName, object), nil
}
