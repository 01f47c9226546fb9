package models

// Destination is an export target registered with the server. Credentials
// hold whatever the destination type needs (bucket, keys, host, ...).
type Destination struct {
	Type        string            `json:"type"` // "local", "s3", "gcs" or "sftp"
	Credentials map[string]string `json:"credentials"`
}
