// Package blob uploads rendered export artifacts to the object store and
// hands back the durable URL callers can fetch them from.
package blob

import "context"

type Uploader interface {
	// Upload stores the local file under a randomized key in bucket and
	// returns the public URL of the stored object.
	Upload(ctx context.Context, localPath, bucket string) (string, error)
}
