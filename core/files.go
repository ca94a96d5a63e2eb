package core

import "context"

// FileStorage is any service that can store opaque blobs by id. The domain
// only records ids and filenames, never content.
type FileStorage interface {
	Put(ctx context.Context, id string, content []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}
