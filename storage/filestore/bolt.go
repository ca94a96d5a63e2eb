// Package filestore persists attachment blobs on disk in a bbolt file.
// It backs core.FileStorage when no object store is configured.
package filestore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
)

var bucket = []byte("attachments")

type boltStorage struct {
	db *bbolt.DB
}

var _ core.FileStorage = (*boltStorage)(nil)

// Open opens (or creates) the blob store at path.
func Open(path string) (*boltStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating blob store dir")
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening blob store")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating blob bucket")
	}
	return &boltStorage{db: db}, nil
}

func (s *boltStorage) Put(ctx context.Context, id string, content []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), content)
	})
	return errors.Wrap(err, "storing blob")
}

func (s *boltStorage) Get(ctx context.Context, id string) ([]byte, error) {
	var content []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(id))
		if v == nil {
			return course.ErrAttachmentNotFound
		}
		content = make([]byte, len(v))
		copy(content, v)
		return nil
	})
	if err != nil {
		if errors.Cause(err) == course.ErrAttachmentNotFound {
			return nil, err
		}
		return nil, errors.Wrap(err, "reading blob")
	}
	return content, nil
}

func (s *boltStorage) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
	return errors.Wrap(err, "deleting blob")
}

func (s *boltStorage) Close() error {
	return s.db.Close()
}
