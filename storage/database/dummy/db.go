package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
)

type (
	DB struct {
		user   *userTable
		course *courseTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User // keyed by email
	}

	// courseTables holds all course-scoped entities behind one lock so a
	// cascading plan observes its own deletions.
	courseTables struct {
		sync.RWMutex
		courses          map[string]*course.Course
		memberships      []course.Membership
		sections         map[string][]course.Section // by course id, in position order
		contents         map[string][]course.Content // by course id, in creation order
		submissions      []course.Submission
		attachments      map[string]*course.Attachment // by attachment id
		personalizations []course.Personalization
		idCount          int
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		course: &courseTables{
			courses:     make(map[string]*course.Course),
			sections:    make(map[string][]course.Section),
			contents:    make(map[string][]course.Content),
			attachments: make(map[string]*course.Attachment),
		},
	}
	return db, nil
}

func (t *courseTables) snapshot() *courseTables {
	t.RLock()
	defer t.RUnlock()

	snap := &courseTables{
		courses:          make(map[string]*course.Course, len(t.courses)),
		memberships:      append([]course.Membership(nil), t.memberships...),
		sections:         make(map[string][]course.Section, len(t.sections)),
		contents:         make(map[string][]course.Content, len(t.contents)),
		submissions:      append([]course.Submission(nil), t.submissions...),
		attachments:      make(map[string]*course.Attachment, len(t.attachments)),
		personalizations: append([]course.Personalization(nil), t.personalizations...),
		idCount:          t.idCount,
	}
	for id, crs := range t.courses {
		crs := *crs
		snap.courses[id] = &crs
	}
	for id, sections := range t.sections {
		snap.sections[id] = append([]course.Section(nil), sections...)
	}
	for id, contents := range t.contents {
		snap.contents[id] = append([]course.Content(nil), contents...)
	}
	for id, att := range t.attachments {
		att := *att
		snap.attachments[id] = &att
	}
	return snap
}

func (t *courseTables) restore(snap *courseTables) {
	t.Lock()
	defer t.Unlock()

	t.courses = snap.courses
	t.memberships = snap.memberships
	t.sections = snap.sections
	t.contents = snap.contents
	t.submissions = snap.submissions
	t.attachments = snap.attachments
	t.personalizations = snap.personalizations
	t.idCount = snap.idCount
}

// fileStorage is an in-memory core.FileStorage for tests and local runs.
type fileStorage struct {
	mutex sync.RWMutex
	blobs map[string][]byte
}

var _ core.FileStorage = (*fileStorage)(nil)

func NewFileStorage() core.FileStorage {
	return &fileStorage{blobs: make(map[string][]byte)}
}

func (fs *fileStorage) Put(ctx context.Context, id string, content []byte) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	cp := make([]byte, len(content))
	copy(cp, content)
	fs.blobs[id] = cp
	return nil
}

func (fs *fileStorage) Get(ctx context.Context, id string) ([]byte, error) {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()
	content, ok := fs.blobs[id]
	if !ok {
		return nil, course.ErrAttachmentNotFound
	}
	return content, nil
}

func (fs *fileStorage) Delete(ctx context.Context, id string) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	delete(fs.blobs, id)
	return nil
}
