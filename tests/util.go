package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), core.Conf)
}

func OpenDB(t *testing.T) *dummydb.DB {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	isAdmin bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		IsAdmin:   isAdmin,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, id, title, instructorEmail string) course.Course {
	ctx := context.Background()
	crs, err := repo.CreateCourse(ctx, course.Course{
		ID:         id,
		Title:      title,
		Instructor: instructorEmail,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	Enroll(t, repo, id, instructorEmail, course.RoleTeacher)
	return crs
}

func Enroll(t *testing.T, repo course.Repository, courseID, email string, kind course.RoleKind) {
	err := repo.AddMembership(context.Background(), course.Membership{
		CourseID:  courseID,
		UserEmail: email,
		Kind:      kind,
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}

func LinkParent(t *testing.T, repo course.Repository, courseID, parentEmail, studentEmail string) {
	err := repo.AddMembership(context.Background(), course.Membership{
		CourseID:     courseID,
		UserEmail:    parentEmail,
		Kind:         course.RoleParent,
		StudentEmail: null.StringFrom(studentEmail),
	})
	if err != nil {
		t.Fatalf("LinkParent() failed: %v", err)
	}
}
