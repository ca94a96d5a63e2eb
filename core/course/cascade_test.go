package course_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	testutil "github.com/trezcool/shule/tests"
)

func TestService_RemoveCourse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := createAssignment(t, f, "HW 1")
	id := itoa(a.ID)
	if _, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v1"}, student); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	att, err := f.svc.AttachToContent(ctx, courseID, course.KindAssignment, id, "brief.pdf", []byte("pdf"), teacher)
	if err != nil {
		t.Fatalf("AttachToContent() failed: %v", err)
	}

	t.Run("teacher may not", func(t *testing.T) {
		if err := f.svc.RemoveCourse(ctx, courseID, teacher); !core.IsForbidden(err) {
			t.Errorf("RemoveCourse() error = %v, want Forbidden", err)
		}
	})

	t.Run("instructor removes everything", func(t *testing.T) {
		if err := f.svc.RemoveCourse(ctx, courseID, instructor); err != nil {
			t.Fatalf("RemoveCourse() failed: %v", err)
		}
		if _, err := f.repo.GetCourse(ctx, courseID); !core.IsNotFound(err) {
			t.Errorf("GetCourse() after removal error = %v, want NotFound", err)
		}
		if subs, _ := f.repo.QueryCourseSubmissions(ctx, courseID); len(subs) != 0 {
			t.Errorf("submissions survived course removal: %v", subs)
		}
		if members, _ := f.repo.QueryMembers(ctx, courseID, course.RoleStudent); len(members) != 0 {
			t.Errorf("memberships survived course removal: %v", members)
		}
		if _, err := f.repo.GetAttachment(ctx, att.ID); !core.IsNotFound(err) {
			t.Errorf("attachment row survived course removal: %v", err)
		}
		if _, err := f.files.Get(ctx, att.ID); !core.IsNotFound(err) {
			t.Errorf("blob survived course removal: %v", err)
		}
	})
}

func TestService_RemoveAssignment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := createAssignment(t, f, "HW 1")
	keep := createAssignment(t, f, "HW 2")
	id := itoa(a.ID)

	if _, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v1"}, student); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err := f.svc.Submit(ctx, courseID, itoa(keep.ID), course.NewSubmission{Text: "kept"}, student); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	att, err := f.svc.AttachToSubmission(ctx, courseID, id, student, "work.zip", []byte("zip"), student)
	if err != nil {
		t.Fatalf("AttachToSubmission() failed: %v", err)
	}
	kept, err := f.svc.AttachToContent(ctx, courseID, course.KindAssignment, itoa(keep.ID), "brief.pdf", []byte("pdf"), teacher)
	if err != nil {
		t.Fatalf("AttachToContent() failed: %v", err)
	}

	if err := f.svc.RemoveAssignment(ctx, courseID, id, teacher); err != nil {
		t.Fatalf("RemoveAssignment() failed: %v", err)
	}
	if _, err := f.repo.GetContent(ctx, courseID, course.KindAssignment, a.ID); !core.IsNotFound(err) {
		t.Errorf("GetContent() after removal error = %v, want NotFound", err)
	}
	if _, err := f.repo.GetSubmission(ctx, courseID, a.ID, student); !core.IsNotFound(err) {
		t.Errorf("submission survived assignment removal")
	}
	if _, err := f.repo.GetSubmission(ctx, courseID, keep.ID, student); err != nil {
		t.Errorf("unrelated submission was removed: %v", err)
	}
	if _, err := f.files.Get(ctx, att.ID); !core.IsNotFound(err) {
		t.Errorf("blob survived assignment removal: %v", err)
	}
	if _, err := f.files.Get(ctx, kept.ID); err != nil {
		t.Errorf("unrelated blob was removed: %v", err)
	}
}

func TestService_RemoveTeacher(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("student is not a teacher", func(t *testing.T) {
		if err := f.svc.RemoveTeacher(ctx, courseID, student, instructor); !core.IsNotFound(err) {
			t.Errorf("RemoveTeacher() error = %v, want NotFound", err)
		}
	})
	t.Run("instructor must transfer ownership first", func(t *testing.T) {
		err := f.svc.RemoveTeacher(ctx, courseID, instructor, instructor)
		if !core.IsForbidden(err) {
			t.Fatalf("RemoveTeacher() error = %v, want Forbidden", err)
		}
	})
	t.Run("teacher may leave", func(t *testing.T) {
		if err := f.svc.RemoveTeacher(ctx, courseID, teacher, teacher); err != nil {
			t.Fatalf("RemoveTeacher() failed: %v", err)
		}
	})
	t.Run("last teacher is kept", func(t *testing.T) {
		err := f.svc.RemoveTeacher(ctx, courseID, instructor, instructor)
		if !core.IsForbidden(err) || errors.Cause(err).Error() != "cannot remove the last teacher at the course" {
			t.Errorf("RemoveTeacher() error = %v, want last-teacher Forbidden", err)
		}
	})
}

func TestService_RemoveStudent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := createAssignment(t, f, "HW 1")
	id := itoa(a.ID)
	if _, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v1"}, student); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	t.Run("parent may not remove", func(t *testing.T) {
		if err := f.svc.RemoveStudent(ctx, courseID, student, parent); !core.IsForbidden(err) {
			t.Errorf("RemoveStudent() error = %v, want Forbidden", err)
		}
	})

	t.Run("teacher removes; parent links go, submissions stay", func(t *testing.T) {
		if err := f.svc.RemoveStudent(ctx, courseID, student, teacher); err != nil {
			t.Fatalf("RemoveStudent() failed: %v", err)
		}
		if enrolled, _ := f.repo.HasMembership(ctx, courseID, student, course.RoleStudent); enrolled {
			t.Error("student membership survived")
		}
		if linked, _ := f.repo.HasParentLink(ctx, courseID, parent, student); linked {
			t.Error("parent link survived student removal")
		}
		if _, err := f.repo.GetSubmission(ctx, courseID, a.ID, student); err != nil {
			t.Errorf("submission should be kept: %v", err)
		}
	})

	t.Run("student may leave on their own", func(t *testing.T) {
		if err := f.svc.RemoveStudent(ctx, courseID, student2, student2); err != nil {
			t.Fatalf("RemoveStudent() failed: %v", err)
		}
	})
}

func TestService_RemoveUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// bob is the sole teacher of a second course and authors content in the
	// shared one
	testutil.CreateCourse(t, f.repo, "c2", "Chemistry", teacher)
	testutil.Enroll(t, f.repo, "c2", student2, course.RoleStudent)

	a, err := f.svc.CreateAssignment(ctx, courseID, course.NewContent{Title: "HW by bob"}, teacher)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}

	t.Run("non-admin may not remove others", func(t *testing.T) {
		if err := f.svc.RemoveUser(ctx, student, teacher); !core.IsForbidden(err) {
			t.Errorf("RemoveUser() error = %v, want Forbidden", err)
		}
	})

	t.Run("last admin is kept", func(t *testing.T) {
		err := f.svc.RemoveUser(ctx, admin, admin)
		if !core.IsForbidden(err) || errors.Cause(err).Error() != "cannot remove the last administrator" {
			t.Errorf("RemoveUser() error = %v, want last-admin Forbidden", err)
		}
	})

	t.Run("sole-teacher courses disappear, authored content is orphaned", func(t *testing.T) {
		if err := f.svc.RemoveUser(ctx, teacher, admin); err != nil {
			t.Fatalf("RemoveUser() failed: %v", err)
		}
		if _, err := f.usrRepo.GetUserByEmail(ctx, teacher); !core.IsNotFound(err) {
			t.Errorf("user survived removal: %v", err)
		}
		if _, err := f.repo.GetCourse(ctx, "c2"); !core.IsNotFound(err) {
			t.Error("sole-teacher course survived user removal")
		}
		// the shared course keeps the content, author is nulled
		got, err := f.repo.GetContent(ctx, courseID, course.KindAssignment, a.ID)
		if err != nil {
			t.Fatalf("GetContent() failed: %v", err)
		}
		if got.Author.Valid {
			t.Errorf("content author should be nulled, got %q", got.Author.String)
		}
		if isTeacher, _ := f.repo.HasMembership(ctx, courseID, teacher, course.RoleTeacher); isTeacher {
			t.Error("membership survived user removal")
		}
	})

	t.Run("user may remove themselves", func(t *testing.T) {
		if err := f.svc.RemoveUser(ctx, outsider, outsider); err != nil {
			t.Fatalf("RemoveUser() failed: %v", err)
		}
	})
}

func TestService_RemoveUser_studentUploads(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := createAssignment(t, f, "HW 1")
	id := itoa(a.ID)

	if _, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v1"}, student); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	att, err := f.svc.AttachToSubmission(ctx, courseID, id, student, "work.zip", []byte("zip"), student)
	if err != nil {
		t.Fatalf("AttachToSubmission() failed: %v", err)
	}

	if err = f.svc.RemoveUser(ctx, student, admin); err != nil {
		t.Fatalf("RemoveUser() failed: %v", err)
	}
	if _, err = f.repo.GetSubmission(ctx, courseID, a.ID, student); !core.IsNotFound(err) {
		t.Errorf("submission survived user removal: %v", err)
	}
	if _, err = f.repo.GetAttachment(ctx, att.ID); !core.IsNotFound(err) {
		t.Errorf("submission attachment row survived user removal: %v", err)
	}
	if _, err = f.files.Get(ctx, att.ID); !core.IsNotFound(err) {
		t.Errorf("blob survived user removal: %v", err)
	}
}
