package course_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
)

func itoa(n int) string { return strconv.Itoa(n) }

func createAssignment(t *testing.T, f *fixture, title string) course.Content {
	a, err := f.svc.CreateAssignment(context.Background(), courseID, course.NewContent{Title: title}, instructor)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

func TestService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := createAssignment(t, f, "HW 1")
	id := itoa(a.ID)

	t.Run("teacher cannot submit", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "x"}, teacher)
		if !core.IsForbidden(err) {
			t.Errorf("Submit() error = %v, want Forbidden", err)
		}
	})
	t.Run("unknown assignment", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, courseID, "999", course.NewSubmission{Text: "x"}, student)
		if !core.IsNotFound(err) {
			t.Errorf("Submit() error = %v, want NotFound", err)
		}
	})
	t.Run("non-integer assignment id", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, courseID, "lol", course.NewSubmission{Text: "x"}, student)
		if !core.IsInvalidArgument(err) {
			t.Errorf("Submit() error = %v, want InvalidArgument", err)
		}
	})

	t.Run("first submit creates", func(t *testing.T) {
		sub, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v1"}, student)
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if sub.Text != "v1" || sub.State() != course.Submitted {
			t.Errorf("Submit() = %+v, want submitted text v1", sub)
		}
		if sub.SubmittedAt.IsZero() || sub.ModifiedAt.IsZero() {
			t.Error("Submit() timestamps not set")
		}
	})

	t.Run("resubmit replaces text and keeps SubmittedAt", func(t *testing.T) {
		first, err := f.svc.GetSubmission(ctx, courseID, id, student, student)
		if err != nil {
			t.Fatalf("GetSubmission() failed: %v", err)
		}
		sub, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v2"}, student)
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if sub.Text != "v2" {
			t.Errorf("Submit() text = %q, want v2", sub.Text)
		}
		if !sub.SubmittedAt.Equal(first.SubmittedAt) {
			t.Errorf("Submit() changed SubmittedAt: %v -> %v", first.SubmittedAt, sub.SubmittedAt)
		}
	})

	t.Run("graded submission is frozen", func(t *testing.T) {
		if _, err := f.svc.Grade(ctx, courseID, id, student, course.GradeInput{Grade: 80}, teacher); err != nil {
			t.Fatalf("Grade() failed: %v", err)
		}
		_, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v3"}, student)
		if !core.IsConflict(err) {
			t.Errorf("Submit() error = %v, want Conflict", err)
		}
		sub, err := f.svc.GetSubmission(ctx, courseID, id, student, student)
		if err != nil {
			t.Fatalf("GetSubmission() failed: %v", err)
		}
		if sub.Text != "v2" {
			t.Errorf("graded submission text = %q, want v2", sub.Text)
		}
	})
}

func TestService_Grade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := createAssignment(t, f, "HW 1")
	id := itoa(a.ID)

	if _, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v1"}, student); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	t.Run("student cannot grade", func(t *testing.T) {
		_, err := f.svc.Grade(ctx, courseID, id, student, course.GradeInput{Grade: 50}, student)
		if !core.IsForbidden(err) {
			t.Errorf("Grade() error = %v, want Forbidden", err)
		}
	})
	t.Run("no submission to grade", func(t *testing.T) {
		_, err := f.svc.Grade(ctx, courseID, id, student2, course.GradeInput{Grade: 50}, teacher)
		if !core.IsNotFound(err) {
			t.Errorf("Grade() error = %v, want NotFound", err)
		}
	})
	t.Run("target must be an enrolled student", func(t *testing.T) {
		_, err := f.svc.Grade(ctx, courseID, id, parent, course.GradeInput{Grade: 50}, teacher)
		if !core.IsForbidden(err) {
			t.Errorf("Grade() error = %v, want Forbidden", err)
		}
	})
	t.Run("grade out of scale", func(t *testing.T) {
		_, err := f.svc.Grade(ctx, courseID, id, student, course.GradeInput{Grade: core.Conf.GradeScaleMax + 1}, teacher)
		if err == nil {
			t.Error("Grade() accepted an out-of-scale grade")
		}
	})

	t.Run("grade records grader and comment", func(t *testing.T) {
		sub, err := f.svc.Grade(ctx, courseID, id, student, course.GradeInput{Grade: 80, Comment: "ok"}, teacher)
		if err != nil {
			t.Fatalf("Grade() failed: %v", err)
		}
		if sub.State() != course.Graded {
			t.Errorf("State() = %v, want graded", sub.State())
		}
		if sub.Grade.Int64 != 80 || sub.GradeComment.String != "ok" || sub.GradedBy.String != teacher {
			t.Errorf("Grade() = %+v", sub)
		}
	})

	t.Run("regrading overwrites", func(t *testing.T) {
		sub, err := f.svc.Grade(ctx, courseID, id, student, course.GradeInput{Grade: 90}, instructor)
		if err != nil {
			t.Fatalf("Grade() failed: %v", err)
		}
		if sub.Grade.Int64 != 90 || sub.GradedBy.String != instructor {
			t.Errorf("Grade() = %+v, want 90 by instructor", sub)
		}
	})
}

func TestService_GetSubmission_access(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := createAssignment(t, f, "HW 1")
	id := itoa(a.ID)

	if _, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v1"}, student); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	for _, viewer := range []string{student, teacher, instructor, parent, admin} {
		if _, err := f.svc.GetSubmission(ctx, courseID, id, student, viewer); err != nil {
			t.Errorf("GetSubmission() as %s failed: %v", viewer, err)
		}
	}
	if _, err := f.svc.GetSubmission(ctx, courseID, id, student, student2); !core.IsForbidden(err) {
		t.Errorf("GetSubmission() as another student error = %v, want Forbidden", err)
	}
	if _, err := f.svc.GetSubmission(ctx, courseID, id, student2, parent); !core.IsForbidden(err) {
		t.Errorf("GetSubmission() as unlinked parent error = %v, want Forbidden", err)
	}
}
