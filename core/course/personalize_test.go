package course_test

import (
	"context"
	"testing"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	testutil "github.com/trezcool/shule/tests"
)

func TestService_SetCourseEmoji(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("any role may pick", func(t *testing.T) {
		for _, email := range []string{instructor, teacher, student, parent} {
			if err := f.svc.SetCourseEmoji(ctx, courseID, course.CourseEmojiInput{Emoji: 7}, email); err != nil {
				t.Errorf("SetCourseEmoji() as %s failed: %v", email, err)
			}
		}
	})

	t.Run("the pick is private", func(t *testing.T) {
		if err := f.svc.SetCourseEmoji(ctx, courseID, course.CourseEmojiInput{Emoji: 3}, student); err != nil {
			t.Fatalf("SetCourseEmoji() failed: %v", err)
		}
		courses, err := f.svc.QueryByUser(ctx, student)
		if err != nil {
			t.Fatalf("QueryByUser() failed: %v", err)
		}
		if len(courses) != 1 || !courses[0].Emoji.Valid || courses[0].Emoji.Int64 != 3 {
			t.Errorf("QueryByUser() = %+v, want emoji 3", courses)
		}

		courses, err = f.svc.QueryByUser(ctx, student2)
		if err != nil {
			t.Fatalf("QueryByUser() failed: %v", err)
		}
		if len(courses) != 1 || courses[0].Emoji.Valid {
			t.Errorf("QueryByUser() = %+v, want no emoji for another member", courses)
		}
	})

	t.Run("a course role is required", func(t *testing.T) {
		for _, email := range []string{outsider, admin} {
			if err := f.svc.SetCourseEmoji(ctx, courseID, course.CourseEmojiInput{Emoji: 1}, email); !core.IsForbidden(err) {
				t.Errorf("SetCourseEmoji() as %s error = %v, want Forbidden", email, err)
			}
		}
	})

	t.Run("pick must be in the catalog", func(t *testing.T) {
		in := course.CourseEmojiInput{Emoji: course.EmojiCount}
		if err := in.Validate(); err == nil {
			t.Error("Validate() should reject an out-of-catalog emoji")
		}
	})
}

func TestService_ReorderCourses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateCourse(t, f.repo, "c2", "Chemistry", instructor)
	testutil.Enroll(t, f.repo, "c2", student, course.RoleStudent)

	courseIDs := func(t *testing.T, email string) []string {
		t.Helper()
		courses, err := f.svc.QueryByUser(ctx, email)
		if err != nil {
			t.Fatalf("QueryByUser() failed: %v", err)
		}
		ids := make([]string, 0, len(courses))
		for _, crs := range courses {
			ids = append(ids, crs.ID)
		}
		return ids
	}

	t.Run("order must cover the whole course list", func(t *testing.T) {
		tests := []struct {
			name  string
			order []string
		}{
			{name: "too short", order: []string{courseID}},
			{name: "unknown course", order: []string{courseID, "nope"}},
			{name: "duplicate", order: []string{courseID, courseID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := f.svc.ReorderCourses(ctx, course.CourseOrderInput{CourseIDs: tt.order}, student)
				if !core.IsInvalidArgument(err) {
					t.Errorf("ReorderCourses() error = %v, want InvalidArgument", err)
				}
			})
		}
	})

	t.Run("new order sticks", func(t *testing.T) {
		if got := courseIDs(t, student); len(got) != 2 || got[0] != courseID || got[1] != "c2" {
			t.Fatalf("initial order = %v", got)
		}
		err := f.svc.ReorderCourses(ctx, course.CourseOrderInput{CourseIDs: []string{"c2", courseID}}, student)
		if err != nil {
			t.Fatalf("ReorderCourses() failed: %v", err)
		}
		if got := courseIDs(t, student); len(got) != 2 || got[0] != "c2" || got[1] != courseID {
			t.Errorf("order after reorder = %v, want [c2 %s]", got, courseID)
		}
	})

	t.Run("one member's order leaves others alone", func(t *testing.T) {
		if got := courseIDs(t, instructor); len(got) != 2 || got[0] != courseID {
			t.Errorf("instructor order = %v, want %s first", got, courseID)
		}
	})
}
