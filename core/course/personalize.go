package course

import (
	"context"
	"fmt"

	"github.com/trezcool/shule/core"
)

// EmojiCount is the size of the client-side emoji catalog; a personal course
// emoji is an index into it.
const EmojiCount = 64

// SetCourseEmoji stores the actor's personal emoji for a course. Any course
// role qualifies; admins without a membership hold no personal view.
func (svc *Service) SetCourseEmoji(ctx context.Context, courseID string, in CourseEmojiInput, actorEmail string) error {
	roles, err := svc.access.Resolve(ctx, actorEmail, courseID)
	if err != nil {
		return err
	}
	if !roles.IsTeacher && !roles.IsStudent && !roles.IsParent {
		return core.NewForbiddenError("user holds no role in this course")
	}
	return svc.repo.SetCourseEmoji(ctx, courseID, actorEmail, in.Emoji)
}

// ReorderCourses replaces the actor's personal course ordering. The new order
// must be a permutation of the courses they belong to.
func (svc *Service) ReorderCourses(ctx context.Context, in CourseOrderInput, actorEmail string) error {
	if _, err := svc.users.GetUserByEmail(ctx, actorEmail); err != nil {
		return err
	}
	courses, err := svc.repo.QueryCoursesByUser(ctx, actorEmail)
	if err != nil {
		return err
	}
	if len(in.CourseIDs) != len(courses) {
		return core.NewInvalidArgumentError("new order does not match the user's course list")
	}
	remaining := make(map[string]bool, len(courses))
	for _, crs := range courses {
		remaining[crs.ID] = true
	}
	for _, id := range in.CourseIDs {
		if !remaining[id] {
			return core.NewInvalidArgumentError("new order does not match the user's course list")
		}
		delete(remaining, id)
	}

	err = svc.repo.Atomically(ctx, func(repo Repository) error {
		return repo.UpdateCourseOrder(ctx, actorEmail, in.CourseIDs)
	})
	if err != nil {
		return err
	}
	svc.logger.Info(fmt.Sprintf("user %s reordered their courses", actorEmail))
	return nil
}
