package course

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// Plan is an ordered list of deletion steps computed before any mutation.
// Steps run in order so no reference ever outlives what it points to;
// execution stops at the first failing step.
type Plan struct {
	name  string
	steps []planStep
}

type planStep struct {
	name string
	run  func(ctx context.Context) error
}

func newPlan(name string) *Plan {
	return &Plan{name: name}
}

func (p *Plan) add(name string, run func(ctx context.Context) error) {
	p.steps = append(p.steps, planStep{name: name, run: run})
}

func (p *Plan) Execute(ctx context.Context) error {
	for _, step := range p.steps {
		if err := step.run(ctx); err != nil {
			return errors.Wrapf(err, "%s: %s", p.name, step.name)
		}
	}
	return nil
}

// deleteBlobs drops stored file content once the owning metadata rows are
// gone. Blob stores are not transactional, so failures here only get logged;
// the rows are already committed away.
func (svc *Service) deleteBlobs(ctx context.Context, atts []Attachment) {
	seen := make(map[string]bool, len(atts))
	for _, att := range atts {
		if seen[att.ID] {
			continue
		}
		seen[att.ID] = true
		if err := svc.files.Delete(ctx, att.ID); err != nil {
			svc.logger.Error(fmt.Sprintf("deleting blob %s: %v", att.ID, err), err)
		}
	}
}

// courseRemovalPlan deletes everything a course holds, leaves first: the
// submissions and attachments, then the contents, sections and memberships,
// then the course row itself.
func courseRemovalPlan(repo Repository, courseID string) *Plan {
	plan := newPlan(fmt.Sprintf("remove course %s", courseID))
	plan.add("delete submissions", func(ctx context.Context) error {
		return repo.RemoveCourseSubmissions(ctx, courseID)
	})
	plan.add("delete attachments", func(ctx context.Context) error {
		return repo.RemoveCourseAttachments(ctx, courseID)
	})
	plan.add("delete contents", func(ctx context.Context) error {
		return repo.RemoveCourseContents(ctx, courseID)
	})
	plan.add("delete sections", func(ctx context.Context) error {
		return repo.RemoveCourseSections(ctx, courseID)
	})
	plan.add("delete memberships", func(ctx context.Context) error {
		return repo.RemoveCourseMemberships(ctx, courseID)
	})
	plan.add("delete personalizations", func(ctx context.Context) error {
		return repo.RemoveCoursePersonalizations(ctx, courseID)
	})
	plan.add("delete course", func(ctx context.Context) error {
		return repo.DeleteCourse(ctx, courseID)
	})
	return plan
}

// RemoveCourse deletes a course with all its sections, contents, submissions,
// attachments and memberships. Only the primary instructor (or an admin) may.
func (svc *Service) RemoveCourse(ctx context.Context, courseID, actorEmail string) error {
	if err := svc.access.AssertInstructorAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	atts, err := svc.repo.QueryCourseAttachments(ctx, courseID)
	if err != nil {
		return err
	}
	err = svc.repo.Atomically(ctx, func(repo Repository) error {
		return courseRemovalPlan(repo, courseID).Execute(ctx)
	})
	if err != nil {
		return err
	}
	svc.deleteBlobs(ctx, atts)
	svc.logger.Info(fmt.Sprintf("course %s removed by %s", courseID, actorEmail))
	return nil
}

// RemoveAssignment deletes an assignment together with all submissions made
// to it and their attachments.
func (svc *Service) RemoveAssignment(ctx context.Context, courseID, assignmentID, actorEmail string) error {
	id, err := ParseContentID(assignmentID)
	if err != nil {
		return err
	}
	if err = svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	if _, err = svc.repo.GetContent(ctx, courseID, KindAssignment, id); err != nil {
		return err
	}

	var atts []Attachment
	for _, owner := range []AttachmentOwner{OwnerSubmission, OwnerAssignment} {
		more, err := svc.repo.QueryAttachments(ctx, courseID, owner, id, "")
		if err != nil {
			return err
		}
		atts = append(atts, more...)
	}

	err = svc.repo.Atomically(ctx, func(repo Repository) error {
		plan := newPlan(fmt.Sprintf("remove assignment %d of course %s", id, courseID))
		plan.add("delete submissions", func(ctx context.Context) error {
			return repo.RemoveAssignmentSubmissions(ctx, courseID, id)
		})
		plan.add("delete submission attachments", func(ctx context.Context) error {
			return repo.RemoveAttachments(ctx, courseID, OwnerSubmission, id)
		})
		plan.add("delete assignment attachments", func(ctx context.Context) error {
			return repo.RemoveAttachments(ctx, courseID, OwnerAssignment, id)
		})
		plan.add("delete assignment", func(ctx context.Context) error {
			return repo.RemoveContent(ctx, courseID, KindAssignment, id)
		})
		return plan.Execute(ctx)
	})
	if err != nil {
		return err
	}
	svc.deleteBlobs(ctx, atts)
	svc.logger.Info(fmt.Sprintf("assignment %d of course %s removed by %s", id, courseID, actorEmail))
	return nil
}

// RemoveTeacher drops a teacher membership. A teacher may leave on their own
// or be removed by the primary instructor. The last teacher can never be
// removed, and the primary instructor must transfer ownership first.
func (svc *Service) RemoveTeacher(ctx context.Context, courseID, teacherEmail, actorEmail string) error {
	if actorEmail != teacherEmail {
		if err := svc.access.AssertInstructorAccess(ctx, actorEmail, courseID); err != nil {
			return err
		}
	}
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	isTeacher, err := svc.repo.HasMembership(ctx, courseID, teacherEmail, RoleTeacher)
	if err != nil {
		return err
	}
	if !isTeacher && crs.Instructor != teacherEmail {
		return core.NewNotFoundError("user to remove is not a teacher at this course")
	}

	n, err := svc.repo.CountTeachers(ctx, courseID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return core.NewForbiddenError("cannot remove the last teacher at the course")
	}
	if crs.Instructor == teacherEmail {
		return core.NewForbiddenError("course ownership must be transferred before the primary instructor can be removed")
	}

	if err = svc.repo.RemoveMembership(ctx, courseID, teacherEmail, RoleTeacher); err != nil {
		return err
	}
	if err = svc.repo.RemovePersonalization(ctx, courseID, teacherEmail); err != nil {
		return err
	}
	svc.logger.Info(fmt.Sprintf("teacher %s removed from course %s by %s", teacherEmail, courseID, actorEmail))
	return nil
}

// RemoveStudent drops a student from a course along with any parent link
// pointing at them there. Their submissions are kept.
func (svc *Service) RemoveStudent(ctx context.Context, courseID, studentEmail, actorEmail string) error {
	if actorEmail != studentEmail {
		if err := svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
			return err
		}
	} else if err := svc.access.AssertCourseAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	enrolled, err := svc.repo.HasMembership(ctx, courseID, studentEmail, RoleStudent)
	if err != nil {
		return err
	}
	if !enrolled {
		return core.NewNotFoundError("user to remove is not a student at this course")
	}

	err = svc.repo.Atomically(ctx, func(repo Repository) error {
		plan := newPlan(fmt.Sprintf("remove student %s from course %s", studentEmail, courseID))
		plan.add("delete parent links", func(ctx context.Context) error {
			return repo.RemoveParentLinks(ctx, courseID, studentEmail)
		})
		plan.add("delete membership", func(ctx context.Context) error {
			return repo.RemoveMembership(ctx, courseID, studentEmail, RoleStudent)
		})
		plan.add("delete personalization", func(ctx context.Context) error {
			return repo.RemovePersonalization(ctx, courseID, studentEmail)
		})
		return plan.Execute(ctx)
	})
	if err != nil {
		return err
	}
	svc.logger.Info(fmt.Sprintf("student %s removed from course %s by %s", studentEmail, courseID, actorEmail))
	return nil
}

// RemoveUser deletes an account and repairs everything that referred to it:
// courses where they were the only teacher disappear entirely, their authored
// contents elsewhere lose the author mark, their own submissions and all
// their memberships go. Users may remove themselves; admins may remove
// anyone but the last admin.
func (svc *Service) RemoveUser(ctx context.Context, email, actorEmail string) error {
	if actorEmail != email {
		if err := svc.access.AssertAdminAccess(ctx, actorEmail); err != nil {
			return err
		}
	}
	usr, err := svc.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.IsAdmin {
		n, err := svc.users.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return core.NewForbiddenError("cannot remove the last administrator")
		}
	}

	// single-teacher detection must run before any membership is removed
	doomed, err := svc.repo.QuerySingleTeacherCourses(ctx, email)
	if err != nil {
		return err
	}
	atts, err := svc.repo.QueryStudentAttachments(ctx, email)
	if err != nil {
		return err
	}
	for _, courseID := range doomed {
		more, err := svc.repo.QueryCourseAttachments(ctx, courseID)
		if err != nil {
			return err
		}
		atts = append(atts, more...)
	}

	err = svc.repo.Atomically(ctx, func(repo Repository) error {
		plan := newPlan(fmt.Sprintf("remove user %s", email))
		for _, courseID := range doomed {
			sub := courseRemovalPlan(repo, courseID)
			plan.add(fmt.Sprintf("remove sole-teacher course %s", courseID), sub.Execute)
		}
		plan.add("clear authored contents", func(ctx context.Context) error {
			return repo.ClearContentAuthor(ctx, email)
		})
		plan.add("delete submission attachments", func(ctx context.Context) error {
			return repo.RemoveStudentAttachments(ctx, email)
		})
		plan.add("delete own submissions", func(ctx context.Context) error {
			return repo.RemoveStudentSubmissions(ctx, email)
		})
		plan.add("delete memberships", func(ctx context.Context) error {
			return repo.RemoveUserMemberships(ctx, email)
		})
		plan.add("delete personalizations", func(ctx context.Context) error {
			return repo.RemoveUserPersonalizations(ctx, email)
		})
		return plan.Execute(ctx)
	})
	if err != nil {
		return err
	}
	svc.deleteBlobs(ctx, atts)
	if err = svc.users.DeleteUser(ctx, email); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	svc.logger.Info(fmt.Sprintf("user %s removed by %s", email, actorEmail))
	return nil
}
