package course

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// Submit creates the student's submission for an assignment, or replaces its
// text if one exists and has not been graded yet.
func (svc *Service) Submit(ctx context.Context, courseID, assignmentID string, ns NewSubmission, actorEmail string) (Submission, error) {
	if err := ns.Validate(); err != nil {
		return Submission{}, err
	}
	id, err := ParseContentID(assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.access.AssertStudentAccess(ctx, actorEmail, courseID); err != nil {
		return Submission{}, err
	}
	if _, err = svc.repo.GetContent(ctx, courseID, KindAssignment, id); err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	sub, err := svc.repo.GetSubmission(ctx, courseID, id, actorEmail)
	switch {
	case err == nil:
		if sub.IsGraded() {
			return Submission{}, core.NewConflictError("cannot edit a graded submission")
		}
		if err = svc.repo.UpdateSubmissionText(ctx, courseID, id, actorEmail, ns.Text); err != nil {
			return Submission{}, err
		}
		sub.Text = ns.Text
		sub.ModifiedAt = now
	case errors.Cause(err) == ErrSubmissionNotFound:
		sub = Submission{
			CourseID:     courseID,
			AssignmentID: id,
			StudentEmail: actorEmail,
			Text:         ns.Text,
			SubmittedAt:  now,
			ModifiedAt:   now,
		}
		if sub, err = svc.repo.CreateSubmission(ctx, sub); err != nil {
			return Submission{}, err
		}
	default:
		return Submission{}, err
	}

	svc.logger.Info(fmt.Sprintf("submission by %s to assignment %d of course %s saved", actorEmail, id, courseID))
	return sub, nil
}

// GetSubmission returns one student's submission to an assignment. Readable
// by the student, the course teachers, the student's parents and admins.
func (svc *Service) GetSubmission(ctx context.Context, courseID, assignmentID, studentEmail, viewerEmail string) (Submission, error) {
	id, err := ParseContentID(assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.access.AssertSubmissionAccess(ctx, viewerEmail, studentEmail, courseID); err != nil {
		return Submission{}, err
	}
	if _, err = svc.repo.GetContent(ctx, courseID, KindAssignment, id); err != nil {
		return Submission{}, err
	}
	return svc.repo.GetSubmission(ctx, courseID, id, studentEmail)
}

// Grade records a grade on an existing submission. Grading again overwrites
// the previous grade; grading with the same values is a no-op.
func (svc *Service) Grade(ctx context.Context, courseID, assignmentID, studentEmail string, in GradeInput, actorEmail string) (Submission, error) {
	if err := in.Validate(); err != nil {
		return Submission{}, err
	}
	id, err := ParseContentID(assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return Submission{}, err
	}
	if err = svc.assertEnrolledStudent(ctx, courseID, studentEmail); err != nil {
		return Submission{}, err
	}
	if _, err = svc.repo.GetContent(ctx, courseID, KindAssignment, id); err != nil {
		return Submission{}, err
	}

	sub, err := svc.repo.GetSubmission(ctx, courseID, id, studentEmail)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.repo.SetSubmissionGrade(ctx, courseID, id, studentEmail, in.Grade, in.Comment, actorEmail); err != nil {
		return Submission{}, err
	}
	sub.Grade.SetValid(int64(in.Grade))
	sub.GradeComment.SetValid(in.Comment)
	sub.GradedBy.SetValid(actorEmail)

	svc.logger.Info(fmt.Sprintf(
		"submission by %s to assignment %d of course %s graded %d by %s", studentEmail, id, courseID, in.Grade, actorEmail))
	return sub, nil
}

// AssignmentSubmissions lists all submissions to an assignment; teachers only.
func (svc *Service) AssignmentSubmissions(ctx context.Context, courseID, assignmentID, actorEmail string) ([]Submission, error) {
	id, err := ParseContentID(assignmentID)
	if err != nil {
		return nil, err
	}
	if err = svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return nil, err
	}
	if _, err = svc.repo.GetContent(ctx, courseID, KindAssignment, id); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, courseID, id)
}

func (svc *Service) getOwnSubmission(ctx context.Context, courseID, assignmentID, studentEmail string) (Submission, error) {
	id, err := ParseContentID(assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.access.AssertStudentAccess(ctx, studentEmail, courseID); err != nil {
		return Submission{}, err
	}
	return svc.repo.GetSubmission(ctx, courseID, id, studentEmail)
}
