package course

import (
	"context"

	"github.com/trezcool/shule/core"
)

// Decision is the tagged result of a permission predicate: granted, or
// denied with a reason. Both the boolean and the error-returning check
// families derive from it, so a rule is only ever written once.
type Decision struct {
	granted bool
	reason  string
}

func Granted() Decision              { return Decision{granted: true} }
func Denied(reason string) Decision  { return Decision{reason: reason} }
func (d Decision) Granted() bool     { return d.granted }
func (d Decision) Reason() string    { return d.reason }

// Err returns nil when granted, Forbidden(reason) otherwise.
func (d Decision) Err() error {
	if d.granted {
		return nil
	}
	return core.NewForbiddenError(d.reason)
}

// assert collapses a (Decision, error) pair into a single error: storage and
// existence errors pass through, denials become Forbidden.
func assert(d Decision, err error) error {
	if err != nil {
		return err
	}
	return d.Err()
}

// CheckCourseAccess: any role in the course, or admin.
func (a *Access) CheckCourseAccess(ctx context.Context, userEmail, courseID string) (Decision, error) {
	rs, err := a.Resolve(ctx, userEmail, courseID)
	if err != nil {
		return Decision{}, err
	}
	if rs.IsAdmin || rs.IsInstructor || rs.IsTeacher || rs.IsStudent || rs.IsParent {
		return Granted(), nil
	}
	return Denied("user does not have access to this course"), nil
}

func (a *Access) AssertCourseAccess(ctx context.Context, userEmail, courseID string) error {
	d, err := a.CheckCourseAccess(ctx, userEmail, courseID)
	return assert(d, err)
}

// CheckTeacherAccess: instructor, teacher or admin. The admin flag and the
// instructor column are checked first since both are already loaded; the
// membership table is only hit when needed.
func (a *Access) CheckTeacherAccess(ctx context.Context, userEmail, courseID string) (Decision, error) {
	usr, crs, err := a.lookup(ctx, userEmail, courseID)
	if err != nil {
		return Decision{}, err
	}
	if usr.IsAdmin || crs.Instructor == usr.Email {
		return Granted(), nil
	}
	isTeacher, err := a.repo.HasMembership(ctx, courseID, usr.Email, RoleTeacher)
	if err != nil {
		return Decision{}, err
	}
	if isTeacher {
		return Granted(), nil
	}
	return Denied("user has no teacher rights in this course"), nil
}

func (a *Access) AssertTeacherAccess(ctx context.Context, userEmail, courseID string) error {
	d, err := a.CheckTeacherAccess(ctx, userEmail, courseID)
	return assert(d, err)
}

// CheckInstructorAccess: primary instructor or admin.
func (a *Access) CheckInstructorAccess(ctx context.Context, userEmail, courseID string) (Decision, error) {
	usr, crs, err := a.lookup(ctx, userEmail, courseID)
	if err != nil {
		return Decision{}, err
	}
	if usr.IsAdmin || crs.Instructor == usr.Email {
		return Granted(), nil
	}
	return Denied("user has no primary instructor rights in this course"), nil
}

func (a *Access) AssertInstructorAccess(ctx context.Context, userEmail, courseID string) error {
	d, err := a.CheckInstructorAccess(ctx, userEmail, courseID)
	return assert(d, err)
}

// CheckStudentAccess: enrolled student or admin.
func (a *Access) CheckStudentAccess(ctx context.Context, userEmail, courseID string) (Decision, error) {
	usr, _, err := a.lookup(ctx, userEmail, courseID)
	if err != nil {
		return Decision{}, err
	}
	if usr.IsAdmin {
		return Granted(), nil
	}
	isStudent, err := a.repo.HasMembership(ctx, courseID, usr.Email, RoleStudent)
	if err != nil {
		return Decision{}, err
	}
	if isStudent {
		return Granted(), nil
	}
	return Denied("user has no student rights in this course"), nil
}

func (a *Access) AssertStudentAccess(ctx context.Context, userEmail, courseID string) error {
	d, err := a.CheckStudentAccess(ctx, userEmail, courseID)
	return assert(d, err)
}

// CheckParentAccess: parent of any student in the course, or admin.
func (a *Access) CheckParentAccess(ctx context.Context, userEmail, courseID string) (Decision, error) {
	usr, _, err := a.lookup(ctx, userEmail, courseID)
	if err != nil {
		return Decision{}, err
	}
	if usr.IsAdmin {
		return Granted(), nil
	}
	isParent, err := a.repo.HasMembership(ctx, courseID, usr.Email, RoleParent)
	if err != nil {
		return Decision{}, err
	}
	if isParent {
		return Granted(), nil
	}
	return Denied("user has no parental access in this course"), nil
}

func (a *Access) AssertParentAccess(ctx context.Context, userEmail, courseID string) error {
	d, err := a.CheckParentAccess(ctx, userEmail, courseID)
	return assert(d, err)
}

// CheckParentOfStudentAccess: a parent link to exactly this student, or admin.
func (a *Access) CheckParentOfStudentAccess(ctx context.Context, parentEmail, studentEmail, courseID string) (Decision, error) {
	parent, _, err := a.lookup(ctx, parentEmail, courseID)
	if err != nil {
		return Decision{}, err
	}
	if _, err := a.users.GetUserByEmail(ctx, studentEmail); err != nil {
		return Decision{}, err
	}
	if parent.IsAdmin {
		return Granted(), nil
	}
	linked, err := a.repo.HasParentLink(ctx, courseID, parent.Email, studentEmail)
	if err != nil {
		return Decision{}, err
	}
	if linked {
		return Granted(), nil
	}
	return Denied("user has no parental access to this student's course"), nil
}

func (a *Access) AssertParentOfStudentAccess(ctx context.Context, parentEmail, studentEmail, courseID string) error {
	d, err := a.CheckParentOfStudentAccess(ctx, parentEmail, studentEmail, courseID)
	return assert(d, err)
}

// CheckSubmissionAccess composes three independent paths with short-circuit
// OR: course teacher, parent of this specific student, or the student
// themself; admin bypasses all three. Clause order keeps the cheap checks
// (no extra query) first; it affects latency, not the outcome.
func (a *Access) CheckSubmissionAccess(ctx context.Context, viewerEmail, studentEmail, courseID string) (Decision, error) {
	viewer, crs, err := a.lookup(ctx, viewerEmail, courseID)
	if err != nil {
		return Decision{}, err
	}
	if viewer.IsAdmin || viewer.Email == studentEmail || crs.Instructor == viewer.Email {
		return Granted(), nil
	}
	isTeacher, err := a.repo.HasMembership(ctx, courseID, viewer.Email, RoleTeacher)
	if err != nil {
		return Decision{}, err
	}
	if isTeacher {
		return Granted(), nil
	}
	linked, err := a.repo.HasParentLink(ctx, courseID, viewer.Email, studentEmail)
	if err != nil {
		return Decision{}, err
	}
	if linked {
		return Granted(), nil
	}
	return Denied("user does not have access to this submission"), nil
}

func (a *Access) AssertSubmissionAccess(ctx context.Context, viewerEmail, studentEmail, courseID string) error {
	d, err := a.CheckSubmissionAccess(ctx, viewerEmail, studentEmail, courseID)
	return assert(d, err)
}

// CheckAdminAccess: the global admin flag.
func (a *Access) CheckAdminAccess(ctx context.Context, userEmail string) (Decision, error) {
	usr, err := a.users.GetUserByEmail(ctx, userEmail)
	if err != nil {
		return Decision{}, err
	}
	if usr.IsAdmin {
		return Granted(), nil
	}
	return Denied("user has no admin rights"), nil
}

func (a *Access) AssertAdminAccess(ctx context.Context, userEmail string) error {
	d, err := a.CheckAdminAccess(ctx, userEmail)
	return assert(d, err)
}

// checkRoleVacant guards invites: the three course-scoped roles are mutually
// exclusive per (user, course), and the instructor column counts as Teacher.
func (a *Access) checkRoleVacant(ctx context.Context, userEmail, courseID string, invited RoleKind) error {
	crs, err := a.repo.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	held := map[RoleKind]bool{RoleTeacher: crs.Instructor == userEmail}
	for _, kind := range []RoleKind{RoleTeacher, RoleStudent, RoleParent} {
		has, err := a.repo.HasMembership(ctx, courseID, userEmail, kind)
		if err != nil {
			return err
		}
		held[kind] = held[kind] || has
	}

	// a parent may be linked to several students of one course; the other
	// two kinds are single-slot
	if invited != RoleParent && held[invited] {
		return core.NewForbiddenError("user to invite already has " + string(invited) + " rights at this course")
	}
	for _, kind := range []RoleKind{RoleTeacher, RoleStudent, RoleParent} {
		if kind != invited && held[kind] {
			return core.NewForbiddenError("can't invite course " + string(kind) + " as a " + string(invited))
		}
	}
	return nil
}
