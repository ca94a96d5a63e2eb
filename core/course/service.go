package course

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type Service struct {
	repo    Repository
	users   user.Repository
	access  *Access
	files   core.FileStorage
	mailSvc core.EmailService
	logger  core.Logger
}

func NewService(repo Repository, users user.Repository, files core.FileStorage, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		access:  NewAccess(repo, users),
		files:   files,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// Access exposes the predicate library to outer layers (API middleware).
func (svc *Service) Access() *Access { return svc.access }

// Create opens a new course with creator as its primary instructor; the
// creator is also enrolled as a teacher so that invariant checks can treat
// instructors uniformly as teachers.
func (svc *Service) Create(ctx context.Context, nc NewCourse, creatorEmail string) (Course, error) {
	creator, err := svc.users.GetUserByEmail(ctx, creatorEmail)
	if err != nil {
		return Course{}, err
	}

	crs := Course{
		ID:         uuid.New().String(),
		Title:      nc.Title,
		Org:        nc.Org,
		Instructor: creator.Email,
		CreatedAt:  time.Now().UTC(),
	}
	crs, err = svc.repo.CreateCourse(ctx, crs)
	if err != nil {
		return Course{}, err
	}
	if err = svc.repo.AddMembership(ctx, Membership{CourseID: crs.ID, UserEmail: creator.Email, Kind: RoleTeacher}); err != nil {
		return Course{}, err
	}

	svc.logger.Info(fmt.Sprintf("course %s created by %s", crs.ID, creator.Email))
	return crs, nil
}

func (svc *Service) Get(ctx context.Context, courseID, viewerEmail string) (Course, error) {
	if err := svc.access.AssertCourseAccess(ctx, viewerEmail, courseID); err != nil {
		return Course{}, err
	}
	return svc.repo.GetCourse(ctx, courseID)
}

// QueryByUser lists every course the user belongs to in any role, decorated
// with their personal emoji and sorted by their personal ordering. Courses
// never reordered keep the storage order.
func (svc *Service) QueryByUser(ctx context.Context, userEmail string) ([]UserCourse, error) {
	if _, err := svc.users.GetUserByEmail(ctx, userEmail); err != nil {
		return nil, err
	}
	courses, err := svc.repo.QueryCoursesByUser(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	prefs, err := svc.repo.QueryPersonalizations(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	byCourse := make(map[string]Personalization, len(prefs))
	for _, p := range prefs {
		byCourse[p.CourseID] = p
	}

	out := make([]UserCourse, 0, len(courses))
	for _, crs := range courses {
		out = append(out, UserCourse{Course: crs, Emoji: byCourse[crs.ID].Emoji})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return byCourse[out[i].ID].Position < byCourse[out[j].ID].Position
	})
	return out, nil
}

// TransferOwnership makes newInstructorEmail the primary instructor. The new
// instructor must already teach the course; this is the only way an
// instructor ever stops being one short of course deletion.
func (svc *Service) TransferOwnership(ctx context.Context, courseID, newInstructorEmail, actorEmail string) error {
	if err := svc.access.AssertInstructorAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	if _, err := svc.users.GetUserByEmail(ctx, newInstructorEmail); err != nil {
		return err
	}
	isTeacher, err := svc.repo.HasMembership(ctx, courseID, newInstructorEmail, RoleTeacher)
	if err != nil {
		return err
	}
	if !isTeacher {
		return core.NewForbiddenError("ownership can only be transferred to a teacher of this course")
	}
	if err = svc.repo.UpdateCourseInstructor(ctx, courseID, newInstructorEmail); err != nil {
		return err
	}
	svc.logger.Info(fmt.Sprintf("course %s ownership transferred to %s by %s", courseID, newInstructorEmail, actorEmail))
	return nil
}

// Memberships

func (svc *Service) Teachers(ctx context.Context, courseID, viewerEmail string) ([]Member, error) {
	if err := svc.access.AssertCourseAccess(ctx, viewerEmail, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMembers(ctx, courseID, RoleTeacher)
}

func (svc *Service) Students(ctx context.Context, courseID, viewerEmail string) ([]Member, error) {
	if err := svc.access.AssertCourseAccess(ctx, viewerEmail, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMembers(ctx, courseID, RoleStudent)
}

// Parents lists the parents linked to one student; teachers only.
func (svc *Service) Parents(ctx context.Context, courseID, studentEmail, viewerEmail string) ([]Member, error) {
	if err := svc.access.AssertTeacherAccess(ctx, viewerEmail, courseID); err != nil {
		return nil, err
	}
	if err := svc.assertEnrolledStudent(ctx, courseID, studentEmail); err != nil {
		return nil, err
	}
	return svc.repo.QueryParents(ctx, courseID, studentEmail)
}

// Children lists the students a parent is linked to in the course.
func (svc *Service) Children(ctx context.Context, courseID, parentEmail string) ([]Member, error) {
	if _, err := svc.users.GetUserByEmail(ctx, parentEmail); err != nil {
		return nil, err
	}
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryChildren(ctx, courseID, parentEmail)
}

func (svc *Service) InviteTeacher(ctx context.Context, courseID, newTeacherEmail, actorEmail string) error {
	if _, err := svc.users.GetUserByEmail(ctx, newTeacherEmail); err != nil {
		return err
	}
	if err := svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	if err := svc.access.checkRoleVacant(ctx, newTeacherEmail, courseID, RoleTeacher); err != nil {
		return err
	}
	if err := svc.repo.AddMembership(ctx, Membership{CourseID: courseID, UserEmail: newTeacherEmail, Kind: RoleTeacher}); err != nil {
		return err
	}
	svc.sendInviteMail(ctx, courseID, newTeacherEmail, "a teacher")
	svc.logger.Info(fmt.Sprintf("teacher %s invited to course %s by %s", newTeacherEmail, courseID, actorEmail))
	return nil
}

func (svc *Service) InviteStudent(ctx context.Context, courseID, studentEmail, actorEmail string) error {
	if _, err := svc.users.GetUserByEmail(ctx, studentEmail); err != nil {
		return err
	}
	if err := svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	if err := svc.access.checkRoleVacant(ctx, studentEmail, courseID, RoleStudent); err != nil {
		return err
	}
	if err := svc.repo.AddMembership(ctx, Membership{CourseID: courseID, UserEmail: studentEmail, Kind: RoleStudent}); err != nil {
		return err
	}
	svc.sendInviteMail(ctx, courseID, studentEmail, "a student")
	svc.logger.Info(fmt.Sprintf("student %s invited to course %s by %s", studentEmail, courseID, actorEmail))
	return nil
}

// InviteParent links parentEmail to studentEmail in the course. The student
// must actually hold a Student membership (invariant: no dangling parent
// links), the admin bypass does not apply to the target.
func (svc *Service) InviteParent(ctx context.Context, courseID, studentEmail, parentEmail, actorEmail string) error {
	if _, err := svc.users.GetUserByEmail(ctx, parentEmail); err != nil {
		return err
	}
	if err := svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	if err := svc.assertEnrolledStudent(ctx, courseID, studentEmail); err != nil {
		return err
	}

	linked, err := svc.repo.HasParentLink(ctx, courseID, parentEmail, studentEmail)
	if err != nil {
		return err
	}
	if linked {
		return core.NewForbiddenError("parent already assigned to this student at this course")
	}
	if err = svc.access.checkRoleVacant(ctx, parentEmail, courseID, RoleParent); err != nil {
		return err
	}

	m := Membership{CourseID: courseID, UserEmail: parentEmail, Kind: RoleParent}
	m.StudentEmail.SetValid(studentEmail)
	if err = svc.repo.AddMembership(ctx, m); err != nil {
		return err
	}
	svc.sendInviteMail(ctx, courseID, parentEmail, "a parent")
	svc.logger.Info(fmt.Sprintf("parent %s linked to student %s in course %s by %s", parentEmail, studentEmail, courseID, actorEmail))
	return nil
}

func (svc *Service) RemoveParent(ctx context.Context, courseID, studentEmail, parentEmail, actorEmail string) error {
	if err := svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	linked, err := svc.repo.HasParentLink(ctx, courseID, parentEmail, studentEmail)
	if err != nil {
		return err
	}
	if !linked {
		return core.NewNotFoundError("parent is not assigned to this student at this course")
	}
	return svc.repo.RemoveParentLink(ctx, courseID, parentEmail, studentEmail)
}

// assertEnrolledStudent checks an actual Student membership for a target
// user; unlike CheckStudentAccess the global admin flag does not satisfy it.
func (svc *Service) assertEnrolledStudent(ctx context.Context, courseID, studentEmail string) error {
	if _, err := svc.users.GetUserByEmail(ctx, studentEmail); err != nil {
		return err
	}
	enrolled, err := svc.repo.HasMembership(ctx, courseID, studentEmail, RoleStudent)
	if err != nil {
		return err
	}
	if !enrolled {
		return core.NewForbiddenError("provided user is not a student at this course")
	}
	return nil
}

func (svc *Service) sendInviteMail(ctx context.Context, courseID, email, roleLabel string) {
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		svc.logger.Error("loading course for invite mail", err)
		return
	}
	usr, err := svc.users.GetUserByEmail(ctx, email)
	if err != nil {
		svc.logger.Error("loading user for invite mail", err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: fmt.Sprintf("You joined %s", crs.Title),
		BodyStr: fmt.Sprintf("Hi %s,\n\nYou have been added to the course %q as %s.\n", usr.Name, crs.Title, roleLabel),
	})
}

// sortMembers orders by display name then email; used by grade rows too.
func sortMembers(members []Member) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].Email < members[j].Email
	})
}
