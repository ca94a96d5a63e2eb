package course

import (
	"context"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrCourseNotFound     = core.NewNotFoundError("no course with provided ID")
	ErrSectionNotFound    = core.NewNotFoundError("no section with provided ID in this course")
	ErrContentNotFound    = core.NewNotFoundError("no content with provided ID in this course")
	ErrSubmissionNotFound = core.NewNotFoundError("the given student has not made a submission to this assignment")
	ErrAttachmentNotFound = core.NewNotFoundError("attachment not found")
)

// Repository is the single storage collaborator shared by the role resolver,
// access predicates, submission state machine, cascading engine and grade
// aggregation. Implementations must honor read-your-writes within the
// caller's transaction.
type Repository interface {
	// Atomically runs fn against a view of the repository whose writes either
	// all commit or all roll back; fn's error aborts the whole unit.
	Atomically(ctx context.Context, fn func(Repository) error) error

	// courses
	CreateCourse(ctx context.Context, crs Course) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	UpdateCourseInstructor(ctx context.Context, id, instructorEmail string) error
	DeleteCourse(ctx context.Context, id string) error // course row only; cascading is planned by the engine
	QueryCoursesByUser(ctx context.Context, email string) ([]Course, error)
	// QuerySingleTeacherCourses returns ids of courses where email is the only teacher.
	QuerySingleTeacherCourses(ctx context.Context, email string) ([]string, error)

	// memberships
	AddMembership(ctx context.Context, m Membership) error
	RemoveMembership(ctx context.Context, courseID, email string, kind RoleKind) error
	HasMembership(ctx context.Context, courseID, email string, kind RoleKind) (bool, error)
	HasParentLink(ctx context.Context, courseID, parentEmail, studentEmail string) (bool, error)
	CountTeachers(ctx context.Context, courseID string) (int, error)
	QueryMembers(ctx context.Context, courseID string, kind RoleKind) ([]Member, error)
	QueryChildren(ctx context.Context, courseID, parentEmail string) ([]Member, error)
	QueryParents(ctx context.Context, courseID, studentEmail string) ([]Member, error)
	// RemoveParentLink deletes one (parent, student) link in courseID.
	RemoveParentLink(ctx context.Context, courseID, parentEmail, studentEmail string) error
	// RemoveParentLinks deletes every parent membership referencing studentEmail in courseID.
	RemoveParentLinks(ctx context.Context, courseID, studentEmail string) error
	RemoveCourseMemberships(ctx context.Context, courseID string) error
	// RemoveUserMemberships deletes all memberships held by email in any course,
	// plus parent links that reference email as the student.
	RemoveUserMemberships(ctx context.Context, email string) error

	// sections
	CreateSection(ctx context.Context, s Section) (Section, error) // assigns id and next position
	GetSection(ctx context.Context, courseID string, id int) (Section, error)
	QuerySections(ctx context.Context, courseID string) ([]Section, error) // ordered by position
	RemoveCourseSections(ctx context.Context, courseID string) error

	// content (materials & assignments)
	CreateContent(ctx context.Context, c Content) (Content, error) // assigns id
	GetContent(ctx context.Context, courseID string, kind ContentKind, id int) (Content, error)
	QueryContents(ctx context.Context, courseID string, kind ContentKind) ([]Content, error) // creation order
	RemoveContent(ctx context.Context, courseID string, kind ContentKind, id int) error
	RemoveCourseContents(ctx context.Context, courseID string) error
	// ClearContentAuthor soft-orphans all content authored by email.
	ClearContentAuthor(ctx context.Context, email string) error

	// submissions
	GetSubmission(ctx context.Context, courseID string, assignmentID int, studentEmail string) (Submission, error)
	CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
	UpdateSubmissionText(ctx context.Context, courseID string, assignmentID int, studentEmail, text string) error
	// SetSubmissionGrade sets (grade, comment, grader) atomically.
	SetSubmissionGrade(ctx context.Context, courseID string, assignmentID int, studentEmail string, grade int, comment, graderEmail string) error
	QuerySubmissions(ctx context.Context, courseID string, assignmentID int) ([]Submission, error)
	QueryCourseSubmissions(ctx context.Context, courseID string) ([]Submission, error)
	RemoveAssignmentSubmissions(ctx context.Context, courseID string, assignmentID int) error
	RemoveCourseSubmissions(ctx context.Context, courseID string) error
	RemoveStudentSubmissions(ctx context.Context, studentEmail string) error

	// personalization (per-member course view settings)
	SetCourseEmoji(ctx context.Context, courseID, userEmail string, emoji int) error
	// UpdateCourseOrder stores each course's list position for userEmail.
	UpdateCourseOrder(ctx context.Context, userEmail string, courseIDs []string) error
	QueryPersonalizations(ctx context.Context, userEmail string) ([]Personalization, error)
	RemovePersonalization(ctx context.Context, courseID, userEmail string) error
	RemoveCoursePersonalizations(ctx context.Context, courseID string) error
	RemoveUserPersonalizations(ctx context.Context, userEmail string) error

	// attachments (metadata only; blobs live in core.FileStorage)
	AddAttachment(ctx context.Context, att Attachment) (Attachment, error)
	GetAttachment(ctx context.Context, id string) (Attachment, error)
	QueryAttachments(ctx context.Context, courseID string, owner AttachmentOwner, contentID int, studentEmail string) ([]Attachment, error)
	QueryCourseAttachments(ctx context.Context, courseID string) ([]Attachment, error)
	// QueryStudentAttachments returns the submission attachments uploaded by
	// studentEmail across all courses.
	QueryStudentAttachments(ctx context.Context, studentEmail string) ([]Attachment, error)
	RemoveAttachments(ctx context.Context, courseID string, owner AttachmentOwner, contentID int) error
	RemoveCourseAttachments(ctx context.Context, courseID string) error
	RemoveStudentAttachments(ctx context.Context, studentEmail string) error
}
