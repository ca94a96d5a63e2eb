package course

import (
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// Course-scoped roles. A user holds at most one of these per course; the
// global admin flag lives on core/user.User instead.
type RoleKind string

const (
	RoleTeacher RoleKind = "teacher"
	RoleStudent RoleKind = "student"
	RoleParent  RoleKind = "parent"
)

type Course struct {
	ID         string    `json:"course_id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Org        string    `json:"org,omitempty" db:"org"`
	Instructor string    `json:"instructor" db:"instructor"` // primary instructor email; always also a teacher
	CreatedAt  time.Time `json:"created_at" db:"created_at"` // UTC
}

// Membership binds a user to a course with one course-scoped role.
// StudentEmail is only set on parent memberships and names the student the
// parent is linked to.
type Membership struct {
	CourseID     string      `json:"course_id" db:"course_id"`
	UserEmail    string      `json:"email" db:"user_email"`
	Kind         RoleKind    `json:"kind" db:"kind"`
	StudentEmail null.String `json:"student_email,omitempty" db:"student_email"`
}

// Personalization is one member's private view settings for a course: an
// optional emoji pick and the course's position in their home listing.
// Other members never see it.
type Personalization struct {
	CourseID  string   `json:"course_id" db:"course_id"`
	UserEmail string   `json:"-" db:"user_email"`
	Emoji     null.Int64 `json:"emoji" db:"emoji"`
	Position  int      `json:"position" db:"position"`
}

// UserCourse is a course as one member sees it: the shared course row plus
// their personal emoji.
type UserCourse struct {
	Course
	Emoji null.Int64 `json:"emoji"`
}

// Member is a (email, display name) projection used by course listings.
type Member struct {
	Email string `json:"email" db:"email"`
	Name  string `json:"name" db:"name"`
}

// Section is an ordered grouping of content within a course; Position is
// unique per course.
type Section struct {
	CourseID string `json:"course_id" db:"course_id"`
	ID       int    `json:"section_id" db:"id"`
	Title    string `json:"title" db:"title"`
	Position int    `json:"position" db:"position"`
}

// ContentKind discriminates the two content item flavors.
type ContentKind string

const (
	KindMaterial   ContentKind = "material"
	KindAssignment ContentKind = "assignment"
)

// Content is a course content item: a material or an assignment. Author is
// nulled (never cascaded) when the authoring user is removed.
type Content struct {
	CourseID    string      `json:"course_id" db:"course_id"`
	ID          int         `json:"id" db:"id"`
	Kind        ContentKind `json:"kind" db:"kind"`
	SectionID   null.Int64    `json:"section_id,omitempty" db:"section_id"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description" db:"description"`
	Author      null.String `json:"author" db:"author"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
}

// SubmissionState models the assignment submission lifecycle.
// Unsubmitted is the absence of a row; Graded is terminal.
type SubmissionState int

const (
	Unsubmitted SubmissionState = iota
	Submitted
	Graded
)

func (s SubmissionState) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Graded:
		return "graded"
	}
	return "unsubmitted"
}

// Submission is a student's attempt at an assignment, keyed by
// (course, assignment, student). (Grade, GradedBy) are either both null or
// both set; once set the submission is immutable to the student.
type Submission struct {
	CourseID     string      `json:"course_id" db:"course_id"`
	AssignmentID int         `json:"assignment_id" db:"assignment_id"`
	StudentEmail string      `json:"student_email" db:"student_email"`
	Text         string      `json:"text" db:"text"`
	SubmittedAt  time.Time   `json:"submitted_at" db:"submitted_at"` // UTC
	ModifiedAt   time.Time   `json:"modified_at" db:"modified_at"`   // UTC
	Grade        null.Int64    `json:"grade" db:"grade"`
	GradeComment null.String `json:"grade_comment" db:"grade_comment"`
	GradedBy     null.String `json:"graded_by" db:"graded_by"`
}

func (s Submission) IsGraded() bool { return s.Grade.Valid }

func (s Submission) State() SubmissionState {
	if s.IsGraded() {
		return Graded
	}
	return Submitted
}

// AttachmentOwner names the entity an attachment belongs to.
type AttachmentOwner string

const (
	OwnerMaterial   AttachmentOwner = "material"
	OwnerAssignment AttachmentOwner = "assignment"
	OwnerSubmission AttachmentOwner = "submission"
)

// Attachment references an opaque blob held by the file-storage collaborator.
// ContentID is the owning material/assignment id; StudentEmail is only set
// for submission attachments.
type Attachment struct {
	ID           string          `json:"file_id" db:"id"` // blob id in file storage
	CourseID     string          `json:"course_id" db:"course_id"`
	Owner        AttachmentOwner `json:"owner" db:"owner"`
	ContentID    int             `json:"content_id" db:"content_id"`
	StudentEmail null.String     `json:"student_email,omitempty" db:"student_email"`
	Filename     string          `json:"filename" db:"filename"`
	UploadedAt   time.Time       `json:"uploaded_at" db:"uploaded_at"` // UTC
}

// ParseContentID parses a caller-provided material/assignment/section id.
func ParseContentID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, core.NewInvalidArgumentError("ID should be integer")
	}
	return id, nil
}

// Input structs

type NewCourse struct {
	Title string `json:"title" validate:"required"`
	Org   string `json:"org"`
}

func (nc *NewCourse) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.Org = core.CleanString(nc.Org)
	return core.Validate.Struct(nc)
}

type NewSection struct {
	Title string `json:"title" validate:"required"`
}

func (ns *NewSection) Validate() error {
	ns.Title = core.CleanString(ns.Title)
	return core.Validate.Struct(ns)
}

// NewContent carries a new material or assignment. SectionID is an optional
// section id string; empty means unsectioned.
type NewContent struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	SectionID   string `json:"section_id"`
}

func (nc *NewContent) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.SectionID = core.CleanString(nc.SectionID)
	return core.Validate.Struct(nc)
}

type NewSubmission struct {
	Text string `json:"text"`
}

func (ns *NewSubmission) Validate() error { return core.Validate.Struct(ns) }

type CourseEmojiInput struct {
	Emoji int `json:"emoji" validate:"min=0,courseemoji"`
}

func (ei *CourseEmojiInput) Validate() error { return core.Validate.Struct(ei) }

// CourseOrderInput carries a full replacement ordering of the caller's
// course list.
type CourseOrderInput struct {
	CourseIDs []string `json:"course_ids" validate:"required"`
}

func (oi *CourseOrderInput) Validate() error { return core.Validate.Struct(oi) }

type GradeInput struct {
	Grade   int    `json:"grade" validate:"min=0,gradescale"`
	Comment string `json:"comment"`
}

func (gi *GradeInput) Validate() error {
	gi.Comment = core.CleanString(gi.Comment)
	return core.Validate.Struct(gi)
}
