package pgdb

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/course"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type courseRepository struct {
	db   querier
	root *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sql.DB) course.Repository {
	xdb := sqlx.NewDb(db, "postgres")
	return &courseRepository{db: xdb, root: xdb}
}

func (repo *courseRepository) Atomically(ctx context.Context, fn func(course.Repository) error) error {
	tx, err := repo.root.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(&courseRepository{db: tx, root: repo.root}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// courses

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO course (id, title, org, instructor, created_at) VALUES ($1, $2, $3, $4, $5)`,
		crs.ID, crs.Title, crs.Org, crs.Instructor, crs.CreatedAt,
	)
	return crs, errors.Wrap(err, "creating course")
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var crs course.Course
	err := repo.db.GetContext(ctx, &crs, `SELECT id, title, org, instructor, created_at FROM course WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return course.Course{}, course.ErrCourseNotFound
	}
	return crs, errors.Wrap(err, "getting course")
}

func (repo *courseRepository) UpdateCourseInstructor(ctx context.Context, id, instructorEmail string) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE course SET instructor = $2 WHERE id = $1`, id, instructorEmail)
	if err != nil {
		return errors.Wrap(err, "updating course instructor")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrCourseNotFound
	}
	return nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM course WHERE id = $1`, id)
	return errors.Wrap(err, "deleting course")
}

func (repo *courseRepository) QueryCoursesByUser(ctx context.Context, email string) ([]course.Course, error) {
	var courses []course.Course
	err := repo.db.SelectContext(ctx, &courses,
		`SELECT DISTINCT c.id, c.title, c.org, c.instructor, c.created_at
		 FROM course c JOIN membership m ON m.course_id = c.id
		 WHERE m.user_email = $1 ORDER BY c.created_at`, email)
	return courses, errors.Wrap(err, "querying courses by user")
}

func (repo *courseRepository) QuerySingleTeacherCourses(ctx context.Context, email string) ([]string, error) {
	var ids []string
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT course_id FROM membership WHERE kind = 'teacher'
		 GROUP BY course_id HAVING COUNT(*) = 1 AND MIN(user_email) = $1`, email)
	return ids, errors.Wrap(err, "querying single-teacher courses")
}

// memberships

func (repo *courseRepository) AddMembership(ctx context.Context, m course.Membership) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO membership (course_id, user_email, kind, student_email) VALUES ($1, $2, $3, $4)`,
		m.CourseID, m.UserEmail, m.Kind, m.StudentEmail,
	)
	return errors.Wrap(err, "adding membership")
}

func (repo *courseRepository) RemoveMembership(ctx context.Context, courseID, email string, kind course.RoleKind) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM membership WHERE course_id = $1 AND user_email = $2 AND kind = $3`, courseID, email, kind)
	return errors.Wrap(err, "removing membership")
}

func (repo *courseRepository) HasMembership(ctx context.Context, courseID, email string, kind course.RoleKind) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM membership WHERE course_id = $1 AND user_email = $2 AND kind = $3)`,
		courseID, email, kind)
	return exists, errors.Wrap(err, "checking membership")
}

func (repo *courseRepository) HasParentLink(ctx context.Context, courseID, parentEmail, studentEmail string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM membership
		 WHERE course_id = $1 AND user_email = $2 AND kind = 'parent' AND student_email = $3)`,
		courseID, parentEmail, studentEmail)
	return exists, errors.Wrap(err, "checking parent link")
}

func (repo *courseRepository) CountTeachers(ctx context.Context, courseID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM membership WHERE course_id = $1 AND kind = 'teacher'`, courseID)
	return n, errors.Wrap(err, "counting teachers")
}

func (repo *courseRepository) QueryMembers(ctx context.Context, courseID string, kind course.RoleKind) ([]course.Member, error) {
	var members []course.Member
	err := repo.db.SelectContext(ctx, &members,
		`SELECT DISTINCT u.email, u.name FROM "user" u
		 JOIN membership m ON m.user_email = u.email
		 WHERE m.course_id = $1 AND m.kind = $2`, courseID, kind)
	return members, errors.Wrap(err, "querying members")
}

func (repo *courseRepository) QueryChildren(ctx context.Context, courseID, parentEmail string) ([]course.Member, error) {
	var children []course.Member
	err := repo.db.SelectContext(ctx, &children,
		`SELECT u.email, u.name FROM "user" u
		 JOIN membership m ON m.student_email = u.email
		 WHERE m.course_id = $1 AND m.user_email = $2 AND m.kind = 'parent'`, courseID, parentEmail)
	return children, errors.Wrap(err, "querying children")
}

func (repo *courseRepository) QueryParents(ctx context.Context, courseID, studentEmail string) ([]course.Member, error) {
	var parents []course.Member
	err := repo.db.SelectContext(ctx, &parents,
		`SELECT u.email, u.name FROM "user" u
		 JOIN membership m ON m.user_email = u.email
		 WHERE m.course_id = $1 AND m.kind = 'parent' AND m.student_email = $2`, courseID, studentEmail)
	return parents, errors.Wrap(err, "querying parents")
}

func (repo *courseRepository) RemoveParentLink(ctx context.Context, courseID, parentEmail, studentEmail string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM membership
		 WHERE course_id = $1 AND user_email = $2 AND kind = 'parent' AND student_email = $3`,
		courseID, parentEmail, studentEmail)
	return errors.Wrap(err, "removing parent link")
}

func (repo *courseRepository) RemoveParentLinks(ctx context.Context, courseID, studentEmail string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM membership WHERE course_id = $1 AND kind = 'parent' AND student_email = $2`,
		courseID, studentEmail)
	return errors.Wrap(err, "removing parent links")
}

func (repo *courseRepository) RemoveCourseMemberships(ctx context.Context, courseID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM membership WHERE course_id = $1`, courseID)
	return errors.Wrap(err, "removing course memberships")
}

func (repo *courseRepository) RemoveUserMemberships(ctx context.Context, email string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM membership WHERE user_email = $1 OR student_email = $1`, email)
	return errors.Wrap(err, "removing user memberships")
}

// sections

func (repo *courseRepository) CreateSection(ctx context.Context, s course.Section) (course.Section, error) {
	err := repo.db.GetContext(ctx, &s.Position,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM section WHERE course_id = $1`, s.CourseID)
	if err != nil {
		return course.Section{}, errors.Wrap(err, "creating section")
	}
	err = repo.db.GetContext(ctx, &s.ID,
		`INSERT INTO section (course_id, title, position) VALUES ($1, $2, $3) RETURNING id`,
		s.CourseID, s.Title, s.Position)
	return s, errors.Wrap(err, "creating section")
}

func (repo *courseRepository) GetSection(ctx context.Context, courseID string, id int) (course.Section, error) {
	var s course.Section
	err := repo.db.GetContext(ctx, &s,
		`SELECT id, course_id, title, position FROM section WHERE course_id = $1 AND id = $2`, courseID, id)
	if err == sql.ErrNoRows {
		return course.Section{}, course.ErrSectionNotFound
	}
	return s, errors.Wrap(err, "getting section")
}

func (repo *courseRepository) QuerySections(ctx context.Context, courseID string) ([]course.Section, error) {
	var sections []course.Section
	err := repo.db.SelectContext(ctx, &sections,
		`SELECT id, course_id, title, position FROM section WHERE course_id = $1 ORDER BY position`, courseID)
	return sections, errors.Wrap(err, "querying sections")
}

func (repo *courseRepository) RemoveCourseSections(ctx context.Context, courseID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM section WHERE course_id = $1`, courseID)
	return errors.Wrap(err, "removing course sections")
}

// content

const contentColumns = `id, course_id, kind, section_id, title, description, author, created_at`

func (repo *courseRepository) CreateContent(ctx context.Context, c course.Content) (course.Content, error) {
	err := repo.db.GetContext(ctx, &c.ID,
		`INSERT INTO content (course_id, kind, section_id, title, description, author, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		c.CourseID, c.Kind, c.SectionID, c.Title, c.Description, c.Author, c.CreatedAt)
	return c, errors.Wrap(err, "creating content")
}

func (repo *courseRepository) GetContent(ctx context.Context, courseID string, kind course.ContentKind, id int) (course.Content, error) {
	var c course.Content
	err := repo.db.GetContext(ctx, &c,
		`SELECT `+contentColumns+` FROM content WHERE course_id = $1 AND kind = $2 AND id = $3`,
		courseID, kind, id)
	if err == sql.ErrNoRows {
		return course.Content{}, course.ErrContentNotFound
	}
	return c, errors.Wrap(err, "getting content")
}

func (repo *courseRepository) QueryContents(ctx context.Context, courseID string, kind course.ContentKind) ([]course.Content, error) {
	var contents []course.Content
	err := repo.db.SelectContext(ctx, &contents,
		`SELECT `+contentColumns+` FROM content WHERE course_id = $1 AND kind = $2 ORDER BY id`,
		courseID, kind)
	return contents, errors.Wrap(err, "querying contents")
}

func (repo *courseRepository) RemoveContent(ctx context.Context, courseID string, kind course.ContentKind, id int) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM content WHERE course_id = $1 AND kind = $2 AND id = $3`, courseID, kind, id)
	return errors.Wrap(err, "removing content")
}

func (repo *courseRepository) RemoveCourseContents(ctx context.Context, courseID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM content WHERE course_id = $1`, courseID)
	return errors.Wrap(err, "removing course contents")
}

func (repo *courseRepository) ClearContentAuthor(ctx context.Context, email string) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE content SET author = NULL WHERE author = $1`, email)
	return errors.Wrap(err, "clearing content author")
}

// submissions

const submissionColumns = `course_id, assignment_id, student_email, text, submitted_at, modified_at, grade, grade_comment, graded_by`

func (repo *courseRepository) GetSubmission(ctx context.Context, courseID string, assignmentID int, studentEmail string) (course.Submission, error) {
	var sub course.Submission
	err := repo.db.GetContext(ctx, &sub,
		`SELECT `+submissionColumns+` FROM submission
		 WHERE course_id = $1 AND assignment_id = $2 AND student_email = $3`,
		courseID, assignmentID, studentEmail)
	if err == sql.ErrNoRows {
		return course.Submission{}, course.ErrSubmissionNotFound
	}
	return sub, errors.Wrap(err, "getting submission")
}

func (repo *courseRepository) CreateSubmission(ctx context.Context, sub course.Submission) (course.Submission, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO submission (course_id, assignment_id, student_email, text, submitted_at, modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.CourseID, sub.AssignmentID, sub.StudentEmail, sub.Text, sub.SubmittedAt, sub.ModifiedAt)
	return sub, errors.Wrap(err, "creating submission")
}

func (repo *courseRepository) UpdateSubmissionText(ctx context.Context, courseID string, assignmentID int, studentEmail, text string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE submission SET text = $4, modified_at = NOW() AT TIME ZONE 'utc'
		 WHERE course_id = $1 AND assignment_id = $2 AND student_email = $3`,
		courseID, assignmentID, studentEmail, text)
	if err != nil {
		return errors.Wrap(err, "updating submission text")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrSubmissionNotFound
	}
	return nil
}

func (repo *courseRepository) SetSubmissionGrade(ctx context.Context, courseID string, assignmentID int, studentEmail string, grade int, comment, graderEmail string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE submission SET grade = $4, grade_comment = $5, graded_by = $6
		 WHERE course_id = $1 AND assignment_id = $2 AND student_email = $3`,
		courseID, assignmentID, studentEmail, grade, comment, graderEmail)
	if err != nil {
		return errors.Wrap(err, "setting submission grade")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrSubmissionNotFound
	}
	return nil
}

func (repo *courseRepository) QuerySubmissions(ctx context.Context, courseID string, assignmentID int) ([]course.Submission, error) {
	var subs []course.Submission
	err := repo.db.SelectContext(ctx, &subs,
		`SELECT `+submissionColumns+` FROM submission WHERE course_id = $1 AND assignment_id = $2`,
		courseID, assignmentID)
	return subs, errors.Wrap(err, "querying submissions")
}

func (repo *courseRepository) QueryCourseSubmissions(ctx context.Context, courseID string) ([]course.Submission, error) {
	var subs []course.Submission
	err := repo.db.SelectContext(ctx, &subs,
		`SELECT `+submissionColumns+` FROM submission WHERE course_id = $1`, courseID)
	return subs, errors.Wrap(err, "querying course submissions")
}

func (repo *courseRepository) RemoveAssignmentSubmissions(ctx context.Context, courseID string, assignmentID int) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM submission WHERE course_id = $1 AND assignment_id = $2`, courseID, assignmentID)
	return errors.Wrap(err, "removing assignment submissions")
}

func (repo *courseRepository) RemoveCourseSubmissions(ctx context.Context, courseID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM submission WHERE course_id = $1`, courseID)
	return errors.Wrap(err, "removing course submissions")
}

func (repo *courseRepository) RemoveStudentSubmissions(ctx context.Context, studentEmail string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM submission WHERE student_email = $1`, studentEmail)
	return errors.Wrap(err, "removing student submissions")
}

// personalization

func (repo *courseRepository) SetCourseEmoji(ctx context.Context, courseID, userEmail string, emoji int) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO personalization (course_id, user_email, emoji) VALUES ($1, $2, $3)
		 ON CONFLICT (course_id, user_email) DO UPDATE SET emoji = EXCLUDED.emoji`,
		courseID, userEmail, emoji)
	return errors.Wrap(err, "setting course emoji")
}

func (repo *courseRepository) UpdateCourseOrder(ctx context.Context, userEmail string, courseIDs []string) error {
	for pos, courseID := range courseIDs {
		_, err := repo.db.ExecContext(ctx,
			`INSERT INTO personalization (course_id, user_email, position) VALUES ($1, $2, $3)
			 ON CONFLICT (course_id, user_email) DO UPDATE SET position = EXCLUDED.position`,
			courseID, userEmail, pos)
		if err != nil {
			return errors.Wrap(err, "updating course order")
		}
	}
	return nil
}

func (repo *courseRepository) QueryPersonalizations(ctx context.Context, userEmail string) ([]course.Personalization, error) {
	var prefs []course.Personalization
	err := repo.db.SelectContext(ctx, &prefs,
		`SELECT course_id, user_email, emoji, position FROM personalization
		 WHERE user_email = $1 ORDER BY position`, userEmail)
	return prefs, errors.Wrap(err, "querying personalizations")
}

func (repo *courseRepository) RemovePersonalization(ctx context.Context, courseID, userEmail string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM personalization WHERE course_id = $1 AND user_email = $2`, courseID, userEmail)
	return errors.Wrap(err, "removing personalization")
}

func (repo *courseRepository) RemoveCoursePersonalizations(ctx context.Context, courseID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM personalization WHERE course_id = $1`, courseID)
	return errors.Wrap(err, "removing course personalizations")
}

func (repo *courseRepository) RemoveUserPersonalizations(ctx context.Context, userEmail string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM personalization WHERE user_email = $1`, userEmail)
	return errors.Wrap(err, "removing user personalizations")
}

// attachments

const attachmentColumns = `id, course_id, owner, content_id, student_email, filename, uploaded_at`

func (repo *courseRepository) AddAttachment(ctx context.Context, att course.Attachment) (course.Attachment, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO attachment (`+attachmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		att.ID, att.CourseID, att.Owner, att.ContentID, att.StudentEmail, att.Filename, att.UploadedAt)
	return att, errors.Wrap(err, "adding attachment")
}

func (repo *courseRepository) GetAttachment(ctx context.Context, id string) (course.Attachment, error) {
	var att course.Attachment
	err := repo.db.GetContext(ctx, &att,
		`SELECT `+attachmentColumns+` FROM attachment WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return course.Attachment{}, course.ErrAttachmentNotFound
	}
	return att, errors.Wrap(err, "getting attachment")
}

func (repo *courseRepository) QueryAttachments(ctx context.Context, courseID string, owner course.AttachmentOwner, contentID int, studentEmail string) ([]course.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachment
		 WHERE course_id = $1 AND owner = $2 AND content_id = $3`
	args := []interface{}{courseID, owner, contentID}
	if studentEmail != "" {
		query += ` AND student_email = $4`
		args = append(args, studentEmail)
	}
	query += ` ORDER BY uploaded_at`
	var atts []course.Attachment
	err := repo.db.SelectContext(ctx, &atts, query, args...)
	return atts, errors.Wrap(err, "querying attachments")
}

func (repo *courseRepository) QueryCourseAttachments(ctx context.Context, courseID string) ([]course.Attachment, error) {
	var atts []course.Attachment
	err := repo.db.SelectContext(ctx, &atts,
		`SELECT `+attachmentColumns+` FROM attachment WHERE course_id = $1 ORDER BY uploaded_at`, courseID)
	return atts, errors.Wrap(err, "querying course attachments")
}

func (repo *courseRepository) QueryStudentAttachments(ctx context.Context, studentEmail string) ([]course.Attachment, error) {
	var atts []course.Attachment
	err := repo.db.SelectContext(ctx, &atts,
		`SELECT `+attachmentColumns+` FROM attachment
		 WHERE owner = $1 AND student_email = $2 ORDER BY uploaded_at`,
		course.OwnerSubmission, studentEmail)
	return atts, errors.Wrap(err, "querying student attachments")
}

func (repo *courseRepository) RemoveAttachments(ctx context.Context, courseID string, owner course.AttachmentOwner, contentID int) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM attachment WHERE course_id = $1 AND owner = $2 AND content_id = $3`,
		courseID, owner, contentID)
	return errors.Wrap(err, "removing attachments")
}

func (repo *courseRepository) RemoveCourseAttachments(ctx context.Context, courseID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM attachment WHERE course_id = $1`, courseID)
	return errors.Wrap(err, "removing course attachments")
}

func (repo *courseRepository) RemoveStudentAttachments(ctx context.Context, studentEmail string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM attachment WHERE owner = $1 AND student_email = $2`,
		course.OwnerSubmission, studentEmail)
	return errors.Wrap(err, "removing student attachments")
}
