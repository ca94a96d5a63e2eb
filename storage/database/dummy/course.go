package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/shule/core/course"
)

type courseRepository struct {
	db    *courseTables
	users *userTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course, users: db.user}
}

// member resolves the display name of an email; the user lock is always
// taken after the course lock.
func (repo *courseRepository) member(email string) course.Member {
	repo.users.RLock()
	defer repo.users.RUnlock()

	m := course.Member{Email: email}
	if usr, ok := repo.users.table[email]; ok {
		m.Name = usr.Name
	}
	return m
}

// Atomically snapshots the course tables, runs fn and restores the snapshot
// if fn fails. Concurrent writers are not isolated from fn's intermediate
// steps; the engine only needs the all-or-nothing guarantee.
func (repo *courseRepository) Atomically(ctx context.Context, fn func(course.Repository) error) error {
	snap := repo.db.snapshot()
	if err := fn(repo); err != nil {
		repo.db.restore(snap)
		return err
	}
	return nil
}

// courses

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) UpdateCourseInstructor(ctx context.Context, id, instructorEmail string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.ErrCourseNotFound
	}
	crs.Instructor = instructorEmail
	return nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) QueryCoursesByUser(ctx context.Context, email string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	var courses []course.Course
	for _, m := range repo.db.memberships {
		if m.UserEmail == email && !seen[m.CourseID] {
			seen[m.CourseID] = true
			if crs, ok := repo.db.courses[m.CourseID]; ok {
				courses = append(courses, *crs)
			}
		}
	}
	return courses, nil
}

func (repo *courseRepository) QuerySingleTeacherCourses(ctx context.Context, email string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	teachers := make(map[string][]string)
	for _, m := range repo.db.memberships {
		if m.Kind == course.RoleTeacher {
			teachers[m.CourseID] = append(teachers[m.CourseID], m.UserEmail)
		}
	}
	var ids []string
	for courseID, emails := range teachers {
		if len(emails) == 1 && emails[0] == email {
			ids = append(ids, courseID)
		}
	}
	return ids, nil
}

// memberships

func (repo *courseRepository) AddMembership(ctx context.Context, m course.Membership) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.memberships = append(repo.db.memberships, m)
	return nil
}

func (repo *courseRepository) RemoveMembership(ctx context.Context, courseID, email string, kind course.RoleKind) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterMemberships(func(m course.Membership) bool {
		return !(m.CourseID == courseID && m.UserEmail == email && m.Kind == kind)
	})
	return nil
}

// filterMemberships keeps memberships for which keep returns true.
// Callers must hold the write lock.
func (repo *courseRepository) filterMemberships(keep func(course.Membership) bool) {
	kept := repo.db.memberships[:0]
	for _, m := range repo.db.memberships {
		if keep(m) {
			kept = append(kept, m)
		}
	}
	repo.db.memberships = kept
}

func (repo *courseRepository) HasMembership(ctx context.Context, courseID, email string, kind course.RoleKind) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.db.memberships {
		if m.CourseID == courseID && m.UserEmail == email && m.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) HasParentLink(ctx context.Context, courseID, parentEmail, studentEmail string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.db.memberships {
		if m.CourseID == courseID && m.UserEmail == parentEmail && m.Kind == course.RoleParent &&
			m.StudentEmail.String == studentEmail {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) CountTeachers(ctx context.Context, courseID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, m := range repo.db.memberships {
		if m.CourseID == courseID && m.Kind == course.RoleTeacher {
			n++
		}
	}
	return n, nil
}

func (repo *courseRepository) QueryMembers(ctx context.Context, courseID string, kind course.RoleKind) ([]course.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var members []course.Member
	seen := make(map[string]bool)
	for _, m := range repo.db.memberships {
		if m.CourseID == courseID && m.Kind == kind && !seen[m.UserEmail] {
			seen[m.UserEmail] = true
			members = append(members, repo.member(m.UserEmail))
		}
	}
	return members, nil
}

func (repo *courseRepository) QueryChildren(ctx context.Context, courseID, parentEmail string) ([]course.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var children []course.Member
	for _, m := range repo.db.memberships {
		if m.CourseID == courseID && m.UserEmail == parentEmail && m.Kind == course.RoleParent && m.StudentEmail.Valid {
			children = append(children, repo.member(m.StudentEmail.String))
		}
	}
	return children, nil
}

func (repo *courseRepository) QueryParents(ctx context.Context, courseID, studentEmail string) ([]course.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var parents []course.Member
	for _, m := range repo.db.memberships {
		if m.CourseID == courseID && m.Kind == course.RoleParent && m.StudentEmail.String == studentEmail {
			parents = append(parents, repo.member(m.UserEmail))
		}
	}
	return parents, nil
}

func (repo *courseRepository) RemoveParentLink(ctx context.Context, courseID, parentEmail, studentEmail string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterMemberships(func(m course.Membership) bool {
		return !(m.CourseID == courseID && m.UserEmail == parentEmail && m.Kind == course.RoleParent &&
			m.StudentEmail.String == studentEmail)
	})
	return nil
}

func (repo *courseRepository) RemoveParentLinks(ctx context.Context, courseID, studentEmail string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterMemberships(func(m course.Membership) bool {
		return !(m.CourseID == courseID && m.Kind == course.RoleParent && m.StudentEmail.String == studentEmail)
	})
	return nil
}

func (repo *courseRepository) RemoveCourseMemberships(ctx context.Context, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterMemberships(func(m course.Membership) bool { return m.CourseID != courseID })
	return nil
}

func (repo *courseRepository) RemoveUserMemberships(ctx context.Context, email string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterMemberships(func(m course.Membership) bool {
		return m.UserEmail != email && m.StudentEmail.String != email
	})
	return nil
}

// sections

func (repo *courseRepository) CreateSection(ctx context.Context, s course.Section) (course.Section, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.idCount++
	s.ID = repo.db.idCount
	s.Position = len(repo.db.sections[s.CourseID]) + 1
	repo.db.sections[s.CourseID] = append(repo.db.sections[s.CourseID], s)
	return s, nil
}

func (repo *courseRepository) GetSection(ctx context.Context, courseID string, id int) (course.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.sections[courseID] {
		if s.ID == id {
			return s, nil
		}
	}
	return course.Section{}, course.ErrSectionNotFound
}

func (repo *courseRepository) QuerySections(ctx context.Context, courseID string) ([]course.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sections := make([]course.Section, len(repo.db.sections[courseID]))
	copy(sections, repo.db.sections[courseID])
	return sections, nil
}

func (repo *courseRepository) RemoveCourseSections(ctx context.Context, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.sections, courseID)
	return nil
}

// content

func (repo *courseRepository) CreateContent(ctx context.Context, c course.Content) (course.Content, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.idCount++
	c.ID = repo.db.idCount
	repo.db.contents[c.CourseID] = append(repo.db.contents[c.CourseID], c)
	return c, nil
}

func (repo *courseRepository) GetContent(ctx context.Context, courseID string, kind course.ContentKind, id int) (course.Content, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.contents[courseID] {
		if c.ID == id && c.Kind == kind {
			return c, nil
		}
	}
	return course.Content{}, course.ErrContentNotFound
}

func (repo *courseRepository) QueryContents(ctx context.Context, courseID string, kind course.ContentKind) ([]course.Content, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var contents []course.Content
	for _, c := range repo.db.contents[courseID] {
		if c.Kind == kind {
			contents = append(contents, c)
		}
	}
	return contents, nil
}

func (repo *courseRepository) RemoveContent(ctx context.Context, courseID string, kind course.ContentKind, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	kept := repo.db.contents[courseID][:0]
	for _, c := range repo.db.contents[courseID] {
		if !(c.ID == id && c.Kind == kind) {
			kept = append(kept, c)
		}
	}
	repo.db.contents[courseID] = kept
	return nil
}

func (repo *courseRepository) RemoveCourseContents(ctx context.Context, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.contents, courseID)
	return nil
}

func (repo *courseRepository) ClearContentAuthor(ctx context.Context, email string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for courseID, contents := range repo.db.contents {
		for i, c := range contents {
			if c.Author.String == email {
				c.Author.Valid = false
				c.Author.String = ""
				contents[i] = c
			}
		}
		repo.db.contents[courseID] = contents
	}
	return nil
}

// submissions

func (repo *courseRepository) GetSubmission(ctx context.Context, courseID string, assignmentID int, studentEmail string) (course.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.submissions {
		if sub.CourseID == courseID && sub.AssignmentID == assignmentID && sub.StudentEmail == studentEmail {
			return sub, nil
		}
	}
	return course.Submission{}, course.ErrSubmissionNotFound
}

func (repo *courseRepository) CreateSubmission(ctx context.Context, sub course.Submission) (course.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.submissions = append(repo.db.submissions, sub)
	return sub, nil
}

func (repo *courseRepository) UpdateSubmissionText(ctx context.Context, courseID string, assignmentID int, studentEmail, text string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i, sub := range repo.db.submissions {
		if sub.CourseID == courseID && sub.AssignmentID == assignmentID && sub.StudentEmail == studentEmail {
			sub.Text = text
			sub.ModifiedAt = time.Now().UTC()
			repo.db.submissions[i] = sub
			return nil
		}
	}
	return course.ErrSubmissionNotFound
}

func (repo *courseRepository) SetSubmissionGrade(ctx context.Context, courseID string, assignmentID int, studentEmail string, grade int, comment, graderEmail string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i, sub := range repo.db.submissions {
		if sub.CourseID == courseID && sub.AssignmentID == assignmentID && sub.StudentEmail == studentEmail {
			sub.Grade.SetValid(int64(grade))
			sub.GradeComment.SetValid(comment)
			sub.GradedBy.SetValid(graderEmail)
			repo.db.submissions[i] = sub
			return nil
		}
	}
	return course.ErrSubmissionNotFound
}

func (repo *courseRepository) QuerySubmissions(ctx context.Context, courseID string, assignmentID int) ([]course.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []course.Submission
	for _, sub := range repo.db.submissions {
		if sub.CourseID == courseID && sub.AssignmentID == assignmentID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (repo *courseRepository) QueryCourseSubmissions(ctx context.Context, courseID string) ([]course.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []course.Submission
	for _, sub := range repo.db.submissions {
		if sub.CourseID == courseID {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (repo *courseRepository) RemoveAssignmentSubmissions(ctx context.Context, courseID string, assignmentID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterSubmissions(func(sub course.Submission) bool {
		return !(sub.CourseID == courseID && sub.AssignmentID == assignmentID)
	})
	return nil
}

func (repo *courseRepository) RemoveCourseSubmissions(ctx context.Context, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterSubmissions(func(sub course.Submission) bool { return sub.CourseID != courseID })
	return nil
}

func (repo *courseRepository) RemoveStudentSubmissions(ctx context.Context, studentEmail string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterSubmissions(func(sub course.Submission) bool { return sub.StudentEmail != studentEmail })
	return nil
}

func (repo *courseRepository) filterSubmissions(keep func(course.Submission) bool) {
	kept := repo.db.submissions[:0]
	for _, sub := range repo.db.submissions {
		if keep(sub) {
			kept = append(kept, sub)
		}
	}
	repo.db.submissions = kept
}

// personalization

func (repo *courseRepository) SetCourseEmoji(ctx context.Context, courseID, userEmail string, emoji int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i, p := range repo.db.personalizations {
		if p.CourseID == courseID && p.UserEmail == userEmail {
			repo.db.personalizations[i].Emoji.SetValid(int64(emoji))
			return nil
		}
	}
	p := course.Personalization{CourseID: courseID, UserEmail: userEmail}
	p.Emoji.SetValid(int64(emoji))
	repo.db.personalizations = append(repo.db.personalizations, p)
	return nil
}

func (repo *courseRepository) UpdateCourseOrder(ctx context.Context, userEmail string, courseIDs []string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for pos, courseID := range courseIDs {
		found := false
		for i, p := range repo.db.personalizations {
			if p.CourseID == courseID && p.UserEmail == userEmail {
				repo.db.personalizations[i].Position = pos
				found = true
				break
			}
		}
		if !found {
			repo.db.personalizations = append(repo.db.personalizations,
				course.Personalization{CourseID: courseID, UserEmail: userEmail, Position: pos})
		}
	}
	return nil
}

func (repo *courseRepository) QueryPersonalizations(ctx context.Context, userEmail string) ([]course.Personalization, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var prefs []course.Personalization
	for _, p := range repo.db.personalizations {
		if p.UserEmail == userEmail {
			prefs = append(prefs, p)
		}
	}
	sort.Slice(prefs, func(i, j int) bool { return prefs[i].Position < prefs[j].Position })
	return prefs, nil
}

func (repo *courseRepository) RemovePersonalization(ctx context.Context, courseID, userEmail string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterPersonalizations(func(p course.Personalization) bool {
		return !(p.CourseID == courseID && p.UserEmail == userEmail)
	})
	return nil
}

func (repo *courseRepository) RemoveCoursePersonalizations(ctx context.Context, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterPersonalizations(func(p course.Personalization) bool { return p.CourseID != courseID })
	return nil
}

func (repo *courseRepository) RemoveUserPersonalizations(ctx context.Context, userEmail string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.filterPersonalizations(func(p course.Personalization) bool { return p.UserEmail != userEmail })
	return nil
}

func (repo *courseRepository) filterPersonalizations(keep func(course.Personalization) bool) {
	kept := repo.db.personalizations[:0]
	for _, p := range repo.db.personalizations {
		if keep(p) {
			kept = append(kept, p)
		}
	}
	repo.db.personalizations = kept
}

// attachments

func (repo *courseRepository) AddAttachment(ctx context.Context, att course.Attachment) (course.Attachment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.attachments[att.ID] = &att
	return att, nil
}

func (repo *courseRepository) GetAttachment(ctx context.Context, id string) (course.Attachment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if att, ok := repo.db.attachments[id]; ok {
		return *att, nil
	}
	return course.Attachment{}, course.ErrAttachmentNotFound
}

func (repo *courseRepository) QueryAttachments(ctx context.Context, courseID string, owner course.AttachmentOwner, contentID int, studentEmail string) ([]course.Attachment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var atts []course.Attachment
	for _, att := range repo.db.attachments {
		if att.CourseID == courseID && att.Owner == owner && att.ContentID == contentID {
			if studentEmail != "" && att.StudentEmail.String != studentEmail {
				continue
			}
			atts = append(atts, *att)
		}
	}
	sort.Slice(atts, func(i, j int) bool { return atts[i].UploadedAt.Before(atts[j].UploadedAt) })
	return atts, nil
}

func (repo *courseRepository) QueryCourseAttachments(ctx context.Context, courseID string) ([]course.Attachment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var atts []course.Attachment
	for _, att := range repo.db.attachments {
		if att.CourseID == courseID {
			atts = append(atts, *att)
		}
	}
	sort.Slice(atts, func(i, j int) bool { return atts[i].UploadedAt.Before(atts[j].UploadedAt) })
	return atts, nil
}

func (repo *courseRepository) QueryStudentAttachments(ctx context.Context, studentEmail string) ([]course.Attachment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var atts []course.Attachment
	for _, att := range repo.db.attachments {
		if att.Owner == course.OwnerSubmission && att.StudentEmail.String == studentEmail {
			atts = append(atts, *att)
		}
	}
	sort.Slice(atts, func(i, j int) bool { return atts[i].UploadedAt.Before(atts[j].UploadedAt) })
	return atts, nil
}

func (repo *courseRepository) RemoveAttachments(ctx context.Context, courseID string, owner course.AttachmentOwner, contentID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, att := range repo.db.attachments {
		if att.CourseID == courseID && att.Owner == owner && att.ContentID == contentID {
			delete(repo.db.attachments, id)
		}
	}
	return nil
}

func (repo *courseRepository) RemoveCourseAttachments(ctx context.Context, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, att := range repo.db.attachments {
		if att.CourseID == courseID {
			delete(repo.db.attachments, id)
		}
	}
	return nil
}

func (repo *courseRepository) RemoveStudentAttachments(ctx context.Context, studentEmail string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, att := range repo.db.attachments {
		if att.Owner == course.OwnerSubmission && att.StudentEmail.String == studentEmail {
			delete(repo.db.attachments, id)
		}
	}
	return nil
}
