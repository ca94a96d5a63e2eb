package course

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// FeedItem is one course feed entry: a material or an assignment, newest
// first, tagged with its section when it has one.
type FeedItem struct {
	CourseID  string      `json:"course_id"`
	PostID    int         `json:"post_id"`
	Kind      ContentKind `json:"kind"`
	SectionID null.Int64    `json:"section_id,omitempty"`
	Title     string      `json:"title"`
	CreatedAt time.Time   `json:"created_at"`
	Author    null.String `json:"author"`
}

func (svc *Service) CreateSection(ctx context.Context, courseID string, ns NewSection, actorEmail string) (Section, error) {
	if err := svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return Section{}, err
	}
	sec, err := svc.repo.CreateSection(ctx, Section{CourseID: courseID, Title: ns.Title})
	if err != nil {
		return Section{}, err
	}
	svc.logger.Info(fmt.Sprintf("section %d created in course %s by %s", sec.ID, courseID, actorEmail))
	return sec, nil
}

func (svc *Service) Sections(ctx context.Context, courseID, viewerEmail string) ([]Section, error) {
	if err := svc.access.AssertCourseAccess(ctx, viewerEmail, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySections(ctx, courseID)
}

// Feed merges materials and assignments, newest first.
func (svc *Service) Feed(ctx context.Context, courseID, viewerEmail string) ([]FeedItem, error) {
	if err := svc.access.AssertCourseAccess(ctx, viewerEmail, courseID); err != nil {
		return nil, err
	}

	var feed []FeedItem
	for _, kind := range []ContentKind{KindMaterial, KindAssignment} {
		contents, err := svc.repo.QueryContents(ctx, courseID, kind)
		if err != nil {
			return nil, err
		}
		for _, c := range contents {
			feed = append(feed, FeedItem{
				CourseID:  c.CourseID,
				PostID:    c.ID,
				Kind:      c.Kind,
				SectionID: c.SectionID,
				Title:     c.Title,
				CreatedAt: c.CreatedAt,
				Author:    c.Author,
			})
		}
	}
	sort.Slice(feed, func(i, j int) bool { return feed[i].CreatedAt.After(feed[j].CreatedAt) })
	return feed, nil
}

func (svc *Service) CreateMaterial(ctx context.Context, courseID string, nc NewContent, actorEmail string) (Content, error) {
	return svc.createContent(ctx, courseID, KindMaterial, nc, actorEmail)
}

func (svc *Service) CreateAssignment(ctx context.Context, courseID string, nc NewContent, actorEmail string) (Content, error) {
	return svc.createContent(ctx, courseID, KindAssignment, nc, actorEmail)
}

func (svc *Service) createContent(ctx context.Context, courseID string, kind ContentKind, nc NewContent, actorEmail string) (Content, error) {
	if err := svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return Content{}, err
	}

	c := Content{
		CourseID:    courseID,
		Kind:        kind,
		Title:       nc.Title,
		Description: nc.Description,
		Author:      null.StringFrom(actorEmail),
		CreatedAt:   time.Now().UTC(),
	}
	if nc.SectionID != "" {
		secID, err := ParseContentID(nc.SectionID)
		if err != nil {
			return Content{}, err
		}
		// sections only attach within their own course
		if _, err = svc.repo.GetSection(ctx, courseID, secID); err != nil {
			return Content{}, err
		}
		c.SectionID.SetValid(int64(secID))
	}

	c, err := svc.repo.CreateContent(ctx, c)
	if err != nil {
		return Content{}, err
	}
	svc.logger.Info(fmt.Sprintf("%s %d created in course %s by %s", kind, c.ID, courseID, actorEmail))
	return c, nil
}

// GetMaterial looks up one material; any course member may read it.
func (svc *Service) GetMaterial(ctx context.Context, courseID, materialID, viewerEmail string) (Content, error) {
	return svc.getContent(ctx, courseID, KindMaterial, materialID, viewerEmail)
}

func (svc *Service) GetAssignment(ctx context.Context, courseID, assignmentID, viewerEmail string) (Content, error) {
	return svc.getContent(ctx, courseID, KindAssignment, assignmentID, viewerEmail)
}

func (svc *Service) getContent(ctx context.Context, courseID string, kind ContentKind, rawID, viewerEmail string) (Content, error) {
	id, err := ParseContentID(rawID)
	if err != nil {
		return Content{}, err
	}
	if err = svc.access.AssertCourseAccess(ctx, viewerEmail, courseID); err != nil {
		return Content{}, err
	}
	return svc.repo.GetContent(ctx, courseID, kind, id)
}

func (svc *Service) RemoveMaterial(ctx context.Context, courseID, materialID, actorEmail string) error {
	id, err := ParseContentID(materialID)
	if err != nil {
		return err
	}
	if err = svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return err
	}
	if _, err = svc.repo.GetContent(ctx, courseID, KindMaterial, id); err != nil {
		return err
	}
	atts, err := svc.repo.QueryAttachments(ctx, courseID, OwnerMaterial, id, "")
	if err != nil {
		return err
	}

	plan := newPlan(fmt.Sprintf("remove material %d of course %s", id, courseID))
	plan.add("delete material attachments", func(ctx context.Context) error {
		return svc.repo.RemoveAttachments(ctx, courseID, OwnerMaterial, id)
	})
	plan.add("delete material", func(ctx context.Context) error {
		return svc.repo.RemoveContent(ctx, courseID, KindMaterial, id)
	})
	if err = plan.Execute(ctx); err != nil {
		return err
	}
	svc.deleteBlobs(ctx, atts)
	return nil
}

// Attachments

// AttachToContent stores the blob and records attachment metadata for a
// material or assignment; teachers only.
func (svc *Service) AttachToContent(ctx context.Context, courseID string, kind ContentKind, rawID, filename string, content []byte, actorEmail string) (Attachment, error) {
	id, err := ParseContentID(rawID)
	if err != nil {
		return Attachment{}, err
	}
	if err = svc.access.AssertTeacherAccess(ctx, actorEmail, courseID); err != nil {
		return Attachment{}, err
	}
	if _, err = svc.repo.GetContent(ctx, courseID, kind, id); err != nil {
		return Attachment{}, err
	}

	owner := OwnerMaterial
	if kind == KindAssignment {
		owner = OwnerAssignment
	}
	att := Attachment{
		ID:         uuid.New().String(),
		CourseID:   courseID,
		Owner:      owner,
		ContentID:  id,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
	}
	if err = svc.files.Put(ctx, att.ID, content); err != nil {
		return Attachment{}, err
	}
	return svc.repo.AddAttachment(ctx, att)
}

// AttachToSubmission lets a student attach to their own ungraded submission.
func (svc *Service) AttachToSubmission(ctx context.Context, courseID, assignmentID, studentEmail, filename string, content []byte, actorEmail string) (Attachment, error) {
	if actorEmail != studentEmail {
		return Attachment{}, core.NewForbiddenError("user does not have access to this submission")
	}
	sub, err := svc.getOwnSubmission(ctx, courseID, assignmentID, studentEmail)
	if err != nil {
		return Attachment{}, err
	}
	if sub.IsGraded() {
		return Attachment{}, core.NewConflictError("cannot edit a graded submission")
	}

	att := Attachment{
		ID:         uuid.New().String(),
		CourseID:   courseID,
		Owner:      OwnerSubmission,
		ContentID:  sub.AssignmentID,
		Filename:   filename,
		UploadedAt: time.Now().UTC(),
	}
	att.StudentEmail.SetValid(studentEmail)
	if err = svc.files.Put(ctx, att.ID, content); err != nil {
		return Attachment{}, err
	}
	return svc.repo.AddAttachment(ctx, att)
}

func (svc *Service) ContentAttachments(ctx context.Context, courseID string, kind ContentKind, rawID, viewerEmail string) ([]Attachment, error) {
	id, err := ParseContentID(rawID)
	if err != nil {
		return nil, err
	}
	if err = svc.access.AssertCourseAccess(ctx, viewerEmail, courseID); err != nil {
		return nil, err
	}
	owner := OwnerMaterial
	if kind == KindAssignment {
		owner = OwnerAssignment
	}
	return svc.repo.QueryAttachments(ctx, courseID, owner, id, "")
}

func (svc *Service) SubmissionAttachments(ctx context.Context, courseID, assignmentID, studentEmail, viewerEmail string) ([]Attachment, error) {
	id, err := ParseContentID(assignmentID)
	if err != nil {
		return nil, err
	}
	if err = svc.access.AssertSubmissionAccess(ctx, viewerEmail, studentEmail, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttachments(ctx, courseID, OwnerSubmission, id, studentEmail)
}

// DownloadAttachment returns the metadata and blob of one attachment;
// submission attachments require submission access, the rest course access.
func (svc *Service) DownloadAttachment(ctx context.Context, attachmentID, viewerEmail string) (Attachment, []byte, error) {
	att, err := svc.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return Attachment{}, nil, err
	}
	if att.Owner == OwnerSubmission {
		err = svc.access.AssertSubmissionAccess(ctx, viewerEmail, att.StudentEmail.String, att.CourseID)
	} else {
		err = svc.access.AssertCourseAccess(ctx, viewerEmail, att.CourseID)
	}
	if err != nil {
		return Attachment{}, nil, err
	}

	content, err := svc.files.Get(ctx, att.ID)
	if err != nil {
		return Attachment{}, nil, err
	}
	return att, content, nil
}
