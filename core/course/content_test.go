package course_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
)

func TestService_Sections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("student may not create", func(t *testing.T) {
		_, err := f.svc.CreateSection(ctx, courseID, course.NewSection{Title: "Intro"}, student)
		if !core.IsForbidden(err) {
			t.Errorf("CreateSection() error = %v, want Forbidden", err)
		}
	})

	s1, err := f.svc.CreateSection(ctx, courseID, course.NewSection{Title: "Intro"}, teacher)
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	s2, err := f.svc.CreateSection(ctx, courseID, course.NewSection{Title: "Advanced"}, teacher)
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	if s1.Position != 1 || s2.Position != 2 {
		t.Errorf("positions = %d, %d, want 1, 2", s1.Position, s2.Position)
	}

	sections, err := f.svc.Sections(ctx, courseID, student)
	if err != nil {
		t.Fatalf("Sections() failed: %v", err)
	}
	if len(sections) != 2 || sections[0].ID != s1.ID || sections[1].ID != s2.ID {
		t.Errorf("Sections() = %+v, want position order", sections)
	}

	t.Run("content attaches to a section", func(t *testing.T) {
		m, err := f.svc.CreateMaterial(ctx, courseID, course.NewContent{Title: "Notes", SectionID: itoa(s1.ID)}, teacher)
		if err != nil {
			t.Fatalf("CreateMaterial() failed: %v", err)
		}
		if !m.SectionID.Valid || int(m.SectionID.Int64) != s1.ID {
			t.Errorf("SectionID = %+v, want %d", m.SectionID, s1.ID)
		}
	})

	t.Run("unknown section is NotFound", func(t *testing.T) {
		_, err := f.svc.CreateMaterial(ctx, courseID, course.NewContent{Title: "Notes", SectionID: "999"}, teacher)
		if !core.IsNotFound(err) {
			t.Errorf("CreateMaterial() error = %v, want NotFound", err)
		}
	})
}

func TestService_Feed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m, err := f.svc.CreateMaterial(ctx, courseID, course.NewContent{Title: "Notes"}, teacher)
	if err != nil {
		t.Fatalf("CreateMaterial() failed: %v", err)
	}
	a := createAssignment(t, f, "HW 1")

	feed, err := f.svc.Feed(ctx, courseID, student)
	if err != nil {
		t.Fatalf("Feed() failed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("Feed() returned %d items, want 2", len(feed))
	}
	seen := make(map[course.ContentKind]int, 2)
	for _, item := range feed {
		seen[item.Kind] = item.PostID
	}
	if seen[course.KindMaterial] != m.ID || seen[course.KindAssignment] != a.ID {
		t.Errorf("feed items = %+v", feed)
	}
	// newest first
	if feed[0].CreatedAt.Before(feed[1].CreatedAt) {
		t.Errorf("feed not newest-first: %v, %v", feed[0].CreatedAt, feed[1].CreatedAt)
	}

	if _, err = f.svc.Feed(ctx, courseID, outsider); !core.IsForbidden(err) {
		t.Errorf("Feed() as outsider error = %v, want Forbidden", err)
	}
}

func TestService_Attachments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := createAssignment(t, f, "HW 1")
	id := itoa(a.ID)

	t.Run("student may not attach to an assignment", func(t *testing.T) {
		_, err := f.svc.AttachToContent(ctx, courseID, course.KindAssignment, id, "x.pdf", []byte("x"), student)
		if !core.IsForbidden(err) {
			t.Errorf("AttachToContent() error = %v, want Forbidden", err)
		}
	})

	att, err := f.svc.AttachToContent(ctx, courseID, course.KindAssignment, id, "brief.pdf", []byte("pdf"), teacher)
	if err != nil {
		t.Fatalf("AttachToContent() failed: %v", err)
	}

	t.Run("download round-trips content", func(t *testing.T) {
		got, content, err := f.svc.DownloadAttachment(ctx, att.ID, student)
		if err != nil {
			t.Fatalf("DownloadAttachment() failed: %v", err)
		}
		if got.Filename != "brief.pdf" || !bytes.Equal(content, []byte("pdf")) {
			t.Errorf("DownloadAttachment() = %+v, %q", got, content)
		}
	})
	t.Run("outsider may not download", func(t *testing.T) {
		if _, _, err := f.svc.DownloadAttachment(ctx, att.ID, outsider); !core.IsForbidden(err) {
			t.Errorf("DownloadAttachment() error = %v, want Forbidden", err)
		}
	})

	t.Run("submission attachments freeze with the grade", func(t *testing.T) {
		if _, err := f.svc.Submit(ctx, courseID, id, course.NewSubmission{Text: "v1"}, student); err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if _, err := f.svc.AttachToSubmission(ctx, courseID, id, student, "work.zip", []byte("zip"), student); err != nil {
			t.Fatalf("AttachToSubmission() failed: %v", err)
		}
		if _, err := f.svc.Grade(ctx, courseID, id, student, course.GradeInput{Grade: 70}, teacher); err != nil {
			t.Fatalf("Grade() failed: %v", err)
		}
		_, err := f.svc.AttachToSubmission(ctx, courseID, id, student, "late.zip", []byte("zip"), student)
		if !core.IsConflict(err) {
			t.Errorf("AttachToSubmission() error = %v, want Conflict", err)
		}
	})

	t.Run("students may not attach to others' submissions", func(t *testing.T) {
		_, err := f.svc.AttachToSubmission(ctx, courseID, id, student, "x.zip", []byte("x"), student2)
		if !core.IsForbidden(err) {
			t.Errorf("AttachToSubmission() error = %v, want Forbidden", err)
		}
	})

	t.Run("attachments list in upload order", func(t *testing.T) {
		second, err := f.svc.AttachToContent(ctx, courseID, course.KindAssignment, id, "errata.pdf", []byte("e"), teacher)
		if err != nil {
			t.Fatalf("AttachToContent() failed: %v", err)
		}
		atts, err := f.svc.ContentAttachments(ctx, courseID, course.KindAssignment, id, student)
		if err != nil {
			t.Fatalf("ContentAttachments() failed: %v", err)
		}
		if len(atts) != 2 || atts[0].ID != att.ID || atts[1].ID != second.ID {
			t.Errorf("ContentAttachments() = %+v, want upload order", atts)
		}
	})

	t.Run("material removal takes its attachments", func(t *testing.T) {
		m, err := f.svc.CreateMaterial(ctx, courseID, course.NewContent{Title: "Notes"}, teacher)
		if err != nil {
			t.Fatalf("CreateMaterial() failed: %v", err)
		}
		matt, err := f.svc.AttachToContent(ctx, courseID, course.KindMaterial, itoa(m.ID), "notes.pdf", []byte("n"), teacher)
		if err != nil {
			t.Fatalf("AttachToContent() failed: %v", err)
		}
		if err = f.svc.RemoveMaterial(ctx, courseID, itoa(m.ID), teacher); err != nil {
			t.Fatalf("RemoveMaterial() failed: %v", err)
		}
		atts, err := f.repo.QueryAttachments(ctx, courseID, course.OwnerMaterial, m.ID, "")
		if err != nil {
			t.Fatalf("QueryAttachments() failed: %v", err)
		}
		if len(atts) != 0 {
			t.Errorf("attachments survived material removal: %+v", atts)
		}
		if _, err = f.files.Get(ctx, matt.ID); !core.IsNotFound(err) {
			t.Errorf("blob survived material removal: %v", err)
		}
	})
}
