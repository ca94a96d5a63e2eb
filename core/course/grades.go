package course

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

// GradeTable is the student by assignment grade matrix of a course. Rows are
// sorted by display name then email, columns follow assignment creation
// order; a nil cell means the student has no graded submission there.
type GradeTable struct {
	Assignments []GradeColumn
	Rows        []GradeRow
}

type GradeColumn struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type GradeRow struct {
	Student Member
	Cells   []null.Int64
}

type jsonGradeRow struct {
	Name   string     `json:"name"`
	Grades []null.Int64 `json:"grades"`
}

// MarshalJSON keys rows by student email.
func (t GradeTable) MarshalJSON() ([]byte, error) {
	rows := make(map[string]jsonGradeRow, len(t.Rows))
	for _, row := range t.Rows {
		rows[row.Student.Email] = jsonGradeRow{Name: row.Student.Name, Grades: row.Cells}
	}
	return json.Marshal(struct {
		Assignments []GradeColumn           `json:"assignments"`
		Students    map[string]jsonGradeRow `json:"students"`
	}{t.Assignments, rows})
}

// WriteCSV writes the table with a "Login, Public Name, <titles>" header.
// Lines end with CRLF; null cells are written empty.
func (t GradeTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	header := []string{"Login", "Public Name"}
	for _, col := range t.Assignments {
		header = append(header, col.Title)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		record := []string{row.Student.Email, row.Student.Name}
		for _, cell := range row.Cells {
			if cell.Valid {
				record = append(record, strconv.FormatInt(cell.Int64, 10))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseGradeCSV reads a table previously written by WriteCSV. Column ids are
// not carried by the CSV format and come back zero.
func ParseGradeCSV(r io.Reader) (GradeTable, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return GradeTable{}, core.NewInvalidArgumentError("malformed grade CSV")
	}
	var t GradeTable
	if len(records) == 0 {
		return t, nil
	}
	if len(records[0]) < 2 {
		return GradeTable{}, core.NewInvalidArgumentError("malformed grade CSV")
	}
	for _, title := range records[0][2:] {
		t.Assignments = append(t.Assignments, GradeColumn{Title: title})
	}
	for _, record := range records[1:] {
		row := GradeRow{Student: Member{Email: record[0], Name: record[1]}}
		for _, cell := range record[2:] {
			var grade null.Int64
			if cell != "" {
				n, err := strconv.ParseInt(cell, 10, 64)
				if err != nil {
					return GradeTable{}, core.NewInvalidArgumentError("grade cells should be integers")
				}
				grade.SetValid(n)
			}
			row.Cells = append(row.Cells, grade)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// GradeTable builds the grade matrix for a course. Teachers and admins may
// request any student subset, parents only their own children, students only
// themselves; nil selections default to what the viewer is entitled to see.
// Empty student or assignment sets give an empty table.
func (svc *Service) GradeTable(ctx context.Context, courseID string, studentEmails, assignmentIDs []string, viewerEmail string) (GradeTable, error) {
	roles, err := svc.access.Resolve(ctx, viewerEmail, courseID)
	if err != nil {
		return GradeTable{}, err
	}

	var rows []Member
	switch {
	case roles.IsTeacher || roles.IsAdmin:
		rows, err = svc.teacherRows(ctx, courseID, studentEmails)
	case roles.IsParent:
		rows, err = svc.parentRows(ctx, courseID, viewerEmail, studentEmails)
	case roles.IsStudent:
		rows, err = svc.studentRows(ctx, viewerEmail, studentEmails)
	default:
		return GradeTable{}, core.NewForbiddenError("user does not have access to this course")
	}
	if err != nil {
		return GradeTable{}, err
	}
	sortMembers(rows)

	cols, err := svc.gradeColumns(ctx, courseID, assignmentIDs)
	if err != nil {
		return GradeTable{}, err
	}

	subs, err := svc.repo.QueryCourseSubmissions(ctx, courseID)
	if err != nil {
		return GradeTable{}, err
	}
	type cellKey struct {
		assignmentID int
		studentEmail string
	}
	grades := make(map[cellKey]null.Int64, len(subs))
	for _, sub := range subs {
		if sub.IsGraded() {
			grades[cellKey{sub.AssignmentID, sub.StudentEmail}] = sub.Grade
		}
	}

	t := GradeTable{Assignments: cols}
	for _, student := range rows {
		row := GradeRow{Student: student, Cells: make([]null.Int64, len(cols))}
		for i, col := range cols {
			row.Cells[i] = grades[cellKey{col.ID, student.Email}]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (svc *Service) teacherRows(ctx context.Context, courseID string, requested []string) ([]Member, error) {
	enrolled, err := svc.repo.QueryMembers(ctx, courseID, RoleStudent)
	if err != nil {
		return nil, err
	}
	if requested == nil {
		return enrolled, nil
	}
	return selectMembers(enrolled, requested), nil
}

func (svc *Service) parentRows(ctx context.Context, courseID, parentEmail string, requested []string) ([]Member, error) {
	children, err := svc.repo.QueryChildren(ctx, courseID, parentEmail)
	if err != nil {
		return nil, err
	}
	if requested == nil {
		return children, nil
	}
	linked := make(map[string]bool, len(children))
	for _, child := range children {
		linked[child.Email] = true
	}
	for _, email := range requested {
		if !linked[email] {
			return nil, core.NewForbiddenError("user has no parental access to this student's course")
		}
	}
	return selectMembers(children, requested), nil
}

func (svc *Service) studentRows(ctx context.Context, viewerEmail string, requested []string) ([]Member, error) {
	for _, email := range requested {
		if email != viewerEmail {
			return nil, core.NewForbiddenError("user does not have access to this submission")
		}
	}
	if requested != nil && len(requested) == 0 {
		return nil, nil
	}
	usr, err := svc.users.GetUserByEmail(ctx, viewerEmail)
	if err != nil {
		return nil, err
	}
	return []Member{{Email: usr.Email, Name: usr.Name}}, nil
}

func (svc *Service) gradeColumns(ctx context.Context, courseID string, requested []string) ([]GradeColumn, error) {
	assignments, err := svc.repo.QueryContents(ctx, courseID, KindAssignment)
	if err != nil {
		return nil, err
	}
	var cols []GradeColumn
	if requested == nil {
		for _, a := range assignments {
			cols = append(cols, GradeColumn{ID: a.ID, Title: a.Title})
		}
		return cols, nil
	}

	byID := make(map[int]Content, len(assignments))
	for _, a := range assignments {
		byID[a.ID] = a
	}
	for _, raw := range requested {
		id, err := ParseContentID(raw)
		if err != nil {
			return nil, err
		}
		a, ok := byID[id]
		if !ok {
			return nil, ErrContentNotFound
		}
		cols = append(cols, GradeColumn{ID: a.ID, Title: a.Title})
	}
	return cols, nil
}

func selectMembers(members []Member, emails []string) []Member {
	byEmail := make(map[string]Member, len(members))
	for _, m := range members {
		byEmail[m.Email] = m
	}
	var selected []Member
	for _, email := range emails {
		if m, ok := byEmail[email]; ok {
			selected = append(selected, m)
		}
	}
	return selected
}

// StudentGrades is the single-student report: one cell per assignment, in
// creation order. Readable by anyone with submission access to the student.
func (svc *Service) StudentGrades(ctx context.Context, courseID, studentEmail, viewerEmail string) (GradeTable, error) {
	if err := svc.access.AssertSubmissionAccess(ctx, viewerEmail, studentEmail, courseID); err != nil {
		return GradeTable{}, err
	}
	usr, err := svc.users.GetUserByEmail(ctx, studentEmail)
	if err != nil {
		return GradeTable{}, err
	}

	cols, err := svc.gradeColumns(ctx, courseID, nil)
	if err != nil {
		return GradeTable{}, err
	}
	subs, err := svc.repo.QueryCourseSubmissions(ctx, courseID)
	if err != nil {
		return GradeTable{}, err
	}
	grades := make(map[int]null.Int64, len(subs))
	for _, sub := range subs {
		if sub.StudentEmail == studentEmail && sub.IsGraded() {
			grades[sub.AssignmentID] = sub.Grade
		}
	}

	row := GradeRow{Student: Member{Email: usr.Email, Name: usr.Name}, Cells: make([]null.Int64, len(cols))}
	for i, col := range cols {
		row.Cells[i] = grades[col.ID]
	}
	return GradeTable{Assignments: cols, Rows: []GradeRow{row}}, nil
}
