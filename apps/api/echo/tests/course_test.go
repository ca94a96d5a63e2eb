package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/trezcool/shule/core/course"
	testutil "github.com/trezcool/shule/tests"
)

func do(t *testing.T, a *testApp, method, path, token string, body []byte, wantCode int) *httptest.ResponseRecorder {
	t.Helper()

	req, rec := newAuthRequest(method, path, token, body)
	a.app.ServeHTTP(rec, req)
	if rec.Code != wantCode {
		t.Fatalf("%s %s: code = %v; want %v; body = %s", method, path, rec.Code, wantCode, rec.Body.Bytes())
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(): %v; body = %s", err, rec.Body.Bytes())
	}
}

func Test_courseApi_flow(t *testing.T) {
	a := setup(t)
	teacher := testutil.CreateUser(t, a.usrRepo, "Teacher", "teacher@test.cd", "", false)
	student := testutil.CreateUser(t, a.usrRepo, "Student", "student@test.cd", "", false)
	outsider := testutil.CreateUser(t, a.usrRepo, "Outsider", "outsider@test.cd", "", false)
	teacherToken := getToken(t, teacher)
	studentToken := getToken(t, student)
	outsiderToken := getToken(t, outsider)

	// creator becomes the instructor
	rec := do(t, a, http.MethodPost, "/v1/courses", teacherToken,
		marchallObj(t, course.NewCourse{Title: "Algebra"}), http.StatusCreated)
	var crs course.Course
	decode(t, rec, &crs)
	if crs.Instructor != teacher.Email {
		t.Errorf("instructor = %q; want %q", crs.Instructor, teacher.Email)
	}
	path := "/v1/courses/" + crs.ID

	// no access before enrollment
	do(t, a, http.MethodGet, path, studentToken, nil, http.StatusForbidden)

	do(t, a, http.MethodPut, path+"/students/"+student.Email, teacherToken, nil, http.StatusNoContent)
	do(t, a, http.MethodGet, path, studentToken, nil, http.StatusOK)

	// students may not author content
	do(t, a, http.MethodPost, path+"/assignments", studentToken,
		marchallObj(t, course.NewContent{Title: "Nope"}), http.StatusForbidden)

	rec = do(t, a, http.MethodPost, path+"/assignments", teacherToken,
		marchallObj(t, course.NewContent{Title: "HW 1"}), http.StatusCreated)
	var hw course.Content
	decode(t, rec, &hw)
	subPath := path + "/assignments/" + strconv.Itoa(hw.ID)

	// only students submit
	do(t, a, http.MethodPut, subPath+"/submission", teacherToken,
		marchallObj(t, course.NewSubmission{Text: "cheat"}), http.StatusForbidden)

	rec = do(t, a, http.MethodPut, subPath+"/submission", studentToken,
		marchallObj(t, course.NewSubmission{Text: "my answer"}), http.StatusOK)
	var sub course.Submission
	decode(t, rec, &sub)
	if sub.Text != "my answer" || sub.Grade.Valid {
		t.Errorf("submission = %+v; want ungraded with text", sub)
	}

	gradePath := subPath + "/submissions/" + student.Email + "/grade"
	do(t, a, http.MethodPut, gradePath, studentToken,
		marchallObj(t, course.GradeInput{Grade: 100}), http.StatusForbidden)

	rec = do(t, a, http.MethodPut, gradePath, teacherToken,
		marchallObj(t, course.GradeInput{Grade: 80, Comment: "good"}), http.StatusOK)
	decode(t, rec, &sub)
	if !sub.Grade.Valid || sub.Grade.Int64 != 80 || sub.GradedBy.String != teacher.Email {
		t.Errorf("graded submission = %+v; want grade 80 by %s", sub, teacher.Email)
	}

	// graded submissions are frozen
	do(t, a, http.MethodPut, subPath+"/submission", studentToken,
		marchallObj(t, course.NewSubmission{Text: "v2"}), http.StatusConflict)

	do(t, a, http.MethodGet, path+"/grades", outsiderToken, nil, http.StatusForbidden)

	rec = do(t, a, http.MethodGet, path+"/grades", teacherToken, nil, http.StatusOK)
	var table struct {
		Assignments []struct {
			ID    int    `json:"id"`
			Title string `json:"title"`
		} `json:"assignments"`
		Students map[string]struct {
			Name   string `json:"name"`
			Grades []*int `json:"grades"`
		} `json:"students"`
	}
	decode(t, rec, &table)
	if len(table.Assignments) != 1 || table.Assignments[0].Title != "HW 1" {
		t.Errorf("assignments = %+v; want [HW 1]", table.Assignments)
	}
	row, ok := table.Students[student.Email]
	if !ok || len(row.Grades) != 1 || row.Grades[0] == nil || *row.Grades[0] != 80 {
		t.Errorf("student row = %+v; want grade 80", row)
	}

	rec = do(t, a, http.MethodGet, path+"/grades?format=csv", teacherToken, nil, http.StatusOK)
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("Content-Type = %q; want text/csv", got)
	}
	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\r\n"), "\r\n")
	want := []string{
		"Login,Public Name,HW 1",
		student.Email + ",Student,80",
	}
	if len(lines) != len(want) || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("csv = %q; want %q", lines, want)
	}

	// personal course emoji comes back on the member's own listing
	do(t, a, http.MethodPut, path+"/emoji", outsiderToken,
		marchallObj(t, course.CourseEmojiInput{Emoji: 5}), http.StatusForbidden)
	do(t, a, http.MethodPut, path+"/emoji", studentToken,
		marchallObj(t, course.CourseEmojiInput{Emoji: 5}), http.StatusNoContent)

	rec = do(t, a, http.MethodGet, "/v1/courses", studentToken, nil, http.StatusOK)
	var listed []course.UserCourse
	decode(t, rec, &listed)
	if len(listed) != 1 || !listed[0].Emoji.Valid || listed[0].Emoji.Int64 != 5 {
		t.Errorf("courses = %+v; want emoji 5", listed)
	}

	do(t, a, http.MethodPut, "/v1/courses/order", studentToken,
		marchallObj(t, course.CourseOrderInput{CourseIDs: []string{"bogus"}}), http.StatusUnprocessableEntity)
	do(t, a, http.MethodPut, "/v1/courses/order", studentToken,
		marchallObj(t, course.CourseOrderInput{CourseIDs: []string{crs.ID}}), http.StatusNoContent)

	do(t, a, http.MethodDelete, path, studentToken, nil, http.StatusForbidden)
	do(t, a, http.MethodDelete, path, teacherToken, nil, http.StatusNoContent)
	do(t, a, http.MethodGet, path, teacherToken, nil, http.StatusNotFound)
}

func Test_courseApi_authRequired(t *testing.T) {
	a := setup(t)

	for _, path := range []string{"/v1/courses", "/v1/courses/x/feed", "/v1/courses/x/grades"} {
		req, rec := newRequest(http.MethodGet, path)
		a.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			name:     path,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		}, rec)
	}
}
