package echoapi

import (
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc *user.Service, svc *course.Service) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.PUT("/order", api.reorder)

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.PUT("/instructor", api.transferOwnership)
	dg.PUT("/emoji", api.setEmoji)
	dg.GET("/feed", api.feed)

	// memberships
	dg.GET("/teachers", api.teachers)
	dg.PUT("/teachers/:email", api.inviteTeacher)
	dg.DELETE("/teachers/:email", api.removeTeacher)
	dg.GET("/students", api.students)
	dg.PUT("/students/:email", api.inviteStudent)
	dg.DELETE("/students/:email", api.removeStudent)
	dg.GET("/students/:email/parents", api.parents)
	dg.PUT("/students/:email/parents/:parent", api.inviteParent)
	dg.DELETE("/students/:email/parents/:parent", api.removeParent)
	dg.GET("/children", api.children)

	// sections & content
	dg.POST("/sections", api.createSection)
	dg.GET("/sections", api.sections)
	dg.POST("/materials", api.createMaterial)
	dg.GET("/materials/:mid", api.retrieveMaterial)
	dg.DELETE("/materials/:mid", api.destroyMaterial)
	dg.POST("/materials/:mid/attachments", api.attachToMaterial)
	dg.GET("/materials/:mid/attachments", api.materialAttachments)
	dg.POST("/assignments", api.createAssignment)
	dg.GET("/assignments/:aid", api.retrieveAssignment)
	dg.DELETE("/assignments/:aid", api.destroyAssignment)
	dg.POST("/assignments/:aid/attachments", api.attachToAssignment)
	dg.GET("/assignments/:aid/attachments", api.assignmentAttachments)

	// submissions & grades
	dg.PUT("/assignments/:aid/submission", api.submit)
	dg.POST("/assignments/:aid/submission/attachments", api.attachToSubmission)
	dg.GET("/assignments/:aid/submissions", api.assignmentSubmissions)
	dg.GET("/assignments/:aid/submissions/:email", api.retrieveSubmission)
	dg.PUT("/assignments/:aid/submissions/:email/grade", api.grade)
	dg.GET("/assignments/:aid/submissions/:email/attachments", api.submissionAttachments)
	dg.GET("/grades", api.gradeTable)
	dg.GET("/students/:email/grades", api.studentGrades)

	g.GET("/attachments/:id", api.downloadAttachment, jwt)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.QueryByUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	if courses == nil {
		courses = []course.UserCourse{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) reorder(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data course.CourseOrderInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseOrderInput")
	}
	if err = data.Validate(); err != nil {
		return err
	}
	if err = api.svc.ReorderCourses(ctx.Request().Context(), data, claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) setEmoji(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data course.CourseEmojiInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseEmojiInput")
	}
	if err = data.Validate(); err != nil {
		return err
	}
	if err = api.svc.SetCourseEmoji(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveCourse(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) transferOwnership(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data TransferOwnershipRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransferOwnershipRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}
	if err = api.svc.TransferOwnership(ctx.Request().Context(), ctx.Param("id"), data.Email, claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) feed(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	feed, err := api.svc.Feed(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	if feed == nil {
		feed = []course.FeedItem{}
	}
	return ctx.JSON(http.StatusOK, feed)
}

// memberships

func (api *courseApi) teachers(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.Teachers(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *courseApi) students(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.Students(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *courseApi) inviteTeacher(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.InviteTeacher(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) removeTeacher(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveTeacher(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) inviteStudent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.InviteStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) removeStudent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) parents(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.Parents(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *courseApi) inviteParent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	err = api.svc.InviteParent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email"), ctx.Param("parent"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) removeParent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	err = api.svc.RemoveParent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email"), ctx.Param("parent"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// children lists the students the calling parent is linked to in this course.
func (api *courseApi) children(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.Children(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, members)
}

// sections & content

func (api *courseApi) createSection(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data course.NewSection
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	sec, err := api.svc.CreateSection(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api *courseApi) sections(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sections, err := api.svc.Sections(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	if sections == nil {
		sections = []course.Section{}
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *courseApi) createContent(ctx echo.Context, kind course.ContentKind) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data course.NewContent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContent")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	var c course.Content
	if kind == course.KindMaterial {
		c, err = api.svc.CreateMaterial(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	} else {
		c, err = api.svc.CreateAssignment(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) createMaterial(ctx echo.Context) error {
	return api.createContent(ctx, course.KindMaterial)
}

func (api *courseApi) createAssignment(ctx echo.Context) error {
	return api.createContent(ctx, course.KindAssignment)
}

func (api *courseApi) retrieveMaterial(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetMaterial(ctx.Request().Context(), ctx.Param("id"), ctx.Param("mid"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) retrieveAssignment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetAssignment(ctx.Request().Context(), ctx.Param("id"), ctx.Param("aid"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroyMaterial(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveMaterial(ctx.Request().Context(), ctx.Param("id"), ctx.Param("mid"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) destroyAssignment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveAssignment(ctx.Request().Context(), ctx.Param("id"), ctx.Param("aid"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// submissions & grades

func (api *courseApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data course.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), ctx.Param("aid"), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *courseApi) assignmentSubmissions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.AssignmentSubmissions(ctx.Request().Context(), ctx.Param("id"), ctx.Param("aid"), claims.Subject)
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []course.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *courseApi) retrieveSubmission(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetSubmission(ctx.Request().Context(), ctx.Param("id"), ctx.Param("aid"), ctx.Param("email"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *courseApi) grade(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data course.GradeInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), ctx.Param("id"), ctx.Param("aid"), ctx.Param("email"), data, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *courseApi) gradeTable(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	params := ctx.QueryParams()
	var students, assignments []string
	if vals, ok := params["student"]; ok {
		students = vals
	}
	if vals, ok := params["assignment"]; ok {
		assignments = vals
	}

	table, err := api.svc.GradeTable(ctx.Request().Context(), ctx.Param("id"), students, assignments, claims.Subject)
	if err != nil {
		return err
	}

	if ctx.QueryParam("format") == "csv" {
		ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="grades.csv"`)
		ctx.Response().Header().Set(echo.HeaderContentType, "text/csv")
		ctx.Response().WriteHeader(http.StatusOK)
		return table.WriteCSV(ctx.Response())
	}
	return ctx.JSON(http.StatusOK, table)
}

func (api *courseApi) studentGrades(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	table, err := api.svc.StudentGrades(ctx.Request().Context(), ctx.Param("id"), ctx.Param("email"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, table)
}

// attachments

func (api *courseApi) attachToMaterial(ctx echo.Context) error {
	return api.attachToContent(ctx, course.KindMaterial, "mid")
}

func (api *courseApi) attachToAssignment(ctx echo.Context) error {
	return api.attachToContent(ctx, course.KindAssignment, "aid")
}

func (api *courseApi) attachToContent(ctx echo.Context, kind course.ContentKind, idParam string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	filename, content, err := readUpload(ctx)
	if err != nil {
		return err
	}

	att, err := api.svc.AttachToContent(ctx.Request().Context(), ctx.Param("id"), kind, ctx.Param(idParam), filename, content, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *courseApi) attachToSubmission(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	filename, content, err := readUpload(ctx)
	if err != nil {
		return err
	}

	att, err := api.svc.AttachToSubmission(ctx.Request().Context(), ctx.Param("id"), ctx.Param("aid"), claims.Subject, filename, content, claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *courseApi) materialAttachments(ctx echo.Context) error {
	return api.contentAttachments(ctx, course.KindMaterial, "mid")
}

func (api *courseApi) assignmentAttachments(ctx echo.Context) error {
	return api.contentAttachments(ctx, course.KindAssignment, "aid")
}

func (api *courseApi) contentAttachments(ctx echo.Context, kind course.ContentKind, idParam string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	atts, err := api.svc.ContentAttachments(ctx.Request().Context(), ctx.Param("id"), kind, ctx.Param(idParam), claims.Subject)
	if err != nil {
		return err
	}
	if atts == nil {
		atts = []course.Attachment{}
	}
	return ctx.JSON(http.StatusOK, atts)
}

func (api *courseApi) submissionAttachments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	atts, err := api.svc.SubmissionAttachments(ctx.Request().Context(), ctx.Param("id"), ctx.Param("aid"), ctx.Param("email"), claims.Subject)
	if err != nil {
		return err
	}
	if atts == nil {
		atts = []course.Attachment{}
	}
	return ctx.JSON(http.StatusOK, atts)
}

func (api *courseApi) downloadAttachment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	att, content, err := api.svc.DownloadAttachment(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+att.Filename+`"`)
	return ctx.Blob(http.StatusOK, echo.MIMEOctetStream, content)
}

func readUpload(ctx echo.Context) (string, []byte, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return "", nil, errors.Wrap(err, "reading upload")
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, errors.Wrap(err, "opening upload")
	}
	defer func() { _ = f.Close() }()

	content, err := ioutil.ReadAll(f)
	if err != nil {
		return "", nil, errors.Wrap(err, "reading upload")
	}
	return fh.Filename, content, nil
}

type TransferOwnershipRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *TransferOwnershipRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true)
	return core.Validate.Struct(r)
}
