package course

import (
	"context"

	"github.com/trezcool/shule/core/user"
)

// RoleSet is the full set of roles a user holds relative to one course,
// re-derived from storage on every call; never cache it across requests.
type RoleSet struct {
	IsInstructor bool `json:"is_instructor"`
	IsTeacher    bool `json:"is_teacher"` // the instructor counts as a teacher
	IsStudent    bool `json:"is_student"`
	IsParent     bool `json:"is_parent"`
	IsAdmin      bool `json:"is_admin"`
}

// Access resolves course-scoped roles and evaluates the permission
// predicates built on them. Existence is always checked before any role
// read: a missing user or course surfaces as NotFound, never as Forbidden.
type Access struct {
	repo  Repository
	users user.Repository
}

func NewAccess(repo Repository, users user.Repository) *Access {
	return &Access{repo: repo, users: users}
}

// Resolve determines every role userEmail holds in courseID.
func (a *Access) Resolve(ctx context.Context, userEmail, courseID string) (RoleSet, error) {
	usr, crs, err := a.lookup(ctx, userEmail, courseID)
	if err != nil {
		return RoleSet{}, err
	}

	rs := RoleSet{
		IsAdmin:      usr.IsAdmin,
		IsInstructor: crs.Instructor == usr.Email,
	}
	isTeacher, err := a.repo.HasMembership(ctx, courseID, usr.Email, RoleTeacher)
	if err != nil {
		return RoleSet{}, err
	}
	rs.IsTeacher = rs.IsInstructor || isTeacher

	if rs.IsStudent, err = a.repo.HasMembership(ctx, courseID, usr.Email, RoleStudent); err != nil {
		return RoleSet{}, err
	}
	if rs.IsParent, err = a.repo.HasMembership(ctx, courseID, usr.Email, RoleParent); err != nil {
		return RoleSet{}, err
	}
	return rs, nil
}

// lookup loads both entities, failing with NotFound before any role check.
func (a *Access) lookup(ctx context.Context, userEmail, courseID string) (user.User, Course, error) {
	usr, err := a.users.GetUserByEmail(ctx, userEmail)
	if err != nil {
		return user.User{}, Course{}, err
	}
	crs, err := a.repo.GetCourse(ctx, courseID)
	if err != nil {
		return user.User{}, Course{}, err
	}
	return usr, crs, nil
}
