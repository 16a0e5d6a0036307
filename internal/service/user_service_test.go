package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

func TestUserServiceRegisterTeacher(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.repos.Users, nil, nil)

	user, err := svc.Register(f.ctx, RegisterRequest{
		Username:        "binh",
		Password:        "secret1",
		Name:            "Trần Bình",
		Role:            models.RoleGV,
		AssignedClasses: []string{" Tin học 7/2 ", "Tin học 7/2", "Toán 6/1"},
		GradeLevel:      []int{6, 7},
	})
	require.NoError(t, err)
	assert.False(t, user.IsApproved)
	assert.Empty(t, user.Password)
	assert.Equal(t, []string{"Tin học 7/2", "Toán 6/1"}, user.AssignedClasses)
	assert.Equal(t, "Tin học", user.Subject)

	_, err = svc.Register(f.ctx, RegisterRequest{Username: "BINH", Password: "secret1", Name: "x", Role: models.RoleNV})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestUserServiceRegisterStaffHasNoClasses(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.repos.Users, nil, nil)

	user, err := svc.Register(f.ctx, RegisterRequest{
		Username:      "thuvien",
		Password:      "secret1",
		Name:          "Lê Thư",
		Role:          models.RoleNV,
		StaffPosition: models.StaffLibrary,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OfficeSubject, user.Subject)
	assert.Equal(t, models.StaffLibrary, user.StaffPosition)
	assert.Empty(t, user.AssignedClasses)
}

func TestUserServiceRegisterRejectsTakenClass(t *testing.T) {
	f := newFixture(t)
	f.users(t, teacher("u1", "An", "Toán 6/1"))
	svc := NewUserService(f.repos.Users, nil, nil)

	_, err := svc.Register(f.ctx, RegisterRequest{
		Username:        "binh",
		Password:        "secret1",
		Name:            "Bình",
		Role:            models.RoleGV,
		AssignedClasses: []string{"Toán 6/1"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ClassConflict{Label: "Toán 6/1", UserID: "u1", UserName: "An"}, appErr.Details)

	_, err = svc.Register(f.ctx, RegisterRequest{
		Username:        "chi",
		Password:        "secret1",
		Name:            "Chi",
		Role:            models.RoleGV,
		AssignedClasses: []string{"Toán 10/1"},
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestConflictForIgnoresSelfAndPending(t *testing.T) {
	pending := teacher("u2", "Bình", "Toán 6/1")
	pending.IsApproved = false
	users := []models.User{teacher("u1", "An", "Toán 6/1"), pending}

	assert.Nil(t, ConflictFor(users, "u1", "Toán 6/1"))
	assert.Equal(t, "u1", ConflictFor(users, "u2", "Toán 6/1").ID)
	assert.Nil(t, ConflictFor(users, "u3", "Toán 6/2"))
	assert.Nil(t, ConflictFor(users, "u3", "Toán 6/1 "))
}

func TestNormalizeClassesIsIdempotent(t *testing.T) {
	once, err := normalizeClasses([]string{" Toán 6/1", "Toán 6/1", "", "Công nghệ 9/6"})
	require.NoError(t, err)
	twice, err := normalizeClasses(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestUserServiceApprove(t *testing.T) {
	f := newFixture(t)
	tcm := teacher("tcm", "Tổ trưởng")
	tcm.Role = models.RoleTCM
	pending := teacher("u2", "Bình", "Toán 6/1")
	pending.IsApproved = false
	f.users(t, tcm, pending)
	svc := NewUserService(f.repos.Users, nil, nil)

	_, err := svc.Approve(f.ctx, actorOf(pending), "u2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	approved, err := svc.Approve(f.ctx, actorOf(tcm), "u2")
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)

	_, err = svc.Approve(f.ctx, actorOf(tcm), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceApproveRechecksConflicts(t *testing.T) {
	f := newFixture(t)
	tcm := teacher("tcm", "Tổ trưởng")
	tcm.Role = models.RoleTP
	pending := teacher("u2", "Bình", "Toán 6/1")
	pending.IsApproved = false
	f.users(t, tcm, pending, teacher("u1", "An", "Toán 6/1"))

	_, err := NewUserService(f.repos.Users, nil, nil).Approve(f.ctx, actorOf(tcm), "u2")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestUserServiceUpdatePermissions(t *testing.T) {
	f := newFixture(t)
	tcm := teacher("tcm", "Tổ trưởng")
	tcm.Role = models.RoleTCM
	gv := teacher("u1", "An", "Toán 6/1")
	f.users(t, tcm, gv, teacher("u2", "Bình", "Toán 7/1"))
	svc := NewUserService(f.repos.Users, nil, nil)

	name := "  Nguyễn An "
	updated, err := svc.Update(f.ctx, actorOf(gv), "u1", UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Nguyễn An", updated.Name)

	classes := []string{"Toán 6/2"}
	_, err = svc.Update(f.ctx, actorOf(gv), "u1", UpdateUserRequest{AssignedClasses: &classes})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Update(f.ctx, actorOf(gv), "u2", UpdateUserRequest{Name: &name})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	taken := []string{"Toán 7/1"}
	_, err = svc.Update(f.ctx, actorOf(tcm), "u1", UpdateUserRequest{AssignedClasses: &taken})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	updated, err = svc.Update(f.ctx, actorOf(tcm), "u1", UpdateUserRequest{AssignedClasses: &classes})
	require.NoError(t, err)
	assert.Equal(t, classes, updated.AssignedClasses)
}

func TestUserServiceChangeRoleToStaffResetsAssignment(t *testing.T) {
	f := newFixture(t)
	gv := teacher("u1", "An", "Toán 6/1")
	gv.IsChuNhiem = true
	f.users(t, gv)
	svc := NewUserService(f.repos.Users, nil, nil)
	admin := Actor{ID: "root", Role: models.RoleTCM, Admin: true}

	_, err := svc.ChangeRole(f.ctx, Actor{ID: "tcm", Role: models.RoleTCM}, "u1", models.RoleNV)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	updated, err := svc.ChangeRole(f.ctx, admin, "u1", models.UserRole("Nhân viên"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleNV, updated.Role)
	assert.Empty(t, updated.AssignedClasses)
	assert.False(t, updated.IsChuNhiem)
	assert.Equal(t, models.OfficeSubject, updated.Subject)

	_, err = svc.ChangeRole(f.ctx, admin, "u1", models.UserRole("Hiệu trưởng"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceDelete(t *testing.T) {
	f := newFixture(t)
	f.users(t, teacher("u1", "An"))
	svc := NewUserService(f.repos.Users, nil, nil)
	admin := Actor{ID: "root", Role: models.RoleTCM, Admin: true}

	assert.True(t, errors.Is(svc.Delete(f.ctx, admin, "root"), appErrors.ErrForbidden))
	require.NoError(t, svc.Delete(f.ctx, admin, "u1"))
	_, err := svc.Get(f.ctx, "u1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	pending := teacher("u3", "Đặng Cường")
	pending.IsApproved = false
	f.users(t, teacher("u1", "Bùi An"), teacher("u2", "Lê Bình"), pending)
	svc := NewUserService(f.repos.Users, nil, nil)

	approved := true
	users, page, err := svc.List(f.ctx, models.UserFilter{Approved: &approved, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Bùi An", users[0].Name)
	assert.Equal(t, 2, page.TotalCount)

	users, _, err = svc.List(f.ctx, models.UserFilter{Search: "cuong"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u3", users[0].ID)
}
