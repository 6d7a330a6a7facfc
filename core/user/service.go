package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/tenant"
)

var (
	// errors
	ErrUserExists           = core.NewConflictError("a user with this email already exists in this school")
	ErrSchoolExists         = core.NewConflictError("a school with this code already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, school School, exec ...core.DBExecutor) (School, error)
		GetSchool(ctx context.Context, filter GetSchoolFilter, exec ...core.DBExecutor) (School, error)
		QuerySchools(ctx context.Context, exec ...core.DBExecutor) ([]School, error)
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// GetUser returns core.ErrNotFound unless a User matches all the set fields of filter.
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service interface {
		CreateSchool(ctx context.Context, ns NewSchool) (School, error)
		GetSchoolByCode(ctx context.Context, code string) (School, error)
		QuerySchools(ctx context.Context) ([]School, error)
		Create(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, schoolID, id string) (User, error)
		// GetMember returns the User of the school holding one of roles (any role when empty).
		GetMember(ctx context.Context, schoolID, id string, roles ...tenant.Role) (User, error)
		Authenticate(ctx context.Context, schoolCode, email, pwd string) (User, error)
		ResetPassword(ctx context.Context, schoolCode, email, pwd string) error
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{repo: repo, validate: validate}
}

func (svc *service) CreateSchool(ctx context.Context, ns NewSchool) (School, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return School{}, err
	}
	school, err := svc.repo.CreateSchool(ctx, School{
		Name:      ns.Name,
		Code:      ns.Code,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if core.IsConflict(err) {
			return School{}, ErrSchoolExists
		}
		return School{}, errors.Wrap(err, "creating school")
	}
	return school, nil
}

func (svc *service) GetSchoolByCode(ctx context.Context, code string) (School, error) {
	return svc.repo.GetSchool(ctx, GetSchoolFilter{Code: core.CleanString(code, true /* lower */)})
}

func (svc *service) QuerySchools(ctx context.Context) ([]School, error) {
	return svc.repo.QuerySchools(ctx)
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if _, err := svc.repo.GetSchool(ctx, GetSchoolFilter{ID: nu.SchoolID}); err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return User{}, core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: "school not found"})
		}
		return User{}, errors.Wrap(err, "finding school")
	}

	now := time.Now().UTC()
	usr := User{
		SchoolID:  nu.SchoolID,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Email:     nu.Email,
		Role:      tenant.Role(nu.Role),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if core.IsConflict(err) {
			return User{}, ErrUserExists
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, schoolID, id string) (User, error) {
	if schoolID == "" || id == "" {
		return User{}, core.ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{SchoolID: schoolID, ID: id})
}

func (svc *service) GetMember(ctx context.Context, schoolID, id string, roles ...tenant.Role) (User, error) {
	usr, err := svc.GetByID(ctx, schoolID, id)
	if err != nil {
		return User{}, err
	}
	if len(roles) == 0 {
		return usr, nil
	}
	for _, role := range roles {
		if usr.Role == role {
			return usr, nil
		}
	}
	return User{}, core.ErrNotFound
}

func (svc *service) getBySchoolCodeAndEmail(ctx context.Context, schoolCode, email string) (User, error) {
	school, err := svc.GetSchoolByCode(ctx, schoolCode)
	if err != nil {
		return User{}, err
	}
	return svc.repo.GetUser(ctx, GetFilter{SchoolID: school.ID, Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) Authenticate(ctx context.Context, schoolCode, email, pwd string) (User, error) {
	usr, err := svc.getBySchoolCodeAndEmail(ctx, schoolCode, email)
	if err != nil {
		if errors.Cause(err) == core.ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *service) ResetPassword(ctx context.Context, schoolCode, email, pwd string) error {
	usr, err := svc.getBySchoolCodeAndEmail(ctx, schoolCode, email)
	if err != nil {
		return err
	}
	if tag := checkPassword(pwd, usr.FirstName, usr.LastName, usr.Email); tag != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: passwordPolicyText(tag)})
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating password")
}

func passwordPolicyText(tag string) string {
	switch tag {
	case pwdMinLenTag:
		return pwdMinLenText
	case pwdNoSpaceTag:
		return pwdNoSpaceText
	case pwdNotAllNumTag:
		return pwdNotAllNumText
	case pwdComplexityTag:
		return pwdComplexityText
	default:
		return pwdAttrSimText
	}
}
