package user_service

import (
	"context"
	"fmt"
	"strings"

	"minibus-console/internal/models"
	"minibus-console/internal/repository"
	"minibus-console/internal/service"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type userService struct {
	userRepo repository.UserRepository
	busRepo  repository.BusRepository
	validate *validator.Validate
	log      *zap.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	busRepo repository.BusRepository,
	log *zap.Logger,
) service.UserService {
	return &userService{
		userRepo: userRepo,
		busRepo:  busRepo,
		validate: validator.New(),
		log:      log.Named("user"),
	}
}

func (s *userService) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.TrimSpace(user.Email)

	if !validRole(user.Role) {
		return nil, models.NewError(models.KindInvalidArgument,
			"invalid role %q: expected admin, driver or rider", user.Role)
	}
	if user.Name == "" {
		return nil, models.NewError(models.KindInvalidArgument, "name is required")
	}
	if err := s.checkEmail(user.Email); err != nil {
		return nil, err
	}

	// списки назначений ведёт координатор
	user.BusAssignments = []models.BusAssignment{}
	user.DriverBuses = nil

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user created", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return s.userRepo.GetByID(ctx, user.ID)
}

func (s *userService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) List(ctx context.Context, role string) ([]*models.User, error) {
	if role == "" {
		return s.userRepo.GetAll(ctx)
	}
	if !validRole(role) {
		return nil, models.NewError(models.KindInvalidArgument,
			"invalid role %q: expected admin, driver or rider", role)
	}
	return s.userRepo.GetByRole(ctx, role)
}

func (s *userService) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, models.NewError(models.KindInvalidArgument, "name is required")
	}
	if patch.Email != nil {
		if err := s.checkEmail(*patch.Email); err != nil {
			return nil, err
		}
	}

	fields, err := repository.ToDocument(patch)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, id, fields); err != nil {
			return nil, fmt.Errorf("failed to update user %s: %w", id, err)
		}
	}
	return s.userRepo.GetByID(ctx, id)
}

// Delete refuses while the user is still referenced by a bus.
func (s *userService) Delete(ctx context.Context, id string) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	buses, err := s.busRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list buses: %w", err)
	}
	for _, bus := range buses {
		if bus.DriverID == id {
			return models.NewError(models.KindConflict,
				"user %s still drives bus %s; assign another driver first", id, bus.Name)
		}
		for _, link := range bus.CurrentRiders {
			if link.RiderID == id {
				return models.NewError(models.KindConflict,
					"user %s is still on the roster of bus %s; remove them first", id, bus.Name)
			}
		}
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	s.log.Info("user deleted",
		zap.String("user_id", id),
		zap.String("role", user.Role),
		zap.Int("stale_assignments", len(user.BusAssignments)))
	return nil
}

func (s *userService) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return models.NewError(models.KindInvalidArgument, "invalid email %q", email)
	}
	return nil
}

func validRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleDriver, models.RoleRider:
		return true
	}
	return false
}
