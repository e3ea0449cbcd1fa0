package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"micro-savings-wallet/internal/core/domain"
	"micro-savings-wallet/internal/core/ports"
	"micro-savings-wallet/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var validate = validator.New()

type userService struct {
	userRepo        ports.UserRepository
	walletRepo      ports.WalletRepository
	transactor      ports.DBTransactor
	defaultCurrency string
	log             zerolog.Logger
}

// NewUserService creates a new user management service.
func NewUserService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	defaultCurrency string,
	log zerolog.Logger,
) ports.UserService {
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	return &userService{
		userRepo:        userRepo,
		walletRepo:      walletRepo,
		transactor:      transactor,
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

// CreateUser registers a user together with an empty wallet in the default currency.
func (s *userService) CreateUser(ctx context.Context, req ports.CreateUserRequest) (*domain.UserWithWallets, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return nil, apperror.Validation("A valid email is required")
	}
	if name == "" {
		return nil, apperror.Validation("Name is required")
	}
	role := req.Role
	if role == "" {
		role = domain.UserRoleUser
	}
	if role != domain.UserRoleUser && role != domain.UserRoleAdmin {
		return nil, apperror.Validation(fmt.Sprintf("Invalid role: %s", role))
	}

	now := domain.Now()
	user := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	wallet := domain.NewWallet(user.ID, s.defaultCurrency, now)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		return nil, s.createErr(err)
	}
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, s.createErr(err)
	}
	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, s.createErr(err)
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Str("currency", wallet.Currency).
		Msg("user created")

	return &domain.UserWithWallets{User: *user, Wallets: []domain.Wallet{*wallet}}, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*domain.UserWithWallets, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if user == nil {
		return nil, apperror.ErrUserNotFound()
	}
	wallets, err := s.walletRepo.ListByUser(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if wallets == nil {
		wallets = []domain.Wallet{}
	}
	return &domain.UserWithWallets{User: *user, Wallets: wallets}, nil
}

// ListUsers returns every user with their wallets.
func (s *userService) ListUsers(ctx context.Context) ([]domain.UserWithWallets, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	wallets, err := s.walletRepo.ListAll(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	byUser := make(map[uuid.UUID][]domain.Wallet, len(users))
	for _, w := range wallets {
		byUser[w.UserID] = append(byUser[w.UserID], w)
	}

	result := make([]domain.UserWithWallets, 0, len(users))
	for _, u := range users {
		ws := byUser[u.ID]
		if ws == nil {
			ws = []domain.Wallet{}
		}
		result = append(result, domain.UserWithWallets{User: u, Wallets: ws})
	}
	return result, nil
}

func (s *userService) createErr(err error) error {
	if errors.Is(err, domain.ErrDuplicateEmail) {
		return apperror.ErrEmailExists()
	}
	return apperror.InternalError(fmt.Errorf("create user: %w", err))
}
