package participants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/pkg/auth"
	"github.com/agritrace/agritrace-backend/pkg/config"
	dbpkg "github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/security"
)

// Field limits enforced at registration.
const (
	MaxNameLength    = 32
	MaxContactLength = 64
	MinPasswordLen   = 8
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// accountCreator opens the participant's ledger account inside the
// registration transaction. The vault service satisfies it.
type accountCreator interface {
	CreateParticipantAccountTx(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) (*models.Account, error)
}

// Service registers and authenticates supply-chain participants.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Participant, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Lookup(ctx context.Context, id uuid.UUID) (*models.Participant, error)
}

// RegisterInput creates a participant identity plus its ledger account.
type RegisterInput struct {
	Email    string
	Password string
	Role     enums.ParticipantRole
	Name     string
	Contact  string
}

// LoginInput authenticates by email and password.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult carries the minted access token and its subject.
type LoginResult struct {
	Participant *models.Participant
	AccessToken string
	ExpiresAt   time.Time
}

type service struct {
	repo        Repository
	tx          txRunner
	accounts    accountCreator
	jwtConfig   config.JWTConfig
	passwordCfg config.PasswordConfig
}

// NewService wires the participant service.
func NewService(repo Repository, tx txRunner, accounts accountCreator, jwtConfig config.JWTConfig, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("participant repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account creator required")
	}
	if jwtConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		accounts:    accounts,
		jwtConfig:   jwtConfig,
		passwordCfg: passwordCfg,
	}, nil
}

// Register creates the identity and its ledger account in one transaction, so
// a participant never exists without an account to settle into.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Participant, error) {
	if err := validateRegistration(input); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	participant := &models.Participant{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		Role:         input.Role,
		Name:         strings.TrimSpace(input.Name),
		Contact:      strings.TrimSpace(input.Contact),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, participant); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create participant")
		}
		if _, err := s.accounts.CreateParticipantAccountTx(ctx, tx, participant.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// Login verifies the credentials and mints a role-bearing access token. All
// failure modes return the same UNAUTHORIZED to keep credential probing blind.
func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	participant, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participant")
	}

	ok, err := security.VerifyPassword(input.Password, participant.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := time.Now()
	token, err := auth.MintAccessToken(s.jwtConfig, now, auth.AccessTokenPayload{
		ParticipantID: participant.ID,
		Role:          participant.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &LoginResult{
		Participant: participant,
		AccessToken: token,
		ExpiresAt:   now.Add(time.Duration(s.jwtConfig.ExpirationMinutes) * time.Minute),
	}, nil
}

func (s *service) Lookup(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	participant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "participant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load participant")
	}
	return participant, nil
}

func validateRegistration(input RegisterInput) error {
	email := strings.TrimSpace(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid email required")
	}
	if len(input.Password) < MinPasswordLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "password too short").
			WithDetails(map[string]any{"min_length": MinPasswordLen})
	}
	if !input.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown participant role")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > MaxNameLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "name must be 1-32 characters")
	}
	if len(strings.TrimSpace(input.Contact)) > MaxContactLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact must be at most 64 characters")
	}
	return nil
}
