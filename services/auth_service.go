package services

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"campus-chat/config"
	"campus-chat/models"
	"campus-chat/repository"
	"campus-chat/utils"
)

// AuthService is the identity gateway: it turns portal credentials into
// signed (id, role) identities and verifies them back. Everything past this
// boundary trusts the identity as given.
type AuthService struct {
	profiles repository.ProfileRepository
	config   *config.Config
}

func NewAuthService(profiles repository.ProfileRepository, cfg *config.Config) *AuthService {
	return &AuthService{profiles: profiles, config: cfg}
}

func (s *AuthService) Register(name, email string, role models.Role, password string) (*models.Profile, error) {
	if len(name) < 2 || len(name) > 100 {
		return nil, fmt.Errorf("%w: name must be between 2 and 100 characters", ErrValidation)
	}
	if len(password) < 6 || len(password) > 100 {
		return nil, fmt.Errorf("%w: password must be between 6 and 100 characters", ErrValidation)
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.profiles.Create(name, email, role, string(hashed))
}

func (s *AuthService) Login(email, password string) (string, *models.Profile, error) {
	if email == "" || password == "" {
		return "", nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	p, err := s.profiles.FindByEmail(email)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.CreateToken(p.Identity())
	return token, p, err
}

func (s *AuthService) CreateToken(identity models.Identity) (string, error) {
	return utils.GenerateJWT(s.config.JWTSecret, identity, s.config.JWTExpiry)
}

func (s *AuthService) ParseToken(token string) (models.Identity, error) {
	return utils.ParseJWT(s.config.JWTSecret, token)
}
