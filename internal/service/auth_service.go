package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitbill/internal/auth"
	"github.com/mmynk/splitbill/internal/ledger"
	"github.com/mmynk/splitbill/internal/models"
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	engine        *ledger.Engine
	workspace     *Workspace
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
// workspace may be nil, in which case logins do not load an in-memory ledger.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, engine *ledger.Engine, workspace *Workspace, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		engine:        engine,
		workspace:     workspace,
		logger:        logger,
	}
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	s.logger.Info("Register request", "email", req.Msg.Email)

	if strings.TrimSpace(req.Msg.Email) == "" || strings.TrimSpace(req.Msg.Name) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.authenticator.Register(ctx, auth.Registration{
		Email:       req.Msg.Email,
		Name:        strings.TrimSpace(req.Msg.Name),
		PhoneNumber: strings.TrimSpace(req.Msg.PhoneNumber),
		Credential:  req.Msg.Password,
	})
	if err != nil {
		s.logger.Error("Registration failed", "email", req.Msg.Email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	token, err := s.signIn(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(&RegisterResponse{User: user, Token: token}), nil
}

// Login authenticates a user and returns a session token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	s.logger.Info("Login request", "email", req.Msg.Email)

	if req.Msg.Email == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Msg.Email, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	token, err := s.signIn(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(&LoginResponse{User: user, Token: token}), nil
}

// signIn issues a token for user and makes them the session user.
func (s *AuthService) signIn(ctx context.Context, user models.Participant) (string, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return "", connect.NewError(connect.CodeInternal, err)
	}

	if s.workspace != nil {
		// The token is still valid when the ledger fails to load; the next GetLedger retries.
		if err := s.workspace.Begin(ctx, user.ID); err != nil {
			s.logger.Warn("Failed to load ledger after sign-in", "user_id", user.ID, "error", err)
		}
	}
	return token, nil
}

// Logout ends the local session when the caller owns it. Tokens are stateless and
// are discarded by the client.
func (s *AuthService) Logout(ctx context.Context, req *connect.Request[LogoutRequest]) (*connect.Response[LogoutResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Logout request", "user_id", sc.UserID)

	if s.workspace != nil && s.workspace.owns(sc) {
		if err := s.workspace.End(); err != nil {
			s.logger.Error("Failed to end session", "user_id", sc.UserID, "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}
	return connect.NewResponse(&LogoutResponse{}), nil
}

// GetCurrentUser returns the profile of the authenticated user.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	sc, err := sessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("GetCurrentUser request", "user_id", sc.UserID)

	user, err := s.engine.ResolveCurrentUser(ctx, sc)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetCurrentUserResponse{User: user}), nil
}
