// Package usermanagement defines the remote user administration interface and
// an in-memory implementation of it.
package usermanagement

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/uvfs/uvfs/rpc"
)

var (
	ErrNotInstalled = errors.New("user manager is not installed")
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidUser  = errors.New("invalid user")
)

// UserInformation describes a user without credentials.
type UserInformation struct {
	UserName string
	Roles    []string
}

// UserInformationWithPassword carries a user together with a new password.
type UserInformationWithPassword struct {
	UserInformation
	Password string
}

// Service is the user administration contract.
type Service interface {
	IsUserManagerInstalled(ctx context.Context) bool
	GetUsers(ctx context.Context) ([]UserInformation, error)
	AddUser(ctx context.Context, user UserInformationWithPassword) error
	UpdateUser(ctx context.Context, user UserInformation) error
	UpdateUserPassword(ctx context.Context, user UserInformationWithPassword) error
	DeleteUser(ctx context.Context, user UserInformation) error
}

type storedUser struct {
	roles    []string
	password string
}

// MemoryService keeps users in memory. The zero value is not usable; use
// NewMemoryService.
type MemoryService struct {
	mu    sync.RWMutex
	users map[string]storedUser
}

func NewMemoryService() *MemoryService {
	return &MemoryService{users: make(map[string]storedUser)}
}

func (s *MemoryService) IsUserManagerInstalled(context.Context) bool {
	return true
}

// GetUsers returns all users sorted by name.
func (s *MemoryService) GetUsers(context.Context) ([]UserInformation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]UserInformation, 0, len(s.users))
	for name, u := range s.users {
		users = append(users, UserInformation{UserName: name, Roles: slices.Clone(u.roles)})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserName < users[j].UserName })
	return users, nil
}

func (s *MemoryService) AddUser(_ context.Context, user UserInformationWithPassword) error {
	if user.UserName == "" {
		return fmt.Errorf("%w: user name cannot be empty", ErrInvalidUser)
	}
	if user.Password == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidUser)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.UserName]; exists {
		return fmt.Errorf("%w: %s", ErrUserExists, user.UserName)
	}
	s.users[user.UserName] = storedUser{roles: slices.Clone(user.Roles), password: user.Password}
	return nil
}

func (s *MemoryService) UpdateUser(_ context.Context, user UserInformation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.users[user.UserName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUserNotFound, user.UserName)
	}
	stored.roles = slices.Clone(user.Roles)
	s.users[user.UserName] = stored
	return nil
}

func (s *MemoryService) UpdateUserPassword(_ context.Context, user UserInformationWithPassword) error {
	if user.Password == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidUser)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.users[user.UserName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUserNotFound, user.UserName)
	}
	stored.roles = slices.Clone(user.Roles)
	stored.password = user.Password
	s.users[user.UserName] = stored
	return nil
}

func (s *MemoryService) DeleteUser(_ context.Context, user UserInformation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.UserName]; !exists {
		return fmt.Errorf("%w: %s", ErrUserNotFound, user.UserName)
	}
	delete(s.users, user.UserName)
	return nil
}

var _ Service = (*MemoryService)(nil)

const ServiceName = "users"

// Bind registers svc on d under the users service. Mutating methods fail with
// ErrNotInstalled when the service reports no user manager.
func Bind(d *rpc.Dispatcher, svc Service) error {
	installed := func(ctx context.Context, call *rpc.Call, proceed rpc.Invoker) (any, error) {
		if !svc.IsUserManagerInstalled(ctx) {
			return nil, ErrNotInstalled
		}
		return proceed(ctx, call)
	}

	type binding struct {
		method       string
		handler      rpc.Invoker
		interceptors []rpc.Interceptor
	}
	bindings := []binding{
		{method: "isUserManagerInstalled", handler: func(ctx context.Context, _ *rpc.Call) (any, error) {
			return svc.IsUserManagerInstalled(ctx), nil
		}},
		{method: "getUsers", handler: func(ctx context.Context, _ *rpc.Call) (any, error) {
			return svc.GetUsers(ctx)
		}},
		{method: "addUser", interceptors: []rpc.Interceptor{installed}, handler: func(ctx context.Context, call *rpc.Call) (any, error) {
			user, ok := call.Param(0).(UserInformationWithPassword)
			if !ok {
				return nil, fmt.Errorf("%w: expected UserInformationWithPassword", ErrInvalidUser)
			}
			return nil, svc.AddUser(ctx, user)
		}},
		{method: "updateUser", interceptors: []rpc.Interceptor{installed}, handler: func(ctx context.Context, call *rpc.Call) (any, error) {
			switch user := call.Param(0).(type) {
			case UserInformationWithPassword:
				return nil, svc.UpdateUserPassword(ctx, user)
			case UserInformation:
				return nil, svc.UpdateUser(ctx, user)
			default:
				return nil, fmt.Errorf("%w: expected UserInformation", ErrInvalidUser)
			}
		}},
		{method: "deleteUser", interceptors: []rpc.Interceptor{installed}, handler: func(ctx context.Context, call *rpc.Call) (any, error) {
			user, ok := call.Param(0).(UserInformation)
			if !ok {
				return nil, fmt.Errorf("%w: expected UserInformation", ErrInvalidUser)
			}
			return nil, svc.DeleteUser(ctx, user)
		}},
	}

	for _, b := range bindings {
		if err := d.Register(ServiceName, b.method, b.handler, b.interceptors...); err != nil {
			return fmt.Errorf("failed to bind user management service: %w", err)
		}
	}
	return nil
}
