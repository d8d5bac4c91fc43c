package app

import (
	"context"
	"testing"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/domain/user"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/app/system"
	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/internal/config"
)

func TestNewWiresSharedLedger(t *testing.T) {
	application, err := New(Stores{}, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer application.Stop(ctx)

	if _, err := application.Users.Register(ctx, "u1", "Ana", "ana@example.com", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := application.Points.Adjust(ctx, "u1", 15, "welcome"); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	got, err := application.Users.Get(ctx, "u1")
	if err != nil || got.Points != 15 || got.Role != user.RoleUser {
		t.Fatalf("user = %+v, %v", got, err)
	}
}

func TestSchedulerRegistrationFollowsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.Enabled = false
	application, err := New(Stores{}, cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, name := range application.manager.Services() {
		if name == application.Maintenance.Name() {
			t.Fatalf("maintenance registered while disabled")
		}
	}
	if err := application.Attach(system.NoopService{ServiceName: "extra"}); err != nil {
		t.Fatalf("attach: %v", err)
	}
}
