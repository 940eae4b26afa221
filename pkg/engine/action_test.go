package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/warpcode/zinstall/pkg/recipe"
)

func TestRunActionNilIsNoOp(t *testing.T) {
	rec := &recipe.Recipe{ID: "r"}
	if err := runAction(context.Background(), CallbackRegistry{}, rec, nil, "pre_install"); err != nil {
		t.Fatalf("Expected nil action to be a no-op, got: %v", err)
	}
}

func TestRunActionNamedCallback(t *testing.T) {
	rec := &recipe.Recipe{ID: "r"}
	called := false
	registry := CallbackRegistry{
		"setup": func(ctx context.Context, r *recipe.Recipe) error {
			called = true
			if r.ID != "r" {
				t.Errorf("Expected recipe passed through, got %q", r.ID)
			}
			return nil
		},
	}

	action := &recipe.Action{Kind: recipe.ActionNamed, Name: "setup"}
	if err := runAction(context.Background(), registry, rec, action, "pre_install"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !called {
		t.Error("Expected callback to run")
	}
}

func TestRunActionUnregisteredCallback(t *testing.T) {
	rec := &recipe.Recipe{ID: "r"}
	action := &recipe.Action{Kind: recipe.ActionNamed, Name: "ghost"}

	err := runAction(context.Background(), CallbackRegistry{}, rec, action, "pre_install")
	if CodeOf(err) != CodeInstall {
		t.Errorf("Expected INSTALL_FAILED, got %v", err)
	}
}

func TestRunActionCallbackFailure(t *testing.T) {
	rec := &recipe.Recipe{ID: "r"}
	registry := CallbackRegistry{
		"boom": func(ctx context.Context, r *recipe.Recipe) error {
			return errors.New("callback exploded")
		},
	}
	action := &recipe.Action{Kind: recipe.ActionNamed, Name: "boom"}

	err := runAction(context.Background(), registry, rec, action, "post_install")
	if CodeOf(err) != CodeInstall {
		t.Errorf("Expected INSTALL_FAILED, got %v", err)
	}
}

func TestRunActionShellExpression(t *testing.T) {
	rec := &recipe.Recipe{ID: "r"}
	marker := filepath.Join(t.TempDir(), "touched")
	action := &recipe.Action{Kind: recipe.ActionShell, Script: "touch " + marker}

	if err := runAction(context.Background(), CallbackRegistry{}, rec, action, "install_cmd"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("Expected shell expression to run: %v", err)
	}
}

func TestRunActionShellFailure(t *testing.T) {
	rec := &recipe.Recipe{ID: "r"}
	action := &recipe.Action{Kind: recipe.ActionShell, Script: "false"}

	err := runAction(context.Background(), CallbackRegistry{}, rec, action, "install_cmd")
	if CodeOf(err) != CodeInstall {
		t.Errorf("Expected INSTALL_FAILED for non-zero exit, got %v", err)
	}
}

func TestRunActionShellParseError(t *testing.T) {
	rec := &recipe.Recipe{ID: "r"}
	action := &recipe.Action{Kind: recipe.ActionShell, Script: "if then fi ((("}

	if err := runAction(context.Background(), CallbackRegistry{}, rec, action, "install_cmd"); err == nil {
		t.Error("Expected parse error for invalid shell syntax")
	}
}
