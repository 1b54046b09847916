package adapter

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/Shra1V32/server-rental-assistant/plan"
)

// CommandRunner executes one external command and returns its combined
// output. Tests inject a fake; production uses ExecRunner.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SystemProvisioner manages local system accounts with useradd, userdel and
// usermod. Passwords are hashed with openssl before they reach the account
// tools so the cleartext never lands in /etc/shadow handling.
type SystemProvisioner struct {
	run CommandRunner
}

// NewSystemProvisioner builds a SystemProvisioner. A nil runner defaults to
// ExecRunner.
func NewSystemProvisioner(run CommandRunner) *SystemProvisioner {
	if run == nil {
		run = ExecRunner
	}
	return &SystemProvisioner{run: run}
}

// CreateResource creates a system account with a home directory and the
// given password.
func (p *SystemProvisioner) CreateResource(ctx context.Context, owner, secret string) error {
	hash, err := p.hashSecret(ctx, secret)
	if err != nil {
		return fmt.Errorf("hash password for %q: %w", owner, err)
	}
	out, err := p.run(ctx, "useradd", "-m", "-p", hash, owner)
	if err != nil {
		return fmt.Errorf("useradd %q: %w: %s", owner, err, strings.TrimSpace(string(out)))
	}
	log.Printf("provisioner action=create owner=%q", owner)
	return nil
}

// RemoveResource deletes the account and its home directory. Removing an
// account that does not exist is a no-op, so retried terminations converge.
func (p *SystemProvisioner) RemoveResource(ctx context.Context, owner string) error {
	exists, err := p.ResourceExists(ctx, owner)
	if err != nil {
		return err
	}
	if !exists {
		log.Printf("provisioner action=remove owner=%q result=absent", owner)
		return nil
	}
	out, err := p.run(ctx, "userdel", "-r", owner)
	if err != nil {
		return fmt.Errorf("userdel %q: %w: %s", owner, err, strings.TrimSpace(string(out)))
	}
	log.Printf("provisioner action=remove owner=%q result=removed", owner)
	return nil
}

// RotateCredential sets a freshly generated password on the account and
// returns it.
func (p *SystemProvisioner) RotateCredential(ctx context.Context, owner string) (string, error) {
	secret := plan.GenerateSecret()
	hash, err := p.hashSecret(ctx, secret)
	if err != nil {
		return "", fmt.Errorf("hash password for %q: %w", owner, err)
	}
	out, err := p.run(ctx, "usermod", "-p", hash, owner)
	if err != nil {
		return "", fmt.Errorf("usermod %q: %w: %s", owner, err, strings.TrimSpace(string(out)))
	}
	log.Printf("provisioner action=rotate owner=%q", owner)
	return secret, nil
}

// ResourceExists reports whether the system account exists.
func (p *SystemProvisioner) ResourceExists(ctx context.Context, owner string) (bool, error) {
	if _, err := p.run(ctx, "id", "-u", owner); err != nil {
		// id exits non-zero for unknown users; treat any failure as absent
		// rather than distinguishing lookup errors, matching userdel's own
		// behavior on a missing account.
		return false, nil
	}
	return true, nil
}

func (p *SystemProvisioner) hashSecret(ctx context.Context, secret string) (string, error) {
	out, err := p.run(ctx, "openssl", "passwd", "-6", secret)
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(string(out))
	if hash == "" {
		return "", fmt.Errorf("openssl produced an empty hash")
	}
	return hash, nil
}
