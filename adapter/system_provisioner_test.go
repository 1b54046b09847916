package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type recordedCommand struct {
	name string
	args []string
}

type fakeRunner struct {
	commands []recordedCommand
	// existing usernames recognized by "id -u".
	existing map[string]bool
	failOn   string
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	_ = ctx
	f.commands = append(f.commands, recordedCommand{name: name, args: args})
	if name == f.failOn {
		return []byte("boom"), errors.New("exit status 1")
	}
	switch name {
	case "openssl":
		return []byte("$6$salt$hashed\n"), nil
	case "id":
		user := args[len(args)-1]
		if !f.existing[user] {
			return nil, errors.New("exit status 1")
		}
		return []byte("1001\n"), nil
	}
	return nil, nil
}

func (f *fakeRunner) commandLines() []string {
	lines := make([]string, 0, len(f.commands))
	for _, cmd := range f.commands {
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("%s %s", cmd.name, strings.Join(cmd.args, " "))))
	}
	return lines
}

func TestCreateResourceHashesBeforeUseradd(t *testing.T) {
	runner := &fakeRunner{}
	provisioner := NewSystemProvisioner(runner.run)

	if err := provisioner.CreateResource(context.Background(), "john", "swiftriver1234"); err != nil {
		t.Fatalf("create: %v", err)
	}

	lines := runner.commandLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 commands, got %v", lines)
	}
	if lines[0] != "openssl passwd -6 swiftriver1234" {
		t.Fatalf("expected openssl hash first, got %q", lines[0])
	}
	if lines[1] != "useradd -m -p $6$salt$hashed john" {
		t.Fatalf("expected useradd with hash, got %q", lines[1])
	}
}

func TestCreateResourcePropagatesUseraddFailure(t *testing.T) {
	runner := &fakeRunner{failOn: "useradd"}
	provisioner := NewSystemProvisioner(runner.run)

	err := provisioner.CreateResource(context.Background(), "john", "swiftriver1234")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected useradd failure with command output, got %v", err)
	}
}

func TestRemoveResourceIsIdempotent(t *testing.T) {
	runner := &fakeRunner{existing: map[string]bool{"john": true}}
	provisioner := NewSystemProvisioner(runner.run)

	if err := provisioner.RemoveResource(context.Background(), "john"); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	lines := runner.commandLines()
	if lines[len(lines)-1] != "userdel -r john" {
		t.Fatalf("expected userdel -r, got %q", lines[len(lines)-1])
	}

	// The account is gone now; a retried remove must not call userdel.
	runner.existing = map[string]bool{}
	before := len(runner.commands)
	if err := provisioner.RemoveResource(context.Background(), "john"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	for _, cmd := range runner.commands[before:] {
		if cmd.name == "userdel" {
			t.Fatalf("userdel called for an absent account")
		}
	}
}

func TestRotateCredentialReturnsFreshSecret(t *testing.T) {
	runner := &fakeRunner{existing: map[string]bool{"john": true}}
	provisioner := NewSystemProvisioner(runner.run)

	secret, err := provisioner.RotateCredential(context.Background(), "john")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if secret == "" {
		t.Fatalf("expected a generated secret")
	}

	lines := runner.commandLines()
	if lines[len(lines)-1] != "usermod -p $6$salt$hashed john" {
		t.Fatalf("expected usermod with hash, got %q", lines[len(lines)-1])
	}
	if !strings.Contains(lines[0], secret) {
		t.Fatalf("expected the new secret to be hashed, got %q", lines[0])
	}
}

func TestResourceExists(t *testing.T) {
	runner := &fakeRunner{existing: map[string]bool{"john": true}}
	provisioner := NewSystemProvisioner(runner.run)

	exists, err := provisioner.ResourceExists(context.Background(), "john")
	if err != nil || !exists {
		t.Fatalf("expected john to exist: exists=%v err=%v", exists, err)
	}
	exists, err = provisioner.ResourceExists(context.Background(), "ghost")
	if err != nil || exists {
		t.Fatalf("expected ghost to be absent: exists=%v err=%v", exists, err)
	}
}
