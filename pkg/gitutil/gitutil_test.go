package gitutil

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"k8s.io/utils/exec"
	testingexec "k8s.io/utils/exec/testing"
)

func newFakeExec(outputs []string) (*testingexec.FakeExec, []*testingexec.FakeCmd) {
	fexec := &testingexec.FakeExec{}
	cmds := make([]*testingexec.FakeCmd, 0, len(outputs))
	for _, out := range outputs {
		out := out
		fakeCmd := &testingexec.FakeCmd{
			CombinedOutputScript: []testingexec.FakeAction{
				func() ([]byte, []byte, error) { return []byte(out + "\n"), nil, nil },
			},
		}
		cmds = append(cmds, fakeCmd)
		fexec.CommandScript = append(fexec.CommandScript, func(cmd string, args ...string) exec.Cmd {
			return testingexec.InitFakeCmd(fakeCmd, cmd, args...)
		})
	}
	return fexec, cmds
}

func TestRead(t *testing.T) {
	fexec, cmds := newFakeExec([]string{
		"develop",
		"7c39a1996b19087737c05d883fd346d2f2069666",
		"v1.2.0-3-g7c39a19",
	})

	m, err := Read(zap.NewExample(), fexec, "/tmp/PaddleScience")
	if err != nil {
		t.Fatal(err)
	}

	expected := Meta{
		Branch:  "develop",
		Commit:  "7c39a1996b19087737c05d883fd346d2f2069666",
		Version: "v1.2.0-3-g7c39a19",
	}
	if !reflect.DeepEqual(m, expected) {
		t.Fatalf("expected %+v, got %+v", expected, m)
	}
	if fexec.CommandCalls != 3 {
		t.Fatalf("expected 3 git invocations, got %d", fexec.CommandCalls)
	}

	expectedArgv := [][]string{
		{"git", "rev-parse", "--abbrev-ref", "HEAD"},
		{"git", "rev-parse", "HEAD"},
		{"git", "describe", "--tags", "--always"},
	}
	for i, cmd := range cmds {
		if !reflect.DeepEqual(cmd.Argv, expectedArgv[i]) {
			t.Fatalf("invocation %d: expected %v, got %v", i, expectedArgv[i], cmd.Argv)
		}
		if len(cmd.Dirs) == 0 || cmd.Dirs[0] != "/tmp/PaddleScience" {
			t.Fatalf("invocation %d: expected dir %q, got %v", i, "/tmp/PaddleScience", cmd.Dirs)
		}
	}
}

func TestReadError(t *testing.T) {
	fexec := &testingexec.FakeExec{
		CommandScript: []testingexec.FakeCommandAction{
			func(cmd string, args ...string) exec.Cmd {
				return testingexec.InitFakeCmd(&testingexec.FakeCmd{
					CombinedOutputScript: []testingexec.FakeAction{
						func() ([]byte, []byte, error) {
							return []byte("fatal: not a git repository"), nil, exec.CodeExitError{Err: errors.New("exit status 128"), Code: 128}
						},
					},
				}, cmd, args...)
			},
		},
	}

	if _, err := Read(zap.NewExample(), fexec, "/tmp/not-a-repo"); err == nil {
		t.Fatal("expected error for non-repository")
	}
}
