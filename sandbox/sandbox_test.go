package sandbox

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kadirpekel/hector-pml/workflow"
)

func programJSON(t *testing.T, p Program) string {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshaling program: %v", err)
	}
	return string(data)
}

func TestExecuteReadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greeting.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	e := New(nil, dir)
	task := workflow.Task{
		ID:   "t1",
		Kind: workflow.KindCodeExec,
		Code: programJSON(t, Program{
			Instructions: []Instruction{
				{Op: OpReadFile, Path: "greeting.txt"},
			},
			Result: 0,
		}),
	}

	result, err := e.Execute(context.Background(), task, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != workflow.StatusSuccess {
		t.Fatalf("status = %v, want success: %+v", result.Status, result.Error)
	}
	if result.Output != "hello" {
		t.Errorf("Output = %v, want %q", result.Output, "hello")
	}
}

func TestExecuteWriteFile(t *testing.T) {
	dir := t.TempDir()
	e := New(nil, dir)

	task := workflow.Task{
		ID:   "t1",
		Kind: workflow.KindCodeExec,
		Code: programJSON(t, Program{
			Instructions: []Instruction{
				{Op: OpLiteral, Value: "written content"},
				{Op: OpWriteFile, Path: "out.txt", Ref: 0},
			},
			Result: 1,
		}),
	}

	result, err := e.Execute(context.Background(), task, nil, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != workflow.StatusSuccess {
		t.Fatalf("status = %v, want success: %+v", result.Status, result.Error)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "written content" {
		t.Errorf("file contents = %q, want %q", data, "written content")
	}
}

func TestExecuteReadFileNoWorkspaceRootDenied(t *testing.T) {
	e := New(nil, "")
	task := workflow.Task{
		ID:   "t1",
		Kind: workflow.KindCodeExec,
		Code: programJSON(t, Program{
			Instructions: []Instruction{{Op: OpReadFile, Path: "secret.txt"}},
			Result:       0,
		}),
	}

	result, err := e.Execute(context.Background(), task, nil, nil)
	if err == nil {
		t.Fatal("expected an error when no workspace root is configured")
	}
	if result.Status != workflow.StatusFailedSafe {
		t.Errorf("status = %v, want failed_safe for a side-effect-free task", result.Status)
	}
}

func TestExecuteReadFileRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	e := New(nil, dir)
	task := workflow.Task{
		ID:   "t1",
		Kind: workflow.KindCodeExec,
		Code: programJSON(t, Program{
			Instructions: []Instruction{{Op: OpReadFile, Path: "../outside.txt"}},
			Result:       0,
		}),
	}

	result, err := e.Execute(context.Background(), task, nil, nil)
	if err == nil {
		t.Fatal("expected a traversal attempt to be rejected")
	}
	if result.Status != workflow.StatusFailedSafe {
		t.Errorf("status = %v, want failed_safe", result.Status)
	}
}

func TestExecuteReadFileRejectsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	e := New(nil, dir)
	task := workflow.Task{
		ID:   "t1",
		Kind: workflow.KindCodeExec,
		Code: programJSON(t, Program{
			Instructions: []Instruction{{Op: OpReadFile, Path: "/etc/passwd"}},
			Result:       0,
		}),
	}

	result, err := e.Execute(context.Background(), task, nil, nil)
	if err == nil {
		t.Fatal("expected an absolute path to be rejected")
	}
	if result.Status != workflow.StatusFailedSafe {
		t.Errorf("status = %v, want failed_safe", result.Status)
	}
}
