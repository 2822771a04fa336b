package tipcconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestConfigLoadSync(t *testing.T) {
	dir := t.TempDir()
	tipcCfg := filepath.Join(dir, "train.txt")
	if err := os.WriteFile(tipcCfg, []byte("model_item=cylinder2d\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefault()
	cfg.ConfigPath = filepath.Join(dir, "tipc-bench.yaml")
	cfg.TipcConfigPath = tipcCfg
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.CaseVariant = "cylinder2d_unsteady"
	cfg.Devices = []string{"0"}
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(cfg.ConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != cfg.Name {
		t.Fatalf("Name expected %q, got %q", cfg.Name, loaded.Name)
	}
	if loaded.Mode != DefaultMode {
		t.Fatalf("Mode expected %q, got %q", DefaultMode, loaded.Mode)
	}
	if loaded.TipcConfigPath != tipcCfg {
		t.Fatalf("TipcConfigPath expected %q, got %q", tipcCfg, loaded.TipcConfigPath)
	}
	if !reflect.DeepEqual(loaded.Devices, []string{"0"}) {
		t.Fatalf("unexpected Devices %v", loaded.Devices)
	}
}

func TestConfigLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(p, []byte("name: x\nbogus-field: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected unknown field error, got nil")
	}
}

func TestValidateMissingTipcConfig(t *testing.T) {
	dir := t.TempDir()

	cfg := NewDefault()
	cfg.ConfigPath = filepath.Join(dir, "tipc-bench.yaml")
	cfg.OutputDir = filepath.Join(dir, "output")

	err := cfg.ValidateAndSetDefaults()
	if err == nil {
		t.Fatal("expected error for empty TipcConfigPath, got nil")
	}
	if !strings.Contains(err.Error(), "TipcConfigPath") {
		t.Fatalf("unexpected error %v", err)
	}

	cfg.TipcConfigPath = filepath.Join(dir, "does-not-exist.txt")
	err = cfg.ValidateAndSetDefaults()
	if err == nil {
		t.Fatal("expected error for missing TipcConfigPath, got nil")
	}
}

func TestValidateURLTipcConfig(t *testing.T) {
	dir := t.TempDir()

	cfg := NewDefault()
	cfg.ConfigPath = filepath.Join(dir, "tipc-bench.yaml")
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.TipcConfigPath = "https://example.com/configs/train.txt"
	cfg.CaseVariant = "cylinder2d_unsteady"
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
}

func TestRunNameDerivation(t *testing.T) {
	cfg := NewDefault()
	cfg.CaseVariant = "cylinder2d_unsteady"
	cfg.BatchSize = 4
	cfg.FPItem = "fp16"
	cfg.RunMode = "DP"
	cfg.Devices = []string{"0", "1", "2", "3", "4", "5", "6", "7"}

	rn := cfg.RunName()
	if rn.String() != "cylinder2d_unsteady_bs4_fp16_DP_N1C8" {
		t.Fatalf("unexpected run name %q", rn.String())
	}

	cfg.DeviceNum = "N2C16"
	if cfg.RunName().String() != "cylinder2d_unsteady_bs4_fp16_DP_N2C16" {
		t.Fatalf("unexpected run name %q", cfg.RunName().String())
	}

	cfg.DeviceNum = ""
	cfg.Devices = nil
	if cfg.RunName().DeviceNum != "N1C1" {
		t.Fatalf("unexpected device num %q", cfg.RunName().DeviceNum)
	}
}

func TestValidateEmptyDevice(t *testing.T) {
	dir := t.TempDir()
	tipcCfg := filepath.Join(dir, "train.txt")
	if err := os.WriteFile(tipcCfg, []byte("x\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefault()
	cfg.ConfigPath = filepath.Join(dir, "tipc-bench.yaml")
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.TipcConfigPath = tipcCfg
	cfg.Devices = []string{"0", " "}
	if err := cfg.ValidateAndSetDefaults(); err == nil {
		t.Fatal("expected error for empty device entry, got nil")
	}
}

func TestStepArgs(t *testing.T) {
	cfg := NewDefault()
	cfg.TipcConfigPath = "test_tipc/configs/cylinder2d/train.txt"
	cfg.Mode = "benchmark_train"

	prepArgs, err := cfg.PrepareArgs()
	if err != nil {
		t.Fatal(err)
	}
	trainArgs, err := cfg.TrainArgs()
	if err != nil {
		t.Fatal(err)
	}

	expectedPrep := []string{"bash", "test_tipc/prepare.sh", "test_tipc/configs/cylinder2d/train.txt", "benchmark_train"}
	if !reflect.DeepEqual(prepArgs, expectedPrep) {
		t.Fatalf("prepare args expected %v, got %v", expectedPrep, prepArgs)
	}
	expectedTrain := []string{"bash", "test_tipc/benchmark_train.sh", "test_tipc/configs/cylinder2d/train.txt", "benchmark_train"}
	if !reflect.DeepEqual(trainArgs, expectedTrain) {
		t.Fatalf("train args expected %v, got %v", expectedTrain, trainArgs)
	}

	// both steps must receive the identical positional pair, in order
	if !reflect.DeepEqual(prepArgs[len(prepArgs)-2:], trainArgs[len(trainArgs)-2:]) {
		t.Fatalf("positional args differ: %v vs %v", prepArgs[len(prepArgs)-2:], trainArgs[len(trainArgs)-2:])
	}
}

func TestStepArgsExtra(t *testing.T) {
	cfg := NewDefault()
	cfg.TipcConfigPath = "train.txt"
	cfg.ExtraArgs = `--profile 'log dir'`

	trainArgs, err := cfg.TrainArgs()
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"bash", "test_tipc/benchmark_train.sh", "train.txt", "benchmark_train", "--profile", "log dir"}
	if !reflect.DeepEqual(trainArgs, expected) {
		t.Fatalf("train args expected %v, got %v", expected, trainArgs)
	}

	prepArgs, err := cfg.PrepareArgs()
	if err != nil {
		t.Fatal(err)
	}
	// extra args never leak into the preparation step
	if len(prepArgs) != 4 {
		t.Fatalf("unexpected prepare args %v", prepArgs)
	}
}

func TestStepEnv(t *testing.T) {
	cfg := NewDefault()
	cfg.Devices = []string{"0", "1"}
	cfg.BenchmarkRoot = "/opt/benchmark"

	envs := cfg.StepEnv()
	foundDevices, foundRoot := false, false
	for _, ev := range envs {
		switch ev {
		case "CUDA_VISIBLE_DEVICES=0,1":
			foundDevices = true
		case "BENCHMARK_ROOT=/opt/benchmark":
			foundRoot = true
		}
	}
	if !foundDevices {
		t.Fatalf("CUDA_VISIBLE_DEVICES not found in %d envs", len(envs))
	}
	if !foundRoot {
		t.Fatalf("BENCHMARK_ROOT not found in %d envs", len(envs))
	}
}

func TestStepEnvNoDevices(t *testing.T) {
	cfg := NewDefault()
	cfg.Devices = nil
	cfg.BenchmarkRoot = ""

	for _, ev := range cfg.StepEnv() {
		if strings.HasPrefix(ev, "CUDA_VISIBLE_DEVICES=") && os.Getenv("CUDA_VISIBLE_DEVICES") == "" {
			t.Fatalf("CUDA_VISIBLE_DEVICES must not be set: %q", ev)
		}
		if strings.HasPrefix(ev, "BENCHMARK_ROOT=") && os.Getenv("BENCHMARK_ROOT") == "" {
			t.Fatalf("BENCHMARK_ROOT must not be set: %q", ev)
		}
	}
}
