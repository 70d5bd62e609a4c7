package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/odvcencio/espboot/pkg/logging"
)

// isolateEnv keeps the user's config and ESPBOOT_* settings out of the run.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		"ESPBOOT_WORKSPACE", "ESPBOOT_TARGET", "ESPBOOT_TOOLCHAIN", "ESPBOOT_TIMEOUT", "ESPBOOT_STRICT",
		"ESPBOOT_SYNC_ENABLED", "ESPBOOT_SYNC_BACKEND", "ESPBOOT_LOG_LEVEL", "ESPBOOT_LOG_FORMAT",
		"ESPBOOT_LOG_DIR", "ESPBOOT_METRICS_FILE", "ESPBOOT_TRACE_FILE",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	if code != exitOK {
		t.Fatalf("code=%d want 0", code)
	}
	if !strings.HasPrefix(stdout, "espboot "+version) {
		t.Fatalf("stdout=%q", stdout)
	}
}

func TestRunUsageErrors(t *testing.T) {
	isolateEnv(t)

	if code, _, _ := runCLI(t, "-bogus"); code != exitUsage {
		t.Fatalf("unknown flag: code=%d want %d", code, exitUsage)
	}
	if code, _, _ := runCLI(t, "extra", "args"); code != exitUsage {
		t.Fatalf("positional args: code=%d want %d", code, exitUsage)
	}
	if code, _, _ := runCLI(t, "-h"); code != exitOK {
		t.Fatalf("-h: code=%d want 0", code)
	}
	if code, _, _ := runCLI(t, "-C", filepath.Join(t.TempDir(), "missing")); code != exitUsage {
		t.Fatalf("missing workspace: code=%d want %d", code, exitUsage)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	code, _, stderr := runCLI(t, "-C", root, "-target", "ESP 32")
	if code != exitUsage {
		t.Fatalf("code=%d want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "invalid target") {
		t.Fatalf("stderr=%q", stderr)
	}

	cfgPath := filepath.Join(root, "broken.yaml")
	writeFile(t, cfgPath, "target: [unterminated\n", 0o644)
	if code, _, _ := runCLI(t, "-C", root, "-config", cfgPath); code != exitUsage {
		t.Fatalf("broken yaml: code=%d want %d", code, exitUsage)
	}

	if code, _, _ := runCLI(t, "-C", root, "-sync-backend", "svn"); code != exitUsage {
		t.Fatalf("bad backend: code=%d want %d", code, exitUsage)
	}

	t.Setenv("ESPBOOT_TIMEOUT", "10min")
	code, _, stderr = runCLI(t, "-C", root)
	if code != exitUsage {
		t.Fatalf("bad timeout: code=%d want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "ESPBOOT_TIMEOUT") {
		t.Fatalf("bad timeout: stderr=%q", stderr)
	}
}

func TestRunToolchainUnavailable(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sdkconfig"), "stale", 0o644)
	t.Setenv("ESPBOOT_TOOLCHAIN", "espboot-test-missing-idf")

	// Default flags: submodule sync runs (and fails outside a repository)
	// before the missing toolchain aborts the run.
	code, stdout, stderr := runCLI(t, "-C", root)
	if code != exitToolchainUnavailable {
		t.Fatalf("code=%d want %d (stderr=%q)", code, exitToolchainUnavailable, stderr)
	}

	want := "Unable to execute espboot-test-missing-idf, please see here to learn how to use and install https://github.com/espressif/esp-idf"
	lines := strings.Split(strings.TrimRight(stderr, "\n"), "\n")
	if last := lines[len(lines)-1]; last != want {
		t.Fatalf("last stderr line=%q want %q", last, want)
	}
	if n := strings.Count(stderr, "Unable to execute"); n != 1 {
		t.Fatalf("diagnostic printed %d times, stderr=%q", n, stderr)
	}
	if _, err := os.Stat(filepath.Join(root, "sdkconfig")); !os.IsNotExist(err) {
		t.Fatalf("sdkconfig should be removed before the toolchain check, stat err=%v", err)
	}
	if strings.Contains(stdout, "Fixed to") {
		t.Fatalf("pipeline banner printed after failed toolchain check: %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(root, "main", "idf_component.yml")); !os.IsNotExist(err) {
		t.Fatalf("manifest should not exist, stat err=%v", err)
	}
}

func TestRunToolchainUnavailableQuiet(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "espboot.yaml")
	writeFile(t, cfgPath, "toolchain:\n  binary: espboot-test-missing-idf\n", 0o644)

	code, _, stderr := runCLI(t, "-C", root, "-config", cfgPath, "-no-sync", "-log-level", "error")
	if code != exitToolchainUnavailable {
		t.Fatalf("code=%d want %d (stderr=%q)", code, exitToolchainUnavailable, stderr)
	}
	want := "Unable to execute espboot-test-missing-idf, please see here to learn how to use and install https://github.com/espressif/esp-idf\n"
	if stderr != want {
		t.Fatalf("stderr=%q want exactly %q", stderr, want)
	}
}

func TestRunCheckReportsMissingTools(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	t.Setenv("ESPBOOT_TOOLCHAIN", "espboot-test-missing-idf")

	code, stdout, _ := runCLI(t, "-C", root, "-check", "-sync-backend", "gogit", "-no-color")
	if code != exitToolchainUnavailable {
		t.Fatalf("code=%d want %d", code, exitToolchainUnavailable)
	}
	if !strings.Contains(stdout, "[1/1] ESP-IDF (toolchain)") {
		t.Fatalf("stdout=%q", stdout)
	}
}

const fakeIDF = `#!/bin/sh
case "$1" in
  add-dependency)
    mkdir -p main
    printf 'dependencies:\n  lvgl/lvgl: "^8.3.11"\n' > main/idf_component.yml ;;
  reconfigure)
    echo "CONFIG_IDF_TARGET=\"$IDF_TARGET\"" > sdkconfig ;;
  build)
    mkdir -p build
    : > build/firmware.bin ;;
esac
exit 0
`

func TestRunCheckListsSatisfiedRequirements(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake toolchain is a shell script")
	}
	isolateEnv(t)
	idf := filepath.Join(t.TempDir(), "idf.py")
	writeFile(t, idf, fakeIDF, 0o755)
	t.Setenv("ESPBOOT_TOOLCHAIN", idf)

	code, stdout, stderr := runCLI(t, "-C", t.TempDir(), "-check", "-no-sync", "-no-color")
	if code != exitOK {
		t.Fatalf("code=%d want 0 (stderr=%q)", code, stderr)
	}
	if !strings.Contains(stdout, "All requirements satisfied") || !strings.Contains(stdout, "  • ESP-IDF\n") {
		t.Fatalf("stdout=%q", stdout)
	}
}

func TestRunBootstrapsWorkspace(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake toolchain is a shell script")
	}
	isolateEnv(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build", "stale.o"), "x", 0o644)
	writeFile(t, filepath.Join(root, "main", "idf_component.yml"), "dependencies: {}\n", 0o644)

	idf := filepath.Join(t.TempDir(), "idf.py")
	writeFile(t, idf, fakeIDF, 0o755)
	t.Setenv("ESPBOOT_TOOLCHAIN", idf)

	logDir := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "espboot.prom")
	t.Setenv("ESPBOOT_LOG_DIR", logDir)
	t.Setenv("ESPBOOT_METRICS_FILE", metricsFile)

	code, stdout, stderr := runCLI(t, "-C", root, "-target", "esp32s3", "-no-color")
	if code != exitOK {
		t.Fatalf("code=%d want 0 (stderr=%q)", code, stderr)
	}

	if !strings.Contains(stdout, "Fixed to ESP32 TDisplay") {
		t.Fatalf("banner missing from stdout=%q", stdout)
	}
	if _, err := os.Stat(filepath.Join(root, "build", "stale.o")); !os.IsNotExist(err) {
		t.Fatalf("stale build output survived, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "build", "firmware.bin")); err != nil {
		t.Fatalf("build did not run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "sdkconfig"))
	if err != nil {
		t.Fatalf("reconfigure did not run: %v", err)
	}
	if !strings.Contains(string(data), `"esp32s3"`) {
		t.Fatalf("IDF_TARGET not exported, sdkconfig=%q", data)
	}

	prom, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
	if !strings.Contains(string(prom), `espboot_runs_total{state="done"} 1`) {
		t.Fatalf("metrics=%s", prom)
	}

	logs, err := filepath.Glob(filepath.Join(logDir, "*.jsonl"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("want one run log in %s, got %v (err=%v)", logDir, logs, err)
	}
	events, err := logging.ReadEvents(logs[0])
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if last := events[len(events)-1]; last.EventType != "run_finished" {
		t.Fatalf("last event=%q want run_finished", last.EventType)
	}
}
