package main

import (
	"testing"

	"broll/internal/testsupport"
)

func TestDoctorOfflinePasses(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	out, _, err := runCLI(t, []string{"doctor", "--offline"}, "", env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "All checks passed")
}

func TestDoctorReportsMissingDirectories(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"doctor", "--offline"}, "", env.configPath)
	if err == nil {
		t.Fatalf("expected doctor to fail when directories are missing:\n%s", out)
	}
	requireContains(t, out, "[ERROR]")
}
