package config

import "testing"

func TestSourceFromSecret(t *testing.T) {
	cfg := SourceFromSecret(map[string]string{
		"base_url":   "https://erp.example.com/query",
		"system":     "PROD",
		"cp_company": "1",
		"username":   "svc",
		"password":   "hunter2",
	})

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.FilterNotesValue != "CT" {
		t.Errorf("FilterNotesValue default = %q, want CT", cfg.FilterNotesValue)
	}
	want := "https://erp.example.com/query?system=PROD&company=1"
	if got := cfg.FullURL(); got != want {
		t.Errorf("FullURL() = %q, want %q", got, want)
	}
}

func TestSourceValidateRejectsMissingFields(t *testing.T) {
	cfg := SourceFromSecret(map[string]string{"base_url": "https://erp.example.com"})
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail when credentials are missing")
	}
}

func TestTargetFromSecret(t *testing.T) {
	cfg, err := TargetFromSecret(map[string]string{"key": "abc123"})
	if err != nil {
		t.Fatalf("TargetFromSecret: %v", err)
	}
	if cfg.UsersBaseURL != defaultUsersURL {
		t.Errorf("UsersBaseURL = %q", cfg.UsersBaseURL)
	}
}

func TestTargetFromSecretRequiresKey(t *testing.T) {
	if _, err := TargetFromSecret(map[string]string{}); err == nil {
		t.Error("TargetFromSecret should fail without an API key")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.SnapshotPrefix != "new-employees" {
		t.Errorf("SnapshotPrefix = %q", s.SnapshotPrefix)
	}
	if s.SFTPPort != 22 {
		t.Errorf("SFTPPort = %d", s.SFTPPort)
	}
}

func TestLoadSettingsRecipients(t *testing.T) {
	t.Setenv("SES_TO_EMAILS", "a@example.com,b@example.com")
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(s.MailTo) != 2 || s.MailTo[0] != "a@example.com" {
		t.Errorf("MailTo = %v", s.MailTo)
	}
}
