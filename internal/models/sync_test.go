package models

import (
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"full", ModeFull, false},
		{"all", ModeFull, false},
		{"WEB", ModeWeb, false},
		{"csv", ModeTabular, false},
		{" tabular ", ModeTabular, false},
		{"drive", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMode_Categories(t *testing.T) {
	if got := ModeFull.Categories(); len(got) != 2 {
		t.Errorf("full mode should refresh both categories, got %v", got)
	}
	if got := ModeWeb.Categories(); len(got) != 1 || got[0] != CategoryWeb {
		t.Errorf("web mode categories = %v", got)
	}
	if ModeFull.Partial() {
		t.Error("full mode must not be partial")
	}
	if !ModeTabular.Partial() {
		t.Error("tabular mode must be partial")
	}
}

func TestDraft_EnrichedText(t *testing.T) {
	d := Draft{Title: "Zápis", Body: "Termíny zápisu.", SourceTag: "https://fim.uhk.cz/zapis"}
	want := "Source: https://fim.uhk.cz/zapis\nTitle: Zápis\n\nTermíny zápisu."
	if got := d.EnrichedText(); got != want {
		t.Errorf("EnrichedText() = %q, want %q", got, want)
	}
}

func TestSyncStatus_ErrorLines(t *testing.T) {
	if got := (SyncStatus{}).ErrorLines(); got != nil {
		t.Errorf("empty log should yield nil, got %v", got)
	}
	s := SyncStatus{LastError: "a: timeout\nb: 404"}
	if got := s.ErrorLines(); len(got) != 2 {
		t.Errorf("expected 2 lines, got %v", got)
	}
}
