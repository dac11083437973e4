package backfill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func writeExport(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.jsonl")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write export: %v", err)
	}
	return path
}

func TestReadExportFile(t *testing.T) {
	id1 := uuid.NewString()
	id2 := uuid.NewString()
	bookingID := uuid.NewString()

	lines := `{"id":"` + id1 + `","booking_id":"` + bookingID + `","client_id":"c1","provider_id":"p1","service_id":"s1","rating":5,"comment":"Great work, very professional.","created_at":"2026-03-01T10:00:00Z"}
{"id":"` + id2 + `","client_id":"c2","provider_id":"p1","rating":2,"comment":"Showed up late and left a mess.","created_at":"2026-03-02T14:30:00Z"}
`

	reviews, err := ReadExportFile(writeExport(t, lines))
	if err != nil {
		t.Fatalf("ReadExportFile failed: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(reviews))
	}

	first := reviews[0]
	if first.ID.String() != id1 {
		t.Errorf("id = %s, want %s", first.ID, id1)
	}
	if first.BookingID.String() != bookingID {
		t.Errorf("booking id = %s, want %s", first.BookingID, bookingID)
	}
	if first.ClientID != "c1" || first.ProviderID != "p1" {
		t.Errorf("parties = %s/%s", first.ClientID, first.ProviderID)
	}
	if first.Rating != 5 {
		t.Errorf("rating = %d, want 5", first.Rating)
	}
	if first.CreatedAt.IsZero() {
		t.Error("expected created_at to be parsed")
	}

	// Second line has no booking ID, which is allowed.
	if reviews[1].BookingID != uuid.Nil {
		t.Errorf("expected nil booking id, got %s", reviews[1].BookingID)
	}
}

func TestReadExportFile_SkipsMalformedLines(t *testing.T) {
	id := uuid.NewString()
	lines := `not json at all
{"id":"not-a-uuid","client_id":"c1","provider_id":"p1","rating":5,"comment":"x"}
{"id":"` + id + `","client_id":"c1","provider_id":"p1","rating":4,"comment":"Solid job overall.","created_at":"2026-03-01T10:00:00Z"}
{"id":"` + uuid.NewString() + `","client_id":"c1","provider_id":"p1","rating":4,"comment":"x","created_at":"yesterday"}
`

	reviews, err := ReadExportFile(writeExport(t, lines))
	if err != nil {
		t.Fatalf("ReadExportFile failed: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("expected 1 valid review, got %d", len(reviews))
	}
	if reviews[0].ID.String() != id {
		t.Errorf("kept the wrong line: %s", reviews[0].ID)
	}
}

func TestReadExportFile_EmptyFile(t *testing.T) {
	reviews, err := ReadExportFile(writeExport(t, ""))
	if err != nil {
		t.Fatalf("ReadExportFile failed: %v", err)
	}
	if len(reviews) != 0 {
		t.Fatalf("expected no reviews, got %d", len(reviews))
	}
}

func TestReadExportFile_MissingFile(t *testing.T) {
	if _, err := ReadExportFile("/nonexistent/export.jsonl"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
