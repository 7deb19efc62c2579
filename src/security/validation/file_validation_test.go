package validation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/username/rupeefolio/backend/src/logger"
)

func init() {
	logger.InitLogger("error")
}

func TestValidateCSVContent(t *testing.T) {
	csv := "Symbol,Quantity,Price\nRELIANCE,10,2000\n"
	file := bytes.NewReader([]byte(csv))

	contentType, err := ValidateFileContentByMagicBytes(file, "tradebook.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(contentType, "text/") {
		t.Errorf("expected text content type, got %s", contentType)
	}

	// The read pointer must be back at the start for the parser.
	buf := make([]byte, 6)
	if _, err := file.Read(buf); err != nil || string(buf) != "Symbol" {
		t.Errorf("read pointer not reset: %q, %v", buf, err)
	}
}

func TestValidateRejectsBinaryMasqueradingAsCSV(t *testing.T) {
	payload := append([]byte{0x7F, 'E', 'L', 'F', 0x00, 0x01}, []byte("not a csv")...)
	if _, err := ValidateFileContentByMagicBytes(bytes.NewReader(payload), "evil.csv"); err == nil {
		t.Fatal("expected binary content to be rejected")
	}
}

func TestValidateWorkbookSignature(t *testing.T) {
	zipHeader := append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 64)...)
	if _, err := ValidateFileContentByMagicBytes(bytes.NewReader(zipHeader), "holdings.xlsx"); err != nil {
		t.Fatalf("valid ZIP signature rejected: %v", err)
	}

	if _, err := ValidateFileContentByMagicBytes(bytes.NewReader([]byte("plain text")), "holdings.xlsx"); err == nil {
		t.Fatal("expected .xlsx without ZIP signature to be rejected")
	}
}

func TestValidateEmptyFile(t *testing.T) {
	if _, err := ValidateFileContentByMagicBytes(bytes.NewReader(nil), "empty.csv"); err == nil {
		t.Fatal("expected empty file to be rejected")
	}
}
