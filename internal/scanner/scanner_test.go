package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	tmpDir := t.TempDir()

	// tmpDir/
	//   american_express/
	//     2011/
	//       2025-10/
	//         statement.qfx
	//   capital_one/
	//     checking/
	//       statement.csv
	//   usaa/
	//     export.xlsx
	//   invalid/
	//     document.pdf

	amexDir := filepath.Join(tmpDir, "american_express", "2011", "2025-10")
	require.NoError(t, os.MkdirAll(amexDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(amexDir, "statement.qfx"), []byte("test"), 0644))

	capOneDir := filepath.Join(tmpDir, "capital_one", "checking")
	require.NoError(t, os.MkdirAll(capOneDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(capOneDir, "statement.csv"), []byte("test"), 0644))

	usaaDir := filepath.Join(tmpDir, "usaa")
	require.NoError(t, os.MkdirAll(usaaDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(usaaDir, "export.xlsx"), []byte("test"), 0644))

	invalidDir := filepath.Join(tmpDir, "invalid")
	require.NoError(t, os.MkdirAll(invalidDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(invalidDir, "document.pdf"), []byte("test"), 0644))

	results, err := New(tmpDir).Scan()
	require.NoError(t, err)
	assert.Len(t, results, 3, "should find 3 statement files")

	byInstitution := make(map[string]ScanResult)
	for _, result := range results {
		byInstitution[result.Institution] = result
	}

	amex, ok := byInstitution["American Express"]
	require.True(t, ok, "should find American Express statement")
	assert.Equal(t, "2011", amex.AccountHint)
	assert.Equal(t, "2025-10", amex.Period)
	assert.Contains(t, amex.Path, "statement.qfx")

	capOne, ok := byInstitution["Capital One"]
	require.True(t, ok, "should find Capital One statement")
	assert.Equal(t, "checking", capOne.AccountHint)
	assert.Empty(t, capOne.Period, "no period directory")

	usaa, ok := byInstitution["Usaa"]
	require.True(t, ok, "should find USAA spreadsheet")
	assert.Empty(t, usaa.AccountHint, "minimal structure")
}

func TestScanNonExistentDirectory(t *testing.T) {
	results, err := New("/nonexistent/directory/path").Scan()

	assert.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "scan failed")
}

func TestScanEmptyDirectory(t *testing.T) {
	results, err := New(t.TempDir()).Scan()

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScanIgnoresDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	// A directory named like a statement file must not match.
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "statement.qfx"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "real.qfx"), []byte("test"), 0644))

	results, err := New(tmpDir).Scan()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Path, "real.qfx")
}

func TestDescribe(t *testing.T) {
	s := New("/base")

	tests := []struct {
		name     string
		filePath string
		expected ScanResult
	}{
		{
			name:     "full path with period",
			filePath: "/base/american_express/2011/2025-10/statement.qfx",
			expected: ScanResult{
				Path:        "/base/american_express/2011/2025-10/statement.qfx",
				Institution: "American Express",
				AccountHint: "2011",
				Period:      "2025-10",
			},
		},
		{
			name:     "path without period",
			filePath: "/base/capital_one/checking/statement.csv",
			expected: ScanResult{
				Path:        "/base/capital_one/checking/statement.csv",
				Institution: "Capital One",
				AccountHint: "checking",
			},
		},
		{
			name:     "institution only",
			filePath: "/base/chase/statement.ofx",
			expected: ScanResult{
				Path:        "/base/chase/statement.ofx",
				Institution: "Chase",
			},
		},
		{
			name:     "file at root",
			filePath: "/base/statement.qfx",
			expected: ScanResult{
				Path: "/base/statement.qfx",
			},
		},
		{
			name:     "non-period third directory",
			filePath: "/base/chase/checking/statements/file.csv",
			expected: ScanResult{
				Path:        "/base/chase/checking/statements/file.csv",
				Institution: "Chase",
				AccountHint: "checking",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.describe(tt.filePath, "/base"))
		})
	}
}

func TestNormalizeInstitutionName(t *testing.T) {
	s := New("")

	tests := []struct {
		input    string
		expected string
	}{
		{"american_express", "American Express"},
		{"capital_one", "Capital One"},
		{"chase", "Chase"},
		{"bank_of_america", "Bank Of America"},
		{"", ""},
		{"UPPERCASE", "UPPERCASE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.normalizeInstitutionName(tt.input))
		})
	}
}

func TestIsStatementFile(t *testing.T) {
	s := New("")

	tests := []struct {
		path     string
		expected bool
	}{
		{"statement.qfx", true},
		{"statement.ofx", true},
		{"statement.csv", true},
		{"export.xlsx", true},
		{"export.xls", true},
		{"STATEMENT.CSV", true},
		{"document.txt", false},
		{"image.pdf", false},
		{"noextension", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.isStatementFile(tt.path))
		})
	}
}
