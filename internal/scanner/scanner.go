// Package scanner walks a directory tree and finds bank statement files,
// inferring institution and account hints from the directory layout.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scanner walks a directory tree and finds statement files.
type Scanner struct {
	rootDir string
}

// New creates a new scanner for the given root directory.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult is a found statement file with hints derived from its path.
type ScanResult struct {
	Path string
	// Institution comes from the first directory under the root,
	// "american_express" becomes "American Express".
	Institution string
	// AccountHint is the second directory under the root, if any.
	AccountHint string
	// Period is the third directory when it looks like YYYY-MM.
	Period string
}

// Scan walks the directory tree and finds all statement files.
func (s *Scanner) Scan() ([]ScanResult, error) {
	var results []ScanResult

	rootDir := s.expandHome(s.rootDir)

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !s.isStatementFile(path) {
			return nil
		}

		results = append(results, s.describe(path, rootDir))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// isStatementFile checks if file is a known statement format
func (s *Scanner) isStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx", ".xls", ".ofx", ".qfx":
		return true
	}
	return false
}

// describe parses the directory structure for institution/account hints.
// Path structure: {root}/{institution}/{account}/{period?}/file.ext
func (s *Scanner) describe(filePath, rootDir string) ScanResult {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		relPath = filePath
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	result := ScanResult{Path: filePath}
	if len(parts) >= 2 {
		result.Institution = s.normalizeInstitutionName(parts[0])
	}
	if len(parts) >= 3 {
		result.AccountHint = parts[1]
	}
	if len(parts) >= 4 && s.looksLikePeriod(parts[2]) {
		result.Period = parts[2]
	}
	return result
}

// normalizeInstitutionName converts a directory name to a readable name,
// "american_express" -> "American Express".
func (s *Scanner) normalizeInstitutionName(dirName string) string {
	name := strings.ReplaceAll(dirName, "_", " ")

	words := strings.Split(name, " ")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// looksLikePeriod checks if a string looks like a date period (YYYY-MM).
func (s *Scanner) looksLikePeriod(str string) bool {
	return len(str) >= 7 && str[4] == '-'
}

// expandHome expands ~ to the home directory.
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
