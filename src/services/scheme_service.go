// backend/src/services/scheme_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/rupeefolio/backend/src/config"
	"github.com/username/rupeefolio/backend/src/logger"
)

const (
	ckSchemeDirectory     = "scheme_directory"
	schemeDirectoryExpiry = 24 * time.Hour
)

// schemeEntry is one row of the external scheme directory.
type schemeEntry struct {
	SchemeCode int    `json:"schemeCode"`
	SchemeName string `json:"schemeName"`
}

type schemeServiceImpl struct {
	httpClient   http.Client
	directoryURL string
	dirCache     *cache.Cache
}

// NewSchemeService builds a resolver over the AMFI scheme directory. The full
// directory (tens of thousands of rows) is fetched once and held in the cache
// for a day.
func NewSchemeService(dirCache *cache.Cache) SchemeResolver {
	return &schemeServiceImpl{
		httpClient:   http.Client{Timeout: 30 * time.Second},
		directoryURL: config.Cfg.SchemeDirectoryURL,
		dirCache:     dirCache,
	}
}

// ResolveSchemeCode finds the AMFI code for a scheme name: exact normalized
// match first, else the best fuzzy candidate by significant-word overlap.
// Returns ErrSchemeCodeNotFound when no candidate is convincing; callers must
// never fabricate a code.
func (s *schemeServiceImpl) ResolveSchemeCode(ctx context.Context, schemeName string) (string, error) {
	directory, err := s.loadDirectory(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: directory unavailable: %v", ErrSchemeCodeNotFound, err)
	}

	target := normalizeSchemeName(schemeName)
	if target == "" {
		return "", ErrSchemeCodeNotFound
	}

	// Pass 1: exact normalized-name match.
	for _, entry := range directory {
		if normalizeSchemeName(entry.SchemeName) == target {
			return fmt.Sprintf("%d", entry.SchemeCode), nil
		}
	}

	// Pass 2: score candidates by the fraction of significant words matched.
	targetWords := significantWords(target)
	if len(targetWords) == 0 {
		return "", ErrSchemeCodeNotFound
	}
	required := len(targetWords) - 1
	if required > 3 {
		required = 3
	}
	if required < 1 {
		required = 1
	}

	bestScore := 0.0
	bestCode := 0
	for _, entry := range directory {
		candidateWords := toWordSet(significantWords(normalizeSchemeName(entry.SchemeName)))
		matched := 0
		for _, w := range targetWords {
			if candidateWords[w] {
				matched++
			}
		}
		if matched < required {
			continue
		}
		score := float64(matched) / float64(len(targetWords))
		if score > bestScore {
			bestScore = score
			bestCode = entry.SchemeCode
		}
	}

	if bestCode == 0 {
		logger.L.Warn("No scheme directory match", "schemeName", schemeName)
		return "", ErrSchemeCodeNotFound
	}
	logger.L.Info("Fuzzy-matched scheme code", "schemeName", schemeName, "code", bestCode, "score", bestScore)
	return fmt.Sprintf("%d", bestCode), nil
}

func (s *schemeServiceImpl) loadDirectory(ctx context.Context) ([]schemeEntry, error) {
	if cached, found := s.dirCache.Get(ckSchemeDirectory); found {
		return cached.([]schemeEntry), nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.directoryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scheme directory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scheme directory returned non-OK status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheme directory: %w", err)
	}

	var directory []schemeEntry
	if err := json.Unmarshal(body, &directory); err != nil {
		return nil, fmt.Errorf("failed to decode scheme directory: %w", err)
	}
	logger.L.Info("Scheme directory loaded", "schemes", len(directory))
	s.dirCache.Set(ckSchemeDirectory, directory, schemeDirectoryExpiry)
	return directory, nil
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]+`)

func normalizeSchemeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	lowered = nonAlnumRe.ReplaceAllString(lowered, " ")
	return strings.Join(strings.Fields(lowered), " ")
}

// significantWords keeps words long enough to discriminate between schemes;
// two-letter tokens like "of" or plan codes add only noise.
func significantWords(normalized string) []string {
	var words []string
	for _, w := range strings.Fields(normalized) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

func toWordSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
