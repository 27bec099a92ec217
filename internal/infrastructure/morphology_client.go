package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
	"ukwikibot/pkg/log"
)

var (
	_ interfaces.MorphologyAnalyzer = (*MorphologyClient)(nil)
	_ interfaces.MorphologyAnalyzer = (*DictionaryAnalyzer)(nil)
)

// MorphologyClient queries a morphological analysis service over HTTP:
//
//	GET {base}/parse?word=києва
//	[{"normal_form": "київ", "case": "gent"}, ...]
//
// Analyses are returned in the service's likelihood order.
type MorphologyClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func NewMorphologyClient(baseURL string, timeout time.Duration, httpClient *http.Client) *MorphologyClient {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MorphologyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    httpClient,
	}
}

type morphologyAnalysis struct {
	NormalForm string `json:"normal_form"`
	Case       string `json:"case"`
	Tag        struct {
		Case string `json:"case"`
	} `json:"tag"`
}

func (m *MorphologyClient) Analyze(ctx context.Context, word string) ([]entities.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	endpoint := m.baseURL + "/parse?" + url.Values{"word": {strings.ToLower(word)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze %q: %w", word, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyze %q: unexpected status %d", word, resp.StatusCode)
	}

	var raw []morphologyAnalysis
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode analyses: %w", err)
	}

	analyses := make([]entities.Analysis, 0, len(raw))
	for _, a := range raw {
		grammaticalCase := a.Case
		if grammaticalCase == "" {
			grammaticalCase = a.Tag.Case
		}
		analyses = append(analyses, entities.Analysis{NormalForm: a.NormalForm, Case: grammaticalCase})
	}
	return analyses, nil
}

// DictionaryAnalyzer answers from a static YAML word list, keyed by the
// lower-cased surface form:
//
//	києва:
//	  - {normal_form: київ, case: gent}
type DictionaryAnalyzer struct {
	words map[string][]entities.Analysis
}

func NewDictionaryAnalyzer(words map[string][]entities.Analysis) *DictionaryAnalyzer {
	normalized := make(map[string][]entities.Analysis, len(words))
	for w, a := range words {
		normalized[strings.ToLower(w)] = a
	}
	return &DictionaryAnalyzer{words: normalized}
}

func LoadDictionaryAnalyzer(path string) (*DictionaryAnalyzer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	var words map[string][]entities.Analysis
	if err := yaml.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	log.Info(log.Fields{"path": path, "words": len(words)}, "[infrastructure.LoadDictionaryAnalyzer] dictionary loaded")
	return NewDictionaryAnalyzer(words), nil
}

// Analyze returns no analyses for unknown words.
func (d *DictionaryAnalyzer) Analyze(_ context.Context, word string) ([]entities.Analysis, error) {
	return d.words[strings.ToLower(word)], nil
}
