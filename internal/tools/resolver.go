package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const efetchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

// GSMResolver maps SRR accessions to their GEO sample (GSM) identifiers via
// NCBI Entrez, and locates the barcode pool file for that sample. Lookups
// are cached in an explicit JSON file passed in by construction: read on
// start, written on every new resolution.
type GSMResolver struct {
	cachePath  string
	barcodeDir string
	email      string
	client     *http.Client
	log        *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

func NewGSMResolver(cachePath, barcodeDir, email string, client *http.Client, logger *slog.Logger) *GSMResolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &GSMResolver{
		cachePath:  cachePath,
		barcodeDir: barcodeDir,
		email:      email,
		client:     client,
		log:        logger,
		cache:      map[string]string{},
	}
	r.loadCache()
	return r
}

func (r *GSMResolver) loadCache() {
	data, err := os.ReadFile(r.cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn("failed to read GSM cache", "path", r.cachePath, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &r.cache); err != nil {
		r.log.Warn("failed to parse GSM cache", "path", r.cachePath, "error", err)
		r.cache = map[string]string{}
	}
}

func (r *GSMResolver) saveCacheLocked() {
	data, err := json.MarshalIndent(r.cache, "", "  ")
	if err != nil {
		r.log.Warn("failed to encode GSM cache", "error", err)
		return
	}
	if err := os.WriteFile(r.cachePath, data, 0o644); err != nil {
		r.log.Warn("failed to save GSM cache", "path", r.cachePath, "error", err)
	}
}

// Resolve returns the GSM identifier for an SRR accession, consulting the
// cache before Entrez.
func (r *GSMResolver) Resolve(ctx context.Context, accession string) (string, error) {
	r.mu.Lock()
	if gsm, ok := r.cache[accession]; ok {
		r.mu.Unlock()
		return gsm, nil
	}
	r.mu.Unlock()

	r.log.Info("accession not in GSM cache; querying Entrez", "accession", accession)
	gsm, err := r.fetchGSM(ctx, accession)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[accession] = gsm
	r.saveCacheLocked()
	r.mu.Unlock()
	return gsm, nil
}

func (r *GSMResolver) fetchGSM(ctx context.Context, accession string) (string, error) {
	q := url.Values{}
	q.Set("db", "sra")
	q.Set("id", accession)
	q.Set("rettype", "xml")
	q.Set("retmode", "text")
	if r.email != "" {
		q.Set("email", r.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, efetchURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("entrez fetch for %s: %w", accession, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("entrez fetch for %s: status %d", accession, resp.StatusCode)
	}

	gsm, err := parseGSM(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse entrez response for %s: %w", accession, err)
	}
	if gsm == "" {
		return "", fmt.Errorf("no GSM cross-reference found for %s", accession)
	}
	return gsm, nil
}

// parseGSM scans the Entrez experiment XML for a GEO cross-reference whose
// identifier is a GSM accession.
func parseGSM(body io.Reader) (string, error) {
	dec := xml.NewDecoder(body)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "XREF_LINK" {
			continue
		}

		var link struct {
			DB string `xml:"DB"`
			ID string `xml:"ID"`
		}
		if err := dec.DecodeElement(&link, &start); err != nil {
			return "", err
		}
		if link.DB == "GEO" && strings.HasPrefix(link.ID, "GSM") {
			return link.ID, nil
		}
	}
}

// FindInfoFile returns the path of the barcode pool file (<GSM>*.Info.txt)
// for the accession's sample.
func (r *GSMResolver) FindInfoFile(ctx context.Context, accession string) (string, error) {
	gsm, err := r.Resolve(ctx, accession)
	if err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(r.barcodeDir, gsm+"*.Info.txt"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no barcode info file found for %s (%s)", gsm, accession)
	}
	return matches[0], nil
}
