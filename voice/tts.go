// Package voice renders bot replies as voice notes.
package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/corpix/uarand"
	"github.com/google/uuid"
)

const ttsEndpoint = "https://translate.google.com/translate_tts"

// Synthesizer turns text into an mp3 file using Google Translate TTS.
type Synthesizer struct {
	http     *http.Client
	endpoint string
	lang     string
	dir      string
}

func New(lang string) *Synthesizer {
	if lang == "" {
		lang = "en"
	}
	return &Synthesizer{
		http:     &http.Client{Timeout: 20 * time.Second},
		endpoint: ttsEndpoint,
		lang:     lang,
		dir:      os.TempDir(),
	}
}

// Synthesize writes the speech for text to a new temp file and returns its
// path. The caller owns the file.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("tts: empty text")
	}

	path := filepath.Join(s.dir, "voice-"+uuid.NewString()+".mp3")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("tts: create: %w", err)
	}
	ok := false
	defer func() {
		f.Close()
		if !ok {
			os.Remove(path)
		}
	}()

	ua := uarand.GetRandom()
	for _, chunk := range chunkText(text, 100) {
		if err := s.fetch(ctx, f, chunk, ua); err != nil {
			return "", err
		}
	}
	ok = true
	return path, nil
}

func (s *Synthesizer) fetch(ctx context.Context, w io.Writer, chunk, ua string) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", s.lang)
	q.Set("client", "gtx")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Referer", "https://translate.google.com/")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("tts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts: service returned HTTP %d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("tts: read: %w", err)
	}
	return nil
}

// chunkText packs words into pieces of at most maxLen bytes. Words longer
// than maxLen are cut on rune boundaries.
func chunkText(text string, maxLen int) []string {
	var words []string
	for _, w := range strings.Fields(text) {
		words = append(words, splitWord(w, maxLen)...)
	}
	var chunks []string
	var current strings.Builder
	for _, w := range words {
		if current.Len()+len(w)+1 > maxLen && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func splitWord(w string, maxLen int) []string {
	if len(w) <= maxLen {
		return []string{w}
	}
	var parts []string
	start := 0
	for i, r := range w {
		if i+utf8.RuneLen(r)-start > maxLen && i > start {
			parts = append(parts, w[start:i])
			start = i
		}
	}
	return append(parts, w[start:])
}
