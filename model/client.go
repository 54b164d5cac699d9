package model

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gchat/util"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// Part is one piece of model input: text, inline bytes or an uploaded file.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
	FileURI  string
}

func TextPart(s string) Part { return Part{Text: s} }

type GenerationConfig struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// CookConfig is the sampling setup used for recipe generation.
var CookConfig = &GenerationConfig{Temperature: 0.35, TopP: 0.95, TopK: 40, MaxOutputTokens: 1024}

// ChatConfig keeps auto-replies short.
var ChatConfig = &GenerationConfig{MaxOutputTokens: 40}

type Request struct {
	Model  string
	Parts  []Part
	Config *GenerationConfig
}

// Client talks to the Gemini API, keeping one SDK client per key.
type Client struct {
	mu           sync.Mutex
	clients      map[string]*genai.Client
	pollInterval time.Duration
}

func New() *Client {
	return &Client{
		clients:      make(map[string]*genai.Client),
		pollInterval: 5 * time.Second,
	}
}

func (c *Client) sdk(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gc, ok := c.clients[key]; ok {
		return gc, nil
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewError(KindInvalidCredential, "genai client: %w", err)
	}
	c.clients[key] = gc
	return gc, nil
}

// Generate sends req with the given key and returns the trimmed reply text.
// An empty reply is not an error.
func (c *Client) Generate(ctx context.Context, key string, req Request) (string, error) {
	gc, err := c.sdk(ctx, key)
	if err != nil {
		return "", err
	}
	mdl := req.Model
	if mdl == "" {
		mdl = DefaultModel
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		switch {
		case p.FileURI != "":
			parts = append(parts, genai.NewPartFromURI(p.FileURI, p.MIMEType))
		case len(p.Data) > 0:
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
		case p.Text != "":
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
	}
	if len(parts) == 0 {
		return "", NewError(KindInvalidInput, "empty request")
	}

	resp, err := gc.Models.GenerateContent(ctx, mdl,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		buildConfig(req.Config),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Upload pushes a local file to the Files API and waits until it has been
// processed. label names the file kind in error messages ("video", "pdf").
func (c *Client) Upload(ctx context.Context, key, path, mimeType, label string) (Part, error) {
	gc, err := c.sdk(ctx, key)
	if err != nil {
		return Part{}, err
	}
	f, err := gc.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return Part{}, err
	}
	for f.State == genai.FileStateProcessing {
		if err := util.Sleep(ctx, c.pollInterval); err != nil {
			return Part{}, err
		}
		if f, err = gc.Files.Get(ctx, f.Name, nil); err != nil {
			return Part{}, err
		}
	}
	if f.State == genai.FileStateFailed {
		return Part{}, NewError(KindInvalidInput, "%s failed to process", cases.Title(language.English).String(label))
	}
	log.Printf("[GEMINI] uploaded %s as %s (%s)", label, f.Name, f.MIMEType)
	mt := f.MIMEType
	if mt == "" {
		mt = mimeType
	}
	return Part{FileURI: f.URI, MIMEType: mt}, nil
}

// Ping checks that key can generate content with mdl.
func (c *Client) Ping(ctx context.Context, key, mdl string) error {
	out, err := c.Generate(ctx, key, Request{Model: mdl, Parts: []Part{TextPart("ping")}, Config: ChatConfig})
	if err != nil {
		return err
	}
	if out == "" {
		return fmt.Errorf("no response")
	}
	return nil
}

func buildConfig(gc *GenerationConfig) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{SafetySettings: safetySettings()}
	if gc == nil {
		return cfg
	}
	if gc.Temperature > 0 {
		cfg.Temperature = genai.Ptr(gc.Temperature)
	}
	if gc.TopP > 0 {
		cfg.TopP = genai.Ptr(gc.TopP)
	}
	if gc.TopK > 0 {
		cfg.TopK = genai.Ptr(gc.TopK)
	}
	cfg.MaxOutputTokens = gc.MaxOutputTokens
	return cfg
}

func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
	}
	out := make([]*genai.SafetySetting, 0, len(categories))
	for _, cat := range categories {
		out = append(out, &genai.SafetySetting{Category: cat, Threshold: genai.HarmBlockThresholdBlockNone})
	}
	return out
}
