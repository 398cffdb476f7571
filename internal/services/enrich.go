package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"rankedbyus/internal/db"
	"rankedbyus/internal/logging"
	"rankedbyus/internal/models"

	"gorm.io/gorm"
)

// ContentUnsuitable is the sentinel the model is instructed to answer with
// when a submission should not be listed at all.
const ContentUnsuitable = "CONTENT_UNSUITABLE"

// EnrichService fills in marketing fields (tagline, summary) for freshly
// created listings by calling an OpenAI-compatible chat endpoint. Enrichment is
// best effort: a failure leaves the fields empty for an admin to write by
// hand, it never blocks the approval.
type EnrichService struct {
	baseURL string
	token   string
	model   string
	client  *http.Client
}

var enrichService *EnrichService

// GetEnrichService returns the singleton, configured from LLM_BASE_URL,
// LLM_TOKEN and LLM_MODEL.
func GetEnrichService() *EnrichService {
	if enrichService == nil {
		enrichService = &EnrichService{
			baseURL: os.Getenv("LLM_BASE_URL"),
			token:   os.Getenv("LLM_TOKEN"),
			model:   os.Getenv("LLM_MODEL"),
			client:  &http.Client{Timeout: 30 * time.Second},
		}
	}
	return enrichService
}

// Enabled reports whether an endpoint is configured.
func (s *EnrichService) Enabled() bool {
	return s.baseURL != "" && s.token != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateTagline produces a one-line tagline for a tool. Returns
// ContentUnsuitable when the model flags the submission.
func (s *EnrichService) GenerateTagline(name, pitch string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a single-sentence tagline (max 12 words) for an AI tool directory listing.\n"+
			"If the tool is clearly spam, illegal or unrelated to software, answer exactly %s.\n"+
			"Tool name: %s\nSubmitter pitch: %s", ContentUnsuitable, name, pitch)
	return s.complete(prompt)
}

// GenerateSummary produces a short neutral paragraph describing the tool.
func (s *EnrichService) GenerateSummary(name, website, pitch string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a neutral two-sentence description of this tool for a directory page. "+
			"No superlatives, no first person.\nTool: %s\nWebsite: %s\nPitch: %s",
		name, website, pitch)
	return s.complete(prompt)
}

func (s *EnrichService) complete(prompt string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("enrichment not configured")
	}

	body, err := json.Marshal(ChatRequest{
		Model:    s.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm endpoint returned %d", resp.StatusCode)
	}

	var parsed ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm endpoint returned no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// EnrichToolAsync screens and enriches a pending listing in the background,
// then publishes it. Tools created while enrichment is unconfigured are
// published directly by the admin flow, so doing nothing here is fine.
func EnrichToolAsync(toolID uint) {
	s := GetEnrichService()
	if !s.Enabled() {
		return
	}
	go enrichTool(s, db.DB, toolID)
}

// enrichTool is the content gate between approval and the public listing: a
// ContentUnsuitable answer rejects the tool, anything else publishes it. An
// endpoint failure publishes with empty marketing fields for an admin to write
// by hand rather than leaving the listing stuck in pending.
func enrichTool(s *EnrichService, gdb *gorm.DB, toolID uint) {
	var tool models.Tool
	if err := gdb.First(&tool, toolID).Error; err != nil {
		return
	}

	tagline, err := s.GenerateTagline(tool.Name, tool.Summary)
	if err != nil {
		logging.L().Warn().Err(err).Uint("tool_id", toolID).Msg("tagline enrichment failed")
		gdb.Model(&tool).UpdateColumn("status", models.ToolStatusApproved)
		return
	}
	if tagline == ContentUnsuitable {
		gdb.Model(&tool).UpdateColumn("status", models.ToolStatusRejected)
		logging.L().Info().Uint("tool_id", toolID).Msg("tool rejected by enrichment screen")
		return
	}

	summary, err := s.GenerateSummary(tool.Name, tool.Website, tool.Summary)
	if err != nil {
		logging.L().Warn().Err(err).Uint("tool_id", toolID).Msg("summary enrichment failed")
		summary = tool.Summary
	}

	gdb.Model(&tool).UpdateColumns(map[string]interface{}{
		"tagline": tagline,
		"summary": summary,
		"status":  models.ToolStatusApproved,
	})
}
