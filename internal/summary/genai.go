package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spec-kit/visitor-queue/internal/config"
	"github.com/spec-kit/visitor-queue/internal/domain"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("summarizer returned no text")

// GenAISummarizer summarizes a visit with a Gemini model.
type GenAISummarizer struct {
	client *genai.Client
	model  string
}

// NewGenAISummarizer builds a summarizer from configuration.
func NewGenAISummarizer(ctx context.Context, cfg config.SummaryConfig) (*GenAISummarizer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("summary api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAISummarizer{client: client, model: cfg.Model}, nil
}

// Summarize asks the model for a short staff-facing summary.
func (s *GenAISummarizer) Summarize(ctx context.Context, ticketNumber string, entries []domain.ProgressEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(BuildPrompt(ticketNumber, entries)), nil)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// BuildPrompt renders progress entries in recorded order.
func BuildPrompt(ticketNumber string, entries []domain.ProgressEntry) string {
	var b strings.Builder
	b.WriteString("Summarize this court self-help visit for the clerk in at most three sentences. ")
	b.WriteString("Do not invent facts.\n\n")
	fmt.Fprintf(&b, "Ticket: %s\n", ticketNumber)
	for i, entry := range entries {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, entry.StepID, entry.StepText)
		if entry.ResponseText != nil && strings.TrimSpace(*entry.ResponseText) != "" {
			fmt.Fprintf(&b, " -> %s", strings.TrimSpace(*entry.ResponseText))
		}
		b.WriteString("\n")
	}
	return b.String()
}
