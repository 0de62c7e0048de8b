package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-scheduler/internal/llm"
)

const recognizerPrompt = `You classify messages sent to a single-doctor clinic's scheduling assistant.
Answer with one JSON object and nothing else: {"intent": "<label>", "entities": {"<key>": "<value>"}}.
Labels: book_appointment, reschedule_appointment, cancel_appointment, pause_bookings, resume_bookings,
cancel_all_meetings_today, check_availability, greeting, thank_you, faq_opening_hours, other.
Entity keys: date (YYYY-MM-DD), time (HH:MM 24-hour, or as written), reason, patient_name,
start_date, end_date. Omit keys you cannot fill. Use "same day" for a date that refers to the
date already under discussion. Use "other" when unsure.`

// LLMRecognizer asks a language model for a JSON classification.
type LLMRecognizer struct {
	client llm.Client
	model  string
}

// NewLLMRecognizer builds a recognizer; model may be empty to use the
// client's default.
func NewLLMRecognizer(client llm.Client, model string) *LLMRecognizer {
	return &LLMRecognizer{client: client, model: model}
}

type llmAnswer struct {
	Intent   string         `json:"intent"`
	Entities map[string]any `json:"entities"`
}

// Recognize never fails hard: on any problem it returns Other together with
// an error wrapping ErrRecognizerFailure.
func (r *LLMRecognizer) Recognize(ctx context.Context, req Request) (Result, error) {
	fallback := Result{Intent: Other, Entities: SlotEntities{}}
	if r == nil || r.client == nil {
		return fallback, fmt.Errorf("%w: no model configured", ErrRecognizerFailure)
	}

	var ctxLines []string
	if !req.Now.IsZero() {
		ctxLines = append(ctxLines, "Today is "+req.Now.Format("2006-01-02 (Monday)")+".")
	}
	if req.ContextualDate != "" {
		ctxLines = append(ctxLines, "Date under discussion: "+req.ContextualDate+".")
	}
	ctxLines = append(ctxLines, "Sender role: "+string(req.Role)+".")

	resp, err := r.client.Complete(ctx, llm.Request{
		Model:       r.model,
		System:      []string{recognizerPrompt, strings.Join(ctxLines, "\n")},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: req.Text}},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		return fallback, fmt.Errorf("%w: %v", ErrRecognizerFailure, err)
	}

	var ans llmAnswer
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &ans); err != nil {
		return fallback, fmt.Errorf("%w: malformed output: %v", ErrRecognizerFailure, err)
	}
	if strings.TrimSpace(ans.Intent) == "" {
		return fallback, fmt.Errorf("%w: missing intent", ErrRecognizerFailure)
	}
	entities := make(map[string]string, len(ans.Entities))
	for k, v := range ans.Entities {
		if v == nil {
			continue
		}
		entities[k] = strings.TrimSpace(fmt.Sprint(v))
	}
	return FromRaw(ans.Intent, entities), nil
}

// extractJSON strips code fences and prose around the first JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
