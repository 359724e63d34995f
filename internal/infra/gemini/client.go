package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"glassmind-quiz-service/internal/dependencies/random"
	"glassmind-quiz-service/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultTimeout = 20 * time.Second

	seedRange = 1000000
)

// contentGenerator is the part of *genai.GenerativeModel the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client asks Gemini for question sets. It applies no fallback policy; callers decide
// what to do with its errors.
type Client struct {
	sdk     *genai.Client
	model   contentGenerator
	random  random.Random
	timeout time.Duration
}

// NewClient returns a client bound to model. An empty apiKey is not an error: the client
// is still usable and every call fails with domain.ErrNoCredential.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration, rnd random.Random) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{random: rnd, timeout: timeout}
	if strings.TrimSpace(apiKey) == "" {
		return c, nil
	}
	if model == "" {
		model = DefaultModel
	}

	sdk, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	gm := sdk.GenerativeModel(model)
	gm.ResponseMIMEType = "application/json"
	gm.ResponseSchema = questionSchema()

	c.sdk = sdk
	c.model = gm
	return c, nil
}

func newClientWithModel(model contentGenerator, rnd random.Random, timeout time.Duration) *Client {
	return &Client{model: model, random: rnd, timeout: timeout}
}

func (c *Client) Close() error {
	if c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

// Generate requests count questions about topic. Returned questions are decoded but not
// validated.
func (c *Client) Generate(ctx context.Context, topic string, count int) ([]domain.Question, error) {
	if c.model == nil {
		return nil, domain.ErrNoCredential
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, genai.Text(c.prompt(topic, count)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	text, ok := responseText(resp)
	if !ok {
		return nil, fmt.Errorf("%w: empty response", domain.ErrUpstream)
	}
	return decodeQuestions(text)
}

func (c *Client) prompt(topic string, count int) string {
	seed := c.random.Intn(seedRange)
	return fmt.Sprintf(`Generate %d unique, diverse and engaging multiple-choice quiz questions about %q.
Rules:
1. Variation seed: %d. Use it to vary the sub-topics you pick.
2. Mix easy, medium and hard questions.
3. Avoid the most common facts and do not repeat sub-topics.
4. Give exactly 4 options per question and the zero-based index of the correct one.
5. The explanation is one short sentence of at most 12 words stating the key fact.
6. Answer with a JSON array only, keys: id, text, options, correctAnswerIndex, explanation.`,
		count, topic, seed)
}

func questionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"id":                 {Type: genai.TypeString},
				"text":               {Type: genai.TypeString},
				"options":            {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"correctAnswerIndex": {Type: genai.TypeInteger},
				"explanation":        {Type: genai.TypeString},
			},
			Required: []string{"text", "options", "correctAnswerIndex", "explanation"},
		},
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if strings.TrimSpace(b.String()) != "" {
			return b.String(), true
		}
	}
	return "", false
}

func decodeQuestions(text string) ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal([]byte(stripFences(text)), &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedQuestions, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", domain.ErrMalformedQuestions)
	}
	return questions, nil
}

func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
