// Package oracle answers free-form follow-up questions about a generated report
// using a hosted language model. Report generation never depends on it.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/liamcoop/fatechart/fate"
)

const (
	DefaultModel      = "gemini-2.5-flash"
	MaxQuestionLength = 500
	temperature       = 0.7
)

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("advisor is not configured")
	// ErrEmptyAnswer is returned when the model produced no text.
	ErrEmptyAnswer = errors.New("advisor returned an empty answer")
)

// Advisor answers a question about one report.
type Advisor interface {
	Ask(ctx context.Context, m fate.BirthMoment, r *fate.Report, question string) (string, error)
}

// New returns a Gemini advisor, or Disabled when apiKey is empty.
func New(ctx context.Context, apiKey, model string) (Advisor, error) {
	if apiKey == "" {
		return Disabled{}, nil
	}
	return NewGemini(ctx, apiKey, model)
}

// Disabled rejects every question.
type Disabled struct{}

func (Disabled) Ask(context.Context, fate.BirthMoment, *fate.Report, string) (string, error) {
	return "", ErrDisabled
}

// contentGenerator is the subset of *genai.Models the advisor calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a client for the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: client.Models, model: model}, nil
}

// Model returns the model name questions are sent to.
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Ask(ctx context.Context, m fate.BirthMoment, r *fate.Report, question string) (string, error) {
	question, err := CheckQuestion(question)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", errors.New("report is required")
	}

	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(m, r, question), genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// CheckQuestion trims a question and enforces its length limits.
func CheckQuestion(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", &fate.InvalidInputError{Field: "question", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(q) > MaxQuestionLength {
		return "", &fate.InvalidInputError{Field: "question", Reason: fmt.Sprintf("must be at most %d characters", MaxQuestionLength)}
	}
	return q, nil
}

// BuildPrompt summarizes the chart for the model and appends the question.
func BuildPrompt(m fate.BirthMoment, r *fate.Report, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "你是一位溫和且專業的命理大師，現在要為使用者「%s」解惑。\n", strings.TrimSpace(m.Name))
	b.WriteString("使用者的命盤摘要如下：\n")
	fmt.Fprintf(&b, "- 出生：國曆 %d年%d月%d日 %s\n", m.Year, m.Month, m.Day, m.Hour)
	c := r.Chart
	fmt.Fprintf(&b, "- 四柱：%s %s %s %s\n", c.Year, c.Month, c.Day, c.Hour)
	fmt.Fprintf(&b, "- 八字日主：%s（%s）\n", c.DayMaster, c.DayMasterElement)
	fmt.Fprintf(&b, "- 格局：%s；%s\n", r.Archetype.Name, r.Strength.Class.Label())
	if len(r.Tags) > 0 {
		fmt.Fprintf(&b, "- 性格標籤：%s\n", strings.Join(r.Tags, "、"))
	}
	fmt.Fprintf(&b, "- 整體運勢評語：%s\n", r.OverallFortune)
	fmt.Fprintf(&b, "使用者的提問是：「%s」\n", question)
	b.WriteString("請以親切、易懂、白話文的方式回答。字數約 150-250 字。")
	return b.String()
}
