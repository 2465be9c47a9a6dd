package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"
	"github.com/openai/openai-go/v2/shared/constant"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// FAQ is a generated question and answer pair.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// InfoPost is the structured article returned by the model.
type InfoPost struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
	SEOKeywords []string `json:"seo_keywords"`
	FAQ         []FAQ    `json:"faq"`
}

// Generator produces informational articles for a topic.
type Generator interface {
	Generate(ctx context.Context, topic string) (*InfoPost, error)
}

// GeneratorOptions configures the chat completion backed generator.
type GeneratorOptions struct {
	Client       *Client
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	// UserPrompt is a fmt template receiving the topic.
	UserPrompt string
}

type infoPostGenerator struct {
	client       *Client
	logger       *logrus.Logger
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
	userPrompt   string
}

const (
	DefaultModel                = "gpt-4o"
	defaultGeneratorTemperature = 0.7
	defaultGeneratorMaxTokens   = 4000
	defaultUserPrompt           = "다음 주제에 대한 테니스 정보 블로그 포스트를 물리원리와 인체구조 관점에서 작성해주세요: %s"
)

const defaultSystemPrompt = `당신은 테니스 전문가이자 물리학/운동역학 전문 블로거입니다.
테니스의 기술과 원리를 물리학과 인체구조의 관점에서 과학적으로 설명합니다.
초보자도 이해하기 쉽게 작성하되, 과학적 근거를 바탕으로 설명합니다.
제품 홍보가 아닌 순수 정보 공유 목적으로 작성합니다.

응답은 반드시 아래 JSON 형식으로 작성해주세요:
{
  "title": "SEO 최적화된 제목 (50자 이내)",
  "description": "150-160자 내외의 메타 설명",
  "content": "HTML 형식의 본문 (1500-2500자)",
  "tags": ["태그1", "태그2", "태그3"],
  "seo_keywords": ["키워드1", "키워드2", "키워드3"],
  "faq": [
    {"question": "질문1", "answer": "답변1"},
    {"question": "질문2", "answer": "답변2"},
    {"question": "질문3", "answer": "답변3"}
  ]
}

본문 작성 시 주의사항:
- HTML 태그를 사용하여 구조화된 콘텐츠 작성
- h2, h3 태그로 섹션 구분
- p 태그로 단락 구분
- ul, li 태그로 목록 작성
- 쿠팡 링크나 제품 홍보 문구 절대 포함하지 않음
- 순수 정보 제공 목적의 콘텐츠만 작성`

// NewGenerator constructs a Generator backed by chat completions in JSON mode.
func NewGenerator(opts GeneratorOptions) (Generator, error) {
	if opts.Client == nil {
		return nil, eris.New("llm client is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultGeneratorTemperature
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultGeneratorMaxTokens
	}

	systemPrompt := strings.TrimSpace(opts.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	userPrompt := strings.TrimSpace(opts.UserPrompt)
	if userPrompt == "" {
		userPrompt = defaultUserPrompt
	}
	if !strings.Contains(userPrompt, "%s") {
		return nil, eris.New("user prompt must contain a %s placeholder for the topic")
	}

	return &infoPostGenerator{
		client:       opts.Client,
		logger:       opts.Client.logger,
		model:        model,
		temperature:  temperature,
		maxTokens:    maxTokens,
		systemPrompt: systemPrompt,
		userPrompt:   userPrompt,
	}, nil
}

func (g *infoPostGenerator) Generate(ctx context.Context, topic string) (*InfoPost, error) {
	trimmedTopic := strings.TrimSpace(topic)
	if trimmedTopic == "" {
		return nil, eris.New("topic is required")
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(g.systemPrompt),
			openai.UserMessage(fmt.Sprintf(g.userPrompt, trimmedTopic)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: constant.ValueOf[constant.JSONObject](),
			},
		},
		Temperature: openai.Float(g.temperature),
		MaxTokens:   openai.Int(int64(g.maxTokens)),
	}

	fields := logrus.Fields{"topic": trimmedTopic, "model": g.model}

	completion, err := g.client.chat.New(ctx, params)
	if err != nil {
		g.logError(fields, err, "requesting chat completion")
		return nil, eris.Wrap(err, "requesting chat completion")
	}

	if len(completion.Choices) == 0 {
		err := eris.New("llm completion returned no choices")
		g.logError(fields, err, "processing chat completion")
		return nil, err
	}

	choice := completion.Choices[0]
	if reason := strings.TrimSpace(choice.FinishReason); strings.EqualFold(reason, "content_filter") {
		err := eris.New("llm blocked the request via content filter")
		g.logError(fields, err, "generator blocked")
		return nil, err
	}

	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		err := eris.Errorf("llm refused to generate content: %s", refusal)
		g.logError(fields, err, "generator refused")
		return nil, err
	}

	post, err := parseInfoPost(choice.Message.Content)
	if err != nil {
		g.logError(fields, err, "parsing llm response")
		return nil, err
	}

	if g.logger != nil {
		g.logger.WithFields(fields).WithField("title", post.Title).Info("info post generated")
	}

	return post, nil
}

// parseInfoPost decodes the model output. List fields of the wrong JSON type
// are treated as empty rather than failing the whole article.
func parseInfoPost(raw string) (*InfoPost, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, eris.New("llm response content is empty")
	}

	var loose struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Content     string          `json:"content"`
		Tags        json.RawMessage `json:"tags"`
		SEOKeywords json.RawMessage `json:"seo_keywords"`
		FAQ         json.RawMessage `json:"faq"`
	}
	if err := json.Unmarshal([]byte(trimmed), &loose); err != nil {
		return nil, eris.Wrap(err, "decoding llm response json")
	}

	post := &InfoPost{
		Title:       strings.TrimSpace(loose.Title),
		Description: strings.TrimSpace(loose.Description),
		Content:     loose.Content,
		Tags:        []string{},
		SEOKeywords: []string{},
		FAQ:         []FAQ{},
	}
	_ = json.Unmarshal(loose.Tags, &post.Tags)
	_ = json.Unmarshal(loose.SEOKeywords, &post.SEOKeywords)
	_ = json.Unmarshal(loose.FAQ, &post.FAQ)

	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.SEOKeywords == nil {
		post.SEOKeywords = []string{}
	}
	if post.FAQ == nil {
		post.FAQ = []FAQ{}
	}

	return post, nil
}

func (g *infoPostGenerator) logError(fields logrus.Fields, err error, message string) {
	if g.logger == nil || err == nil {
		return
	}

	entry := g.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
