// Package solver реализует клиента внешнего сервиса извлечения текста
// и генерации решений поверх OpenAI API. Оба вызова ограничены таймаутом
// из конфигурации; ошибка или истечение таймаута трактуются конвейером
// как временный сбой и попадают под политику повторов.
package solver

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zerotask/solver-bot/internal/config"
)

const extractSystemPrompt = "Ты - эксперт по извлечению текста из изображений. " +
	"Извлеки весь текст из изображения, особенно математические задачи, формулы и уравнения. " +
	"Сохрани точность математических выражений. Отвечай только текстом задачи, без дополнительных комментариев."

const solveSystemPrompt = `Ты - эксперт по решению математических задач.
Создавай краткие пошаговые решения в формате HTML с нумерованным списком.
Используй обычный текст для формул (без $), но с правильными символами:
- 2² вместо 2^2
- 4/2 вместо дробей
- × для умножения
- √ для корня
Формат ответа:
<ol>
<li><strong>Шаг 1:</strong> конкретное действие</li>
<li><strong>Шаг 2:</strong> конкретное действие</li>
<li><strong>Ответ:</strong> итоговый ответ</li>
</ol>
Делай решения максимально краткими. Каждый шаг - это одно конкретное действие или вычисление, без лишних объяснений.`

// Client клиент сервиса извлечения текста и генерации решений.
type Client struct {
	api           *openai.Client
	visionModel   string
	solutionModel string
	timeout       config.OpenAI
}

// New создает нового клиента с настройками из конфигурации.
func New(cfg config.OpenAI) *Client {
	return &Client{
		api:           openai.NewClient(cfg.APIKey),
		visionModel:   cfg.VisionModel,
		solutionModel: cfg.SolutionModel,
		timeout:       cfg,
	}
}

// ExtractText извлекает текст условия задачи из изображения.
func (c *Client) ExtractText(ctx context.Context, imageBytes []byte) (string, error) {
	const op = "solver.ExtractText"

	ctx, cancel := context.WithTimeout(ctx, c.timeout.RequestTimeout)
	defer cancel()

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageBytes)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: extractSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Извлеки текст из этого изображения. Если это математическая задача, сохрани все формулы и символы точно.",
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		MaxTokens: 1000,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", op)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateSolution генерирует пошаговое решение по тексту условия.
func (c *Client) GenerateSolution(ctx context.Context, taskText string) (string, error) {
	const op = "solver.GenerateSolution"

	ctx, cancel := context.WithTimeout(ctx, c.timeout.RequestTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.solutionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: solveSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Реши эту задачу: " + taskText,
			},
		},
		MaxTokens: 1500,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", op)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
