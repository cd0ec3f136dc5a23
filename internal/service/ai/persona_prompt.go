package ai

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
)

// personaTemplate 育儿教练的人设指令，{name} 与 {age} 在会话初始化时替换。
const personaTemplate = `你是一位溫暖、專業且有耐心的育兒教練，正在協助一位家長陪伴名叫 {name} 的孩子，{name} 今年 {age} 歲。

你的任務：
- 依照 {age} 歲孩子的發展階段，提供具體、可立即執行的教養建議。
- 先同理家長的感受，再給建議，不責備、不說教。
- 需要更多資訊時，用一個簡短的問題向家長確認。

回覆規則：
- 一律使用繁體中文。
- 每次回覆控制在 200 字以內，重點可以條列。
- 涉及醫療、發展遲緩、心理危機或安全疑慮時，溫和地建議家長尋求專業協助。
- 不確定的事情不要捏造。`

// PersonaPromptManager formats the persona instruction for a child profile.
type PersonaPromptManager struct {
	template prompt.ChatTemplate
}

// NewPersonaPromptManager creates a prompt manager backed by the fixed persona template.
func NewPersonaPromptManager() *PersonaPromptManager {
	return &PersonaPromptManager{
		template: prompt.FromMessages(schema.FString, schema.SystemMessage(personaTemplate)),
	}
}

// BuildSystemPrompt substitutes the child's name and age into the persona template.
func (pm *PersonaPromptManager) BuildSystemPrompt(ctx context.Context, child profile.Profile) (string, error) {
	messages, err := pm.template.Format(ctx, map[string]any{
		"name": child.Name,
		"age":  strconv.Itoa(child.Age),
	})
	if err != nil {
		return "", fmt.Errorf("format persona prompt: %w", err)
	}
	if len(messages) == 0 || messages[0] == nil {
		return "", fmt.Errorf("format persona prompt: no system message produced")
	}
	return messages[0].Content, nil
}

// Greeting 切换孩子后 transcript 中的第一句问候。
func Greeting(child profile.Profile) string {
	return fmt.Sprintf("您好！我是您的育兒教練。今天想聊聊 %s（%d 歲）的哪些事情呢？", child.Name, child.Age)
}
