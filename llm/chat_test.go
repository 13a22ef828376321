/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	errs   []error
	reply  string
	calls  int
	lastIn []*schema.Message
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	m.lastIn = input
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func newTestGenerator(t *testing.T, cm *fakeChatModel) *ChatGenerator {
	t.Helper()
	g, err := NewChatGenerator(context.Background(), cm, ChatOptions{SysPrompt: "sys", Retries: 2})
	require.NoError(t, err)
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g
}

func TestChatGenerator_Call(t *testing.T) {
	cm := &fakeChatModel{reply: `{"action":"discovery"}`}
	g := newTestGenerator(t, cm)

	out, err := g.Call(context.Background(), "what next?")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"discovery"}`, out)
	require.Len(t, cm.lastIn, 2)
	assert.Equal(t, schema.System, cm.lastIn[0].Role)
	assert.Equal(t, "what next?", cm.lastIn[1].Content)
}

func TestChatGenerator_RetriesTransientErrors(t *testing.T) {
	cm := &fakeChatModel{
		errs:  []error{errors.New("read tcp: connection reset by peer"), errors.New("request timeout")},
		reply: "ok",
	}
	g := newTestGenerator(t, cm)

	out, err := g.Call(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, cm.calls)
}

func TestChatGenerator_NonRetryable(t *testing.T) {
	cm := &fakeChatModel{errs: []error{errors.New("invalid api key")}}
	g := newTestGenerator(t, cm)

	_, err := g.Call(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api call failed")
	assert.Equal(t, 1, cm.calls)
}

func TestNewModelType(t *testing.T) {
	assert.Equal(t, ModelTypeClaude, NewModelType("Anthropic"))
	assert.Equal(t, ModelTypeDashScope, NewModelType("qwen"))
	assert.Equal(t, ModelTypeUnknown, NewModelType("nope"))

	var mt ModelType
	require.NoError(t, mt.UnmarshalText([]byte("gpt")))
	assert.Equal(t, ModelTypeOpenAI, mt)
}

func TestNewChatModel_Unsupported(t *testing.T) {
	_, err := NewChatModel(context.Background(), ModelConfig{APIType: "bogus"})
	require.Error(t, err)
}
