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
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/cloudwego/i18nagent/internal/log"
)

var _ Generator = (*ChatGenerator)(nil)

// ChatGenerator sends one user message per Call through a compiled eino chain
// and returns the assistant content.
type ChatGenerator struct {
	runnable  compose.Runnable[[]*schema.Message, *schema.Message]
	sysPrompt string
	retries   int
	timeout   time.Duration
	limiter   *rate.Limiter
	sleep     func(ctx context.Context, d time.Duration) error
}

type ChatOptions struct {
	SysPrompt         string
	Retries           int           // Number of retries, default: 3
	Timeout           time.Duration // Request timeout, default: 600s
	RequestsPerMinute int           // 0 disables pacing
}

func NewChatGenerator(ctx context.Context, cm ChatModel, opts ChatOptions) (*ChatGenerator, error) {
	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(cm)
	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile chat chain")
	}
	retries := opts.Retries
	if retries == 0 {
		retries = 3
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 600 * time.Second
	}
	g := &ChatGenerator{
		runnable:  runnable,
		sysPrompt: opts.SysPrompt,
		retries:   retries,
		timeout:   timeout,
		sleep:     sleepCtx,
	}
	if opts.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return g, nil
}

// NewGenerator is NewChatModel followed by NewChatGenerator.
func NewGenerator(ctx context.Context, m ModelConfig, sysPrompt string) (*ChatGenerator, error) {
	cm, err := NewChatModel(ctx, m)
	if err != nil {
		return nil, err
	}
	return NewChatGenerator(ctx, cm, ChatOptions{
		SysPrompt:         sysPrompt,
		Retries:           m.Retries,
		Timeout:           m.Timeout,
		RequestsPerMinute: m.RequestsPerMinute,
	})
}

func (g *ChatGenerator) Call(ctx context.Context, input string) (string, error) {
	msgs := make([]*schema.Message, 0, 2)
	if g.sysPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(g.sysPrompt))
	}
	msgs = append(msgs, schema.UserMessage(input))
	log.Debug("[User] %s", input)

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			log.Info("Retrying LLM call (attempt %d/%d)...", attempt+1, g.retries+1)
			// Exponential backoff: wait 1s, 2s, 4s...
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			if wait > 10*time.Second {
				wait = 10 * time.Second
			}
			if err := g.sleep(ctx, wait); err != nil {
				return "", err
			}
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", errors.Wrap(err, "api rate limiter")
			}
		}

		out, err := g.invoke(ctx, msgs)
		if err == nil {
			return out.Content, nil
		}
		lastErr = err
		if !isRetryable(err) {
			log.Error("Non-retryable error occurred: %v", err)
			return "", errors.Wrap(err, "api call failed")
		}
		log.Info("Retryable error occurred (attempt %d/%d): %v", attempt+1, g.retries+1, err)
	}
	return "", errors.Wrapf(lastErr, "api call failed after %d attempts", g.retries+1)
}

func (g *ChatGenerator) invoke(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	out, err := g.runnable.Invoke(ctx, msgs, compose.WithCallbacks(CallbackHandler{}))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("api returned no message")
	}
	return out, nil
}

func isRetryable(err error) bool {
	s := err.Error()
	for _, p := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"operation timed out",
		"context deadline exceeded",
		"read tcp",
		"write tcp",
		"429",
		"rate limit",
		"overloaded",
	} {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type CallbackHandler struct{}

var _ callbacks.Handler = (*CallbackHandler)(nil)

func (h CallbackHandler) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	log.Debug("<OnStart> %+v", info)
	return ctx
}

func (h CallbackHandler) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	log.Debug("<OnEnd>\n\tINFO %+v\n\tOUTPUT: %v\n</OnEnd>", info, output)
	return ctx
}

func (h CallbackHandler) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	log.Error("<OnError>\n\tINFO: %+v\n\tERROR: %v\n</OnError>", info, err)
	return ctx
}

func (h CallbackHandler) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (h CallbackHandler) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}
