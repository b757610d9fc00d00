package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/opsight/opsight/internal/agent/provider"
	"github.com/opsight/opsight/internal/agent/tools"
)

// runModel drives one model conversation: send the prompt, service tool
// calls through the phase's registry, repeat until the model answers or the
// round budget is spent. Returns the model's final text output.
func (o *Orchestrator) runModel(ctx context.Context, requestID, phase, systemPrompt, userPrompt string, registry *tools.Registry) (string, error) {
	messages := []provider.Message{
		{Role: provider.RoleUser, Content: userPrompt},
	}
	defs := registry.ToProviderTools()

	for round := 0; ; round++ {
		callCtx, cancel := context.WithTimeout(ctx, o.modelTimeout)
		resp, err := o.provider.Chat(callCtx, systemPrompt, messages, defs)
		cancel()
		if err != nil {
			return "", modelError(phase, err)
		}

		o.recordModelUsage(requestID, phase, resp)

		if resp.StopReason != provider.StopReasonToolUse || len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		// Round budget exhausted: take whatever text the model produced
		// rather than looping forever on tool calls.
		if round >= o.maxToolRounds-1 {
			return resp.Content, nil
		}

		results := o.serviceToolCalls(ctx, requestID, phase, registry, resp.ToolCalls)

		messages = append(messages,
			provider.Message{
				Role:    provider.RoleAssistant,
				Content: resp.Content,
				ToolUse: resp.ToolCalls,
			},
			provider.Message{
				Role:       provider.RoleUser,
				ToolResult: results,
			},
		)
	}
}

// serviceToolCalls executes the model's tool calls sequentially through the
// registry and packages the results for the next conversation turn.
func (o *Orchestrator) serviceToolCalls(ctx context.Context, requestID, phase string, registry *tools.Registry, calls []provider.ToolUseBlock) []provider.ToolResultBlock {
	results := make([]provider.ToolResultBlock, 0, len(calls))

	for _, call := range calls {
		if o.audit != nil {
			if err := o.audit.LogToolStart(requestID, phase, call.Name, call.Input); err != nil {
				o.logger.Warn("audit write failed: %v", err)
			}
		}

		tctx, cancel := context.WithTimeout(ctx, o.evidenceTimeout)
		result := registry.Execute(tctx, call.Name, call.Input)
		cancel()

		if o.audit != nil {
			if err := o.audit.LogToolComplete(requestID, phase, call.Name, result.Success, result.ExecutionTimeMs, result.Summary); err != nil {
				o.logger.Warn("audit write failed: %v", err)
			}
		}
		if o.metrics != nil {
			o.metrics.ObserveToolExecution(call.Name, result.Success)
		}

		results = append(results, provider.ToolResultBlock{
			ToolUseID: call.ID,
			Content:   renderToolResult(result),
			IsError:   !result.Success,
		})
	}

	return results
}

// renderToolResult serializes a tool result for the model.
func renderToolResult(result *tools.Result) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"success": false, "error": "failed to serialize tool result"}`
	}
	return string(data)
}

func (o *Orchestrator) recordModelUsage(requestID, phase string, resp *provider.Response) {
	if o.audit != nil {
		if err := o.audit.LogModelRequest(requestID, phase, o.provider.Name(), o.provider.Model(),
			resp.Usage.InputTokens, resp.Usage.OutputTokens, string(resp.StopReason)); err != nil {
			o.logger.Warn("audit write failed: %v", err)
		}
	}
	if o.metrics != nil {
		o.metrics.ObserveModelUsage(phase, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
}
