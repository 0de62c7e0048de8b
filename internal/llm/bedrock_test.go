package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type stubConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (s *stubConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.input = params
	return s.out, s.err
}

func TestBedrockClientComplete(t *testing.T) {
	stub := &stubConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "  {\"intent\":\"greeting\"} "}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(4), TotalTokens: aws.Int32(14)},
	}}
	client := NewBedrockClient(stub, "anthropic.test-model")

	resp, err := client.Complete(context.Background(), Request{
		System:      []string{"classify"},
		Messages:    []Message{{Role: RoleSystem, Content: "clinic"}, {Role: RoleUser, Content: "hi"}},
		Temperature: -1,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != `{"intent":"greeting"}` {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 14 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if aws.ToString(stub.input.ModelId) != "anthropic.test-model" {
		t.Fatalf("expected default model, got %q", aws.ToString(stub.input.ModelId))
	}
	if len(stub.input.System) != 2 || len(stub.input.Messages) != 1 {
		t.Fatalf("system role should fold into system blocks: %d system, %d messages", len(stub.input.System), len(stub.input.Messages))
	}
	if stub.input.InferenceConfig != nil {
		t.Fatal("expected nil inference config when nothing is set")
	}
}

func TestBedrockClientErrors(t *testing.T) {
	if _, err := NewBedrockClient(&stubConverse{}, "").Complete(context.Background(), Request{}); err == nil {
		t.Fatal("expected missing model error")
	}
	stub := &stubConverse{err: errors.New("throttled")}
	if _, err := NewBedrockClient(stub, "m").Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}); err == nil {
		t.Fatal("expected converse error")
	}
	bad := &stubConverse{}
	if _, err := NewBedrockClient(bad, "m").Complete(context.Background(), Request{Messages: []Message{{Role: "tool", Content: "x"}}}); err == nil {
		t.Fatal("expected unsupported role error")
	}
}
